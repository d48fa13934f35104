package loader

import (
	"bytes"
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// ErrUndecodable is returned when no decoder in the chain accepts a file.
var ErrUndecodable = errors.New("no decoder accepted the content")

// Decoder turns raw bytes into text. ok is false when the bytes are not
// valid in the decoder's encoding.
type Decoder struct {
	Name   string
	Decode func([]byte) (string, bool)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// UTF8 accepts only well-formed UTF-8. A leading byte order mark is dropped.
var UTF8 = Decoder{
	Name: "utf-8",
	Decode: func(b []byte) (string, bool) {
		b = bytes.TrimPrefix(b, utf8BOM)
		if !utf8.Valid(b) {
			return "", false
		}
		return string(b), true
	},
}

// Charmap builds a decoder for a single-byte code page. A byte the code page
// leaves undefined decodes to U+FFFD or a C1 control, and either counts as a
// failure.
func Charmap(name string, cm *charmap.Charmap) Decoder {
	return Decoder{
		Name: name,
		Decode: func(b []byte) (string, bool) {
			return decodeWith(cm.NewDecoder(), b, true)
		},
	}
}

// Permissive is like Charmap but accepts C1 controls. Used for the last
// decoder in the chain.
func Permissive(name string, cm *charmap.Charmap) Decoder {
	return Decoder{
		Name: name,
		Decode: func(b []byte) (string, bool) {
			return decodeWith(cm.NewDecoder(), b, false)
		},
	}
}

func decodeWith(dec *encoding.Decoder, b []byte, rejectC1 bool) (string, bool) {
	out, err := dec.Bytes(b)
	if err != nil {
		return "", false
	}
	s := string(out)
	bad := func(r rune) bool {
		return r == utf8.RuneError || (rejectC1 && r >= 0x80 && r <= 0x9F)
	}
	if strings.IndexFunc(s, bad) >= 0 {
		return "", false
	}
	return s, true
}

// DefaultDecoders is the order in which encodings are tried: UTF-8, then the
// Cyrillic code pages, then Latin-1 which accepts any byte sequence.
func DefaultDecoders() []Decoder {
	return []Decoder{
		UTF8,
		Charmap("windows-1251", charmap.Windows1251),
		Charmap("koi8-r", charmap.KOI8R),
		Permissive("iso-8859-1", charmap.ISO8859_1),
	}
}

// decode runs b through decoders and reports which one succeeded.
func decode(b []byte, decoders []Decoder) (string, string, error) {
	for _, d := range decoders {
		if s, ok := d.Decode(b); ok {
			return s, d.Name, nil
		}
	}
	return "", "", ErrUndecodable
}
