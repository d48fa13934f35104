package loader

import (
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// skippedDestinations are RTF groups that carry no body text.
var skippedDestinations = map[string]bool{
	"fonttbl":      true,
	"colortbl":     true,
	"stylesheet":   true,
	"info":         true,
	"pict":         true,
	"header":       true,
	"footer":       true,
	"headerl":      true,
	"headerr":      true,
	"footerl":      true,
	"footerr":      true,
	"listtable":    true,
	"themedata":    true,
	"datastore":    true,
	"xmlnstbl":     true,
	"latentstyles": true,
}

var codePages = map[int]*charmap.Charmap{
	1250:  charmap.Windows1250,
	1251:  charmap.Windows1251,
	1252:  charmap.Windows1252,
	866:   charmap.CodePage866,
	20866: charmap.KOI8R,
}

type rtfState struct {
	out     strings.Builder
	pending []byte
	hex     []Decoder
	// enc names the decoder that last decoded \'hh bytes.
	enc string
}

// flush decodes buffered \'hh bytes with the document code page.
func (s *rtfState) flush() {
	if len(s.pending) == 0 {
		return
	}
	if text, enc, err := decode(s.pending, s.hex); err == nil {
		s.out.WriteString(text)
		s.enc = enc
	}
	s.pending = s.pending[:0]
}

// StripRTF reduces an RTF document to its plain text. Hex escapes are decoded
// with the code page declared by \ansicpg, falling back to fallback. The
// returned encoding names the decoder used for hex escapes, or "ascii" when
// the text needed none.
func StripRTF(src []byte, fallback []Decoder) (string, string) {
	st := &rtfState{hex: fallback}
	// Group stack: true when the group is being skipped.
	stack := []bool{false}
	skipping := func() bool { return stack[len(stack)-1] }
	ucSkip := 1
	pendingSkip := 0
	starDest := false

	for i := 0; i < len(src); i++ {
		c := src[i]
		switch c {
		case '{':
			st.flush()
			stack = append(stack, skipping())
			starDest = false
			continue
		case '}':
			st.flush()
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
			starDest = false
			continue
		case '\r', '\n':
			continue
		case '\\':
		default:
			if pendingSkip > 0 {
				pendingSkip--
				continue
			}
			if skipping() {
				continue
			}
			if c >= 0x80 {
				st.pending = append(st.pending, c)
				continue
			}
			st.flush()
			st.out.WriteByte(c)
			continue
		}

		// Control word or symbol.
		if i+1 >= len(src) {
			break
		}
		next := src[i+1]
		if !isLetter(next) {
			i++
			switch next {
			case '\\', '{', '}':
				if pendingSkip > 0 {
					pendingSkip--
				} else if !skipping() {
					st.flush()
					st.out.WriteByte(next)
				}
			case '\'':
				if i+2 < len(src) {
					if b, err := strconv.ParseUint(string(src[i+1:i+3]), 16, 8); err == nil {
						if pendingSkip > 0 {
							pendingSkip--
						} else if !skipping() {
							st.pending = append(st.pending, byte(b))
						}
					}
					i += 2
				}
			case '*':
				starDest = true
			case '~':
				if !skipping() {
					st.flush()
					st.out.WriteByte(' ')
				}
			case '-', '_':
				if next == '_' && !skipping() {
					st.flush()
					st.out.WriteByte('-')
				}
			case '\n', '\r':
				if !skipping() {
					st.flush()
					st.out.WriteByte('\n')
				}
			}
			continue
		}

		j := i + 1
		for j < len(src) && isLetter(src[j]) {
			j++
		}
		word := string(src[i+1 : j])
		k := j
		if k < len(src) && (src[k] == '-' || isDigit(src[k])) {
			k++
			for k < len(src) && isDigit(src[k]) {
				k++
			}
		}
		param, hasParam := 0, false
		if k > j {
			if n, err := strconv.Atoi(string(src[j:k])); err == nil {
				param, hasParam = n, true
			}
		}
		if k < len(src) && src[k] == ' ' {
			k++
		}
		i = k - 1

		if starDest || skippedDestinations[word] {
			stack[len(stack)-1] = true
			starDest = false
			continue
		}
		if skipping() {
			continue
		}

		switch word {
		case "ansicpg":
			if cm, ok := codePages[param]; ok {
				st.hex = []Decoder{Charmap("cp"+strconv.Itoa(param), cm)}
			}
		case "par", "line", "sect", "page":
			st.flush()
			st.out.WriteByte('\n')
		case "tab", "cell":
			st.flush()
			st.out.WriteByte('\t')
		case "row":
			st.flush()
			st.out.WriteByte('\n')
		case "uc":
			if hasParam {
				ucSkip = param
			}
		case "u":
			if hasParam {
				if param < 0 {
					param += 65536
				}
				st.flush()
				st.out.WriteRune(rune(param))
				pendingSkip = ucSkip
			}
		case "emdash", "endash":
			st.flush()
			st.out.WriteByte('-')
		case "lquote", "rquote":
			st.flush()
			st.out.WriteByte('\'')
		case "ldblquote", "rdblquote":
			st.flush()
			st.out.WriteByte('"')
		}
	}
	st.flush()
	if st.enc == "" {
		return st.out.String(), "ascii"
	}
	return st.out.String(), st.enc
}

func isLetter(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isDigit(c byte) bool  { return c >= '0' && c <= '9' }
