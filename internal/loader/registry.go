package loader

import (
	"path/filepath"
	"strings"
	"sync"
)

// Extractor turns raw file bytes into document text using decoders for the
// character encoding, and reports the encoding of the text it produced.
type Extractor func(raw []byte, decoders []Decoder) (text, encoding string, err error)

// Format describes how files with the given extensions are read.
type Format struct {
	Name       string
	Extensions []string
	Extract    Extractor
}

// Registry maps file extensions to formats.
type Registry struct {
	mu      sync.RWMutex
	formats map[string]*Format // extension (without dot) → format
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{formats: make(map[string]*Format)}
}

// DefaultRegistry knows plain text, Markdown, RTF and saved HTML pages.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&Format{Name: "text", Extensions: []string{"txt"}, Extract: extractPlain})
	r.Register(&Format{Name: "markdown", Extensions: []string{"md"}, Extract: extractPlain})
	r.Register(&Format{Name: "rtf", Extensions: []string{"rtf"}, Extract: extractRTF})
	r.Register(&Format{Name: "html", Extensions: []string{"html", "htm"}, Extract: ExtractHTML})
	return r
}

// Register adds a format under each of its extensions.
func (r *Registry) Register(f *Format) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range f.Extensions {
		r.formats[strings.ToLower(strings.TrimPrefix(ext, "."))] = f
	}
}

// Lookup returns the format for a file path, or nil if unsupported.
func (r *Registry) Lookup(path string) *Format {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.formats[ext]
}

// Extensions returns a set of all registered extensions (without dots).
func (r *Registry) Extensions() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make(map[string]bool, len(r.formats))
	for ext := range r.formats {
		exts[ext] = true
	}
	return exts
}

func extractPlain(raw []byte, decoders []Decoder) (string, string, error) {
	return decode(raw, decoders)
}

func extractRTF(raw []byte, decoders []Decoder) (string, string, error) {
	// A .rtf file without the RTF header is read as plain text.
	if !strings.HasPrefix(string(raw), "{\\rtf") {
		return extractPlain(raw, decoders)
	}
	text, enc := StripRTF(raw, decoders)
	return text, enc, nil
}
