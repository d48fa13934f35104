package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"lawrag/internal/logger"
)

// Document is one decoded corpus file. Name is the slash-separated path
// relative to the data directory.
type Document struct {
	Name     string
	Content  string
	Encoding string
	Format   string
}

// Options configures a Loader.
type Options struct {
	// Extensions limits which registered formats are read. Empty means all.
	Extensions  []string
	Exclude     []string
	MaxFileSize int64
	Decoders    []Decoder
	Registry    *Registry
}

// Loader reads legal texts from a directory tree.
type Loader struct {
	registry *Registry
	exts     map[string]bool
	exclude  []string
	maxSize  int64
	decoders []Decoder
}

// New creates a loader, filling unset options with defaults.
func New(opts Options) *Loader {
	reg := opts.Registry
	if reg == nil {
		reg = DefaultRegistry()
	}
	exts := reg.Extensions()
	if len(opts.Extensions) > 0 {
		wanted := make(map[string]bool, len(opts.Extensions))
		for _, e := range opts.Extensions {
			e = strings.ToLower(strings.TrimPrefix(e, "."))
			if exts[e] {
				wanted[e] = true
			}
		}
		exts = wanted
	}
	decoders := opts.Decoders
	if len(decoders) == 0 {
		decoders = DefaultDecoders()
	}
	return &Loader{
		registry: reg,
		exts:     exts,
		exclude:  opts.Exclude,
		maxSize:  opts.MaxFileSize,
		decoders: decoders,
	}
}

// LoadDir reads every supported file under dir, ordered by relative path.
// A missing dir is created and yields no documents. Files that cannot be
// read or decoded, and files with no text, are skipped and logged.
func (l *Loader) LoadDir(ctx context.Context, dir string) ([]Document, error) {
	log := logger.For("loader")

	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		log.Warnf("directory %s does not exist, creating it", dir)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("stat data dir: %w", err)
	}

	fileCh, errCh := Walk(dir, l.exts, l.exclude, l.maxSize)

	var docs []Document
	for fi := range fileCh {
		if ctx.Err() != nil {
			continue // drain so the walker goroutine can exit
		}
		doc, err := l.readFile(fi)
		if err != nil {
			log.WithError(err).Errorf("skipping %s", fi.RelPath)
			continue
		}
		if strings.TrimSpace(doc.Content) == "" {
			log.Warnf("skipping %s: no text", fi.RelPath)
			continue
		}
		log.Infof("loaded %s (%d characters, %s)", doc.Name, len([]rune(doc.Content)), doc.Encoding)
		docs = append(docs, doc)
	}
	if err := <-errCh; err != nil {
		return nil, fmt.Errorf("walk error: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	log.Infof("total loaded documents: %d", len(docs))
	return docs, nil
}

func (l *Loader) readFile(fi FileInfo) (Document, error) {
	format := l.registry.Lookup(fi.Path)
	if format == nil {
		return Document{}, fmt.Errorf("no format for %s", fi.RelPath)
	}
	raw, err := os.ReadFile(fi.Path)
	if err != nil {
		return Document{}, err
	}
	text, enc, err := format.Extract(raw, l.decoders)
	if err != nil {
		return Document{}, err
	}
	return Document{Name: fi.RelPath, Content: text, Encoding: enc, Format: format.Name}, nil
}

// LoadDir reads dir with the default loader.
func LoadDir(ctx context.Context, dir string) ([]Document, error) {
	return New(Options{}).LoadDir(ctx, dir)
}
