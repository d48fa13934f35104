package embedder

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"lawrag/internal/logger"
)

const probeText = "право"

// Candidate is one backend in the fallback chain. New constructs it; the
// resolver then probes it with a one-item embed.
type Candidate struct {
	Name string
	New  func() (Embedder, error)
}

// Static wraps an already constructed embedder as a candidate.
func Static(e Embedder) Candidate {
	return Candidate{Name: e.Model(), New: func() (Embedder, error) { return e, nil }}
}

// Resolver picks the first working candidate and caches the choice, or the
// failure, for the life of the process.
type Resolver struct {
	candidates []Candidate

	mu       sync.Mutex
	resolved bool
	emb      Embedder
	dim      int
	err      error
}

// NewResolver creates a resolver over candidates in priority order.
func NewResolver(candidates ...Candidate) *Resolver {
	return &Resolver{candidates: candidates}
}

// Resolve returns the selected embedder and its vector dimension. If every
// candidate failed it returns an error wrapping ErrUnavailable, the same one
// on every call. A failure caused by ctx ending is not cached.
func (r *Resolver) Resolve(ctx context.Context) (Embedder, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resolved {
		return r.emb, r.dim, r.err
	}

	log := logger.For("embedder")
	var errs []error
	for i, c := range r.candidates {
		e, err := c.New()
		if err == nil {
			var v []float32
			v, err = EmbedOne(ctx, e, probeText)
			if err == nil && len(v) == 0 {
				err = errors.New("empty probe vector")
			}
			if err == nil {
				if i > 0 {
					log.Warnf("using fallback embedder %s", e.Model())
				} else {
					log.Infof("using embedder %s", e.Model())
				}
				r.resolved, r.emb, r.dim = true, e, len(v)
				return r.emb, r.dim, nil
			}
		}
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		log.WithError(err).Debugf("candidate %s failed", c.Name)
		errs = append(errs, fmt.Errorf("%s: %w", c.Name, err))
	}

	r.resolved = true
	if len(errs) == 0 {
		r.err = fmt.Errorf("%w: no candidates configured", ErrUnavailable)
	} else {
		r.err = fmt.Errorf("%w: %w", ErrUnavailable, errors.Join(errs...))
	}
	log.WithError(r.err).Error("no embedding backend available; build and search are disabled")
	return nil, 0, r.err
}

// Available reports whether some candidate works, resolving if needed.
func (r *Resolver) Available(ctx context.Context) bool {
	_, _, err := r.Resolve(ctx)
	return err == nil
}
