package rag

import (
	"context"
	"fmt"
	"sort"

	"lawrag/internal/chunker"
	"lawrag/internal/embedder"
	"lawrag/internal/store"
)

// Search embeds query and returns up to k passages ranked by descending
// score. k <= 0 means DefaultK. Before any successful build or load it
// returns an empty slice and ErrNotReady; every other failure yields an
// empty slice and a nil error, and is logged.
func (p *Pipeline) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	if k <= 0 {
		k = DefaultK
	}
	empty := []SearchResult{}

	p.mu.RLock()
	defer p.mu.RUnlock()

	snap := p.snap
	if snap == nil {
		return empty, ErrNotReady
	}

	q := chunker.Clean(query)
	if q == "" {
		return empty, nil
	}

	emb, _, err := p.resolver.Resolve(ctx)
	if err != nil {
		// Resolve logs the unavailability once.
		return empty, nil
	}
	if emb.Model() != snap.meta.Model {
		p.log.Errorf("query embedder %s does not match index model %s", emb.Model(), snap.meta.Model)
		return empty, nil
	}

	vec, err := embedder.EmbedOne(ctx, emb, q)
	if err != nil {
		p.log.WithError(err).Error("embed query failed")
		return empty, nil
	}
	embedder.Normalize(vec)

	hits, err := snap.index.Search(vec, k)
	if err != nil {
		p.log.WithError(err).Error("index search failed")
		return empty, nil
	}

	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		if h.Position < 0 || h.Position >= len(snap.chunks) {
			p.log.Errorf("index returned position %d outside %d chunks", h.Position, len(snap.chunks))
			return empty, nil
		}
		c := snap.chunks[h.Position]
		results = append(results, SearchResult{
			Text: c.Text,
			Meta: ChunkMeta{
				Source:    c.Source,
				Ordinal:   c.Ordinal,
				Total:     c.Total,
				CharCount: c.CharCount,
			},
			Score: h.Score,
			Rank:  len(results) + 1,
		})
	}
	return results, nil
}

// Stats summarizes the live snapshot. Indexed is false until a build or
// load succeeds.
func (p *Pipeline) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	st := Stats{State: p.state.String(), Sources: []string{}}
	snap := p.snap
	if snap == nil {
		return st
	}

	seen := make(map[string]struct{})
	for _, c := range snap.chunks {
		st.TotalCharacters += c.CharCount
		if _, ok := seen[c.Source]; !ok {
			seen[c.Source] = struct{}{}
			st.Sources = append(st.Sources, c.Source)
		}
	}
	sort.Strings(st.Sources)

	st.Indexed = true
	st.TotalChunks = len(snap.chunks)
	if st.TotalChunks > 0 {
		st.AverageChunkSize = float64(st.TotalCharacters) / float64(st.TotalChunks)
	}
	st.Model = snap.meta.Model
	st.IndexSize = snap.index.Len()
	st.Backend = snap.meta.Backend
	st.BuildID = snap.meta.BuildID
	st.BuiltAt = snap.meta.BuiltAt
	return st
}

// Sources lists the indexed documents with their chunk and character
// counts, read from the chunk store persisted with the live build.
func (p *Pipeline) Sources() ([]store.SourceSummary, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.snap == nil {
		return []store.SourceSummary{}, ErrNotReady
	}

	s, err := store.Open(p.storePath())
	if err != nil {
		return nil, fmt.Errorf("open chunk store: %w", err)
	}
	defer s.Close()

	meta, err := store.LoadMeta(s)
	if err != nil {
		return nil, err
	}
	if meta.BuildID != p.snap.meta.BuildID {
		return nil, fmt.Errorf("%w: store build %q, live build %q", store.ErrMismatch, meta.BuildID, p.snap.meta.BuildID)
	}
	sources, err := s.Sources()
	if err != nil {
		return nil, err
	}
	if sources == nil {
		sources = []store.SourceSummary{}
	}
	return sources, nil
}
