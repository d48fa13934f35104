package rag

import (
	"context"
	"runtime"
	"sync"

	"lawrag/internal/chunker"
	"lawrag/internal/loader"
	"lawrag/internal/store"
)

// docWork is a document waiting to be cleaned and chunked.
type docWork struct {
	slot int
	doc  loader.Document
}

// docChunks is the result for one document, kept in its input slot.
type docChunks struct {
	source string
	pieces []chunker.Piece
}

// chunkDocuments cleans and splits docs on numWorkers goroutines and returns
// chunks numbered by position in document order.
func chunkDocuments(ctx context.Context, docs []loader.Document, opts chunker.Options, numWorkers int, onProgress ProgressFunc) ([]store.Chunk, error) {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}

	results := make([]docChunks, len(docs))
	workCh := make(chan docWork, numWorkers)

	var wg sync.WaitGroup
	var mu sync.Mutex
	done := 0
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for w := range workCh {
				pieces := chunker.Split(chunker.Clean(w.doc.Content), opts)
				results[w.slot] = docChunks{source: w.doc.Name, pieces: pieces}

				if onProgress != nil {
					mu.Lock()
					done++
					onProgress("chunking", done, len(docs))
					mu.Unlock()
				}
			}
		}()
	}

feed:
	for i, d := range docs {
		select {
		case workCh <- docWork{slot: i, doc: d}:
		case <-ctx.Done():
			break feed
		}
	}
	close(workCh)
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var chunks []store.Chunk
	for _, r := range results {
		for ord, p := range r.pieces {
			chunks = append(chunks, store.Chunk{
				Position:  len(chunks),
				Source:    r.source,
				Ordinal:   ord,
				Total:     len(r.pieces),
				CharCount: p.Len(),
				Text:      p.Text,
			})
		}
	}
	return chunks, nil
}
