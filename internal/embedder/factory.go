package embedder

import (
	"fmt"
	"time"

	"lawrag/internal/config"
)

// Candidates turns configured backends into a fallback chain, preserving order.
func Candidates(cfgs []config.EmbedderConfig) []Candidate {
	out := make([]Candidate, 0, len(cfgs))
	for _, c := range cfgs {
		timeout := time.Duration(c.TimeoutSecs) * time.Second
		cand := Candidate{Name: c.Type + "/" + c.Model}
		switch c.Type {
		case "ollama":
			cand.New = func() (Embedder, error) {
				return NewOllamaEmbedder(c.BaseURL, c.Model, timeout, c.BatchSize), nil
			}
		case "openai":
			cand.New = func() (Embedder, error) {
				e, err := NewOpenAIEmbedder(c.BaseURL, c.APIKeyEnv, c.Model, timeout, c.BatchSize)
				if err != nil {
					return nil, err
				}
				return e, nil
			}
		case "hashing":
			cand.Name = fmt.Sprintf("hashing/%d", c.Dimension)
			cand.New = func() (Embedder, error) {
				return NewHashingEmbedder(c.Dimension), nil
			}
		default:
			cand.New = func() (Embedder, error) {
				return nil, fmt.Errorf("unknown embedder type %q", c.Type)
			}
		}
		out = append(out, cand)
	}
	return out
}
