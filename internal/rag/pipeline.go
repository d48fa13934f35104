package rag

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"lawrag/internal/embedder"
	"lawrag/internal/loader"
	"lawrag/internal/logger"
	"lawrag/internal/store"
	"lawrag/internal/vecindex"
)

// StoreFile is the chunk store artifact name inside the index directory.
const StoreFile = "chunks.db"

// snapshot is the live, queryable triple. It is never mutated after it is
// published; a rebuild publishes a new one.
type snapshot struct {
	index  vecindex.Index
	chunks []store.Chunk
	meta   store.Meta
}

// Pipeline owns the vector index, its chunks and their metadata.
// Search may run concurrently with itself and with Build; at most one Build
// or Load runs at a time.
type Pipeline struct {
	cfg      Config
	resolver *embedder.Resolver
	log      *logrus.Entry

	buildMu sync.Mutex

	mu      sync.RWMutex
	state   State
	snap    *snapshot
	lastErr error
}

// New creates an uninitialized pipeline.
func New(cfg Config, resolver *embedder.Resolver) *Pipeline {
	if cfg.Backend == "" {
		cfg.Backend = vecindex.Flat
	}
	if cfg.EmbedBatch <= 0 {
		cfg.EmbedBatch = 32
	}
	return &Pipeline{
		cfg:      cfg,
		resolver: resolver,
		log:      logger.For("rag"),
	}
}

func (p *Pipeline) indexPath() string {
	return filepath.Join(p.cfg.IndexDir, vecindex.FileName(p.cfg.Backend))
}

func (p *Pipeline) storePath() string {
	return filepath.Join(p.cfg.IndexDir, StoreFile)
}

// State reports the lifecycle stage.
func (p *Pipeline) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// LastError returns the error of the most recent failed build or load.
func (p *Pipeline) LastError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastErr
}

// Available reports whether an embedding backend could be brought up.
func (p *Pipeline) Available(ctx context.Context) bool {
	return p.resolver.Available(ctx)
}

// HasArtifacts reports whether both persisted artifacts exist.
func (p *Pipeline) HasArtifacts() bool {
	for _, path := range []string{p.indexPath(), p.storePath()} {
		if _, err := os.Stat(path); err != nil {
			return false
		}
	}
	return true
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// finish records the outcome of a build or load. On failure a pipeline that
// still serves a previous snapshot stays Ready.
func (p *Pipeline) finish(next *snapshot, err error) {
	p.mu.Lock()
	old := p.snap
	switch {
	case err == nil:
		p.snap, p.state, p.lastErr = next, Ready, nil
	case p.snap != nil:
		p.state, p.lastErr = Ready, err
		old = nil
	default:
		p.state, p.lastErr = Failed, err
		old = nil
	}
	p.mu.Unlock()

	if old != nil && old != next {
		old.index.Close()
	}
}

// Load reads the persisted artifacts into memory. It returns ErrNoArtifacts
// if nothing was persisted, and fails if the two artifacts disagree.
func (p *Pipeline) Load(ctx context.Context) error {
	if !p.buildMu.TryLock() {
		return ErrBuildInProgress
	}
	defer p.buildMu.Unlock()

	p.setState(Loading)
	model := ""
	if emb, _, err := p.resolver.Resolve(ctx); err == nil {
		model = emb.Model()
	}
	snap, err := p.load(model)
	if errors.Is(err, ErrNoArtifacts) {
		p.mu.Lock()
		if p.snap == nil {
			p.state = Uninitialized
		} else {
			p.state = Ready
		}
		p.mu.Unlock()
		return err
	}
	if err != nil {
		p.log.WithError(err).Error("loading persisted index failed")
		p.finish(nil, err)
		return err
	}
	p.finish(snap, nil)
	p.log.Infof("loaded index: %d chunks from %d sources", len(snap.chunks), countSources(snap.chunks))
	return nil
}

// load opens both artifacts and checks they belong to the same build. An
// empty model skips the model check.
func (p *Pipeline) load(model string) (*snapshot, error) {
	if !p.HasArtifacts() {
		return nil, ErrNoArtifacts
	}
	chunks, meta, err := store.Read(p.storePath())
	if err != nil {
		return nil, fmt.Errorf("read chunk store: %w", err)
	}
	if model != "" && meta.Model != model {
		return nil, fmt.Errorf("%w: %q, now %q", ErrModelChanged, meta.Model, model)
	}
	idx, tag, err := vecindex.Open(p.cfg.Backend, p.indexPath())
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	if tag != meta.BuildID {
		if prev, ok := p.recoverPrevious(meta.BuildID); ok {
			idx.Close()
			idx, tag = prev, meta.BuildID
		}
	}
	switch {
	case tag != meta.BuildID:
		err = fmt.Errorf("%w: index build %q, chunks build %q", store.ErrMismatch, tag, meta.BuildID)
	case idx.Len() != len(chunks):
		err = fmt.Errorf("%w: %d vectors, %d chunks", store.ErrMismatch, idx.Len(), len(chunks))
	case idx.Dim() != meta.Dimension:
		err = fmt.Errorf("%w: index dimension %d, recorded %d", store.ErrMismatch, idx.Dim(), meta.Dimension)
	}
	if err != nil {
		idx.Close()
		return nil, err
	}
	return &snapshot{index: idx, chunks: chunks, meta: meta}, nil
}

// Build makes the pipeline Ready. Unless opts.ForceRebuild is set, persisted
// artifacts are loaded when present and consistent. Otherwise documents are
// loaded, chunked, embedded and indexed, both artifacts are persisted, and
// only then is the new state swapped in. A failed build leaves the previous
// persisted and in-memory state as it was.
func (p *Pipeline) Build(ctx context.Context, opts BuildOptions) error {
	if !p.buildMu.TryLock() {
		return ErrBuildInProgress
	}
	defer p.buildMu.Unlock()

	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 1000
	}
	if opts.Overlap < 0 {
		opts.Overlap = 0
	}

	emb, dim, err := p.resolver.Resolve(ctx)
	if err != nil {
		p.finish(nil, err)
		return err
	}

	if !opts.ForceRebuild && p.HasArtifacts() {
		p.setState(Loading)
		snap, err := p.load(emb.Model())
		if err == nil {
			p.finish(snap, nil)
			p.log.Infof("loaded existing index: %d chunks", len(snap.chunks))
			return nil
		}
		p.log.WithError(err).Warn("persisted index unusable, rebuilding")
	}

	p.setState(Building)
	snap, err := p.build(ctx, emb, dim, opts)
	if err != nil {
		p.log.WithError(err).Error("build failed")
		p.finish(nil, err)
		return err
	}
	p.finish(snap, nil)
	p.log.Infof("index built: %d chunks from %d sources", len(snap.chunks), countSources(snap.chunks))
	return nil
}

func (p *Pipeline) build(ctx context.Context, emb embedder.Embedder, dim int, opts BuildOptions) (*snapshot, error) {
	start := time.Now()

	docs, err := loader.New(p.cfg.Loader).LoadDir(ctx, opts.DataDir)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	if len(docs) == 0 {
		docs = []loader.Document{p.sample(opts.DataDir)}
	}

	chunks, err := chunkDocuments(ctx, docs, opts.chunkOptions(p.cfg), p.cfg.Workers, opts.OnProgress)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		p.log.Warn("documents produced no text after cleaning, using the sample document")
		chunks, err = chunkDocuments(ctx, []loader.Document{loader.SampleDocument()}, opts.chunkOptions(p.cfg), 1, nil)
		if err != nil {
			return nil, err
		}
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	var progress func(done, total int)
	if opts.OnProgress != nil {
		progress = func(done, total int) { opts.OnProgress("embedding", done, total) }
	}
	vecs, err := embedder.EmbedBatched(ctx, emb, texts, p.cfg.EmbedBatch, progress)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	for _, v := range vecs {
		embedder.Normalize(v)
	}
	if len(vecs) > 0 && len(vecs[0]) != dim {
		return nil, fmt.Errorf("%w: embedder returned %d values, expected %d", vecindex.ErrDimensionMismatch, len(vecs[0]), dim)
	}

	idx, err := vecindex.New(p.cfg.Backend, dim)
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	if err := idx.Add(vecs); err != nil {
		idx.Close()
		return nil, fmt.Errorf("index vectors: %w", err)
	}

	meta := store.Meta{
		BuildID:   uuid.NewString(),
		Model:     emb.Model(),
		Dimension: dim,
		Count:     len(chunks),
		Backend:   p.cfg.Backend,
		ChunkSize: opts.ChunkSize,
		Overlap:   opts.Overlap,
		BuiltAt:   time.Now().UTC().Truncate(time.Second),
	}
	if err := p.persist(idx, chunks, meta); err != nil {
		idx.Close()
		return nil, fmt.Errorf("persist index: %w", err)
	}

	p.log.WithFields(logrus.Fields{
		"documents": len(docs),
		"chunks":    len(chunks),
		"model":     meta.Model,
		"elapsed":   time.Since(start).Round(time.Millisecond),
	}).Info("build complete")
	return &snapshot{index: idx, chunks: chunks, meta: meta}, nil
}

// sample writes the built-in document into dataDir. If that fails the
// document is still used in memory.
func (p *Pipeline) sample(dataDir string) loader.Document {
	p.log.Warnf("no documents in %s, using the sample Civil Code excerpt", dataDir)
	doc, err := loader.WriteSample(dataDir)
	if err != nil {
		p.log.WithError(err).Warn("could not write sample document")
		return loader.SampleDocument()
	}
	return doc
}

// rename is swapped out in tests to simulate a failing filesystem.
var rename = os.Rename

// persist stages both artifacts next to their final names, then renames
// them into place. The live index is hard-linked to .prev first, so if the
// store rename fails the previous index is put back and the persisted pair
// stays loadable. Both artifacts carry the same build ID; a crash between
// the two renames leaves a pair that load repairs from .prev or rejects.
func (p *Pipeline) persist(idx vecindex.Index, chunks []store.Chunk, meta store.Meta) error {
	indexPath, storePath := p.indexPath(), p.storePath()
	stagedIndex, stagedStore := indexPath+".new", storePath+".new"
	prevIndex := indexPath + ".prev"

	if err := idx.Save(stagedIndex, meta.BuildID); err != nil {
		return err
	}
	if err := store.Write(stagedStore, chunks, meta); err != nil {
		os.Remove(stagedIndex)
		return err
	}
	cleanup := func() {
		os.Remove(stagedIndex)
		os.Remove(stagedStore)
	}

	os.Remove(prevIndex)
	hadPrev := false
	if _, err := os.Stat(indexPath); err == nil {
		if err := os.Link(indexPath, prevIndex); err != nil {
			cleanup()
			return fmt.Errorf("keep previous index: %w", err)
		}
		hadPrev = true
	}

	if err := rename(stagedIndex, indexPath); err != nil {
		cleanup()
		os.Remove(prevIndex)
		return err
	}
	if err := rename(stagedStore, storePath); err != nil {
		cleanup()
		if hadPrev {
			if rerr := rename(prevIndex, indexPath); rerr != nil {
				p.log.WithError(rerr).Error("could not restore previous index")
			}
		} else {
			os.Remove(indexPath)
		}
		return err
	}
	os.Remove(prevIndex)
	return nil
}

// recoverPrevious puts index.prev back when it belongs to the persisted
// chunk store. This repairs a crash between the two renames of persist.
func (p *Pipeline) recoverPrevious(buildID string) (vecindex.Index, bool) {
	prev := p.indexPath() + ".prev"
	if _, err := os.Stat(prev); err != nil {
		return nil, false
	}
	idx, tag, err := vecindex.Open(p.cfg.Backend, prev)
	if err != nil {
		return nil, false
	}
	if tag != buildID {
		idx.Close()
		return nil, false
	}
	if err := rename(prev, p.indexPath()); err != nil {
		idx.Close()
		return nil, false
	}
	p.log.Warn("restored previous index after an interrupted build")
	return idx, true
}

// Close releases the live index.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.snap == nil {
		return nil
	}
	err := p.snap.index.Close()
	p.snap = nil
	p.state = Uninitialized
	return err
}

func countSources(chunks []store.Chunk) int {
	seen := make(map[string]struct{})
	for _, c := range chunks {
		seen[c.Source] = struct{}{}
	}
	return len(seen)
}
