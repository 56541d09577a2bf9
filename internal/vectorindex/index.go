// Package vectorindex implements the Policy Vector Index: a flat,
// L2-normalized, inner-product-searched index over policy text chunks, with
// on-disk persistence and row-count/content-hash rebuild triggers.
package vectorindex

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"

	"shopfront/internal/catalog"
	"shopfront/internal/llm"
)

// Chunk is one embedded policy row.
type Chunk struct {
	PolicyType  string `json:"policy_type"`
	Text        string `json:"text"`
	Description string `json:"description"`
	Conditions  string `json:"conditions"`
}

// ScoredChunk is a search result: a Chunk plus its inner-product score
// (equal to cosine similarity, since both query and corpus vectors are
// L2-normalized).
type ScoredChunk struct {
	Chunk
	Score float32
}

// Index is the process-wide Policy Vector Index. Searches share a read lock
// and run concurrently with each other; a rebuild takes the write lock
// exclusively.
type Index struct {
	mu        sync.RWMutex
	dim       int
	vectors   [][]float32 // L2-normalized
	metadata  []Chunk
	contentHash uint64
}

// New constructs an empty index for the given embedding dimension.
func New(dim int) *Index {
	return &Index{dim: dim}
}

// Build embeds every policy row into one chunk each, L2-normalizes the
// resulting vectors, and replaces the index contents. N == 0 is valid and
// yields an empty, always-miss index.
func (idx *Index) Build(ctx context.Context, policies []catalog.Policy, embedder llm.Embedder) error {
	chunks := make([]Chunk, len(policies))
	texts := make([]string, len(policies))
	for i, p := range policies {
		text := p.PolicyType + ": " + p.Description + "\n" + p.Conditions
		chunks[i] = Chunk{PolicyType: p.PolicyType, Text: text, Description: p.Description, Conditions: p.Conditions}
		texts[i] = text
	}

	var vectors [][]float32
	if len(texts) > 0 {
		embedded, err := embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("vectorindex: build: %w", err)
		}
		vectors = make([][]float32, len(embedded))
		for i, v := range embedded {
			vectors[i] = l2Normalize(v)
		}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.metadata = chunks
	idx.vectors = vectors
	idx.contentHash = contentHash(policies)
	return nil
}

// Search embeds the query, L2-normalizes it, and returns the top
// min(k, N) chunks by inner-product score, sorted descending. N == 0
// returns an empty slice.
func (idx *Index) Search(ctx context.Context, query string, k int, embedder llm.Embedder) ([]ScoredChunk, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.vectors) == 0 {
		return []ScoredChunk{}, nil
	}

	embedded, err := embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("vectorindex: search: %w", err)
	}
	q := l2Normalize(embedded[0])

	scored := make([]ScoredChunk, len(idx.vectors))
	for i, v := range idx.vectors {
		scored[i] = ScoredChunk{Chunk: idx.metadata[i], Score: float32(dot(q, v))}
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	if k <= 0 {
		k = 3
	}
	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}

// Stale reports whether the current in-memory index no longer matches the
// catalog: either the row count differs, or (the supplement beyond plain
// row-count comparison) the content hash differs.
func (idx *Index) Stale(policies []catalog.Policy) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if len(idx.metadata) != len(policies) {
		return true
	}
	return idx.contentHash != contentHash(policies)
}

// snapshot is the on-disk metadata sidecar format.
type snapshot struct {
	Dimension   int     `json:"dimension"`
	ContentHash uint64  `json:"content_hash"`
	Chunks      []Chunk `json:"chunks"`
}

// Save persists the index to two files under dir: a binary
// "faiss_index.bin" holding the flat float32 vectors, and a JSON
// "faiss_metadata.json" holding chunk metadata plus a content hash used to
// detect staleness on reload.
func (idx *Index) Save(dir string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("vectorindex: save: mkdir: %w", err)
	}

	binPath := filepath.Join(dir, "faiss_index.bin")
	f, err := os.Create(binPath)
	if err != nil {
		return fmt.Errorf("vectorindex: save: create index file: %w", err)
	}
	defer f.Close()

	if err := binary.Write(f, binary.LittleEndian, int64(len(idx.vectors))); err != nil {
		return fmt.Errorf("vectorindex: save: write count: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, int64(idx.dim)); err != nil {
		return fmt.Errorf("vectorindex: save: write dim: %w", err)
	}
	for _, v := range idx.vectors {
		if err := binary.Write(f, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("vectorindex: save: write vector: %w", err)
		}
	}

	meta := snapshot{Dimension: idx.dim, ContentHash: idx.contentHash, Chunks: idx.metadata}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("vectorindex: save: marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "faiss_metadata.json"), metaBytes, 0o644); err != nil {
		return fmt.Errorf("vectorindex: save: write metadata: %w", err)
	}
	return nil
}

// Load reads a previously persisted index from dir. ok is false (with a nil
// error) when no snapshot exists, or when it exists but its chunk count
// doesn't match len(currentPolicies), or its content hash doesn't match the
// hash of currentPolicies — any of these signal the caller should rebuild
// instead.
func Load(dir string, currentPolicies []catalog.Policy) (idx *Index, ok bool, err error) {
	metaBytes, err := os.ReadFile(filepath.Join(dir, "faiss_metadata.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("vectorindex: load: read metadata: %w", err)
	}
	var meta snapshot
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, false, nil // treat corrupt metadata as "no usable snapshot"
	}
	if len(meta.Chunks) != len(currentPolicies) {
		return nil, false, nil
	}
	if meta.ContentHash != contentHash(currentPolicies) {
		return nil, false, nil
	}

	f, err := os.Open(filepath.Join(dir, "faiss_index.bin"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("vectorindex: load: open index file: %w", err)
	}
	defer f.Close()

	var count, dim int64
	if err := binary.Read(f, binary.LittleEndian, &count); err != nil {
		return nil, false, nil
	}
	if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
		return nil, false, nil
	}
	if int(count) != len(meta.Chunks) {
		return nil, false, nil
	}

	vectors := make([][]float32, count)
	for i := range vectors {
		v := make([]float32, dim)
		if err := binary.Read(f, binary.LittleEndian, v); err != nil {
			return nil, false, nil
		}
		vectors[i] = v
	}

	return &Index{
		dim:         int(dim),
		vectors:     vectors,
		metadata:    meta.Chunks,
		contentHash: meta.ContentHash,
	}, true, nil
}

func l2Normalize(v []float32) []float32 {
	f64 := make([]float64, len(v))
	for i, x := range v {
		f64[i] = float64(x)
	}
	norm := floats.Norm(f64, 2)
	out := make([]float32, len(v))
	if norm == 0 {
		return out
	}
	for i, x := range f64 {
		out[i] = float32(x / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	fa := make([]float64, len(a))
	fb := make([]float64, len(b))
	for i := range a {
		fa[i] = float64(a[i])
	}
	for i := range b {
		fb[i] = float64(b[i])
	}
	return floats.Dot(fa, fb)
}

func contentHash(policies []catalog.Policy) uint64 {
	h := fnv.New64a()
	for _, p := range policies {
		_, _ = h.Write([]byte(p.PolicyType))
		_, _ = h.Write([]byte(p.Description))
		_, _ = h.Write([]byte(p.Conditions))
	}
	return h.Sum64()
}
