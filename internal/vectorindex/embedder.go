package vectorindex

import (
	"context"
	"hash/fnv"
	"math"

	"shopfront/internal/llm"
)

// deterministicEmbedder hashes byte 3-grams into a fixed-size, L2-normalized
// vector. It requires no network access and is intended for tests.
type deterministicEmbedder struct {
	dim  int
	seed uint64
}

// NewDeterministic constructs a deterministic embedder for tests.
func NewDeterministic(dim int, seed uint64) llm.Embedder {
	if dim <= 0 {
		dim = 64
	}
	return &deterministicEmbedder{dim: dim, seed: seed}
}

func (d *deterministicEmbedder) Dimension() int { return d.dim }

func (d *deterministicEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = d.embedOne(t)
	}
	return out, nil
}

func (d *deterministicEmbedder) embedOne(s string) []float32 {
	v := make([]float32, d.dim)
	b := []byte(s)
	if len(b) < 3 {
		hashInto(d.seed, b, v)
	} else {
		for i := 0; i <= len(b)-3; i++ {
			hashInto(d.seed, b[i:i+3], v)
		}
	}
	normalizeInPlace(v)
	return v
}

func hashInto(seed uint64, gram []byte, v []float32) {
	h := fnv.New64a()
	if seed != 0 {
		var tmp [8]byte
		for i := range tmp {
			tmp[i] = byte(seed >> (8 * i))
		}
		_, _ = h.Write(tmp[:])
	}
	_, _ = h.Write(gram)
	hv := h.Sum64()
	idx := int(hv % uint64(len(v)))
	w := float32(int32(hv>>32)) / float32(1<<31)
	v[idx] += w
}

func normalizeInPlace(v []float32) {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSq))
	for i := range v {
		v[i] *= inv
	}
}
