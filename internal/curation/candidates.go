package curation

import (
	"context"
	"log"
	"sort"
	"strings"

	"github.com/scrypster/animus/internal/llm"
	"github.com/scrypster/animus/internal/storage"
	"github.com/scrypster/animus/pkg/types"
)

// CandidateFinder selects merge candidates for a memory. When the storage
// backend provides vector search and an embedding generator is configured,
// candidates come from embedding similarity; otherwise from lexical overlap
// of summaries.
type CandidateFinder struct {
	memories storage.MemoryStore
	vectors  storage.VectorSearcher
	embedder llm.EmbeddingGenerator
	limit    int
}

// NewCandidateFinder creates a finder. vectors and embedder may be nil; the
// finder type-asserts nothing and simply falls back to lexical overlap.
func NewCandidateFinder(memories storage.MemoryStore, vectors storage.VectorSearcher, embedder llm.EmbeddingGenerator, limit int) *CandidateFinder {
	if limit <= 0 {
		limit = 3
	}
	return &CandidateFinder{memories: memories, vectors: vectors, embedder: embedder, limit: limit}
}

// Find returns up to limit active memories of the same anima that are close
// enough to target to be worth a merge prompt.
func (f *CandidateFinder) Find(ctx context.Context, target *types.Memory) ([]*types.Memory, error) {
	if f.vectors != nil && f.embedder != nil {
		candidates, err := f.findByVector(ctx, target)
		if err == nil {
			return candidates, nil
		}
		log.Printf("curation: vector candidate search failed, falling back to lexical overlap: %v", err)
	}
	return f.findByOverlap(ctx, target)
}

func (f *CandidateFinder) findByVector(ctx context.Context, target *types.Memory) ([]*types.Memory, error) {
	embedding, err := f.embedder.Embed(ctx, target.Summary)
	if err != nil {
		return nil, err
	}
	if err := f.vectors.StoreMemoryEmbedding(ctx, target.ID, embedding); err != nil {
		return nil, err
	}
	ids, err := f.vectors.SimilarMemories(ctx, target.AnimaID, target.ID, f.limit)
	if err != nil {
		return nil, err
	}

	candidates := make([]*types.Memory, 0, len(ids))
	for _, id := range ids {
		m, err := f.memories.GetMemory(ctx, id)
		if err != nil {
			return nil, err
		}
		if m.DeletedAt == nil && m.State == types.MemoryStateActive {
			candidates = append(candidates, m)
		}
	}
	return candidates, nil
}

// findByOverlap ranks the anima's active memories by Jaccard similarity of
// summary words.
func (f *CandidateFinder) findByOverlap(ctx context.Context, target *types.Memory) ([]*types.Memory, error) {
	active, err := f.memories.ListActiveMemories(ctx, target.AnimaID, []string{types.MemoryStateActive}, 100)
	if err != nil {
		return nil, err
	}

	targetWords := summaryWords(target.Summary)
	type scored struct {
		memory *types.Memory
		score  float64
	}
	var ranked []scored
	for _, m := range active {
		if m.ID == target.ID {
			continue
		}
		if score := jaccard(targetWords, summaryWords(m.Summary)); score > 0 {
			ranked = append(ranked, scored{memory: m, score: score})
		}
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if len(ranked) > f.limit {
		ranked = ranked[:f.limit]
	}
	candidates := make([]*types.Memory, len(ranked))
	for i, s := range ranked {
		candidates[i] = s.memory
	}
	return candidates, nil
}

func summaryWords(summary string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(summary)) {
		w = strings.Trim(w, ".,;:!?\"'()")
		if len(w) > 2 {
			words[w] = true
		}
	}
	return words
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for w := range a {
		if b[w] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
