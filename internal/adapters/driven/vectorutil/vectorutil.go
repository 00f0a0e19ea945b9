// Package vectorutil holds the brute-force ranking helpers shared by the
// in-process and sqlite vector stores.
package vectorutil

import (
	"math"
	"sort"

	"github.com/custodia-labs/support-rag/internal/core/domain"
)

// CosineDistance returns 1 - cosine similarity of a and b, in [0,2].
// Mismatched or zero vectors are maximally distant.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 2
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// HitFromRecord converts a stored record into a search hit at distance
func HitFromRecord(rec *domain.ChunkRecord, distance float64) *domain.SearchHit {
	hit := &domain.SearchHit{
		ChunkID:  rec.ID,
		Content:  rec.Content,
		Category: domain.Category(rec.Category),
		Label:    rec.Label,
		GroupKey: rec.GroupKey,
		Distance: distance,
	}
	if rec.ChunkIndex != nil {
		hit.ChunkIndex = *rec.ChunkIndex
	}
	if rec.TotalChunks != nil {
		hit.TotalChunks = *rec.TotalChunks
	}
	return hit
}

// RankHits sorts hits by ascending distance and keeps at most limit
func RankHits(hits []*domain.SearchHit, limit int) []*domain.SearchHit {
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}
