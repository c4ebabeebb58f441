// File path: internal/embed/similarity.go
package embed

import "math"

// Cosine returns the cosine similarity of two vectors in [-1, 1]. A vector
// with zero magnitude carries no direction, so the result is 0 rather than
// an error; such inputs simply rank last. Vectors of different lengths are
// compared over the shared prefix.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		av := float64(a[i])
		bv := float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}
	for _, av := range a[n:] {
		normA += float64(av) * float64(av)
	}
	for _, bv := range b[n:] {
		normB += float64(bv) * float64(bv)
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}
