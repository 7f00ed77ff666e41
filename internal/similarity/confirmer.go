package similarity

// Confirmer prunes LSH candidate pairs with exact edit distance. MinHash
// banding over-generates; only pairs whose canonical texts measure at or
// below the distance threshold count as near duplicates.
type Confirmer struct {
	maxDistance float64
}

// NewConfirmer creates a confirmer with the given normalized distance
// threshold.
func NewConfirmer(maxDistance float64) *Confirmer {
	return &Confirmer{maxDistance: maxDistance}
}

// Confirm measures the normalized distance between two canonical texts.
// The pair is confirmed iff the distance is at or below the threshold;
// the boundary is inclusive, so a pair at exactly the threshold counts.
// Symmetric: Confirm(a, b) and Confirm(b, a) agree.
func (c *Confirmer) Confirm(textA, textB string) (float64, bool) {
	d := NormalizedDistance(textA, textB)
	return d, d <= c.maxDistance
}
