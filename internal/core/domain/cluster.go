package domain

// DuplicatePair is an unordered pair of records suspected or confirmed to
// be near duplicates. A always holds the lexicographically smaller record
// ID so (x,y) and (y,x) collapse to the same pair.
type DuplicatePair struct {
	A                   string  `json:"a"`
	B                   string  `json:"b"`
	EstimatedSimilarity float64 `json:"estimated_similarity"`          // Fraction of agreeing signature positions
	NormalizedDistance  float64 `json:"normalized_distance,omitempty"` // Filled at confirmation
}

// NewDuplicatePair builds a normalized pair from two record IDs.
func NewDuplicatePair(a, b string, estimated float64) DuplicatePair {
	if b < a {
		a, b = b, a
	}
	return DuplicatePair{A: a, B: b, EstimatedSimilarity: estimated}
}

// Key returns a map key identifying the unordered pair.
func (p DuplicatePair) Key() string {
	return p.A + "|" + p.B
}

// DuplicateCluster is a connected component of confirmed near-duplicate
// records with its deterministic representative.
type DuplicateCluster struct {
	Representative string   `json:"representative"`
	Members        []string `json:"members"` // Includes the representative
}
