package domain

import "fmt"

// Default dedup parameters. The MinHash defaults follow the banding split
// 16x8 over a 128-position signature, which catches candidates down to
// roughly 0.7 estimated Jaccard before Levenshtein confirmation prunes
// them.
const (
	DefaultShingleSize   = 5
	DefaultSignatureSize = 128
	DefaultBandCount     = 16
	DefaultRowsPerBand   = 8
	DefaultMaxDistance   = 0.2
)

// Params is the dedup configuration surface. corpora-core consumes these
// values; the surrounding workflow owns them.
type Params struct {
	// ShingleSize is the word n-gram width used for MinHash shingling
	ShingleSize int `json:"shingle_size"`

	// SignatureSize is the number of hash functions in a MinHash signature
	SignatureSize int `json:"signature_size"`

	// BandCount and RowsPerBand control LSH banding. Their product must
	// equal SignatureSize.
	BandCount   int `json:"band_count"`
	RowsPerBand int `json:"rows_per_band"`

	// MaxDistance is the normalized Levenshtein distance at or below which
	// a candidate pair is confirmed as a near duplicate
	MaxDistance float64 `json:"max_distance"`

	// CaseFold lowercases canonical text when set. Off by default: case
	// differences are usually meaningful in eval datasets.
	CaseFold bool `json:"case_fold"`

	// Workers bounds parallel stage execution. Zero means NumCPU.
	Workers int `json:"workers"`
}

// DefaultParams returns the standard dedup configuration.
func DefaultParams() Params {
	return Params{
		ShingleSize:   DefaultShingleSize,
		SignatureSize: DefaultSignatureSize,
		BandCount:     DefaultBandCount,
		RowsPerBand:   DefaultRowsPerBand,
		MaxDistance:   DefaultMaxDistance,
	}
}

// Validate rejects parameter combinations the pipeline cannot run with.
// Called before any data is read so a bad configuration never touches
// persisted state.
func (p Params) Validate() error {
	if p.ShingleSize < 1 {
		return fmt.Errorf("%w: shingle_size must be >= 1, got %d", ErrConfiguration, p.ShingleSize)
	}
	if p.SignatureSize < 1 {
		return fmt.Errorf("%w: signature_size must be >= 1, got %d", ErrConfiguration, p.SignatureSize)
	}
	if p.BandCount < 1 || p.RowsPerBand < 1 {
		return fmt.Errorf("%w: band_count and rows_per_band must be >= 1, got %d and %d",
			ErrConfiguration, p.BandCount, p.RowsPerBand)
	}
	if p.BandCount*p.RowsPerBand != p.SignatureSize {
		return fmt.Errorf("%w: band_count (%d) * rows_per_band (%d) must equal signature_size (%d)",
			ErrConfiguration, p.BandCount, p.RowsPerBand, p.SignatureSize)
	}
	if p.MaxDistance < 0 || p.MaxDistance > 1 {
		return fmt.Errorf("%w: max_distance must be in [0, 1], got %g", ErrConfiguration, p.MaxDistance)
	}
	if p.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0, got %d", ErrConfiguration, p.Workers)
	}
	return nil
}
