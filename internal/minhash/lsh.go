package minhash

import (
	"encoding/binary"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/custodia-labs/corpora-core/internal/core/domain"
)

// Index buckets MinHash signatures with locality-sensitive banding: the
// signature is split into bandCount contiguous bands of rowsPerBand rows,
// and records sharing any band bucket become candidate pairs. More bands
// of fewer rows catch candidates at lower similarity; the Levenshtein
// stage prunes false positives either way.
//
// Not safe for concurrent use. The pipeline populates the index
// single-threaded after the fingerprint barrier.
type Index struct {
	bandCount   int
	rowsPerBand int
	buckets     map[uint64][]string
	signatures  map[string]Signature
}

// NewIndex creates an LSH index. bandCount*rowsPerBand must equal the
// signature size; domain.Params.Validate enforces this before the
// pipeline constructs an index.
func NewIndex(bandCount, rowsPerBand int) *Index {
	return &Index{
		bandCount:   bandCount,
		rowsPerBand: rowsPerBand,
		buckets:     make(map[uint64][]string),
		signatures:  make(map[string]Signature),
	}
}

// Add buckets a record's signature under each of its bands.
func (x *Index) Add(recordID string, sig Signature) {
	x.signatures[recordID] = sig
	for band := 0; band < x.bandCount; band++ {
		key := x.bandKey(band, sig)
		x.buckets[key] = append(x.buckets[key], recordID)
	}
}

// CandidatePairs returns every unordered pair of records that share at
// least one band bucket, deduplicated and sorted for deterministic
// downstream processing. Estimated similarity is filled from the full
// signatures.
func (x *Index) CandidatePairs() []domain.DuplicatePair {
	seen := make(map[string]domain.DuplicatePair)
	for _, ids := range x.buckets {
		if len(ids) < 2 {
			continue
		}
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				pair := domain.NewDuplicatePair(ids[i], ids[j], 0)
				if _, ok := seen[pair.Key()]; ok {
					continue
				}
				pair.EstimatedSimilarity = EstimatedJaccard(x.signatures[pair.A], x.signatures[pair.B])
				seen[pair.Key()] = pair
			}
		}
	}

	pairs := make([]domain.DuplicatePair, 0, len(seen))
	for _, pair := range seen {
		pairs = append(pairs, pair)
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].Key() < pairs[j].Key()
	})
	return pairs
}

// bandKey hashes one contiguous band of the signature, qualified by the
// band index so equal rows in different bands never collide.
func (x *Index) bandKey(band int, sig Signature) uint64 {
	var buf [8]byte
	d := xxhash.New()

	binary.LittleEndian.PutUint64(buf[:], uint64(band))
	d.Write(buf[:])

	start := band * x.rowsPerBand
	for _, v := range sig[start : start+x.rowsPerBand] {
		binary.LittleEndian.PutUint64(buf[:], v)
		d.Write(buf[:])
	}
	return d.Sum64()
}
