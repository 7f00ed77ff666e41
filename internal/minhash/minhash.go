package minhash

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/crypto/blake2b"
)

// Signature is a fixed-length MinHash sketch of a record's shingle set.
// Position i holds the minimum of hash function i over all shingles.
type Signature []uint64

// Generator derives MinHash signatures from canonical text. The hash
// family is seeded from a fixed label, so identical text produces the
// identical signature on any run, host, or date.
type Generator struct {
	shingleSize int
	seeds       []uint64
}

// NewGenerator creates a generator for word n-grams of shingleSize with
// signatureSize hash functions.
func NewGenerator(shingleSize, signatureSize int) *Generator {
	g := &Generator{
		shingleSize: shingleSize,
		seeds:       make([]uint64, signatureSize),
	}
	for i := range g.seeds {
		sum := blake2b.Sum256([]byte("corpora/minhash/seed/" + strconv.Itoa(i)))
		g.seeds[i] = binary.BigEndian.Uint64(sum[:8])
	}
	return g
}

// Shingles returns the word n-grams of the canonical text. A text with
// fewer words than the shingle size yields a single shingle covering the
// whole text, so short records still fingerprint consistently.
func (g *Generator) Shingles(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if len(words) < g.shingleSize {
		return []string{strings.Join(words, " ")}
	}

	shingles := make([]string, 0, len(words)-g.shingleSize+1)
	for i := 0; i+g.shingleSize <= len(words); i++ {
		shingles = append(shingles, strings.Join(words[i:i+g.shingleSize], " "))
	}
	return shingles
}

// Sketch computes the MinHash signature of the text's shingle set.
// Repeated shingles collapse naturally: the minimum over a multiset
// equals the minimum over its underlying set.
func (g *Generator) Sketch(text string) Signature {
	sig := make(Signature, len(g.seeds))
	for i := range sig {
		sig[i] = math.MaxUint64
	}

	for _, shingle := range g.Shingles(text) {
		base := xxhash.Sum64String(shingle)
		for i, seed := range g.seeds {
			if h := mix64(base ^ seed); h < sig[i] {
				sig[i] = h
			}
		}
	}
	return sig
}

// EstimatedJaccard returns the fraction of agreeing signature positions,
// an unbiased estimate of the Jaccard similarity of the underlying
// shingle sets.
func EstimatedJaccard(a, b Signature) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	agree := 0
	for i := range a {
		if a[i] == b[i] {
			agree++
		}
	}
	return float64(agree) / float64(len(a))
}

// mix64 is the splitmix64 finalizer. Applied to base^seed it turns one
// shingle hash into an effectively independent hash per signature
// position.
func mix64(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
