package cluster

import (
	"sort"

	"github.com/custodia-labs/corpora-core/internal/core/domain"
)

// Resolve groups confirmed near-duplicate pairs into clusters and picks
// each cluster's surviving representative. Transitivity holds through
// union-find: if (a,b) and (b,c) were confirmed, {a,b,c} forms one
// cluster even when (a,c) was never compared directly.
//
// Representative selection is deterministic: earliest IngestedAt, ties
// broken by smallest SourceID, remaining ties by smallest RecordID.
// Neither batch input order nor pair processing order affects the
// outcome.
func Resolve(pairs []domain.DuplicatePair, records map[string]*domain.Record) []domain.DuplicateCluster {
	uf := NewUnionFind()
	for _, p := range pairs {
		uf.Union(p.A, p.B)
	}

	var clusters []domain.DuplicateCluster
	for _, members := range uf.Components() {
		clusters = append(clusters, domain.DuplicateCluster{
			Representative: pickRepresentative(members, records),
			Members:        members,
		})
	}
	sort.Slice(clusters, func(i, j int) bool {
		return clusters[i].Representative < clusters[j].Representative
	})
	return clusters
}

// pickRepresentative scans a component for the record that should
// survive. Members without a loaded record are skipped; the pipeline
// always resolves clusters over records it holds in memory.
func pickRepresentative(members []string, records map[string]*domain.Record) string {
	var best *domain.Record
	for _, id := range members {
		r := records[id]
		if r == nil {
			continue
		}
		if best == nil || moreCanonical(r, best) {
			best = r
		}
	}
	if best == nil {
		return members[0]
	}
	return best.RecordID
}

// moreCanonical reports whether a should represent a cluster over b.
func moreCanonical(a, b *domain.Record) bool {
	if !a.IngestedAt.Equal(b.IngestedAt) {
		return a.IngestedAt.Before(b.IngestedAt)
	}
	if a.SourceID != b.SourceID {
		return a.SourceID < b.SourceID
	}
	return a.RecordID < b.RecordID
}
