package service

import (
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/clinnote-engine/internal/domain"
)

// Deduplicator clusters near-duplicate entity mentions with a hybrid
// similarity blend and union-find clustering. Clustering is transitive
// and order-independent: identical inputs in any order yield identical
// clusters.
type Deduplicator struct {
	logger   *logrus.Logger
	opts     domain.Options
	semantic domain.SemanticComparator
}

// NewDeduplicator creates a deduplicator. semantic may be nil; its blend
// weight is then redistributed proportionally to the Jaccard and edit
// terms.
func NewDeduplicator(logger *logrus.Logger, opts domain.Options, semantic domain.SemanticComparator) *Deduplicator {
	return &Deduplicator{logger: logger, opts: opts, semantic: semantic}
}

// Deduplicate collapses equivalent mentions into clusters. Only mentions
// of the same field type are compared. The representative of each
// cluster is its highest-confidence member, ties broken by longest
// source span (the more specific mention wins).
func (d *Deduplicator) Deduplicate(entities []domain.ExtractedField) []domain.EntityCluster {
	if len(entities) == 0 {
		return []domain.EntityCluster{}
	}

	// Canonical ordering makes the result invariant under input
	// permutation.
	sorted := make([]domain.ExtractedField, len(entities))
	copy(sorted, entities)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.FieldType != b.FieldType {
			return a.FieldType < b.FieldType
		}
		if a.Span.Start != b.Span.Start {
			return a.Span.Start < b.Span.Start
		}
		return a.Value < b.Value
	})

	uf := newUnionFind(len(sorted))
	threshold := d.opts.MergeThreshold
	if threshold <= 0 {
		threshold = domain.DefaultOptions().MergeThreshold
	}

	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[i].FieldType != sorted[j].FieldType {
				continue
			}
			if d.similarity(sorted[i], sorted[j]) >= threshold {
				uf.union(i, j)
			}
		}
	}

	groups := make(map[int][]domain.ExtractedField)
	for i := range sorted {
		root := uf.find(i)
		groups[root] = append(groups[root], sorted[i])
	}

	clusters := make([]domain.EntityCluster, 0, len(groups))
	for _, members := range groups {
		clusters = append(clusters, domain.EntityCluster{
			Representative: chooseRepresentative(members),
			Members:        members,
		})
	}

	sort.Slice(clusters, func(i, j int) bool {
		a, b := clusters[i].Representative, clusters[j].Representative
		if a.FieldType != b.FieldType {
			return a.FieldType < b.FieldType
		}
		if a.Span.Start != b.Span.Start {
			return a.Span.Start < b.Span.Start
		}
		return a.Value < b.Value
	})

	if d.logger != nil {
		d.logger.WithFields(logrus.Fields{
			"mentions": len(entities),
			"clusters": len(clusters),
		}).Debug("Completed entity deduplication")
	}

	return clusters
}

// similarity blends token, character and semantic comparisons. Structured
// equality short-circuits: two dosage records for the same canonical drug
// are the same medication regardless of surface form.
func (d *Deduplicator) similarity(a, b domain.ExtractedField) float64 {
	if a.Dosage != nil && b.Dosage != nil && a.Dosage.Drug != "" && a.Dosage.Drug == b.Dosage.Drug {
		return 1.0
	}
	if a.Scale != nil && b.Scale != nil && a.Scale.Scale == b.Scale.Scale && a.Scale.Value == b.Scale.Value {
		return 1.0
	}

	jw, ew, sw := d.opts.JaccardWeight, d.opts.EditWeight, d.opts.SemanticWeight
	if jw+ew+sw == 0 {
		def := domain.DefaultOptions()
		jw, ew, sw = def.JaccardWeight, def.EditWeight, def.SemanticWeight
	}

	jacc := jaccard(tokenSet(a.Value), tokenSet(b.Value))
	edit := normalizedEditSimilarity(a.Value, b.Value)

	if d.semantic == nil {
		// Redistribute the semantic weight proportionally.
		total := jw + ew
		if total == 0 {
			return 0
		}
		jw += sw * jw / total
		ew += sw * ew / total
		return jw*jacc + ew*edit
	}

	sem := clamp01(d.semantic.Similarity(strings.ToLower(a.Value), strings.ToLower(b.Value)))
	return jw*jacc + ew*edit + sw*sem
}

// chooseRepresentative picks the highest-confidence member; ties go to
// the longest source span, then the lexicographically smaller value. The
// representative's confidence is by construction never lower than any
// member's.
func chooseRepresentative(members []domain.ExtractedField) domain.ExtractedField {
	best := members[0]
	for _, m := range members[1:] {
		switch {
		case m.Confidence > best.Confidence:
			best = m
		case m.Confidence == best.Confidence && m.Span.Length() > best.Span.Length():
			best = m
		case m.Confidence == best.Confidence && m.Span.Length() == best.Span.Length() && m.Value < best.Value:
			best = m
		}
	}
	return best
}

// unionFind is a disjoint-set structure with path compression.
type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent, rank: make([]int, n)}
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if u.rank[ra] < u.rank[rb] {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
	if u.rank[ra] == u.rank[rb] {
		u.rank[ra]++
	}
}
