// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package pangenie

import "sort"

// PathAllele pairs a path id with the allele id that path carries at a
// particular site.
type PathAllele struct {
	PathID  uint64
	Allele  uint8
}

// Kmer is one k-mer observed near a site: its read multiplicity and the
// bitset of alleles it's consistent with (spec.md §3).
type Kmer struct {
	Multiplicity uint32
	AlleleMask   uint64
}

// UniqueKmers is the per-site record the HMM engine consumes: which paths
// cover the site and the allele each carries, the (possibly empty) set of
// site-unique k-mers with observed multiplicity, and the expected coverage
// used by the emission model. Built by UniqueKmerBuilder, or synthesized
// empty by ComputeEmpty for the paths-only CLI.
type UniqueKmers struct {
	position      int
	paths         []PathAllele
	kmers         []Kmer
	localCoverage float64
}

// NewUniqueKmers validates and constructs a UniqueKmers record. It enforces
// the invariants of spec.md §3: at least one covering path, and allele_mask
// bits set only for alleles actually present at the site.
func NewUniqueKmers(position int, paths []PathAllele, kmers []Kmer, localCoverage float64) (*UniqueKmers, error) {
	if len(paths) == 0 {
		return nil, newError(InputStructural, "site at position %d has no covering paths", position)
	}
	var present uint64
	for _, pa := range paths {
		if pa.Allele >= 64 {
			return nil, newError(InputStructural, "site at position %d: allele id %d out of representable range", position, pa.Allele)
		}
		present |= 1 << pa.Allele
	}
	for i, k := range kmers {
		if k.AlleleMask&^present != 0 {
			return nil, newError(InputStructural, "site at position %d: kmer %d references an allele absent from the site (mask %#x, present %#x)", position, i, k.AlleleMask, present)
		}
	}
	return &UniqueKmers{position: position, paths: paths, kmers: kmers, localCoverage: localCoverage}, nil
}

// VariantPosition is the strictly-increasing genomic coordinate of this
// site.
func (u *UniqueKmers) VariantPosition() int { return u.position }

// CoveringPaths returns the site's covering paths in a fixed slot order
// (the order determines the ColumnIndexer's slot assignment).
func (u *UniqueKmers) CoveringPaths() []PathAllele { return u.paths }

// Kmers returns the site's k-mer evidence; may be empty.
func (u *UniqueKmers) Kmers() []Kmer { return u.kmers }

// LocalCoverage is the expected read-k-mer coverage used by the emission
// model.
func (u *UniqueKmers) LocalCoverage() float64 { return u.localCoverage }

// NrPaths is P, the number of paths covering this site.
func (u *UniqueKmers) NrPaths() int { return len(u.paths) }

// PathAndAlleleIDs splits CoveringPaths into the parallel slot->path and
// slot->allele arrays a ColumnIndexer needs.
func (u *UniqueKmers) PathAndAlleleIDs() ([]uint64, []uint8) {
	pathIDs := make([]uint64, len(u.paths))
	alleleIDs := make([]uint8, len(u.paths))
	for i, pa := range u.paths {
		pathIDs[i] = pa.PathID
		alleleIDs[i] = pa.Allele
	}
	return pathIDs, alleleIDs
}

// NrDistinctAlleles returns the number of distinct allele ids covering the
// site.
func (u *UniqueKmers) NrDistinctAlleles() int {
	seen := map[uint8]bool{}
	for _, pa := range u.paths {
		seen[pa.Allele] = true
	}
	return len(seen)
}

// Variant is the allele_on_path(site, path_id) lookup spec.md §6 names as a
// separate external input: which allele a given path carries at a site.
// NewEngine takes one Variant per site, but the haplotype alleles it emits
// are read from each column's ColumnIndexer, which holds the same
// path->allele mapping. In practice a Variant is built directly from a
// site's covering paths.
type Variant struct {
	position    int
	pathAllele  map[uint64]uint8
}

// NewVariant builds a Variant's allele_on_path lookup from a site's covering
// paths.
func NewVariant(position int, paths []PathAllele) *Variant {
	m := make(map[uint64]uint8, len(paths))
	for _, pa := range paths {
		m[pa.PathID] = pa.Allele
	}
	return &Variant{position: position, pathAllele: m}
}

// Position returns the site's genomic coordinate.
func (v *Variant) Position() int { return v.position }

// AlleleOnPath returns the allele id pathID carries at this site, and
// whether pathID covers the site at all.
func (v *Variant) AlleleOnPath(pathID uint64) (uint8, bool) {
	a, ok := v.pathAllele[pathID]
	return a, ok
}

// SortedAlleles returns the distinct allele ids at this site in ascending
// order, used by callers that need a canonical genotype enumeration order.
func (v *Variant) SortedAlleles() []uint8 {
	seen := map[uint8]bool{}
	for _, a := range v.pathAllele {
		seen[a] = true
	}
	out := make([]uint8, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// VariantFromUniqueKmers is a convenience constructor: every Variant used by
// the HMM engine corresponds 1:1 to a UniqueKmers record for the same site.
func VariantFromUniqueKmers(u *UniqueKmers) *Variant {
	return NewVariant(u.position, u.paths)
}
