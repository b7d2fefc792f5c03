// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package pangenie

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// VariantSource is the external collaborator spec.md §1/§6 names but leaves
// unspecified: an ordered, per-chromosome stream of variant sites, each with
// a reference position and one allele per covering path. The HMM engine
// never imports this interface directly -- it only ever sees the
// UniqueKmers/Variant values a VariantSource (via a UniqueKmerBuilder)
// produces.
type VariantSource interface {
	Chromosomes() []string
	NrSites(chromosome string) int
	SitePosition(chromosome string, site int) int
	SiteCoveringPaths(chromosome string, site int) []PathAllele
	AlleleSequence(chromosome string, site int, allele uint8, flank int) (string, error)
}

// FastaReference holds one or more chromosome sequences loaded from a FASTA
// file, using the bit-packed DnaSequence container.
type FastaReference struct {
	sequences map[string]*DnaSequence
	order     []string
}

// LoadFastaReference parses r as FASTA, folding wrapped sequence lines back
// into one DnaSequence per header.
func LoadFastaReference(r io.Reader) (*FastaReference, error) {
	ref := &FastaReference{sequences: make(map[string]*DnaSequence)}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 64*1024*1024)
	var current string
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r\n")
		if line == "" {
			continue
		}
		if line[0] == '>' {
			current = strings.Fields(line[1:])[0]
			ref.sequences[current] = NewDnaSequence("")
			ref.order = append(ref.order, current)
			continue
		}
		if current == "" {
			return nil, newError(InputStructural, "FASTA data before any header line")
		}
		ref.sequences[current].Append(line)
	}
	if err := sc.Err(); err != nil {
		return nil, wrapError(IOError, err, "reading FASTA reference")
	}
	return ref, nil
}

// Sequence returns the named chromosome's sequence.
func (f *FastaReference) Sequence(chromosome string) (*DnaSequence, bool) {
	s, ok := f.sequences[chromosome]
	return s, ok
}

// vcfSite is one parsed VCF record: its reference position, its REF/ALT
// allele strings, and the allele each path carries.
type vcfSite struct {
	position   int
	ref        string
	alts       []string
	pathAllele map[uint64]uint8
}

func (s *vcfSite) alleleString(allele uint8) string {
	if allele == 0 {
		return s.ref
	}
	return s.alts[allele-1]
}

// VCFVariantSource is a VariantSource backed by a phased multi-sample VCF
// (one path per haplotype column) and a FASTA reference for inter-variant
// flanking sequence. No VCF-parsing library appears anywhere in the
// retrieved pack, so this is a direct bufio/strings port rather than an
// adapted third-party one; see DESIGN.md's standard-library justification.
type VCFVariantSource struct {
	ref         *FastaReference
	chromosomes []string
	sites       map[string][]*vcfSite
}

// LoadVCFVariantSource reads vcfPath and fastaPath (each transparently
// gzip-decompressed if the name ends in .gz) and builds a VCFVariantSource.
func LoadVCFVariantSource(vcfPath, fastaPath string) (*VCFVariantSource, error) {
	fastaRC, err := openInput(fastaPath)
	if err != nil {
		return nil, err
	}
	defer fastaRC.Close()
	ref, err := LoadFastaReference(fastaRC)
	if err != nil {
		return nil, err
	}

	vcfRC, err := openInput(vcfPath)
	if err != nil {
		return nil, err
	}
	defer vcfRC.Close()

	src := &VCFVariantSource{ref: ref, sites: make(map[string][]*vcfSite)}
	seen := make(map[string]bool)
	sc := bufio.NewScanner(vcfRC)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if line == "" || strings.HasPrefix(line, "##") || strings.HasPrefix(line, "#CHROM") {
			continue
		}
		site, chrom, err := parseVCFLine(line)
		if err != nil {
			return nil, wrapError(IOError, err, "VCF line %d", lineNo)
		}
		if len(site.pathAllele) == 0 {
			return nil, newError(InputStructural, "VCF line %d (%s:%d): no haplotype paths", lineNo, chrom, site.position)
		}
		if !seen[chrom] {
			seen[chrom] = true
			src.chromosomes = append(src.chromosomes, chrom)
		}
		src.sites[chrom] = append(src.sites[chrom], site)
	}
	if err := sc.Err(); err != nil {
		return nil, wrapError(IOError, err, "reading VCF %s", vcfPath)
	}
	if len(src.chromosomes) == 0 {
		return nil, newError(InputStructural, "VCF %s has no data records", vcfPath)
	}
	return src, nil
}

func parseVCFLine(line string) (*vcfSite, string, error) {
	fields := strings.Split(line, "\t")
	// The 8 fixed VCF columns are required; a record without sample columns
	// parses to a site with no paths, which the caller rejects.
	if len(fields) < 8 {
		return nil, "", fmt.Errorf("expected at least 8 tab-separated fields, found %d", len(fields))
	}
	chrom := fields[0]
	pos, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, "", fmt.Errorf("bad POS %q: %w", fields[1], err)
	}
	site := &vcfSite{
		position:   pos - 1, // VCF is 1-based; the engine works in 0-based coordinates
		ref:        fields[3],
		alts:       strings.Split(fields[4], ","),
		pathAllele: make(map[uint64]uint8),
	}
	var pathID uint64
	for col := 9; col < len(fields); col++ {
		gt := fields[col]
		if i := strings.IndexByte(gt, ':'); i >= 0 {
			gt = gt[:i]
		}
		haps := strings.FieldsFunc(gt, func(r rune) bool { return r == '|' || r == '/' })
		for _, h := range haps {
			if h == "." {
				pathID++
				continue
			}
			allele, err := strconv.Atoi(h)
			if err != nil {
				return nil, "", fmt.Errorf("bad genotype allele %q in column %d: %w", h, col, err)
			}
			site.pathAllele[pathID] = uint8(allele)
			pathID++
		}
	}
	return site, chrom, nil
}

func (v *VCFVariantSource) Chromosomes() []string { return v.chromosomes }

func (v *VCFVariantSource) NrSites(chromosome string) int { return len(v.sites[chromosome]) }

func (v *VCFVariantSource) SitePosition(chromosome string, site int) int {
	return v.sites[chromosome][site].position
}

func (v *VCFVariantSource) SiteCoveringPaths(chromosome string, site int) []PathAllele {
	s := v.sites[chromosome][site]
	ids := make([]uint64, 0, len(s.pathAllele))
	for id := range s.pathAllele {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]PathAllele, len(ids))
	for i, id := range ids {
		out[i] = PathAllele{PathID: id, Allele: s.pathAllele[id]}
	}
	return out
}

// AlleleSequence reconstructs allele's sequence at site, extended by flank
// bases of reference context on each side so k-mers spanning the variant
// boundary are captured -- the "allele sequences and unitigs inbetween"
// original_source/src/pggtyper.cpp writes before counting genomic k-mers.
func (v *VCFVariantSource) AlleleSequence(chromosome string, site int, allele uint8, flank int) (string, error) {
	s := v.sites[chromosome][site]
	if int(allele) > len(s.alts) {
		return "", newError(InputStructural, "%s:%d: allele %d does not exist (%d alts)", chromosome, s.position, allele, len(s.alts))
	}
	refSeq, ok := v.ref.Sequence(chromosome)
	if !ok {
		return "", newError(InputStructural, "no reference sequence for chromosome %s", chromosome)
	}
	leftStart := s.position - flank
	if leftStart < 0 {
		leftStart = 0
	}
	left := refSeq.Substr(leftStart, s.position)
	rightStart := s.position + len(s.ref)
	rightEnd := rightStart + flank
	if rightEnd > refSeq.Len() {
		rightEnd = refSeq.Len()
	}
	var right string
	if rightStart < refSeq.Len() {
		right = refSeq.Substr(rightStart, rightEnd)
	}
	return left + s.alleleString(allele) + right, nil
}

// WritePathSegments writes one FASTA record per distinct allele sequence at
// every site of every chromosome, flanked by flank bases of reference
// context. Identical sequences (detected via a blake2b-256 content hash,
// rather than a second string-equality pass) are written only once, the way
// the domain stack's blake2b dependency is repurposed here from tile-variant
// content addressing to path-segment deduplication.
func WritePathSegments(w io.Writer, source *VCFVariantSource, flank int) error {
	bw := bufio.NewWriter(w)
	seen := make(map[[blake2b.Size256]byte]bool)
	for _, chrom := range source.Chromosomes() {
		for site := 0; site < source.NrSites(chrom); site++ {
			paths := source.SiteCoveringPaths(chrom, site)
			alleles := make(map[uint8]bool)
			for _, p := range paths {
				alleles[p.Allele] = true
			}
			for allele := range alleles {
				seq, err := source.AlleleSequence(chrom, site, allele, flank)
				if err != nil {
					return err
				}
				hash := blake2b.Sum256([]byte(seq))
				if seen[hash] {
					continue
				}
				seen[hash] = true
				label := fmt.Sprintf("allele_%d", allele)
				if allele == 0 {
					label = "reference"
				}
				pos := source.SitePosition(chrom, site)
				fmt.Fprintf(bw, ">%s_%d_%s\n", chrom, pos, label)
				for i := 0; i < len(seq); i += 70 {
					end := i + 70
					if end > len(seq) {
						end = len(seq)
					}
					fmt.Fprintln(bw, seq[i:end])
				}
			}
		}
	}
	return bw.Flush()
}

// UniqueKmerBuilder turns a VariantSource's bare path/allele structure into
// the UniqueKmers stream the HMM engine consumes, taking each k-mer's
// multiplicity from a read KmerOracle (k-mers counted over the sequencing
// reads). The genomic counter (k-mers counted over the path-segment FASTA)
// supplies only the k-mer length; its counts are not consulted. This is
// original_source/src/uniquekmercomputer.hpp's job, simplified: a k-mer
// found in exactly one allele's flanked segment at a site is "unique" to
// that allele there, whether or not it also occurs elsewhere in the genome.
type UniqueKmerBuilder struct {
	source       *VCFVariantSource
	genomicKmers *KmerCounter
	readKmers    KmerOracle
	coverage     float64
	kmerSize     int
	flank        int
}

// NewUniqueKmerBuilder builds a builder that will derive real k-mer evidence
// from genomicKmers/readKmers.
func NewUniqueKmerBuilder(source *VCFVariantSource, genomicKmers *KmerCounter, readKmers KmerOracle, coverage float64) *UniqueKmerBuilder {
	return &UniqueKmerBuilder{
		source:       source,
		genomicKmers: genomicKmers,
		readKmers:    readKmers,
		coverage:     coverage,
		kmerSize:     genomicKmers.K(),
		flank:        genomicKmers.K() - 1,
	}
}

// Build produces UniqueKmers/Variant pairs for chromosome with real k-mer
// evidence, for the k-mer-evidence CLI.
func (b *UniqueKmerBuilder) Build(chromosome string) ([]*UniqueKmers, []*Variant, error) {
	n := b.source.NrSites(chromosome)
	uks := make([]*UniqueKmers, n)
	vs := make([]*Variant, n)
	for site := 0; site < n; site++ {
		paths := b.source.SiteCoveringPaths(chromosome, site)
		alleleKmers := make(map[uint8]map[string]bool)
		alleles := make([]uint8, 0)
		for _, p := range paths {
			if alleleKmers[p.Allele] != nil {
				continue
			}
			seq, err := b.source.AlleleSequence(chromosome, site, p.Allele, b.flank)
			if err != nil {
				return nil, nil, err
			}
			alleleKmers[p.Allele] = kmerSetOf(seq, b.kmerSize)
			alleles = append(alleles, p.Allele)
		}
		sort.Slice(alleles, func(i, j int) bool { return alleles[i] < alleles[j] })

		counts := make(map[string]int)
		for _, kset := range alleleKmers {
			for kmer := range kset {
				counts[kmer]++
			}
		}
		var kmers []Kmer
		for kmer, c := range counts {
			if c != 1 {
				continue // shared between alleles: not unique to this site
			}
			var mask uint64
			for _, a := range alleles {
				if alleleKmers[a][kmer] {
					mask |= 1 << a
				}
			}
			kmers = append(kmers, Kmer{
				Multiplicity: b.readKmers.Abundance(kmer),
				AlleleMask:   mask,
			})
		}

		pos := b.source.SitePosition(chromosome, site)
		uk, err := NewUniqueKmers(pos, paths, kmers, b.coverage)
		if err != nil {
			return nil, nil, wrapError(InputStructural, err, "chromosome %s site %d", chromosome, site)
		}
		uks[site] = uk
		vs[site] = VariantFromUniqueKmers(uk)
	}
	return uks, vs, nil
}

// ComputeEmpty produces UniqueKmers/Variant pairs with no k-mer evidence at
// all (pure path prior), for the paths-only CLI -- matching
// UniqueKmerComputer::compute_empty in
// original_source/src/pggtyper-paths.cpp.
func (b *UniqueKmerBuilder) ComputeEmpty(chromosome string) ([]*UniqueKmers, []*Variant, error) {
	n := b.source.NrSites(chromosome)
	uks := make([]*UniqueKmers, n)
	vs := make([]*Variant, n)
	for site := 0; site < n; site++ {
		paths := b.source.SiteCoveringPaths(chromosome, site)
		pos := b.source.SitePosition(chromosome, site)
		uk, err := NewUniqueKmers(pos, paths, nil, 0)
		if err != nil {
			return nil, nil, wrapError(InputStructural, err, "chromosome %s site %d", chromosome, site)
		}
		uks[site] = uk
		vs[site] = VariantFromUniqueKmers(uk)
	}
	return uks, vs, nil
}

func kmerSetOf(seq string, k int) map[string]bool {
	set := make(map[string]bool)
	seq = strings.ToUpper(seq)
	for i := 0; i+k <= len(seq); i++ {
		kmer := seq[i : i+k]
		if strings.ContainsRune(kmer, 'N') {
			continue
		}
		set[canonicalKmer(kmer)] = true
	}
	return set
}
