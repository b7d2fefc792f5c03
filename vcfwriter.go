// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package pangenie

import (
	"bufio"
	"fmt"
	"io"
	"math"
)

// writeVCFHeader emits the minimal header both genotyping and phasing
// outputs share: fileformat, the FORMAT fields the engine populates (GT, plus
// GL and PL when withLikelihoods is set; spec.md §6), and the single-sample
// column header.
func writeVCFHeader(w *bufio.Writer, sampleName string, withLikelihoods bool) error {
	fmt.Fprintln(w, "##fileformat=VCFv4.2")
	fmt.Fprintln(w, `##FORMAT=<ID=GT,Number=1,Type=String,Description="Genotype">`)
	if withLikelihoods {
		fmt.Fprintln(w, `##FORMAT=<ID=GL,Number=G,Type=Float,Description="Genotype likelihoods">`)
		fmt.Fprintln(w, `##FORMAT=<ID=PL,Number=G,Type=Integer,Description="Phred-scaled genotype likelihoods">`)
	}
	fmt.Fprintf(w, "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\t%s\n", sampleName)
	return nil
}

// WriteGenotypingVCF writes one record per site with GT set to "./." and
// GL/PL populated from the site's normalized genotype likelihoods, in the
// field order VCF's Number=G FORMAT fields require: genotype index
// b*(b+1)/2+a for unordered genotype {a,b} with a<=b, i.e. (0,0), (0,1),
// (1,1), (0,2), (1,2), (2,2), ...
func WriteGenotypingVCF(w io.Writer, source *VCFVariantSource, chromosome string, results []*GenotypingResult, sampleName string) error {
	bw := bufio.NewWriter(w)
	if err := writeVCFHeader(bw, sampleName, true); err != nil {
		return err
	}
	if err := writeGenotypingSites(bw, source, chromosome, results); err != nil {
		return err
	}
	return bw.Flush()
}

func writeGenotypingSites(bw *bufio.Writer, source *VCFVariantSource, chromosome string, results []*GenotypingResult) error {
	for site, r := range results {
		s := source.sites[chromosome][site]
		pos := source.SitePosition(chromosome, site)
		nrAlleles := len(s.alts) + 1
		gls := make([]float64, 0, nrAlleles*(nrAlleles+1)/2)
		pls := make([]string, 0, cap(gls))
		likelihoods := r.Likelihoods()
		for b := 0; b < nrAlleles; b++ {
			for a := 0; a <= b; a++ {
				p := likelihoods[[2]uint8{uint8(a), uint8(b)}]
				gls = append(gls, p)
				pls = append(pls, fmt.Sprintf("%d", phredScale(p)))
			}
		}
		glStrs := make([]string, len(gls))
		for i, p := range gls {
			glStrs[i] = fmt.Sprintf("%.4f", math.Log10(math.Max(p, 1e-300)))
		}
		fmt.Fprintf(bw, "%s\t%d\t.\t%s\t%s\t.\t.\t.\tGT:GL:PL\t./.:%s:%s\n",
			chromosome, pos+1, s.ref, joinAlts(s.alts), joinComma(glStrs), joinComma(pls))
	}
	return nil
}

// WritePhasingVCF writes one record per site with GT set from the site's
// Viterbi haplotype alleles (phased with "|"), omitting GL/PL.
func WritePhasingVCF(w io.Writer, source *VCFVariantSource, chromosome string, results []*GenotypingResult, sampleName string) error {
	bw := bufio.NewWriter(w)
	if err := writeVCFHeader(bw, sampleName, false); err != nil {
		return err
	}
	for site, r := range results {
		s := source.sites[chromosome][site]
		pos := source.SitePosition(chromosome, site)
		a1, ok1 := r.Haplotype1()
		a2, ok2 := r.Haplotype2()
		gt := "./."
		if ok1 && ok2 {
			gt = fmt.Sprintf("%d|%d", a1, a2)
		}
		fmt.Fprintf(bw, "%s\t%d\t.\t%s\t%s\t.\t.\t.\tGT\t%s\n",
			chromosome, pos+1, s.ref, joinAlts(s.alts), gt)
	}
	return bw.Flush()
}

// phredScale converts a probability to a Phred-scaled integer, capped at 255
// the way VCF PL fields conventionally are.
func phredScale(p float64) int {
	if p <= 0 {
		return 255
	}
	v := -10 * math.Log10(p)
	if v > 255 {
		return 255
	}
	return int(v + 0.5)
}

func joinAlts(alts []string) string {
	out := alts[0]
	for _, a := range alts[1:] {
		out += "," + a
	}
	return out
}

func joinComma(ss []string) string {
	out := ss[0]
	for _, s := range ss[1:] {
		out += "," + s
	}
	return out
}
