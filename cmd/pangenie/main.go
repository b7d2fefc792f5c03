// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

// Command pangenie genotypes and phases variants from a pangenome of known
// haplotype paths plus k-mer evidence from short sequencing reads, and can
// inspect its own debug dumps.
//
// Usage:
//
//	pangenie genotype -i reads.fq -r reference.fa -v variants.vcf -o result
//	pangenie genotype-paths -r reference.fa -v variants.vcf -o result
//	pangenie dump -i result_dump.gob
//	pangenie version
package main

import "github.com/pangenie/pangenie-go"

func main() {
	pangenie.Main()
}
