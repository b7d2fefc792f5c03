// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

// Command pangenie-paths genotypes and phases variants from a pangenome of
// known haplotype paths alone, without k-mer evidence.
//
// Usage:
//
//	pangenie-paths -r reference.fa -v variants.vcf -o result
package main

import (
	"os"

	"github.com/pangenie/pangenie-go"
)

func main() {
	os.Exit(pangenie.RunGenotypePaths(os.Args[0], os.Args[1:]))
}
