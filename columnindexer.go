// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package pangenie

// ColumnIndexer is the bijection between a column's linear cell index
// (0..P²-1) and the ordered pair of path slots (slot_i, slot_j) it
// represents, per spec.md §3/§4.1. It never materializes P² pairs: cell → (i,
// j) is always computed arithmetically as (cell / P, cell % P), matching
// original_source/src/hmm.cpp's HMM::index_columns.
type ColumnIndexer struct {
	pathIDs   []uint64
	alleleIDs []uint8
}

// NewColumnIndexer builds an indexer from a site's covering paths, given in
// slot order. It fails fast (returns an error of Kind InputStructural) if the
// site has zero covering paths.
func NewColumnIndexer(pathIDs []uint64, alleleIDs []uint8) (*ColumnIndexer, error) {
	if len(pathIDs) == 0 {
		return nil, newError(InputStructural, "column has no covering paths")
	}
	if len(pathIDs) != len(alleleIDs) {
		return nil, newError(InputStructural, "pathIDs/alleleIDs length mismatch (%d vs %d)", len(pathIDs), len(alleleIDs))
	}
	return &ColumnIndexer{pathIDs: pathIDs, alleleIDs: alleleIDs}, nil
}

// NrPaths is P, the number of paths covering this column.
func (ci *ColumnIndexer) NrPaths() int { return len(ci.pathIDs) }

// Size is P², the number of ordered cells in this column.
func (ci *ColumnIndexer) Size() int { return len(ci.pathIDs) * len(ci.pathIDs) }

func (ci *ColumnIndexer) checkCell(cell int) {
	if cell < 0 || cell >= ci.Size() {
		panic("ColumnIndexer: cell index out of range")
	}
}

// GetPaths returns the ordered pair of path ids (path_i, path_j) cell
// corresponds to.
func (ci *ColumnIndexer) GetPaths(cell int) (uint64, uint64) {
	ci.checkCell(cell)
	p := ci.NrPaths()
	return ci.pathIDs[cell/p], ci.pathIDs[cell%p]
}

// GetAlleles returns the ordered pair of allele ids (allele_i, allele_j) cell
// corresponds to.
func (ci *ColumnIndexer) GetAlleles(cell int) (uint8, uint8) {
	ci.checkCell(cell)
	p := ci.NrPaths()
	return ci.alleleIDs[cell/p], ci.alleleIDs[cell%p]
}

// CellOf is the inverse of GetPaths/GetAlleles's (slot_i, slot_j) indexing:
// the linear cell index for (slotI, slotJ).
func (ci *ColumnIndexer) CellOf(slotI, slotJ int) int {
	p := ci.NrPaths()
	return slotI*p + slotJ
}
