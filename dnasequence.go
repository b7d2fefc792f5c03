// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package pangenie

import "strings"

// baseCode is the 4-bit encoding used by DnaSequence: A=0 C=1 G=2 T=3
// (upper or lower case), anything else (N included) is 4 and decodes back
// to 'N'. Mirrors original_source/src/dnasequence.cpp's encode/decode.
func baseCode(b byte) byte {
	switch b {
	case 'A', 'a':
		return 0
	case 'C', 'c':
		return 1
	case 'G', 'g':
		return 2
	case 'T', 't':
		return 3
	default:
		return 4
	}
}

func baseComplement(code byte) byte {
	switch code {
	case 0:
		return 3
	case 1:
		return 2
	case 2:
		return 1
	case 3:
		return 0
	default:
		return 4
	}
}

func baseDecode(code byte) byte {
	switch code {
	case 0:
		return 'A'
	case 1:
		return 'C'
	case 2:
		return 'G'
	case 3:
		return 'T'
	default:
		return 'N'
	}
}

// DnaSequence is a 4-bit-per-base packed sequence container: two bases per
// byte, high nibble first. It exists so that reconstructing allele sequences
// for hundreds of thousands of sites doesn't cost a byte per base.
type DnaSequence struct {
	packed []byte
	length int
}

// NewDnaSequence builds a DnaSequence from an ASCII string.
func NewDnaSequence(seq string) *DnaSequence {
	d := &DnaSequence{}
	d.Append(seq)
	return d
}

// Len reports the number of bases.
func (d *DnaSequence) Len() int { return d.length }

// Append adds seq (ASCII bases) to the end of d.
func (d *DnaSequence) Append(seq string) {
	for i := 0; i < len(seq); i++ {
		code := baseCode(seq[i])
		if d.length%2 == 0 {
			d.packed = append(d.packed, code<<4)
		} else {
			idx := d.length / 2
			d.packed[idx] = d.packed[idx] | code
		}
		d.length++
	}
}

// AppendSequence concatenates another DnaSequence onto d, nibble-aligning as
// needed (the packed representation isn't necessarily byte-aligned at the
// append point).
func (d *DnaSequence) AppendSequence(other *DnaSequence) {
	if other.length == 0 {
		return
	}
	if d.length%2 == 0 {
		d.packed = append(d.packed, other.packed...)
	} else {
		current := d.packed[len(d.packed)-1]
		d.packed = d.packed[:len(d.packed)-1]
		for i := 0; i < other.length; i++ {
			s := other.packed[i/2]
			if i%2 == 0 {
				current |= s >> 4
				d.packed = append(d.packed, current)
			} else {
				current = s << 4
			}
		}
		if other.length%2 == 0 {
			d.packed = append(d.packed, current)
		}
	}
	d.length += other.length
}

// Reverse reverses the base order in place (not the complement).
func (d *DnaSequence) Reverse() {
	reversed := make([]byte, 0, len(d.packed))
	if d.length%2 == 0 {
		for i := len(d.packed) - 1; i >= 0; i-- {
			b := d.packed[i]
			reversed = append(reversed, (b>>4)|(b<<4))
		}
	} else {
		current := d.packed[len(d.packed)-1]
		rest := d.packed[:len(d.packed)-1]
		for i := len(rest) - 1; i >= 0; i-- {
			b := rest[i]
			second := b << 4
			reversed = append(reversed, (second>>4)|current)
			current = b & 0xf0
		}
		reversed = append(reversed, current)
	}
	d.packed = reversed
}

// ReverseComplement replaces d's contents with its reverse complement.
func (d *DnaSequence) ReverseComplement() {
	out := make([]byte, 0, len(d.packed))
	if d.length%2 == 0 {
		for i := len(d.packed) - 1; i >= 0; i-- {
			b := d.packed[i]
			first := baseComplement(b >> 4)
			second := baseComplement(b & 0x0f)
			out = append(out, (second<<4)|first)
		}
	} else {
		last := d.packed[len(d.packed)-1]
		current := baseComplement(last>>4) << 4
		rest := d.packed[:len(d.packed)-1]
		for i := len(rest) - 1; i >= 0; i-- {
			b := rest[i]
			second := baseComplement(b & 0x0f)
			first := baseComplement(b >> 4)
			out = append(out, current|second)
			current = first << 4
		}
		out = append(out, current)
	}
	d.packed = out
}

// At returns the base at position i as an ASCII byte.
func (d *DnaSequence) At(i int) byte {
	if i < 0 || i >= d.length {
		panic("DnaSequence.At: index out of bounds")
	}
	b := d.packed[i/2]
	if i%2 == 0 {
		return baseDecode(b >> 4)
	}
	return baseDecode(b & 0x0f)
}

// Substr returns the half-open range [start, end) as a string.
func (d *DnaSequence) Substr(start, end int) string {
	var sb strings.Builder
	sb.Grow(end - start)
	for i := start; i < end; i++ {
		sb.WriteByte(d.At(i))
	}
	return sb.String()
}

// String renders the full sequence.
func (d *DnaSequence) String() string {
	return d.Substr(0, d.length)
}

// Clear empties d.
func (d *DnaSequence) Clear() {
	d.packed = nil
	d.length = 0
}
