// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package pangenie

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/klauspost/pgzip"
)

// gzipr wraps a ReadCloser and a Closer, presenting a single Close() method
// that closes both wrapped objects (a gzip.Reader doesn't close its
// underlying file on its own).
type gzipr struct {
	io.ReadCloser
	io.Closer
}

func (gr gzipr) Close() error {
	e1 := gr.ReadCloser.Close()
	e2 := gr.Closer.Close()
	if e1 != nil {
		return e1
	}
	return e2
}

// openInput opens fnm for reading, transparently decompressing it if the
// name ends in ".gz" (no remote-storage lookup, local filesystem only).
func openInput(fnm string) (io.ReadCloser, error) {
	f, err := os.Open(fnm)
	if err != nil {
		return nil, wrapError(IOError, err, "opening %s", fnm)
	}
	if !strings.HasSuffix(fnm, ".gz") {
		return f, nil
	}
	rdr, err := pgzip.NewReader(bufio.NewReaderSize(f, 4*1024*1024))
	if err != nil {
		f.Close()
		return nil, wrapError(IOError, err, "opening gzip stream %s", fnm)
	}
	return gzipr{rdr, f}, nil
}

// createOutput creates fnm for writing, transparently gzip-compressing it if
// the name ends in ".gz". The returned io.WriteCloser's Close also closes
// the underlying file.
func createOutput(fnm string) (io.WriteCloser, error) {
	f, err := os.Create(fnm)
	if err != nil {
		return nil, wrapError(IOError, err, "creating %s", fnm)
	}
	if !strings.HasSuffix(fnm, ".gz") {
		return f, nil
	}
	return gzipWriteCloser{pgzip.NewWriter(f), f}, nil
}

type gzipWriteCloser struct {
	*pgzip.Writer
	f *os.File
}

func (g gzipWriteCloser) Close() error {
	e1 := g.Writer.Close()
	e2 := g.f.Close()
	if e1 != nil {
		return e1
	}
	return e2
}
