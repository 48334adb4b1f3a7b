// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Entry is one regular-file member of an archive.
type Entry struct {
	Name string
	Size int64
}

// Handle is an open archive. Members are read strictly in stored order and
// a member's bytes are only readable until the next call to Next.
type Handle struct {
	input       string
	loc         Location
	compression Compression
	total       int64

	src     io.ReadCloser
	counter *countingReader
	decomp  io.Closer
	tr      *tar.Reader
}

// Open resolves input, opens its byte stream and prepares a tar reader on
// top of the matching decompressor. Unsupported names fail before any I/O.
func Open(ctx context.Context, input string, sources *Sources) (*Handle, error) {
	_, compression, err := ParseName(input)
	if err != nil {
		return nil, err
	}
	loc, err := ParseLocation(input)
	if err != nil {
		return nil, err
	}
	if sources == nil {
		sources = &Sources{}
	}

	src, total, err := sources.open(ctx, loc)
	if err != nil {
		recordOpenError(ctx, loc.Kind)
		return nil, fmt.Errorf("open %s: %w", input, err)
	}

	h := &Handle{
		input:       input,
		loc:         loc,
		compression: compression,
		total:       total,
		src:         src,
		counter:     &countingReader{r: src},
	}

	var stream io.Reader
	switch compression {
	case CompressionGzip:
		zr, err := gzip.NewReader(h.counter)
		if err != nil {
			_ = src.Close()
			return nil, fmt.Errorf("open gzip stream %s: %w", input, err)
		}
		h.decomp = zr
		stream = zr
	case CompressionZstd:
		zr, err := zstd.NewReader(h.counter, zstd.WithDecoderConcurrency(1))
		if err != nil {
			_ = src.Close()
			return nil, fmt.Errorf("open zstd stream %s: %w", input, err)
		}
		rc := zr.IOReadCloser()
		h.decomp = rc
		stream = rc
	case CompressionLZ4:
		stream = lz4.NewReader(h.counter)
	default:
		stream = h.counter
	}
	h.tr = tar.NewReader(stream)
	return h, nil
}

// Input returns the input the handle was opened from.
func (h *Handle) Input() string {
	return h.input
}

// Location returns the parsed input.
func (h *Handle) Location() Location {
	return h.loc
}

// Compression returns the stream's compression.
func (h *Handle) Compression() Compression {
	return h.compression
}

// Next advances to the next regular-file member. It returns io.EOF when the
// archive is exhausted.
func (h *Handle) Next() (*Entry, error) {
	for {
		hdr, err := h.tr.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("read %s: %w", h.input, err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		return &Entry{Name: hdr.Name, Size: hdr.Size}, nil
	}
}

// Reader returns the current member's bytes.
func (h *Handle) Reader() io.Reader {
	return h.tr
}

// Progress returns the number of source bytes consumed so far and the
// source's total size. The total is -1 when the source did not report one.
// For compressed inputs the consumed count is measured before decompression,
// so it tracks fetched bytes, not archive members.
func (h *Handle) Progress() (read, total int64) {
	return h.counter.n.Load(), h.total
}

// Close releases the decompressor and the underlying stream.
func (h *Handle) Close() error {
	var result *multierror.Error
	if h.decomp != nil {
		if err := h.decomp.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := h.src.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// countingReader counts bytes pulled from the source.
type countingReader struct {
	r io.Reader
	n atomic.Int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	recordBytesRead(n)
	return n, err
}
