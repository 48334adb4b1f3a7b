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

package recordstore

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"
	"github.com/hashicorp/go-multierror"
)

// ContainerWriter appends records to a container file.
type ContainerWriter struct {
	path   string
	f      *os.File
	bw     *bufio.Writer
	enc    *cbor.Encoder
	count  int
	closed bool
}

var _ Container = (*ContainerWriter)(nil)

// CreateContainer creates a new container at path. It refuses to overwrite
// an existing file.
func CreateContainer(path string) (*ContainerWriter, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create container: %w", err)
	}
	bw := bufio.NewWriterSize(f, 1<<20)
	if _, err := bw.Write(header(containerMagic)); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("write container header: %w", err)
	}
	return &ContainerWriter{
		path: path,
		f:    f,
		bw:   bw,
		enc:  defaultCodec.newEncoder(bw),
	}, nil
}

// Path returns the container's file path.
func (w *ContainerWriter) Path() string {
	return w.path
}

// Count returns how many records have been appended.
func (w *ContainerWriter) Count() int {
	return w.count
}

// Append writes rec to the container. The same record may be appended
// more than once; every call produces its own entry.
func (w *ContainerWriter) Append(rec *Record) error {
	if w.closed {
		return fmt.Errorf("append to closed container %s", w.path)
	}
	if err := rec.validate(); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	if err := w.enc.Encode(rec); err != nil {
		return fmt.Errorf("append record %s: %w", rec.ReadID, err)
	}
	w.count++
	return nil
}

// Close flushes buffered records to disk and closes the file. Calling Close
// more than once is a no-op.
func (w *ContainerWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	var result *multierror.Error
	if err := w.bw.Flush(); err != nil {
		result = multierror.Append(result, fmt.Errorf("flush container: %w", err))
	}
	if err := w.f.Sync(); err != nil {
		result = multierror.Append(result, fmt.Errorf("sync container: %w", err))
	}
	if err := w.f.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close container: %w", err))
	}
	return result.ErrorOrNil()
}

// CopyRecord appends rec to the container. With revert set, only the raw
// groups are written and all derived content is dropped.
func CopyRecord(c Container, rec *Record, revert bool) error {
	if revert {
		rec = rec.Reverted()
	}
	return c.Append(rec)
}

// ContainerReader iterates over the records of a container in write order.
type ContainerReader struct {
	path string
	f    *os.File
	dec  *cbor.Decoder
}

var _ RecordIterator = (*ContainerReader)(nil)

// OpenContainer opens the container at path for reading.
func OpenContainer(path string) (*ContainerReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open container: %w", err)
	}
	br := bufio.NewReaderSize(f, 1<<20)
	hdr := make([]byte, headerSize)
	n, err := io.ReadFull(br, hdr)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		_ = f.Close()
		return nil, fmt.Errorf("read container header: %w", err)
	}
	if err := checkHeader(path, containerMagic, hdr[:n]); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &ContainerReader{
		path: path,
		f:    f,
		dec:  defaultCodec.newDecoder(br),
	}, nil
}

// Next returns the next record, or io.EOF once the container is exhausted.
// A truncated or malformed record yields a *ParseError.
func (r *ContainerReader) Next() (*Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, &ParseError{Path: r.path, Err: err}
	}
	if err := rec.validate(); err != nil {
		return nil, &ParseError{Path: r.path, Err: err}
	}
	return &rec, nil
}

// Close closes the underlying file.
func (r *ContainerReader) Close() error {
	return r.f.Close()
}
