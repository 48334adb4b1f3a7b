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
	"bytes"
	"errors"
	"fmt"
	"os"
)

const (
	formatVersion = 1
	headerSize    = 5
)

var (
	recordMagic    = []byte("SREC")
	containerMagic = []byte("MREC")
)

func header(magic []byte) []byte {
	return append(bytes.Clone(magic), formatVersion)
}

func checkHeader(path string, magic, hdr []byte) error {
	if len(hdr) < headerSize {
		return parseErrorf(path, "file too short (%d bytes)", len(hdr))
	}
	if !bytes.Equal(hdr[:4], magic) {
		return parseErrorf(path, "bad magic %q, want %q", hdr[:4], magic)
	}
	if hdr[4] != formatVersion {
		return parseErrorf(path, "unsupported format version %d", hdr[4])
	}
	return nil
}

// OpenRecord reads the single-record file at path. A file that exists but
// does not hold exactly one valid record yields a *ParseError.
func OpenRecord(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read record file: %w", err)
	}
	if err := checkHeader(path, recordMagic, data); err != nil {
		return nil, err
	}

	var rec Record
	rest, err := defaultCodec.unmarshalFirst(data[headerSize:], &rec)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	if len(rest) != 0 {
		return nil, parseErrorf(path, "%d bytes of trailing data", len(rest))
	}
	if err := rec.validate(); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &rec, nil
}

// WriteRecordFile writes rec as a single-record file, failing if path exists.
func WriteRecordFile(path string, rec *Record) error {
	data, err := MarshalRecordFile(rec)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// MarshalRecordFile returns the single-record file encoding of rec.
func MarshalRecordFile(rec *Record) ([]byte, error) {
	if err := rec.validate(); err != nil {
		return nil, err
	}
	body, err := defaultCodec.marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record %s: %w", rec.ReadID, err)
	}
	return append(header(recordMagic), body...), nil
}

// IsParseError reports whether err is, or wraps, a *ParseError.
func IsParseError(err error) bool {
	var perr *ParseError
	return errors.As(err, &perr)
}
