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
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Member is one file to place in an archive written by WriteArchive.
type Member struct {
	Name string
	Data []byte
	// Dir writes a directory header instead of a file.
	Dir bool
}

// WriteArchive writes members as a tar stream with the given compression.
// Members are written in order.
func WriteArchive(w io.Writer, compression Compression, members []Member) error {
	var (
		out    io.Writer
		closer io.Closer
	)
	switch compression {
	case CompressionNone:
		out = w
	case CompressionGzip:
		zw := gzip.NewWriter(w)
		out, closer = zw, zw
	case CompressionZstd:
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return fmt.Errorf("create zstd writer: %w", err)
		}
		out, closer = zw, zw
	case CompressionLZ4:
		zw := lz4.NewWriter(w)
		out, closer = zw, zw
	default:
		return fmt.Errorf("unsupported compression %s", compression)
	}

	tw := tar.NewWriter(out)
	modTime := time.Unix(0, 0)
	for _, m := range members {
		hdr := &tar.Header{
			Name:     m.Name,
			Mode:     0o644,
			Size:     int64(len(m.Data)),
			ModTime:  modTime,
			Typeflag: tar.TypeReg,
		}
		if m.Dir {
			hdr.Typeflag = tar.TypeDir
			hdr.Mode = 0o755
			hdr.Size = 0
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("write header for %s: %w", m.Name, err)
		}
		if m.Dir {
			continue
		}
		if _, err := tw.Write(m.Data); err != nil {
			return fmt.Errorf("write %s: %w", m.Name, err)
		}
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar stream: %w", err)
	}
	if closer != nil {
		return closer.Close()
	}
	return nil
}
