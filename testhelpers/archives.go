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

// Package testhelpers builds archive fixtures for tests.
package testhelpers

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/tarbatch/internal/archive"
	"github.com/cardinalhq/tarbatch/internal/recordstore"
)

// RecordMember returns an archive member holding a synthetic single-record
// file, along with the record it encodes.
func RecordMember(t *testing.T, name string, readNumber int) (archive.Member, *recordstore.Record) {
	t.Helper()
	rec, err := recordstore.NewSyntheticRecord(uuid.NewString(), recordstore.SyntheticOptions{
		ReadNumber: readNumber,
		Samples:    32,
		Analyses:   true,
	})
	require.NoError(t, err)
	data, err := recordstore.MarshalRecordFile(rec)
	require.NoError(t, err)
	return archive.Member{Name: name, Data: data}, rec
}

// CorruptMember returns a member with a record extension that does not
// parse as a record.
func CorruptMember(name string) archive.Member {
	return archive.Member{Name: name, Data: []byte("this is not a record")}
}

// RecordMembers returns n record members named reads/read_000.srec and up.
func RecordMembers(t *testing.T, n int) ([]archive.Member, []*recordstore.Record) {
	t.Helper()
	members := make([]archive.Member, 0, n)
	records := make([]*recordstore.Record, 0, n)
	for i := range n {
		m, rec := RecordMember(t, fmt.Sprintf("reads/read_%03d%s", i, recordstore.RecordExt), i)
		members = append(members, m)
		records = append(records, rec)
	}
	return members, records
}

// WriteArchiveFile writes members to dir/name and returns the path.
func WriteArchiveFile(t *testing.T, dir, name string, compression archive.Compression, members []archive.Member) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, archive.WriteArchive(&buf, compression, members))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

// ReadContainer returns every record of the container at path.
func ReadContainer(t *testing.T, path string) []*recordstore.Record {
	t.Helper()
	r, err := recordstore.OpenContainer(path)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	var out []*recordstore.Record
	for {
		rec, err := r.Next()
		if err != nil {
			require.ErrorIs(t, err, io.EOF)
			return out
		}
		out = append(out, rec)
	}
}
