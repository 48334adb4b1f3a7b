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

package convert

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/tarbatch/internal/recordstore"
	"github.com/cardinalhq/tarbatch/testhelpers"
)

// writeRecordDir writes members as loose files under dir.
func writeRecordDir(t *testing.T, dir string, n int) []*recordstore.Record {
	t.Helper()
	members, records := testhelpers.RecordMembers(t, n)
	for _, m := range members {
		p := filepath.Join(dir, filepath.FromSlash(m.Name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, m.Data, 0o644))
	}
	return records
}

func TestListFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.srec", "a.srec", "notes.txt", "nested/c.srec", "nested/deeper/d.srec"} {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, nil, 0o644))
	}

	flat, err := ListFiles(dir, recordstore.RecordExt, false)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.srec"),
		filepath.Join(dir, "b.srec"),
	}, flat)

	all, err := ListFiles(dir, recordstore.RecordExt, true)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.srec"),
		filepath.Join(dir, "b.srec"),
		filepath.Join(dir, "nested", "c.srec"),
		filepath.Join(dir, "nested", "deeper", "d.srec"),
	}, all)

	_, err = ListFiles(filepath.Join(dir, "missing"), recordstore.RecordExt, true)
	assert.Error(t, err)
}

func TestSingleToMulti(t *testing.T) {
	in := t.TempDir()
	records := writeRecordDir(t, in, 5)
	require.NoError(t, os.WriteFile(filepath.Join(in, "reads", "zz_bad.srec"), []byte("garbage"), 0o644))

	cfg := testConfig(t, 2)
	conv, err := NewDirectoryConverter(cfg, true)
	require.NoError(t, err)
	summary, err := conv.SingleToMulti(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, 5, summary.Processed)
	assert.Equal(t, 3, summary.Containers)
	assert.Equal(t, 1, summary.ParseFailures)
	assert.Equal(t, cfg.SavePath, summary.OutputFolder)

	rows := readMapping(t, cfg.SavePath)
	require.Len(t, rows, 5)
	assert.Equal(t, "read_000.srec", rows[0][0])
	assert.Equal(t, "batch_0.mrec", rows[0][1])
	assert.Equal(t, "batch_2.mrec", rows[4][1])

	got := testhelpers.ReadContainer(t, filepath.Join(cfg.SavePath, "batch_1.mrec"))
	require.Len(t, got, 2)
	assert.Equal(t, records[2].Groups, got[0].Groups)
}

func TestSingleToMulti_NotRecursive(t *testing.T) {
	in := t.TempDir()
	writeRecordDir(t, in, 3)

	cfg := testConfig(t, 2)
	conv, err := NewDirectoryConverter(cfg, false)
	require.NoError(t, err)
	summary, err := conv.SingleToMulti(context.Background(), in)
	require.NoError(t, err)
	assert.Zero(t, summary.Processed)
	assert.Zero(t, summary.Containers)
	assert.Empty(t, readMapping(t, cfg.SavePath))
}

func TestSingleToMulti_ExistingOutput(t *testing.T) {
	in := t.TempDir()
	writeRecordDir(t, in, 1)
	cfg := testConfig(t, 2)
	require.NoError(t, os.MkdirAll(cfg.SavePath, 0o755))

	conv, err := NewDirectoryConverter(cfg, true)
	require.NoError(t, err)
	_, err = conv.SingleToMulti(context.Background(), in)
	assert.ErrorIs(t, err, ErrOutputExists)
	assert.True(t, IsSetupError(err))
	assert.NoFileExists(t, filepath.Join(cfg.SavePath, MappingFileName))
}

func TestRevertContainers(t *testing.T) {
	in := t.TempDir()
	records := writeRecordDir(t, in, 5)

	batched := testConfig(t, 2)
	conv, err := NewDirectoryConverter(batched, true)
	require.NoError(t, err)
	_, err = conv.SingleToMulti(context.Background(), in)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(batched.SavePath, "broken.mrec"), []byte("nope"), 0o644))

	cfg := testConfig(t, 3)
	reverter, err := NewDirectoryConverter(cfg, false)
	require.NoError(t, err)
	summary, err := reverter.RevertContainers(context.Background(), batched.SavePath)
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Processed)
	assert.Equal(t, 2, summary.Containers)
	assert.Equal(t, 1, summary.ParseFailures)
	assert.NoFileExists(t, filepath.Join(cfg.SavePath, MappingFileName))

	got := append(
		testhelpers.ReadContainer(t, filepath.Join(cfg.SavePath, "batch_0.mrec")),
		testhelpers.ReadContainer(t, filepath.Join(cfg.SavePath, "batch_1.mrec"))...,
	)
	require.Len(t, got, 5)

	// batch_2 holds read 4, then batch_1 holds reads 2 and 3, then batch_0.
	wantOrder := []int{4, 2, 3, 0, 1}
	for i, rec := range got {
		want := records[wantOrder[i]]
		assert.Equal(t, want.ReadID, rec.ReadID)
		assert.Equal(t, recordstore.RawGroups(), rec.GroupNames())
	}
}

func TestRotator(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.BatchSize = 3
	cfg.FilenameBase = "chunk"

	mapping, err := CreateMappingTable(filepath.Join(dir, MappingFileName))
	require.NoError(t, err)
	r := NewRotator(recordstore.FileStore{}, dir, cfg, mapping)

	_, records := testhelpers.RecordMembers(t, 7)
	for i, rec := range records {
		require.NoError(t, r.Add(context.Background(), rec, rec.Name()))
		assert.Equal(t, i+1, r.Processed())
		assert.Len(t, r.Containers(), i/3+1)
	}
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	assert.Equal(t, []string{
		filepath.Join(dir, "chunk_0.mrec"),
		filepath.Join(dir, "chunk_1.mrec"),
		filepath.Join(dir, "chunk_2.mrec"),
	}, r.Containers())
	for i, want := range []int{3, 3, 1} {
		assert.Len(t, testhelpers.ReadContainer(t, r.Containers()[i]), want)
	}
	assert.Len(t, readMapping(t, dir), 7)
	assert.Equal(t, 7, mapping.Lines())
}

func TestMappingTable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, MappingFileName)
	var logs bytes.Buffer
	ctx := WithLogger(context.Background(), slog.New(slog.NewTextHandler(&logs, nil)))

	table, err := CreateMappingTable(path)
	require.NoError(t, err)
	require.NoError(t, table.Append(ctx, "reads/plain.srec", "batch_0.mrec"))
	assert.Empty(t, logs.String())

	require.NoError(t, table.Append(ctx, "odd\tname\n.srec", "batch_0.mrec"))
	require.NoError(t, table.Close())
	require.NoError(t, table.Close())
	assert.Error(t, table.Append(ctx, "late.srec", "batch_0.mrec"))

	assert.Equal(t, [][2]string{
		{"reads/plain.srec", "batch_0.mrec"},
		{"odd name .srec", "batch_0.mrec"},
	}, readMapping(t, dir))

	out := logs.String()
	assert.Equal(t, 1, strings.Count(out, "Mapping entry name rewritten"))
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, `name="odd\tname\n.srec"`)
	assert.Contains(t, out, `written="odd name .srec"`)

	_, err = CreateMappingTable(path)
	assert.ErrorIs(t, err, os.ErrExist)
}

func TestProgressPercent(t *testing.T) {
	_, ok := Progress{BytesRead: 10, TotalBytes: -1}.Percent()
	assert.False(t, ok)

	pct, ok := Progress{BytesRead: 25, TotalBytes: 100}.Percent()
	assert.True(t, ok)
	assert.InDelta(t, 25.0, pct, 0.001)

	pct, _ = Progress{BytesRead: 150, TotalBytes: 100}.Percent()
	assert.InDelta(t, 100.0, pct, 0.001)
}
