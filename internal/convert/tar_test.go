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
	"bufio"
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/tarbatch/internal/archive"
	"github.com/cardinalhq/tarbatch/internal/recordstore"
	"github.com/cardinalhq/tarbatch/testhelpers"
)

func testConfig(t *testing.T, batchSize int) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.SavePath = filepath.Join(t.TempDir(), "out")
	cfg.TmpDir = t.TempDir()
	cfg.BatchSize = batchSize
	return cfg
}

func readMapping(t *testing.T, dir string) [][2]string {
	t.Helper()
	f, err := os.Open(filepath.Join(dir, MappingFileName))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	require.True(t, sc.Scan())
	require.Equal(t, MappingHeader, sc.Text())
	var rows [][2]string
	for sc.Scan() {
		parts := strings.Split(sc.Text(), "\t")
		require.Len(t, parts, 2)
		rows = append(rows, [2]string{parts[0], parts[1]})
	}
	require.NoError(t, sc.Err())
	return rows
}

type recordingReporter struct {
	progress []Progress
	done     []Summary
}

func (r *recordingReporter) Progress(p Progress) { r.progress = append(r.progress, p) }
func (r *recordingReporter) Done(s Summary)      { r.done = append(r.done, s) }

func TestTarConverter_Batches(t *testing.T) {
	for _, tc := range []struct {
		name         string
		records      int
		batchSize    int
		wantPerBatch []int
	}{
		{"exact multiple", 6, 3, []int{3, 3}},
		{"remainder", 5, 2, []int{2, 2, 1}},
		{"single container", 3, 4000, []int{3}},
		{"batch of one", 3, 1, []int{1, 1, 1}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig(t, tc.batchSize)
			members, records := testhelpers.RecordMembers(t, tc.records)
			input := testhelpers.WriteArchiveFile(t, t.TempDir(), "run42.tar.gz", archive.CompressionGzip, members)

			conv, err := NewTarConverter(cfg)
			require.NoError(t, err)
			summary, err := conv.Convert(context.Background(), input)
			require.NoError(t, err)

			outDir := filepath.Join(cfg.SavePath, "run42")
			assert.Equal(t, outDir, summary.OutputFolder)
			assert.Equal(t, tc.records, summary.Processed)
			assert.Equal(t, len(tc.wantPerBatch), summary.Containers)
			assert.Zero(t, summary.ParseFailures)

			var got []*recordstore.Record
			for i, want := range tc.wantPerBatch {
				recs := testhelpers.ReadContainer(t, filepath.Join(outDir, ContainerName("batch", i)))
				assert.Len(t, recs, want)
				got = append(got, recs...)
			}
			_, err = os.Stat(filepath.Join(outDir, ContainerName("batch", len(tc.wantPerBatch))))
			assert.ErrorIs(t, err, os.ErrNotExist)

			require.Len(t, got, len(records))
			for i := range records {
				assert.Equal(t, records[i].ReadID, got[i].ReadID)
				assert.Equal(t, records[i].Groups, got[i].Groups)
			}

			rows := readMapping(t, outDir)
			require.Len(t, rows, tc.records)
			for i, row := range rows {
				assert.Equal(t, members[i].Name, row[0])
				assert.Equal(t, ContainerName("batch", i/tc.batchSize), row[1])
				assert.FileExists(t, filepath.Join(outDir, row[1]))
			}
		})
	}
}

func TestTarConverter_Revert(t *testing.T) {
	cfg := testConfig(t, 10)
	cfg.Revert = true
	members, records := testhelpers.RecordMembers(t, 3)
	input := testhelpers.WriteArchiveFile(t, t.TempDir(), "reads.tar", archive.CompressionNone, members)

	conv, err := NewTarConverter(cfg)
	require.NoError(t, err)
	_, err = conv.Convert(context.Background(), input)
	require.NoError(t, err)

	got := testhelpers.ReadContainer(t, filepath.Join(cfg.SavePath, "reads", "batch_0.mrec"))
	require.Len(t, got, 3)
	for i, rec := range got {
		require.True(t, records[i].HasGroup("Analyses"))
		assert.Equal(t, recordstore.RawGroups(), rec.GroupNames())
		for _, name := range rec.GroupNames() {
			assert.Equal(t, records[i].Groups[name], rec.Groups[name])
		}
	}
}

func TestTarConverter_CorruptRecordIsSkipped(t *testing.T) {
	cfg := testConfig(t, 2)
	members, _ := testhelpers.RecordMembers(t, 5)
	members[2] = testhelpers.CorruptMember("reads/broken_read.srec")
	input := testhelpers.WriteArchiveFile(t, t.TempDir(), "mixed.tar.gz", archive.CompressionGzip, members)

	var logs bytes.Buffer
	ctx := WithLogger(context.Background(), slog.New(slog.NewTextHandler(&logs, nil)))

	conv, err := NewTarConverter(cfg)
	require.NoError(t, err)
	summary, err := conv.Convert(ctx, input)
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Processed)
	assert.Equal(t, 2, summary.Containers)
	assert.Equal(t, 1, summary.ParseFailures)

	outDir := filepath.Join(cfg.SavePath, "mixed")
	assert.FileExists(t, filepath.Join(outDir, "batch_0.mrec"))
	assert.FileExists(t, filepath.Join(outDir, "batch_1.mrec"))
	assert.NoFileExists(t, filepath.Join(outDir, "batch_2.mrec"))

	rows := readMapping(t, outDir)
	require.Len(t, rows, 4)
	for _, row := range rows {
		assert.NotEqual(t, "reads/broken_read.srec", row[0])
	}

	var errorLines []string
	for _, line := range strings.Split(logs.String(), "\n") {
		if strings.Contains(line, "broken_read") {
			errorLines = append(errorLines, line)
		}
	}
	require.Len(t, errorLines, 1)
	assert.Contains(t, errorLines[0], "level=ERROR")
	assert.Contains(t, errorLines[0], "entry=reads/broken_read.srec")
}

func TestTarConverter_SkipsNonRecordMembers(t *testing.T) {
	cfg := testConfig(t, 10)
	members, _ := testhelpers.RecordMembers(t, 2)
	members = append([]archive.Member{
		{Name: "reads/", Dir: true},
		{Name: "reads/sequencing_summary.txt", Data: []byte("summary")},
	}, members...)
	input := testhelpers.WriteArchiveFile(t, t.TempDir(), "reads.tar.zst", archive.CompressionZstd, members)

	conv, err := NewTarConverter(cfg)
	require.NoError(t, err)
	summary, err := conv.Convert(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Len(t, readMapping(t, filepath.Join(cfg.SavePath, "reads")), 2)
}

func TestTarConverter_ExistingOutputFolder(t *testing.T) {
	cfg := testConfig(t, 2)
	members, _ := testhelpers.RecordMembers(t, 3)
	input := testhelpers.WriteArchiveFile(t, t.TempDir(), "done.tar", archive.CompressionNone, members)

	outDir := filepath.Join(cfg.SavePath, "done")
	require.NoError(t, os.MkdirAll(outDir, 0o755))
	marker := filepath.Join(outDir, "batch_0.mrec")
	require.NoError(t, os.WriteFile(marker, []byte("previous run"), 0o644))

	conv, err := NewTarConverter(cfg)
	require.NoError(t, err)
	summary, err := conv.Convert(context.Background(), input)
	assert.Nil(t, summary)
	require.Error(t, err)
	assert.True(t, IsSetupError(err))
	assert.ErrorIs(t, err, ErrOutputExists)

	data, err := os.ReadFile(marker)
	require.NoError(t, err)
	assert.Equal(t, "previous run", string(data))
	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestTarConverter_UnsupportedExtension(t *testing.T) {
	cfg := testConfig(t, 2)
	input := filepath.Join(t.TempDir(), "foo.zip")
	require.NoError(t, os.WriteFile(input, []byte("PK"), 0o644))

	conv, err := NewTarConverter(cfg)
	require.NoError(t, err)
	_, err = conv.Convert(context.Background(), input)
	require.Error(t, err)
	assert.True(t, IsSetupError(err))
	assert.ErrorIs(t, err, archive.ErrUnsupportedArchive)
	assert.NoDirExists(t, filepath.Join(cfg.SavePath, "foo"))
	assert.NoDirExists(t, cfg.SavePath)
}

func TestTarConverter_MissingArchive(t *testing.T) {
	cfg := testConfig(t, 2)
	conv, err := NewTarConverter(cfg)
	require.NoError(t, err)

	_, err = conv.Convert(context.Background(), filepath.Join(t.TempDir(), "missing.tar.gz"))
	require.Error(t, err)
	assert.True(t, IsSetupError(err))
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.NoDirExists(t, filepath.Join(cfg.SavePath, "missing"))
}

func TestNewTarConverter_InvalidConfig(t *testing.T) {
	for _, batchSize := range []int{0, -1} {
		cfg := testConfig(t, batchSize)
		_, err := NewTarConverter(cfg)
		require.Error(t, err)
		assert.True(t, IsSetupError(err))
		assert.ErrorIs(t, err, ErrInvalidBatchSize)
	}

	cfg := testConfig(t, 10)
	cfg.FilenameBase = "../escape"
	_, err := NewTarConverter(cfg)
	assert.True(t, IsSetupError(err))
}

func TestTarConverter_Cancelled(t *testing.T) {
	cfg := testConfig(t, 2)
	members, _ := testhelpers.RecordMembers(t, 3)
	input := testhelpers.WriteArchiveFile(t, t.TempDir(), "reads.tar", archive.CompressionNone, members)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	conv, err := NewTarConverter(cfg)
	require.NoError(t, err)
	summary, err := conv.Convert(ctx, input)
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, IsSetupError(err))
	assert.Nil(t, summary)

	assert.NoDirExists(t, filepath.Join(cfg.SavePath, "reads"))
}

// cancelOnDone cancels the run once the first archive has finished.
type cancelOnDone struct {
	cancel context.CancelFunc
}

func (r *cancelOnDone) Progress(Progress) {}
func (r *cancelOnDone) Done(Summary)      { r.cancel() }

func TestConvertAll_CancelledBetweenArchives(t *testing.T) {
	cfg := testConfig(t, 2)
	cfg.Workers = 1
	src := t.TempDir()
	members, _ := testhelpers.RecordMembers(t, 3)
	first := testhelpers.WriteArchiveFile(t, src, "first.tar", archive.CompressionNone, members)
	second := testhelpers.WriteArchiveFile(t, src, "second.tar", archive.CompressionNone, members)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	conv, err := NewTarConverter(cfg, WithReporter(&cancelOnDone{cancel: cancel}))
	require.NoError(t, err)

	results, err := conv.ConvertAll(ctx, []string{first, second})
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, context.Canceled)
	assert.False(t, results[1].AlreadyConverted)
	assert.NoDirExists(t, filepath.Join(cfg.SavePath, "second"))

	// A later run converts the archive the interrupt skipped.
	conv, err = NewTarConverter(cfg)
	require.NoError(t, err)
	results, err = conv.ConvertAll(context.Background(), []string{first, second})
	require.NoError(t, err)
	assert.True(t, results[0].AlreadyConverted)
	assert.False(t, results[1].AlreadyConverted)
	require.NotNil(t, results[1].Summary)
	assert.Equal(t, 3, results[1].Summary.Processed)
}

func TestTarConverter_ProgressAndStagingCleanup(t *testing.T) {
	cfg := testConfig(t, 3)
	cfg.ProgressEvery = 2
	members, _ := testhelpers.RecordMembers(t, 5)
	input := testhelpers.WriteArchiveFile(t, t.TempDir(), "reads.tar", archive.CompressionNone, members)

	reporter := &recordingReporter{}
	conv, err := NewTarConverter(cfg, WithReporter(reporter))
	require.NoError(t, err)
	_, err = conv.Convert(context.Background(), input)
	require.NoError(t, err)

	require.Len(t, reporter.progress, 2)
	assert.Equal(t, 2, reporter.progress[0].Processed)
	assert.Equal(t, 4, reporter.progress[1].Processed)
	assert.Equal(t, members[3].Name, reporter.progress[1].Entry)
	assert.Positive(t, reporter.progress[1].TotalBytes)
	assert.LessOrEqual(t, reporter.progress[0].BytesRead, reporter.progress[1].BytesRead)

	require.Len(t, reporter.done, 1)
	assert.Equal(t, 5, reporter.done[0].Processed)
	assert.Equal(t, 2, reporter.done[0].Containers)

	left, err := os.ReadDir(cfg.TmpDir)
	require.NoError(t, err)
	assert.Empty(t, left)
}

type failingStore struct {
	recordstore.FileStore
	failAfter int
	created   int
}

func (s *failingStore) CreateContainer(path string) (recordstore.Container, error) {
	if s.created == s.failAfter {
		return nil, errors.New("disk full")
	}
	s.created++
	return s.FileStore.CreateContainer(path)
}

func TestTarConverter_WriteFailureIsFatal(t *testing.T) {
	cfg := testConfig(t, 2)
	members, _ := testhelpers.RecordMembers(t, 5)
	input := testhelpers.WriteArchiveFile(t, t.TempDir(), "reads.tar", archive.CompressionNone, members)

	conv, err := NewTarConverter(cfg, WithStore(&failingStore{failAfter: 1}))
	require.NoError(t, err)
	summary, err := conv.Convert(context.Background(), input)
	require.Error(t, err)
	assert.False(t, IsSetupError(err))
	assert.Contains(t, err.Error(), "disk full")
	require.NotNil(t, summary)
	assert.Equal(t, 2, summary.Processed)

	outDir := filepath.Join(cfg.SavePath, "reads")
	assert.Len(t, testhelpers.ReadContainer(t, filepath.Join(outDir, "batch_0.mrec")), 2)
	assert.Len(t, readMapping(t, outDir), 2)
}

func TestConvertAll(t *testing.T) {
	cfg := testConfig(t, 2)
	cfg.Workers = 2
	src := t.TempDir()

	members, _ := testhelpers.RecordMembers(t, 3)
	first := testhelpers.WriteArchiveFile(t, src, "first.tar", archive.CompressionNone, members)
	second := testhelpers.WriteArchiveFile(t, src, "second.tgz", archive.CompressionGzip, members)
	done := testhelpers.WriteArchiveFile(t, src, "done.tar.lz4", archive.CompressionLZ4, members)
	missing := filepath.Join(src, "missing.tar")
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.SavePath, "done"), 0o755))

	conv, err := NewTarConverter(cfg)
	require.NoError(t, err)
	results, err := conv.ConvertAll(context.Background(), []string{first, done, missing, second})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.Len(t, results, 4)
	assert.Equal(t, first, results[0].Input)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, 3, results[0].Summary.Processed)

	assert.True(t, results[1].AlreadyConverted)
	assert.NoError(t, results[1].Err)

	assert.Error(t, results[2].Err)
	assert.False(t, results[2].AlreadyConverted)

	assert.NoError(t, results[3].Err)
	assert.Equal(t, 2, results[3].Summary.Containers)
	assert.DirExists(t, filepath.Join(cfg.SavePath, "second"))
}
