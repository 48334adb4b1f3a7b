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

package cmd

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/tarbatch/config"
	"github.com/cardinalhq/tarbatch/internal/archive"
	"github.com/cardinalhq/tarbatch/internal/recordstore"
	"github.com/cardinalhq/tarbatch/testhelpers"
)

func TestRunTar2Multi(t *testing.T) {
	src := t.TempDir()
	savePath := filepath.Join(t.TempDir(), "out")
	members, _ := testhelpers.RecordMembers(t, 5)
	input := testhelpers.WriteArchiveFile(t, src, "run1.tar.gz", archive.CompressionGzip, members)

	cfg := config.DefaultConfig()
	cfg.BatchSize = 2
	cfg.TmpDir = t.TempDir()

	require.NoError(t, runTar2Multi(context.Background(), cfg, savePath, []string{input}))
	assert.FileExists(t, filepath.Join(savePath, "run1", "batch_2.mrec"))

	// A second run finds the output folder and treats it as done.
	require.NoError(t, runTar2Multi(context.Background(), cfg, savePath, []string{input}))

	err := runTar2Multi(context.Background(), cfg, savePath, []string{input, filepath.Join(src, "missing.tar")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 archives failed")
}

func TestRunTar2Multi_InvalidBatchSize(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BatchSize = 0
	err := runTar2Multi(context.Background(), cfg, t.TempDir(), []string{"whatever.tar"})
	assert.Error(t, err)
}

func TestCatFile(t *testing.T) {
	dir := t.TempDir()
	_, records := testhelpers.RecordMembers(t, 2)

	single := filepath.Join(dir, "one"+recordstore.RecordExt)
	require.NoError(t, recordstore.WriteRecordFile(single, records[0]))

	container := filepath.Join(dir, "batch_0"+recordstore.ContainerExt)
	w, err := recordstore.CreateContainer(container)
	require.NoError(t, err)
	for _, rec := range records {
		require.NoError(t, recordstore.CopyRecord(w, rec, true))
	}
	require.NoError(t, w.Close())

	var buf bytes.Buffer
	require.NoError(t, catFile(&buf, recordstore.FileStore{}, single))
	require.NoError(t, catFile(&buf, recordstore.FileStore{}, container))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "one.srec\t"+records[0].Name()+"\tAnalyses,Raw,"))
	assert.True(t, strings.HasPrefix(lines[1], "batch_0.mrec\t"+records[0].Name()+"\t"+strings.Join(recordstore.RawGroups(), ",")+"\t"))
	assert.Contains(t, lines[2], records[1].Name())

	assert.Error(t, catFile(&buf, recordstore.FileStore{}, filepath.Join(dir, "missing.mrec")))
}

func TestNewLoggerLevel(t *testing.T) {
	t.Setenv("DEBUG", "")
	t.Setenv("TARBATCH_DEBUG", "")
	logger := newLogger("tarbatch-test", false)
	assert.False(t, logger.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelInfo))

	t.Setenv("TARBATCH_DEBUG", "1")
	logger = newLogger("tarbatch-test", false)
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
}

func TestOTLPEnabled(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "tarbatch")
	t.Setenv("ENABLE_OTLP_TELEMETRY", "false")
	assert.False(t, otlpEnabled())

	t.Setenv("ENABLE_OTLP_TELEMETRY", "true")
	assert.True(t, otlpEnabled())

	t.Setenv("OTEL_SERVICE_NAME", "")
	assert.False(t, otlpEnabled())
}
