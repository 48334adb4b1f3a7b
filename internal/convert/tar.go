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
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"

	"github.com/cardinalhq/tarbatch/internal/archive"
	"github.com/cardinalhq/tarbatch/internal/idgen"
	"github.com/cardinalhq/tarbatch/internal/recordstore"
	"github.com/cardinalhq/tarbatch/internal/staging"
)

type options struct {
	store    recordstore.Store
	sources  *archive.Sources
	reporter ProgressReporter
}

// Option customizes a converter.
type Option func(*options)

// WithStore replaces the file-backed record store.
func WithStore(store recordstore.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithSources sets how remote archives are fetched.
func WithSources(sources *archive.Sources) Option {
	return func(o *options) {
		o.sources = sources
	}
}

// WithReporter sets the progress observer.
func WithReporter(reporter ProgressReporter) Option {
	return func(o *options) {
		o.reporter = reporter
	}
}

func buildOptions(opts []Option) options {
	o := options{
		store:    recordstore.FileStore{},
		sources:  &archive.Sources{},
		reporter: discardReporter{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// TarConverter streams tar archives of single-record files into batches of
// containers. One converter may be shared by several goroutines as long as
// each works on a different archive.
type TarConverter struct {
	options
	cfg Config
}

// NewTarConverter validates cfg and returns a converter. An invalid
// configuration is reported as a *SetupError.
func NewTarConverter(cfg Config, opts ...Option) (*TarConverter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &SetupError{Err: err}
	}
	return &TarConverter{options: buildOptions(opts), cfg: cfg}, nil
}

// Config returns the converter's configuration.
func (c *TarConverter) Config() Config {
	return c.cfg
}

// OutputFolder returns the folder input's containers are written to.
func (c *TarConverter) OutputFolder(input string) (string, error) {
	base, _, err := archive.ParseName(input)
	if err != nil {
		return "", err
	}
	return filepath.Join(c.cfg.SavePath, base), nil
}

// runState holds everything one archive conversion owns.
type runState struct {
	input  string
	outDir string

	handle  *archive.Handle
	stager  *staging.Stager
	rotator *Rotator

	parseFailures int
	skipped       int
}

func (st *runState) summary() Summary {
	s := Summary{
		Archive:       st.input,
		OutputFolder:  st.outDir,
		ParseFailures: st.parseFailures,
		Skipped:       st.skipped,
	}
	if st.rotator != nil {
		s.Processed = st.rotator.Processed()
		s.Containers = len(st.rotator.Containers())
	}
	return s
}

// close releases the run's resources in reverse order of acquisition.
func (st *runState) close() error {
	var result *multierror.Error
	if st.rotator != nil {
		if err := st.rotator.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if st.stager != nil {
		if err := st.stager.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("remove staging dir: %w", err))
		}
	}
	if st.handle != nil {
		if err := st.handle.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close archive: %w", err))
		}
	}
	return result.ErrorOrNil()
}

// Convert converts one archive. Setup failures return a *SetupError and
// leave nothing behind; once the output folder exists the containers and the
// mapping table are always closed, even when the run fails or is cancelled.
func (c *TarConverter) Convert(ctx context.Context, input string) (*Summary, error) {
	ctx, logger := withLogAttrs(ctx,
		slog.String("archive", input),
		slog.String("runID", idgen.RunID()),
	)

	st, err := c.setup(ctx, input)
	if err != nil {
		switch {
		case errors.Is(err, ErrOutputExists):
			recordArchiveFinished(ctx, "exists")
		case ctx.Err() != nil:
			recordArchiveFinished(ctx, "cancelled")
		default:
			recordArchiveFinished(ctx, "setup_failed")
		}
		return nil, &SetupError{Input: input, Err: err}
	}
	logger.Info("Converting archive", slog.String("output", st.outDir))

	runErr := c.run(ctx, st)
	if err := st.close(); err != nil {
		runErr = multierror.Append(runErr, err)
	}

	summary := st.summary()
	c.reporter.Done(summary)
	if runErr != nil {
		recordArchiveFinished(ctx, "failed")
		return &summary, runErr
	}
	recordArchiveFinished(ctx, "converted")
	return &summary, nil
}

// setup creates nothing on disk once ctx is done: an output folder is only
// ever left behind by a run that started converting, since its existence
// marks the archive as converted.
func (c *TarConverter) setup(ctx context.Context, input string) (*runState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	outDir, err := c.OutputFolder(input)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(outDir); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrOutputExists, outDir)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("check output folder: %w", err)
	}

	st := &runState{input: input, outDir: outDir}
	if st.handle, err = archive.Open(ctx, input, c.sources); err != nil {
		return nil, err
	}
	if st.stager, err = staging.New(c.cfg.TmpDir); err != nil {
		_ = st.close()
		return nil, err
	}
	if usage, err := st.stager.Usage(); err == nil {
		loggerFrom(ctx).Debug("Staging directory ready",
			slog.String("dir", st.stager.Dir()),
			slog.String("free", humanize.Bytes(usage.FreeBytes)))
	}

	if err := ctx.Err(); err != nil {
		_ = st.close()
		return nil, err
	}
	if err := os.MkdirAll(c.cfg.SavePath, 0o755); err != nil {
		_ = st.close()
		return nil, fmt.Errorf("create save path: %w", err)
	}
	if err := os.Mkdir(outDir, 0o755); err != nil {
		_ = st.close()
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrOutputExists, outDir)
		}
		return nil, fmt.Errorf("create output folder: %w", err)
	}
	mapping, err := CreateMappingTable(filepath.Join(outDir, MappingFileName))
	if err != nil {
		_ = st.close()
		_ = os.Remove(outDir)
		return nil, err
	}
	st.rotator = NewRotator(c.store, outDir, c.cfg, mapping)
	return st, nil
}

func (c *TarConverter) run(ctx context.Context, st *runState) error {
	logger := loggerFrom(ctx)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		entry, err := st.handle.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read archive: %w", err)
		}
		if path.Ext(entry.Name) != recordstore.RecordExt {
			st.skipped++
			logger.Debug("Skipping member", slog.String("entry", entry.Name))
			continue
		}
		if err := c.convertEntry(ctx, st, entry); err != nil {
			return err
		}
	}
}

func (c *TarConverter) convertEntry(ctx context.Context, st *runState, entry *archive.Entry) error {
	staged, err := st.stager.Stage(entry.Name, st.handle.Reader())
	if err != nil {
		return err
	}
	defer func() { _ = staged.Remove() }()

	rec, err := c.store.OpenRecord(staged.Path)
	if err != nil {
		if recordstore.IsParseError(err) {
			st.parseFailures++
			recordParseError(ctx)
			loggerFrom(ctx).Error("Unable to parse record",
				slog.String("entry", entry.Name),
				slog.Any("error", err))
			return nil
		}
		return fmt.Errorf("read staged %s: %w", entry.Name, err)
	}

	if err := st.rotator.Add(ctx, rec, entry.Name); err != nil {
		return fmt.Errorf("copy %s: %w", entry.Name, err)
	}

	if n := st.rotator.Processed(); n%c.cfg.ProgressEvery == 0 {
		read, total := st.handle.Progress()
		c.reporter.Progress(Progress{
			Archive:    st.input,
			Entry:      entry.Name,
			Processed:  n,
			BytesRead:  read,
			TotalBytes: total,
		})
	}
	return nil
}
