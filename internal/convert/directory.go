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
	"path/filepath"
	"slices"

	"github.com/hashicorp/go-multierror"

	"github.com/cardinalhq/tarbatch/internal/recordstore"
)

// ListFiles returns the files in dir whose extension is ext, in lexical
// order. Subdirectories are only searched when recursive is set.
func ListFiles(dir, ext string, recursive bool) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != dir && !recursive {
				return fs.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && filepath.Ext(p) == ext {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	slices.Sort(files)
	return files, nil
}

// DirectoryConverter batches local files that are already on disk. Unlike
// the tar converter, the save path is the output folder itself.
type DirectoryConverter struct {
	options
	cfg       Config
	recursive bool
}

// NewDirectoryConverter validates cfg and returns a converter reading input
// directories, searching subdirectories when recursive is set.
func NewDirectoryConverter(cfg Config, recursive bool, opts ...Option) (*DirectoryConverter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &SetupError{Err: err}
	}
	return &DirectoryConverter{options: buildOptions(opts), cfg: cfg, recursive: recursive}, nil
}

func (c *DirectoryConverter) prepare(inputDir, ext string) ([]string, error) {
	if _, err := os.Stat(c.cfg.SavePath); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrOutputExists, c.cfg.SavePath)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("check output folder: %w", err)
	}
	files, err := ListFiles(inputDir, ext, c.recursive)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(c.cfg.SavePath, 0o755); err != nil {
		return nil, fmt.Errorf("create output folder: %w", err)
	}
	return files, nil
}

func (c *DirectoryConverter) finish(rotator *Rotator, inputDir string, parseFailures int, runErr error) (*Summary, error) {
	if err := rotator.Close(); err != nil {
		runErr = multierror.Append(runErr, err)
	}
	summary := Summary{
		Archive:       inputDir,
		OutputFolder:  c.cfg.SavePath,
		Processed:     rotator.Processed(),
		Containers:    len(rotator.Containers()),
		ParseFailures: parseFailures,
	}
	c.reporter.Done(summary)
	return &summary, runErr
}

// SingleToMulti copies every single-record file in inputDir into containers
// and writes the mapping table. Files are visited in lexical order.
func (c *DirectoryConverter) SingleToMulti(ctx context.Context, inputDir string) (*Summary, error) {
	ctx, logger := withLogAttrs(ctx, slog.String("input", inputDir))

	files, err := c.prepare(inputDir, recordstore.RecordExt)
	if err != nil {
		return nil, &SetupError{Input: inputDir, Err: err}
	}
	mapping, err := CreateMappingTable(filepath.Join(c.cfg.SavePath, MappingFileName))
	if err != nil {
		return nil, &SetupError{Input: inputDir, Err: err}
	}
	logger.Info("Batching single-record files", slog.Int("files", len(files)), slog.String("output", c.cfg.SavePath))

	rotator := NewRotator(c.store, c.cfg.SavePath, c.cfg, mapping)
	parseFailures := 0
	runErr := func() error {
		for _, file := range files {
			if err := ctx.Err(); err != nil {
				return err
			}
			rec, err := c.store.OpenRecord(file)
			if err != nil {
				if recordstore.IsParseError(err) {
					parseFailures++
					recordParseError(ctx)
					logger.Error("Unable to parse record", slog.String("file", file), slog.Any("error", err))
					continue
				}
				return err
			}
			if err := rotator.Add(ctx, rec, filepath.Base(file)); err != nil {
				return fmt.Errorf("copy %s: %w", file, err)
			}
			if n := rotator.Processed(); n%c.cfg.ProgressEvery == 0 {
				c.reporter.Progress(Progress{Archive: inputDir, Entry: file, Processed: n, TotalBytes: -1})
			}
		}
		return nil
	}()
	return c.finish(rotator, inputDir, parseFailures, runErr)
}

// RevertContainers copies every record of every container in inputDir into
// new containers, keeping only the raw groups. Containers are visited in
// reverse lexical order. No mapping table is written.
func (c *DirectoryConverter) RevertContainers(ctx context.Context, inputDir string) (*Summary, error) {
	ctx, logger := withLogAttrs(ctx, slog.String("input", inputDir))

	files, err := c.prepare(inputDir, recordstore.ContainerExt)
	if err != nil {
		return nil, &SetupError{Input: inputDir, Err: err}
	}
	slices.Reverse(files)
	logger.Info("Reverting containers", slog.Int("files", len(files)), slog.String("output", c.cfg.SavePath))

	cfg := c.cfg
	cfg.Revert = true
	rotator := NewRotator(c.store, cfg.SavePath, cfg, nil)
	parseFailures := 0
	runErr := func() error {
		for _, file := range files {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := c.revertOne(ctx, rotator, file)
			if recordstore.IsParseError(err) {
				parseFailures++
				recordParseError(ctx)
				logger.Error("Unable to read container", slog.String("file", file), slog.Any("error", err))
				continue
			}
			if err != nil {
				return err
			}
		}
		return nil
	}()
	return c.finish(rotator, inputDir, parseFailures, runErr)
}

func (c *DirectoryConverter) revertOne(ctx context.Context, rotator *Rotator, file string) error {
	it, err := c.store.OpenContainer(file)
	if err != nil {
		return err
	}
	defer func() { _ = it.Close() }()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := it.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := rotator.Add(ctx, rec, ""); err != nil {
			return fmt.Errorf("copy %s from %s: %w", rec.Name(), file, err)
		}
		if n := rotator.Processed(); n%c.cfg.ProgressEvery == 0 {
			c.reporter.Progress(Progress{Archive: file, Entry: rec.Name(), Processed: n, TotalBytes: -1})
		}
	}
}
