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
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/tarbatch/config"
	"github.com/cardinalhq/tarbatch/internal/convert"
)

func init() {
	var (
		inputs   []string
		savePath string
	)

	cmd := &cobra.Command{
		Use:   "tar2multi [archive...]",
		Short: "Convert tar archives of single-record files into multi-record containers",
		Long: `Stream each archive, extracting one record at a time, and write its records into
containers of at most --batch_size records under <save_path>/<archive name>/.
Archives whose output folder already exists are skipped as already converted.`,
		RunE: func(c *cobra.Command, args []string) error {
			inputs = append(inputs, args...)
			if len(inputs) == 0 {
				return errors.New("at least one input archive is required")
			}
			return withTelemetry("tarbatch-tar2multi", func(ctx context.Context) error {
				cfg, err := config.Load(c.Flags())
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
				return runTar2Multi(ctx, cfg, savePath, inputs)
			})
		},
	}

	cmd.Flags().StringSliceVarP(&inputs, "input_path", "i", nil, "Tar archive(s) to convert; local paths or ftp, http, www, s3, gs or az URLs")
	cmd.Flags().StringVarP(&savePath, "save_path", "s", "", "Folder to output containers to; the archive name is appended")
	if err := cmd.MarkFlagRequired("save_path"); err != nil {
		panic(fmt.Errorf("failed to mark save_path flag as required: %w", err))
	}
	addBatchFlags(cmd.Flags())
	addTarFlags(cmd.Flags())

	rootCmd.AddCommand(cmd)
}

func runTar2Multi(ctx context.Context, cfg *config.Config, savePath string, inputs []string) error {
	conv, err := convert.NewTarConverter(cfg.Convert(savePath),
		convert.WithSources(cfg.Sources()),
		convert.WithReporter(convert.NewLogReporter(nil)),
	)
	if err != nil {
		return err
	}

	slog.Info("Converting archives",
		slog.Int("archives", len(inputs)),
		slog.String("savePath", savePath),
		slog.Int("batchSize", cfg.BatchSize),
		slog.Bool("revert", cfg.Revert),
		slog.Int("workers", cfg.Workers))

	results, err := conv.ConvertAll(ctx, inputs)
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			slog.Error("Archive conversion failed", slog.String("archive", r.Input), slog.Any("error", r.Err))
		}
	}
	if err != nil {
		return fmt.Errorf("%d of %d archives failed: %w", failed, len(inputs), err)
	}
	return nil
}
