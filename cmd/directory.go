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
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/tarbatch/config"
	"github.com/cardinalhq/tarbatch/internal/convert"
)

// dirCommand builds the commands that batch files already on disk.
func dirCommand(use, short, long, servicename string, withRevert bool,
	run func(ctx context.Context, conv *convert.DirectoryConverter, input string) (*convert.Summary, error)) *cobra.Command {
	var (
		input     string
		savePath  string
		recursive bool
	)

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long:  long,
		RunE: func(c *cobra.Command, _ []string) error {
			return withTelemetry(servicename, func(ctx context.Context) error {
				cfg, err := config.Load(c.Flags())
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
				conv, err := convert.NewDirectoryConverter(cfg.Convert(savePath), recursive,
					convert.WithReporter(convert.NewLogReporter(nil)))
				if err != nil {
					return err
				}
				summary, err := run(ctx, conv, input)
				if err != nil {
					return err
				}
				if summary.ParseFailures > 0 {
					slog.Warn("Some inputs could not be parsed", slog.Int("count", summary.ParseFailures))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&input, "input_path", "i", "", "Folder to read from")
	if err := cmd.MarkFlagRequired("input_path"); err != nil {
		panic(fmt.Errorf("failed to mark input_path flag as required: %w", err))
	}
	cmd.Flags().StringVarP(&savePath, "save_path", "s", "", "Folder to write containers to; must not exist")
	if err := cmd.MarkFlagRequired("save_path"); err != nil {
		panic(fmt.Errorf("failed to mark save_path flag as required: %w", err))
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Search subfolders as well")
	addBatchFlags(cmd.Flags())
	if withRevert {
		cmd.Flags().Bool("revert", false, "Keep only the raw groups of each record")
	}
	return cmd
}

func init() {
	rootCmd.AddCommand(dirCommand(
		"single2multi",
		"Batch a folder of single-record files into multi-record containers",
		`Copy every single-record file in --input_path into containers of at most
--batch_size records and write filename_mapping.txt next to them.`,
		"tarbatch-single2multi",
		true,
		func(ctx context.Context, conv *convert.DirectoryConverter, input string) (*convert.Summary, error) {
			return conv.SingleToMulti(ctx, input)
		},
	))

	rootCmd.AddCommand(dirCommand(
		"revert",
		"Rewrite containers keeping only the raw groups of each record",
		`Copy every record of every container in --input_path into new containers,
dropping analysis and other derived groups. Containers are read in reverse
name order.`,
		"tarbatch-revert",
		false,
		func(ctx context.Context, conv *convert.DirectoryConverter, input string) (*convert.Summary, error) {
			return conv.RevertContainers(ctx, input)
		},
	))
}
