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

package debug

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/cardinalhq/tarbatch/config"
	"github.com/cardinalhq/tarbatch/internal/archive"
)

func GetListArchiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls-archive <input>",
		Short: "List the members of an archive from any supported source",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := config.Load(nil)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return listArchive(c.Context(), c.OutOrStdout(), cfg.Sources(), args[0])
		},
	}
	return cmd
}

func listArchive(ctx context.Context, w io.Writer, sources *archive.Sources, input string) error {
	h, err := archive.Open(ctx, input, sources)
	if err != nil {
		return err
	}
	defer func() { _ = h.Close() }()

	members := 0
	for {
		entry, err := h.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		members++
		fmt.Fprintf(w, "%s\t%s\n", entry.Name, humanize.Bytes(uint64(entry.Size)))
	}

	read, total := h.Progress()
	totalStr := "unknown"
	if total >= 0 {
		totalStr = humanize.Bytes(uint64(total))
	}
	fmt.Fprintf(w, "%d members, %s %s read of %s\n",
		members, h.Compression(), humanize.Bytes(uint64(read)), totalStr)
	return nil
}
