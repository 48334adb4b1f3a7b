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
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/cardinalhq/tarbatch/internal/recordstore"
)

func init() {
	cmd := &cobra.Command{
		Use:   "cat <file>...",
		Short: "List the records held in containers or single-record files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			for _, path := range args {
				if err := catFile(c.OutOrStdout(), recordstore.FileStore{}, path); err != nil {
					return err
				}
			}
			return nil
		},
	}

	rootCmd.AddCommand(cmd)
}

// catFile writes one line per record: name, groups and encoded size.
func catFile(w io.Writer, store recordstore.Store, path string) error {
	if filepath.Ext(path) == recordstore.RecordExt {
		rec, err := store.OpenRecord(path)
		if err != nil {
			return err
		}
		return writeRecordLine(w, path, rec)
	}

	it, err := store.OpenContainer(path)
	if err != nil {
		return err
	}
	defer func() { _ = it.Close() }()
	for {
		rec, err := it.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := writeRecordLine(w, path, rec); err != nil {
			return err
		}
	}
}

func writeRecordLine(w io.Writer, path string, rec *recordstore.Record) error {
	size := 0
	for _, raw := range rec.Groups {
		size += len(raw)
	}
	_, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
		filepath.Base(path), rec.Name(), strings.Join(rec.GroupNames(), ","), humanize.Bytes(uint64(size)))
	return err
}
