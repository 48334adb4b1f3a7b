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
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// MappingHeader is the first line of every mapping table.
const MappingHeader = "single_read_file\tmulti_read_file"

// MappingTable is the append-only single-record to container table.
type MappingTable struct {
	path   string
	f      *os.File
	bw     *bufio.Writer
	lines  int
	closed bool
}

// CreateMappingTable creates the table at path and writes its header.
func CreateMappingTable(path string) (*MappingTable, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create mapping table: %w", err)
	}
	t := &MappingTable{path: path, f: f, bw: bufio.NewWriter(f)}
	if _, err := t.bw.WriteString(MappingHeader + "\n"); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write mapping header: %w", err)
	}
	return t, nil
}

// Append records that source was written to container. Tabs and newlines in
// either name are replaced with spaces so every entry stays on one line; the
// row then no longer names the member exactly, so each rewrite is logged.
func (t *MappingTable) Append(ctx context.Context, source, container string) error {
	if t.closed {
		return fmt.Errorf("append to closed mapping table %s", t.path)
	}
	if _, err := fmt.Fprintf(t.bw, "%s\t%s\n", t.field(ctx, source), t.field(ctx, container)); err != nil {
		return fmt.Errorf("append mapping: %w", err)
	}
	t.lines++
	return nil
}

// Lines returns the number of entries written, excluding the header.
func (t *MappingTable) Lines() int {
	return t.lines
}

// Close flushes and closes the table. Calling Close more than once is a no-op.
func (t *MappingTable) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true

	var result *multierror.Error
	if err := t.bw.Flush(); err != nil {
		result = multierror.Append(result, fmt.Errorf("flush mapping table: %w", err))
	}
	if err := t.f.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close mapping table: %w", err))
	}
	return result.ErrorOrNil()
}

var fieldReplacer = strings.NewReplacer("\t", " ", "\n", " ", "\r", " ")

func (t *MappingTable) field(ctx context.Context, name string) string {
	clean := fieldReplacer.Replace(name)
	if clean != name {
		loggerFrom(ctx).Warn("Mapping entry name rewritten",
			slog.String("mapping", t.path),
			slog.String("name", name),
			slog.String("written", clean))
	}
	return clean
}
