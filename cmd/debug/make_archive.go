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
	"bytes"
	"fmt"
	"os"
	"slices"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cardinalhq/tarbatch/internal/archive"
	"github.com/cardinalhq/tarbatch/internal/recordstore"
)

// MakeArchiveOptions describes a synthetic archive.
type MakeArchiveOptions struct {
	Records int
	Samples int
	// Corrupt lists zero-based record positions written as garbage.
	Corrupt []int
	// Junk adds a member without the record extension.
	Junk     bool
	Analyses bool
}

func GetMakeArchiveCmd() *cobra.Command {
	var opts MakeArchiveOptions

	cmd := &cobra.Command{
		Use:   "make-archive <output>",
		Short: "Write a synthetic tar archive of single-record files",
		Long: `Write a tar archive of synthetic single-record files for smoke testing. The
compression follows the output name (.tar, .tgz, .tar.gz, .tar.zst, .tar.lz4).`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			if err := MakeArchive(args[0], opts); err != nil {
				return err
			}
			fmt.Fprintf(c.OutOrStdout(), "wrote %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.Records, "records", 10, "Number of record members")
	cmd.Flags().IntVar(&opts.Samples, "samples", 4000, "Signal samples per record")
	cmd.Flags().IntSliceVar(&opts.Corrupt, "corrupt", nil, "Zero-based positions of members to corrupt")
	cmd.Flags().BoolVar(&opts.Junk, "junk", true, "Add a non-record member")
	cmd.Flags().BoolVar(&opts.Analyses, "analyses", true, "Add an analysis group to every record")

	return cmd
}

// MakeArchive writes a synthetic archive to output. It refuses to overwrite
// an existing file.
func MakeArchive(output string, opts MakeArchiveOptions) error {
	_, compression, err := archive.ParseName(output)
	if err != nil {
		return err
	}

	members := []archive.Member{{Name: "reads/", Dir: true}}
	if opts.Junk {
		members = append(members, archive.Member{
			Name: "reads/sequencing_summary.txt",
			Data: []byte("filename\tread_id\n"),
		})
	}
	for i := range opts.Records {
		name := fmt.Sprintf("reads/read_%06d%s", i, recordstore.RecordExt)
		if slices.Contains(opts.Corrupt, i) {
			members = append(members, archive.Member{Name: name, Data: []byte("corrupt record")})
			continue
		}
		rec, err := recordstore.NewSyntheticRecord(uuid.NewString(), recordstore.SyntheticOptions{
			ReadNumber: i,
			Samples:    opts.Samples,
			Analyses:   opts.Analyses,
		})
		if err != nil {
			return err
		}
		data, err := recordstore.MarshalRecordFile(rec)
		if err != nil {
			return err
		}
		members = append(members, archive.Member{Name: name, Data: data})
	}

	var buf bytes.Buffer
	if err := archive.WriteArchive(&buf, compression, members); err != nil {
		return err
	}
	f, err := os.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", output, err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", output, err)
	}
	return f.Close()
}
