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
	"github.com/spf13/pflag"

	"github.com/cardinalhq/tarbatch/internal/convert"
)

// addBatchFlags registers the flags every batching command shares.
func addBatchFlags(flags *pflag.FlagSet) {
	flags.StringP("filename_base", "f", convert.DefaultFilenameBase, "Root of output filename, 'batch' -> 'batch_0.mrec'")
	flags.IntP("batch_size", "n", convert.DefaultBatchSize, "Number of records per container")
	flags.Int("progress-every", convert.DefaultProgressEvery, "Report progress every this many records")
}

func addTarFlags(flags *pflag.FlagSet) {
	flags.StringP("tmp", "t", "", "Scratch directory for extracted records, ideally on a RAM disk (default system temp dir)")
	flags.IntP("workers", "w", convert.DefaultWorkers, "Number of archives converted concurrently")
	flags.Bool("revert", false, "Keep only the raw groups of each record")
}
