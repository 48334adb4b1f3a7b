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
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tarbatch",
	Short: "Batch single-record files into multi-record containers",
	Long: `Convert tar archives (local, HTTP, FTP or object store, optionally compressed) of
single-record files into multi-record containers, and batch or revert records
that are already on disk.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(debugCmd)
}

// Execute runs the command line. Cobra has already printed the error when
// one is returned, so only the exit status is left to set.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
