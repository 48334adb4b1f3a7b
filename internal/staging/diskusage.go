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

package staging

import (
	"golang.org/x/sys/unix"
)

// Usage holds the space statistics of the filesystem behind a scratch
// directory.
type Usage struct {
	TotalBytes uint64
	FreeBytes  uint64 // available to non-root users
	FreeInodes uint64
}

// DiskUsage returns the usage of the filesystem that contains path.
func DiskUsage(path string) (Usage, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return Usage{}, err
	}
	return Usage{
		TotalBytes: st.Blocks * uint64(st.Bsize),
		FreeBytes:  st.Bavail * uint64(st.Bsize),
		FreeInodes: st.Ffree,
	}, nil
}

// Usage reports the usage of the filesystem holding the scratch directory.
func (s *Stager) Usage() (Usage, error) {
	return DiskUsage(s.dir)
}
