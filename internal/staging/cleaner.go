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
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CleanStale removes scratch directories under root that an earlier,
// interrupted run left behind. Only directories carrying DirPrefix and last
// modified before olderThan ago are touched. It returns how many were removed.
func CleanStale(root string, olderThan time.Duration) int {
	entries, err := os.ReadDir(root)
	if err != nil {
		slog.Info("Failed to read staging root (ignoring)", slog.String("path", root), slog.Any("error", err))
		return 0
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), DirPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(root, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			slog.Warn("Failed to remove stale staging dir", slog.String("path", path), slog.Any("error", err))
			continue
		}
		removed++
	}
	if removed > 0 {
		slog.Info("Removed stale staging dirs", slog.String("root", root), slog.Int("count", removed))
	}
	return removed
}
