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
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"
)

// Progress is one progress observation for an input.
type Progress struct {
	Archive   string
	Entry     string
	Processed int
	// BytesRead and TotalBytes describe the source stream. TotalBytes is
	// -1 when the source did not report a size.
	BytesRead  int64
	TotalBytes int64
}

// Percent returns the byte-based completion, if the total is known.
func (p Progress) Percent() (float64, bool) {
	if p.TotalBytes <= 0 {
		return 0, false
	}
	pct := 100 * float64(p.BytesRead) / float64(p.TotalBytes)
	return min(pct, 100), true
}

// Summary describes one finished conversion.
type Summary struct {
	Archive       string
	OutputFolder  string
	Processed     int
	Containers    int
	ParseFailures int
	Skipped       int
}

// ProgressReporter observes a conversion. Implementations must not block
// for long: they run on the conversion's goroutine.
type ProgressReporter interface {
	Progress(p Progress)
	Done(s Summary)
}

// LogReporter renders progress through slog.
type LogReporter struct {
	logger *slog.Logger
}

var _ ProgressReporter = (*LogReporter)(nil)

// NewLogReporter returns a reporter logging to logger, or to slog.Default()
// when logger is nil.
func NewLogReporter(logger *slog.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

func (r *LogReporter) log() *slog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return slog.Default()
}

func (r *LogReporter) Progress(p Progress) {
	attrs := []any{
		slog.String("archive", p.Archive),
		slog.Int("processed", p.Processed),
		slog.String("entry", p.Entry),
	}
	if pct, ok := p.Percent(); ok {
		attrs = append(attrs,
			slog.String("read", humanize.Bytes(uint64(p.BytesRead))),
			slog.String("total", humanize.Bytes(uint64(p.TotalBytes))),
			slog.String("percent", fmt.Sprintf("%.1f%%", pct)),
		)
	}
	r.log().Info("Conversion progress", attrs...)
}

func (r *LogReporter) Done(s Summary) {
	r.log().Info("Conversion finished",
		slog.String("archive", s.Archive),
		slog.String("output", s.OutputFolder),
		slog.Int("records", s.Processed),
		slog.Int("containers", s.Containers),
		slog.Int("parseFailures", s.ParseFailures),
		slog.Int("skipped", s.Skipped),
	)
}

// discardReporter is used when the caller does not supply a reporter.
type discardReporter struct{}

func (discardReporter) Progress(Progress) {}
func (discardReporter) Done(Summary)      {}
