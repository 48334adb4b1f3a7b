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

package recordstore

import (
	"fmt"
	"math"
)

// RawGroup is the layout of the "Raw" group.
type RawGroup struct {
	ReadID     string  `cbor:"read_id"`
	ReadNumber int64   `cbor:"read_number"`
	StartTime  int64   `cbor:"start_time"`
	Duration   int64   `cbor:"duration"`
	Signal     []int16 `cbor:"Signal"`
}

// ChannelGroup is the layout of the "channel_id" group.
type ChannelGroup struct {
	ChannelNumber string  `cbor:"channel_number"`
	Digitisation  float64 `cbor:"digitisation"`
	Offset        float64 `cbor:"offset"`
	Range         float64 `cbor:"range"`
	SamplingRate  float64 `cbor:"sampling_rate"`
}

// SyntheticOptions controls NewSyntheticRecord.
type SyntheticOptions struct {
	ReadNumber int
	Samples    int
	// Analyses adds a basecall analysis group, the kind of content a revert drops.
	Analyses bool
}

// NewSyntheticRecord builds a plausible record for smoke tests and fixtures.
func NewSyntheticRecord(readID string, opts SyntheticOptions) (*Record, error) {
	if opts.Samples <= 0 {
		opts.Samples = 64
	}
	signal := make([]int16, opts.Samples)
	for i := range signal {
		signal[i] = int16(500 + 120*math.Sin(float64(i+opts.ReadNumber)/7))
	}

	rec := &Record{ReadID: readID}
	groups := []struct {
		name  string
		value any
	}{
		{"Raw", RawGroup{
			ReadID:     readID,
			ReadNumber: int64(opts.ReadNumber),
			StartTime:  int64(opts.ReadNumber) * 4000,
			Duration:   int64(opts.Samples),
			Signal:     signal,
		}},
		{"channel_id", ChannelGroup{
			ChannelNumber: fmt.Sprintf("%d", opts.ReadNumber%512+1),
			Digitisation:  8192,
			Offset:        6,
			Range:         1467.61,
			SamplingRate:  4000,
		}},
		{"context_tags", map[string]string{
			"experiment_kit":   "genomic_dna",
			"sequencing_kit":   "sqk-lsk109",
			"sample_frequency": "4000",
			"filename":         "synthetic",
		}},
		{"tracking_id", map[string]string{
			"asic_id":   "0004A30B00F25467",
			"device_id": "MN00000",
			"run_id":    "0000000000000000000000000000000000000000",
		}},
	}
	if opts.Analyses {
		groups = append(groups, struct {
			name  string
			value any
		}{"Analyses", map[string]any{
			"Basecall_1D_000": map[string]any{
				"BaseCalled_template": map[string]any{
					"Fastq": fmt.Sprintf("@%s\nACGT\n+\n####\n", readID),
				},
			},
		}})
	}
	for _, g := range groups {
		if err := rec.SetGroup(g.name, g.value); err != nil {
			return nil, err
		}
	}
	return rec, nil
}
