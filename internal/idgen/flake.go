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

// Package idgen hands out roughly time-ordered ids for processes and runs.
package idgen

import (
	"errors"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/sony/sonyflake"
)

var epoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

var defaultGenerator = mustNew()

// Generator wraps a sonyflake instance with a random machine id.
type Generator struct {
	sf *sonyflake.Sonyflake
}

func mustNew() *Generator {
	g, err := New()
	if err != nil {
		panic(err)
	}
	return g
}

// New returns a Generator. The sonyflake default derives the machine id
// from a private IPv4 address, which laptops and CI runners often lack, so
// a random one is used instead.
func New() (*Generator, error) {
	sf, err := sonyflake.New(sonyflake.Settings{
		StartTime: epoch,
		MachineID: func() (uint16, error) {
			return uint16(rand.IntN(1 << 16)), nil
		},
	})
	if err != nil {
		return nil, err
	}
	if sf == nil {
		return nil, errors.New("sonyflake rejected its settings")
	}
	return &Generator{sf: sf}, nil
}

// Int64 returns a positive id. If the clock has run past the sonyflake
// range a random id is returned.
func (g *Generator) Int64() int64 {
	v, err := g.sf.NextID()
	if err != nil {
		return rand.Int64()
	}
	return int64(v)
}

// RunID is Int64 in base 36, short enough for a log attribute.
func (g *Generator) RunID() string {
	return strconv.FormatInt(g.Int64(), 36)
}

// Next returns an id from the process-wide generator.
func Next() int64 {
	return defaultGenerator.Int64()
}

// RunID returns a run id from the process-wide generator.
func RunID() string {
	return defaultGenerator.RunID()
}
