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

package debugging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPprofPort(t *testing.T) {
	tests := []struct {
		value string
		port  int
		ok    bool
	}{
		{"", 0, false},
		{"0", 0, false},
		{"off", 0, false},
		{"false", 0, false},
		{"bogus", 0, false},
		{"70000", 0, false},
		{"-1", 0, false},
		{"6061", 6061, true},
	}
	for _, tt := range tests {
		port, ok := pprofPort(tt.value)
		assert.Equal(t, tt.ok, ok, "PPROF_PORT=%q", tt.value)
		assert.Equal(t, tt.port, port, "PPROF_PORT=%q", tt.value)
	}
}

func TestRunPprofDisabled(t *testing.T) {
	t.Setenv("PPROF_PORT", "off")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	assert.NotPanics(t, func() { RunPprof(ctx) })
}
