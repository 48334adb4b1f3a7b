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

// Package convert consolidates single-record files into multi-record
// containers. Every tool in this repository drives the same Rotator; the tar
// converter adds streaming, staging and per-record failure isolation on top.
package convert

import (
	"errors"
	"fmt"
	"strings"
)

const (
	DefaultFilenameBase  = "batch"
	DefaultBatchSize     = 4000
	DefaultWorkers       = 1
	DefaultProgressEvery = 100

	// MappingFileName is the provenance table written next to the containers.
	MappingFileName = "filename_mapping.txt"
)

var (
	// ErrInvalidBatchSize rejects batch sizes below one.
	ErrInvalidBatchSize = errors.New("batch size must be greater than zero")
	// ErrOutputExists means the output folder is already there. For the tar
	// converter this reads as "already converted".
	ErrOutputExists = errors.New("output folder already exists")
)

// Config is the validated input of a conversion. An empty TmpDir stages
// under os.TempDir().
type Config struct {
	SavePath      string
	FilenameBase  string
	BatchSize     int
	TmpDir        string
	Revert        bool
	Workers       int
	ProgressEvery int
}

// DefaultConfig returns a Config with every optional field at its default.
func DefaultConfig() Config {
	return Config{
		FilenameBase:  DefaultFilenameBase,
		BatchSize:     DefaultBatchSize,
		Workers:       DefaultWorkers,
		ProgressEvery: DefaultProgressEvery,
	}
}

// Validate checks the configuration before any archive is touched, so that
// nothing can fail on it halfway through a run.
func (c Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w (got %d)", ErrInvalidBatchSize, c.BatchSize)
	}
	if c.SavePath == "" {
		return errors.New("save path is required")
	}
	if c.FilenameBase == "" {
		return errors.New("filename base is required")
	}
	if strings.ContainsAny(c.FilenameBase, `/\`) {
		return fmt.Errorf("filename base %q must not contain path separators", c.FilenameBase)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be greater than zero (got %d)", c.Workers)
	}
	if c.ProgressEvery <= 0 {
		return fmt.Errorf("progress interval must be greater than zero (got %d)", c.ProgressEvery)
	}
	return nil
}

// SetupError aborts one archive's conversion before any output is written.
type SetupError struct {
	Input string
	Err   error
}

func (e *SetupError) Error() string {
	if e.Input == "" {
		return fmt.Sprintf("setup: %v", e.Err)
	}
	return fmt.Sprintf("setup %s: %v", e.Input, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// IsSetupError reports whether err is, or wraps, a *SetupError.
func IsSetupError(err error) bool {
	var serr *SetupError
	return errors.As(err, &serr)
}
