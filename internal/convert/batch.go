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
	"context"
	"errors"
	"log/slog"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// Result is the outcome of one archive in a ConvertAll call.
type Result struct {
	Input   string
	Summary *Summary
	Err     error
	// AlreadyConverted is set when the output folder existed and the archive
	// was left alone.
	AlreadyConverted bool
}

// ConvertAll converts inputs with at most Config.Workers archives in flight.
// A failing archive does not stop the others. Results are returned in input
// order; the error combines every failure except already-converted archives.
func (c *TarConverter) ConvertAll(ctx context.Context, inputs []string) ([]Result, error) {
	logger := loggerFrom(ctx)
	results := make([]Result, len(inputs))

	var g errgroup.Group
	g.SetLimit(c.cfg.Workers)
	for i, input := range inputs {
		if err := ctx.Err(); err != nil {
			results[i] = Result{Input: input, Err: err}
			continue
		}
		g.Go(func() error {
			summary, err := c.Convert(ctx, input)
			results[i] = Result{Input: input, Summary: summary, Err: err}
			if errors.Is(err, ErrOutputExists) {
				results[i].AlreadyConverted = true
				results[i].Err = nil
				logger.Info("Output folder exists, archive already converted", slog.String("archive", input))
			}
			return nil
		})
	}
	_ = g.Wait()

	var result *multierror.Error
	for _, r := range results {
		if r.Err != nil {
			result = multierror.Append(result, r.Err)
		}
	}
	return results, result.ErrorOrNil()
}
