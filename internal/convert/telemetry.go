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
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	recordsConverted  metric.Int64Counter
	recordParseErrors metric.Int64Counter
	containersOpened  metric.Int64Counter
	archivesFinished  metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/tarbatch/internal/convert")

	var err error
	recordsConverted, err = meter.Int64Counter(
		"tarbatch.convert.records",
		metric.WithDescription("Number of records copied into containers"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create convert.records counter: %w", err))
	}

	recordParseErrors, err = meter.Int64Counter(
		"tarbatch.convert.parse_errors",
		metric.WithDescription("Number of staged records that could not be parsed"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create convert.parse_errors counter: %w", err))
	}

	containersOpened, err = meter.Int64Counter(
		"tarbatch.convert.containers",
		metric.WithDescription("Number of containers created"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create convert.containers counter: %w", err))
	}

	archivesFinished, err = meter.Int64Counter(
		"tarbatch.convert.archives",
		metric.WithDescription("Number of archive conversions by outcome"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create convert.archives counter: %w", err))
	}
}

func recordConverted(ctx context.Context) {
	recordsConverted.Add(ctx, 1)
}

func recordParseError(ctx context.Context) {
	recordParseErrors.Add(ctx, 1)
}

func recordContainerOpened(ctx context.Context) {
	containersOpened.Add(ctx, 1)
}

func recordArchiveFinished(ctx context.Context, outcome string) {
	archivesFinished.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}
