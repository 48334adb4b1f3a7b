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

package cloudstorage

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	openErrors metric.Int64Counter
	openCount  metric.Int64Counter
	openBytes  metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/tarbatch/internal/cloudstorage")

	var err error
	openErrors, err = meter.Int64Counter(
		"tarbatch.objectstore.open.errors",
		metric.WithDescription("Number of object store open errors"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create open.errors counter: %w", err))
	}

	openCount, err = meter.Int64Counter(
		"tarbatch.objectstore.open.count",
		metric.WithDescription("Number of object store streams opened"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create open.count counter: %w", err))
	}

	openBytes, err = meter.Int64Counter(
		"tarbatch.objectstore.open.bytes",
		metric.WithUnit("By"),
		metric.WithDescription("Reported size of object store streams opened"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create open.bytes counter: %w", err))
	}
}

func recordOpenError(ctx context.Context, provider, bucket, reason string) {
	openErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("bucket", bucket),
		attribute.String("reason", reason),
	))
}

func recordOpen(ctx context.Context, provider, bucket string, size int64) {
	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("bucket", bucket),
	)
	openCount.Add(ctx, 1, attrs)
	if size > 0 {
		openBytes.Add(ctx, size, attrs)
	}
}
