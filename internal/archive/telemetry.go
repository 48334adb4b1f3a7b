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

package archive

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	openErrors metric.Int64Counter
	bytesRead  metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/tarbatch/internal/archive")

	var err error
	openErrors, err = meter.Int64Counter(
		"tarbatch.archive.open_errors",
		metric.WithDescription("Number of archives that could not be opened"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create archive.open_errors counter: %w", err))
	}

	bytesRead, err = meter.Int64Counter(
		"tarbatch.archive.bytes_read",
		metric.WithUnit("By"),
		metric.WithDescription("Bytes read from archive sources before decompression"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create archive.bytes_read counter: %w", err))
	}
}

func recordOpenError(ctx context.Context, kind Kind) {
	openErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", kind.String()),
	))
}

func recordBytesRead(n int) {
	if n > 0 {
		bytesRead.Add(context.Background(), int64(n))
	}
}
