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

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cardinalhq/oteltools/pkg/telemetry"
	slogmulti "github.com/samber/slog-multi"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/instrumentation/host"
	iruntime "go.opentelemetry.io/contrib/instrumentation/runtime"

	"github.com/cardinalhq/tarbatch/internal/debugging"
	"github.com/cardinalhq/tarbatch/internal/idgen"
)

var instanceID = idgen.Next()

func debugLogging() bool {
	return os.Getenv("DEBUG") != "" || os.Getenv("TARBATCH_DEBUG") != ""
}

func otlpEnabled() bool {
	return os.Getenv("OTEL_SERVICE_NAME") != "" && os.Getenv("ENABLE_OTLP_TELEMETRY") == "true"
}

// newLogger writes text logs to stdout and, when otlp is set, also to the
// OTLP log bridge.
func newLogger(servicename string, otlp bool) *slog.Logger {
	level := slog.LevelInfo
	if debugLogging() {
		level = slog.LevelDebug
	}
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	if otlp {
		handler = slogmulti.Fanout(handler, otelslog.NewHandler(servicename))
	}
	return slog.New(handler).With(
		slog.String("service", servicename),
		slog.Int64("instanceID", instanceID),
	)
}

// startTelemetry installs the default logger and, when enabled, the OTel
// SDK. The returned context is cancelled on SIGINT or SIGTERM so that an
// interrupted conversion still closes its containers and mapping table.
func startTelemetry(servicename string) (context.Context, func(), error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	otlp := otlpEnabled()
	slog.SetDefault(newLogger(servicename, otlp))
	if !otlp {
		return ctx, stop, nil
	}

	otelShutdown, err := telemetry.SetupOTelSDK(ctx)
	if err != nil {
		stop()
		return nil, nil, fmt.Errorf("failed to setup OpenTelemetry SDK: %w", err)
	}
	if err := iruntime.Start(iruntime.WithMinimumReadMemStatsInterval(10 * time.Second)); err != nil {
		slog.Warn("failed to start runtime metrics", slog.Any("error", err))
	}
	if err := host.Start(); err != nil {
		slog.Warn("failed to start host metrics", slog.Any("error", err))
	}
	slog.Info("OpenTelemetry exporting enabled")

	return ctx, func() {
		defer stop()
		// Flush with a fresh context, the run context may already be cancelled.
		flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelShutdown(flushCtx); err != nil {
			slog.Error("Error shutting down telemetry", slog.Any("error", err))
		}
	}, nil
}

// withTelemetry runs fn with the process context and logging set up for
// servicename, shutting telemetry down afterwards.
func withTelemetry(servicename string, fn func(ctx context.Context) error) error {
	ctx, shutdown, err := startTelemetry(servicename)
	if err != nil {
		return err
	}
	defer shutdown()

	debugging.RunPprof(ctx)
	return fn(ctx)
}
