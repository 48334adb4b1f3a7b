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

// Package debugging serves pprof for long conversions when PPROF_PORT is set.
package debugging

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"strconv"
	"time"
)

// RunPprof serves the default mux, which net/http/pprof registers on, on
// localhost:PPROF_PORT until ctx is done. Nothing is started when the
// variable is unset or disabled, and a port that cannot be bound is logged
// and ignored so that profiling never blocks a conversion.
func RunPprof(ctx context.Context) {
	port, ok := pprofPort(os.Getenv("PPROF_PORT"))
	if !ok {
		return
	}

	addr := net.JoinHostPort("localhost", strconv.Itoa(port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		slog.Warn("pprof disabled, unable to listen", slog.String("address", addr), slog.Any("error", err))
		return
	}
	server := &http.Server{ReadHeaderTimeout: 10 * time.Second}

	slog.Info("Serving pprof", slog.String("address", ln.Addr().String()))
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("pprof server failed", slog.Any("error", err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
}

func pprofPort(value string) (int, bool) {
	switch value {
	case "", "0", "false", "off":
		return 0, false
	}
	port, err := strconv.Atoi(value)
	if err != nil || port <= 0 || port > 65535 {
		slog.Warn("Invalid PPROF_PORT value, pprof disabled", slog.String("value", value))
		return 0, false
	}
	return port, true
}
