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
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/jlaffaye/ftp"

	"github.com/cardinalhq/tarbatch/internal/cloudstorage"
)

// Sources opens the byte stream behind a Location.
type Sources struct {
	// HTTPClient serves http, https and www inputs.
	HTTPClient *http.Client

	// FTP credentials used when the URL carries none. Anonymous by default.
	FTPUser     string
	FTPPassword string
	FTPTimeout  time.Duration

	// Objects serves s3://, gs:// and az:// inputs. Nil disables them.
	Objects cloudstorage.ClientProvider
}

// NewSources returns Sources with a pooled HTTP client whose response header
// wait is bounded by headerTimeout. The body read itself is not bounded so
// that large archives can stream for as long as they need.
func NewSources(headerTimeout time.Duration, objects cloudstorage.ClientProvider) *Sources {
	transport := cleanhttp.DefaultPooledTransport()
	transport.ResponseHeaderTimeout = headerTimeout
	return &Sources{
		HTTPClient: &http.Client{Transport: transport},
		FTPTimeout: headerTimeout,
		Objects:    objects,
	}
}

// open returns the raw archive stream and its size, or -1 when unknown.
func (s *Sources) open(ctx context.Context, loc Location) (io.ReadCloser, int64, error) {
	switch loc.Kind {
	case KindLocal:
		return openLocal(loc.Path)
	case KindHTTP:
		return s.openHTTP(ctx, loc)
	case KindFTP:
		return s.openFTP(ctx, loc)
	case KindS3, KindGCS, KindAzure:
		return s.openObject(ctx, loc)
	default:
		return nil, 0, fmt.Errorf("unsupported source kind %s", loc.Kind)
	}
}

func openLocal(path string) (io.ReadCloser, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, 0, fmt.Errorf("%s is a directory", path)
	}
	return f, info.Size(), nil
}

func (s *Sources) openHTTP(ctx context.Context, loc Location) (io.ReadCloser, int64, error) {
	client := s.HTTPClient
	if client == nil {
		client = cleanhttp.DefaultPooledClient()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc.URL.String(), nil)
	if err != nil {
		return nil, 0, err
	}
	// Ask for the bytes as stored; a transparently decoded body would
	// break gzip detection by suffix.
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, 0, fmt.Errorf("GET %s: %s", loc.URL.Redacted(), resp.Status)
	}
	return resp.Body, resp.ContentLength, nil
}

// ftpStream ties the data connection of a RETR to the run context and
// closes the transfer and then the control connection.
type ftpStream struct {
	*ftp.Response
	conn *ftp.ServerConn
	ctx  context.Context
	stop func() bool
}

func newFTPStream(ctx context.Context, conn *ftp.ServerConn, resp *ftp.Response) *ftpStream {
	s := &ftpStream{Response: resp, conn: conn, ctx: ctx}
	// An expired deadline unblocks a Read stalled on the data connection.
	s.stop = context.AfterFunc(ctx, func() {
		_ = resp.SetDeadline(time.Now())
	})
	return s
}

func (s *ftpStream) Read(p []byte) (int, error) {
	n, err := s.Response.Read(p)
	if err != nil && s.ctx.Err() != nil {
		return n, s.ctx.Err()
	}
	return n, err
}

func (s *ftpStream) Close() error {
	s.stop()
	return errors.Join(s.Response.Close(), s.conn.Quit())
}

func (s *Sources) openFTP(ctx context.Context, loc Location) (io.ReadCloser, int64, error) {
	addr := loc.URL.Host
	if loc.URL.Port() == "" {
		addr = net.JoinHostPort(loc.URL.Hostname(), "21")
	}
	opts := []ftp.DialOption{ftp.DialWithContext(ctx)}
	if s.FTPTimeout > 0 {
		// The shut timeout bounds the wait for the transfer status when a
		// stream is closed early, e.g. after cancellation.
		opts = append(opts, ftp.DialWithTimeout(s.FTPTimeout), ftp.DialWithShutTimeout(s.FTPTimeout))
	}
	conn, err := ftp.Dial(addr, opts...)
	if err != nil {
		return nil, 0, fmt.Errorf("dial %s: %w", addr, err)
	}

	user, password := "anonymous", "anonymous"
	if s.FTPUser != "" {
		user, password = s.FTPUser, s.FTPPassword
	}
	if loc.URL.User != nil {
		user = loc.URL.User.Username()
		password, _ = loc.URL.User.Password()
	}
	if err := conn.Login(user, password); err != nil {
		_ = conn.Quit()
		return nil, 0, fmt.Errorf("login to %s: %w", addr, err)
	}

	size, err := conn.FileSize(loc.URL.Path)
	if err != nil {
		// SIZE is optional in the protocol; progress falls back to counts.
		size = -1
	}
	resp, err := conn.Retr(loc.URL.Path)
	if err != nil {
		_ = conn.Quit()
		return nil, 0, fmt.Errorf("retrieve %s: %w", loc.URL.Path, err)
	}
	return newFTPStream(ctx, conn, resp), size, nil
}

var providerForKind = map[Kind]string{
	KindS3:    cloudstorage.ProviderAWS,
	KindGCS:   cloudstorage.ProviderGCP,
	KindAzure: cloudstorage.ProviderAzure,
}

func (s *Sources) openObject(ctx context.Context, loc Location) (io.ReadCloser, int64, error) {
	if s.Objects == nil {
		return nil, 0, fmt.Errorf("%s sources are not configured", loc.Kind)
	}
	client, err := s.Objects.NewClient(ctx, providerForKind[loc.Kind])
	if err != nil {
		return nil, 0, err
	}
	return client.OpenObject(ctx, loc.Bucket, loc.Key)
}
