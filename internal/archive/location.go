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

// Package archive opens tar archives from local disk or remote sources and
// walks their members as a forward-only stream.
package archive

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// Compression is the compression applied on top of the tar stream.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionZstd
	CompressionLZ4
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionGzip:
		return "gzip"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("Compression(%d)", int(c))
	}
}

// ErrUnsupportedArchive is returned for inputs whose name does not carry a
// recognized tar archive suffix.
var ErrUnsupportedArchive = errors.New("unsupported archive extension")

// Numbered rotations such as "reads.tar.gz.1" are accepted for the
// compressed forms.
var archiveSuffix = regexp.MustCompile(`(?i)^(.+?)(\.tar|\.tgz|\.tar\.gz(?:\.\d+)?|\.tar\.zst(?:\.\d+)?|\.tar\.lz4)$`)

// ParseName returns the archive's base name with its archive suffix removed,
// and the compression implied by that suffix.
func ParseName(input string) (string, Compression, error) {
	name := baseName(input)
	m := archiveSuffix.FindStringSubmatch(name)
	if m == nil {
		return "", CompressionNone, fmt.Errorf("%w: %s", ErrUnsupportedArchive, name)
	}
	suffix := strings.ToLower(m[2])
	switch {
	case suffix == ".tar":
		return m[1], CompressionNone, nil
	case suffix == ".tgz", strings.HasPrefix(suffix, ".tar.gz"):
		return m[1], CompressionGzip, nil
	case strings.HasPrefix(suffix, ".tar.zst"):
		return m[1], CompressionZstd, nil
	default:
		return m[1], CompressionLZ4, nil
	}
}

// baseName returns the last path element of a local path or URL, ignoring
// any query string.
func baseName(input string) string {
	if loc, err := ParseLocation(input); err == nil && loc.Kind != KindLocal {
		if loc.URL != nil {
			return path.Base(loc.URL.Path)
		}
		return path.Base(loc.Key)
	}
	return path.Base(strings.ReplaceAll(input, "\\", "/"))
}

// Kind says where an archive's bytes come from.
type Kind int

const (
	KindLocal Kind = iota
	KindHTTP
	KindFTP
	KindS3
	KindGCS
	KindAzure
)

func (k Kind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindHTTP:
		return "http"
	case KindFTP:
		return "ftp"
	case KindS3:
		return "s3"
	case KindGCS:
		return "gcs"
	case KindAzure:
		return "azure"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Remote reports whether the bytes are fetched over the network.
func (k Kind) Remote() bool {
	return k != KindLocal
}

// Location is a parsed archive input.
type Location struct {
	Kind Kind
	// Path is set for local inputs.
	Path string
	// URL is set for HTTP and FTP inputs.
	URL *url.URL
	// Bucket and Key are set for object store inputs. For Azure the bucket
	// is the container name.
	Bucket string
	Key    string
}

var objectSchemes = map[string]Kind{
	"s3://": KindS3,
	"gs://": KindGCS,
	"az://": KindAzure,
}

// ParseLocation classifies an input by its prefix. Inputs starting with
// "ftp", "http" or "www" are network streams; a missing scheme is filled in
// ("www.example.org/x.tar" becomes "http://www.example.org/x.tar"). The
// s3://, gs:// and az:// schemes address object stores. Anything else is a
// local path.
func ParseLocation(input string) (Location, error) {
	for scheme, kind := range objectSchemes {
		if !strings.HasPrefix(input, scheme) {
			continue
		}
		bucket, key, ok := strings.Cut(strings.TrimPrefix(input, scheme), "/")
		if !ok || bucket == "" || key == "" {
			return Location{}, fmt.Errorf("invalid %s location %q: want %sbucket/key", kind, input, scheme)
		}
		return Location{Kind: kind, Bucket: bucket, Key: key}, nil
	}

	var kind Kind
	raw := input
	switch {
	case strings.HasPrefix(input, "ftp"):
		kind = KindFTP
		if !strings.Contains(input, "://") {
			raw = "ftp://" + input
		}
	case strings.HasPrefix(input, "http"):
		kind = KindHTTP
	case strings.HasPrefix(input, "www"):
		kind = KindHTTP
		raw = "http://" + input
	default:
		return Location{Kind: KindLocal, Path: input}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("invalid URL %q: %w", input, err)
	}
	if u.Host == "" {
		return Location{}, fmt.Errorf("invalid URL %q: missing host", input)
	}
	return Location{Kind: kind, URL: u}, nil
}
