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

// Package awsclient builds S3 clients for archive sources, including
// Google Cloud Storage through its S3 interoperability endpoint.
package awsclient

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Target names an S3-compatible endpoint and the identity used against it.
// It is comparable, and the Manager keeps one client per distinct Target.
type Target struct {
	Region    string
	RoleARN   string
	Endpoint  string
	PathStyle bool
	// GCS applies the signing and checksum rules the Google Cloud Storage
	// interoperability endpoint expects.
	GCS bool
}

// S3Client pairs an S3 client with the tracer used for its calls.
type S3Client struct {
	Client *s3.Client
	Tracer trace.Tracer
}

// Manager loads the default AWS configuration once and hands out cached
// clients. It is safe for concurrent use by archive workers.
type Manager struct {
	base        aws.Config
	sts         *sts.Client
	sessionName string
	tracer      trace.Tracer

	mu      sync.Mutex
	clients map[Target]*S3Client
}

// NewManager loads the shared AWS config. sessionName labels the sessions
// opened when a Target assumes a role.
func NewManager(ctx context.Context, sessionName string) (*Manager, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	otelaws.AppendMiddlewares(&cfg.APIOptions)
	return newManager(cfg, sts.NewFromConfig(cfg), sessionName), nil
}

func newManager(cfg aws.Config, stsClient *sts.Client, sessionName string) *Manager {
	return &Manager{
		base:        cfg,
		sts:         stsClient,
		sessionName: sessionName,
		tracer:      otel.Tracer("github.com/cardinalhq/tarbatch/internal/awsclient"),
		clients:     make(map[Target]*S3Client),
	}
}

// Client returns the client for t, building it on first use. An empty
// Region falls back to the region of the loaded config.
func (m *Manager) Client(t Target) *S3Client {
	if t.Region == "" {
		t.Region = m.base.Region
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.clients[t]; ok {
		return c
	}
	c := &S3Client{Client: s3.NewFromConfig(m.configFor(t), s3Options(t)...), Tracer: m.tracer}
	m.clients[t] = c
	return c
}

func (m *Manager) configFor(t Target) aws.Config {
	cfg := m.base.Copy()
	cfg.Region = t.Region
	if t.RoleARN != "" {
		cfg.Credentials = aws.NewCredentialsCache(
			stscreds.NewAssumeRoleProvider(m.sts, t.RoleARN, func(o *stscreds.AssumeRoleOptions) {
				o.RoleSessionName = m.sessionName
			}),
		)
	}
	if t.GCS {
		cfg.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		cfg.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	}
	return cfg
}

func s3Options(t Target) []func(*s3.Options) {
	var opts []func(*s3.Options)
	if t.Endpoint != "" {
		endpoint := t.Endpoint
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}
	if t.PathStyle {
		opts = append(opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	if t.GCS {
		opts = append(opts, withGCSSigning)
	}
	return opts
}
