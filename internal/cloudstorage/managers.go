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
	"sync"

	"github.com/cardinalhq/tarbatch/internal/awsclient"
	"github.com/cardinalhq/tarbatch/internal/azureclient"
)

// DefaultGCSEndpoint is the S3 interoperability endpoint of Google Cloud Storage.
const DefaultGCSEndpoint = "https://storage.googleapis.com"

// Config carries the settings the provider clients are built from.
type Config struct {
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool
	S3RoleARN   string

	GCSEndpoint string

	AzureAccountURL string
}

// S3Target maps the configuration onto an S3 client target. gcs selects the
// GCS interoperability endpoint instead of S3Endpoint.
func (c Config) S3Target(gcs bool) awsclient.Target {
	t := awsclient.Target{
		Region:    c.S3Region,
		RoleARN:   c.S3RoleARN,
		Endpoint:  c.S3Endpoint,
		PathStyle: c.S3PathStyle,
	}
	if gcs {
		t.Endpoint = c.GCSEndpoint
		if t.Endpoint == "" {
			t.Endpoint = DefaultGCSEndpoint
		}
		t.GCS = true
	}
	return t
}

// CloudManagers holds the provider managers. They are created on first use
// so that runs reading only local or HTTP archives never load cloud
// credentials.
type CloudManagers struct {
	cfg Config

	mu    sync.Mutex
	aws   *awsclient.Manager
	azure *azureclient.Manager
}

// Ensure CloudManagers implements ClientProvider
var _ ClientProvider = (*CloudManagers)(nil)

// NewCloudManagers returns a provider configured by cfg.
func NewCloudManagers(cfg Config) *CloudManagers {
	if cfg.GCSEndpoint == "" {
		cfg.GCSEndpoint = DefaultGCSEndpoint
	}
	return &CloudManagers{cfg: cfg}
}

// NewClient creates a storage Client for the given provider.
func (m *CloudManagers) NewClient(ctx context.Context, provider string) (Client, error) {
	switch provider {
	case ProviderAWS, ProviderGCP:
		mgr, err := m.awsManager(ctx)
		if err != nil {
			return nil, err
		}
		s3c := mgr.Client(m.cfg.S3Target(provider == ProviderGCP))
		return &s3Client{awsS3Client: s3c, provider: provider}, nil
	case ProviderAzure:
		if m.cfg.AzureAccountURL == "" {
			return nil, fmt.Errorf("azure account URL is not configured")
		}
		mgr, err := m.azureManager(ctx)
		if err != nil {
			return nil, err
		}
		blobClient, err := mgr.GetBlob(ctx, azureclient.WithBlobEndpoint(m.cfg.AzureAccountURL))
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure blob client: %w", err)
		}
		return &azureClient{blobClient: blobClient}, nil
	default:
		return nil, fmt.Errorf("unsupported cloud provider: %s", provider)
	}
}

func (m *CloudManagers) awsManager(ctx context.Context) (*awsclient.Manager, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.aws == nil {
		mgr, err := awsclient.NewManager(ctx, "tarbatch")
		if err != nil {
			return nil, fmt.Errorf("failed to create AWS manager: %w", err)
		}
		m.aws = mgr
	}
	return m.aws, nil
}

func (m *CloudManagers) azureManager(ctx context.Context) (*azureclient.Manager, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.azure == nil {
		mgr, err := azureclient.NewManager(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure manager: %w", err)
		}
		m.azure = mgr
	}
	return m.azure, nil
}
