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

package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/tarbatch/internal/cloudstorage"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	require.Equal(t, 4000, cfg.BatchSize)
	require.Equal(t, "batch", cfg.FilenameBase)
	require.Equal(t, 1, cfg.Workers)
	require.Equal(t, 100, cfg.ProgressEvery)
	require.False(t, cfg.Revert)
	require.Equal(t, cloudstorage.DefaultGCSEndpoint, cfg.GCS.Endpoint)
	require.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("TARBATCH_BATCH_SIZE", "250")
	t.Setenv("TARBATCH_REVERT", "true")
	t.Setenv("TARBATCH_S3_REGION", "eu-west-1")
	t.Setenv("TARBATCH_S3_PATH_STYLE", "true")
	t.Setenv("TARBATCH_AZURE_ACCOUNT_URL", "https://acct.blob.core.windows.net")
	t.Setenv("TARBATCH_FTP_USER", "anonymous")
	t.Setenv("TARBATCH_HTTP_TIMEOUT", "5s")

	cfg, err := Load(nil)
	require.NoError(t, err)

	require.Equal(t, 250, cfg.BatchSize)
	require.True(t, cfg.Revert)
	require.Equal(t, "eu-west-1", cfg.S3.Region)
	require.True(t, cfg.S3.PathStyle)
	require.Equal(t, "https://acct.blob.core.windows.net", cfg.Azure.AccountURL)
	require.Equal(t, "anonymous", cfg.FTP.User)
	require.Equal(t, 5*time.Second, cfg.HTTP.Timeout)

	cs := cfg.CloudStorage()
	require.Equal(t, "eu-west-1", cs.S3Region)
	require.True(t, cs.S3PathStyle)
	require.Equal(t, "https://acct.blob.core.windows.net", cs.AzureAccountURL)
}

func TestLoadFlagsWinOverEnv(t *testing.T) {
	t.Setenv("TARBATCH_BATCH_SIZE", "250")
	t.Setenv("TARBATCH_WORKERS", "3")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.IntP("batch_size", "n", 4000, "")
	flags.IntP("workers", "w", 1, "")
	flags.StringP("filename_base", "f", "batch", "")
	require.NoError(t, flags.Parse([]string{"-n", "10", "-f", "chunk"}))

	cfg, err := Load(flags)
	require.NoError(t, err)

	require.Equal(t, 10, cfg.BatchSize)
	require.Equal(t, "chunk", cfg.FilenameBase)
	// Unset flags fall back to the environment.
	require.Equal(t, 3, cfg.Workers)

	cc := cfg.Convert("/data/out")
	require.Equal(t, "/data/out", cc.SavePath)
	require.Equal(t, 10, cc.BatchSize)
	require.Equal(t, "chunk", cc.FilenameBase)
	require.Equal(t, 3, cc.Workers)
	require.NoError(t, cc.Validate())
}

func TestLoadRejectsBadNumbers(t *testing.T) {
	t.Setenv("TARBATCH_BATCH_SIZE", "lots")
	_, err := Load(nil)
	require.Error(t, err)
}
