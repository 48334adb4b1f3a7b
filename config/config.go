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
	"reflect"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/cardinalhq/tarbatch/internal/archive"
	"github.com/cardinalhq/tarbatch/internal/cloudstorage"
	"github.com/cardinalhq/tarbatch/internal/convert"
)

// Config aggregates configuration for the application.
type Config struct {
	BatchSize     int    `mapstructure:"batch_size"`
	FilenameBase  string `mapstructure:"filename_base"`
	TmpDir        string `mapstructure:"tmp_dir"`
	Workers       int    `mapstructure:"workers"`
	ProgressEvery int    `mapstructure:"progress_every"`
	Revert        bool   `mapstructure:"revert"`

	S3    S3Config    `mapstructure:"s3"`
	GCS   GCSConfig   `mapstructure:"gcs"`
	Azure AzureConfig `mapstructure:"azure"`
	FTP   FTPConfig   `mapstructure:"ftp"`
	HTTP  HTTPConfig  `mapstructure:"http"`
}

type S3Config struct {
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	PathStyle bool   `mapstructure:"path_style"`
	RoleARN   string `mapstructure:"role_arn"`
}

type GCSConfig struct {
	Endpoint string `mapstructure:"endpoint"`
}

type AzureConfig struct {
	AccountURL string `mapstructure:"account_url"`
}

type FTPConfig struct {
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type HTTPConfig struct {
	// Timeout bounds the wait for response headers, not the body transfer.
	Timeout time.Duration `mapstructure:"timeout"`
}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:     convert.DefaultBatchSize,
		FilenameBase:  convert.DefaultFilenameBase,
		Workers:       convert.DefaultWorkers,
		ProgressEvery: convert.DefaultProgressEvery,
		GCS:           GCSConfig{Endpoint: cloudstorage.DefaultGCSEndpoint},
		FTP:           FTPConfig{Timeout: 30 * time.Second},
		HTTP:          HTTPConfig{Timeout: 30 * time.Second},
	}
}

// flagKeys maps command line flag names to configuration keys.
var flagKeys = map[string]string{
	"batch_size":     "batch_size",
	"filename_base":  "filename_base",
	"tmp":            "tmp_dir",
	"workers":        "workers",
	"progress-every": "progress_every",
	"revert":         "revert",
}

// Load reads configuration from files, environment variables and flags.
// Environment variables use the prefix "TARBATCH" and the dot character
// in keys is replaced by an underscore. For example, "s3.region" becomes
// "TARBATCH_S3_REGION". Flags that were set explicitly win over everything
// else; flags is optional.
func Load(flags *pflag.FlagSet) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.SetEnvPrefix("TARBATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)
	_ = v.ReadInConfig()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Convert returns the converter configuration writing below savePath.
func (c *Config) Convert(savePath string) convert.Config {
	return convert.Config{
		SavePath:      savePath,
		FilenameBase:  c.FilenameBase,
		BatchSize:     c.BatchSize,
		TmpDir:        c.TmpDir,
		Revert:        c.Revert,
		Workers:       c.Workers,
		ProgressEvery: c.ProgressEvery,
	}
}

// CloudStorage returns the object store settings.
func (c *Config) CloudStorage() cloudstorage.Config {
	return cloudstorage.Config{
		S3Region:        c.S3.Region,
		S3Endpoint:      c.S3.Endpoint,
		S3PathStyle:     c.S3.PathStyle,
		S3RoleARN:       c.S3.RoleARN,
		GCSEndpoint:     c.GCS.Endpoint,
		AzureAccountURL: c.Azure.AccountURL,
	}
}

// Sources returns the archive sources for this configuration. Object store
// clients are only created when an s3://, gs:// or az:// input is opened.
func (c *Config) Sources() *archive.Sources {
	sources := archive.NewSources(c.HTTP.Timeout, cloudstorage.NewCloudManagers(c.CloudStorage()))
	sources.FTPUser = c.FTP.User
	sources.FTPPassword = c.FTP.Password
	sources.FTPTimeout = c.FTP.Timeout
	return sources
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(parts, tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
