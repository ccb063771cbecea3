// Package backends holds the static table of storage backends known to the
// command-line front-end. Each entry is a factory; nothing is dialed or
// authenticated until a path on that backend is first used.
package backends

import (
	"context"
	"fmt"
	"os"

	"github.com/gobeaver/cloudfs"
	"github.com/gobeaver/cloudfs/driver/azure"
	"github.com/gobeaver/cloudfs/driver/gcs"
	"github.com/gobeaver/cloudfs/driver/local"
	"github.com/gobeaver/cloudfs/driver/s3"
	"github.com/gobeaver/cloudfs/driver/sftp"
)

// Backend ids
const (
	Local = "local"
	AWS   = s3.BackendID
	Azure = azure.BackendID
	GCS   = gcs.BackendID
	SFTP  = sftp.BackendID
)

// Standard returns the factory table for every built-in backend, configured
// from cfg.
func Standard(cfg *cloudfs.Config) map[string]cloudfs.Factory {
	return map[string]cloudfs.Factory{
		Local: func(ctx context.Context) (cloudfs.Backend, error) {
			return local.New(cfg.LocalRoot)
		},
		AWS: func(ctx context.Context) (cloudfs.Backend, error) {
			return s3.NewFromConfig(ctx, s3.Config{
				Region:          cfg.S3Region,
				Endpoint:        cfg.S3Endpoint,
				AccessKeyID:     cfg.S3AccessKeyID,
				SecretAccessKey: cfg.S3SecretAccessKey,
				ForcePathStyle:  cfg.S3ForcePathStyle,
			})
		},
		Azure: func(ctx context.Context) (cloudfs.Backend, error) {
			return azure.NewFromConfig(azure.Config{
				ConnectionString: cfg.AzureConnectionString,
				AccountName:      cfg.AzureAccountName,
				AccountKey:       cfg.AzureAccountKey,
				Endpoint:         cfg.AzureEndpoint,
			})
		},
		GCS: func(ctx context.Context) (cloudfs.Backend, error) {
			return gcs.NewFromConfig(ctx, gcs.Config{
				CredentialsFile: cfg.GCSCredentialsFile,
				ProjectID:       cfg.GCSProjectID,
			})
		},
		SFTP: func(ctx context.Context) (cloudfs.Backend, error) {
			return newSFTP(cfg)
		},
	}
}

func newSFTP(cfg *cloudfs.Config) (*sftp.Adapter, error) {
	if cfg.SFTPHost == "" {
		return nil, fmt.Errorf("SFTP host is required")
	}

	sftpConfig := sftp.Config{
		Host:     cfg.SFTPHost,
		Port:     cfg.SFTPPort,
		Username: cfg.SFTPUsername,
		Password: cfg.SFTPPassword,
		BasePath: cfg.SFTPBasePath,
	}

	// Load private key if specified
	if cfg.SFTPPrivateKey != "" {
		keyData, err := os.ReadFile(cfg.SFTPPrivateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to read private key: %w", err)
		}
		sftpConfig.PrivateKey = keyData
	}

	return sftp.New(sftpConfig)
}

// NewRegistry builds a registry over the standard table.
func NewRegistry(cfg *cloudfs.Config) *cloudfs.Registry {
	return cloudfs.NewRegistry(Standard(cfg))
}
