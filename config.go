package cloudfs

import (
	"fmt"

	"github.com/gobeaver/beaver-kit/config"
)

// Config holds backend and pipeline settings. Each backend reads only its
// own fields; an unconfigured backend fails when it is first used, not
// when the registry is built.
type Config struct {
	// Local driver configuration
	LocalRoot string `env:"CLOUDFS_LOCAL_ROOT,default:/"`

	// S3 driver configuration (backend "aws")
	S3Region          string `env:"CLOUDFS_S3_REGION,default:us-east-1"`
	S3Endpoint        string `env:"CLOUDFS_S3_ENDPOINT"`
	S3AccessKeyID     string `env:"CLOUDFS_S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"CLOUDFS_S3_SECRET_ACCESS_KEY"`
	S3ForcePathStyle  bool   `env:"CLOUDFS_S3_FORCE_PATH_STYLE,default:false"`

	// Azure Blob Storage driver configuration (backend "az").
	// A connection string wins over account name and key.
	AzureConnectionString string `env:"AZURE_STORAGE_CONNECTION_STRING"`
	AzureAccountName      string `env:"CLOUDFS_AZURE_ACCOUNT_NAME"`
	AzureAccountKey       string `env:"CLOUDFS_AZURE_ACCOUNT_KEY"`
	AzureEndpoint         string `env:"CLOUDFS_AZURE_ENDPOINT"` // Optional custom endpoint

	// GCS (Google Cloud Storage) driver configuration
	GCSCredentialsFile string `env:"CLOUDFS_GCS_CREDENTIALS_FILE"` // Path to service account JSON
	GCSProjectID       string `env:"CLOUDFS_GCS_PROJECT_ID"`       // Needed to list and create buckets

	// SFTP driver configuration
	SFTPHost       string `env:"CLOUDFS_SFTP_HOST"`
	SFTPPort       int    `env:"CLOUDFS_SFTP_PORT,default:22"`
	SFTPUsername   string `env:"CLOUDFS_SFTP_USERNAME"`
	SFTPPassword   string `env:"CLOUDFS_SFTP_PASSWORD"`
	SFTPPrivateKey string `env:"CLOUDFS_SFTP_PRIVATE_KEY"` // Path to private key file
	SFTPBasePath   string `env:"CLOUDFS_SFTP_BASE_PATH,default:/"`

	// Pipeline defaults
	QueueSize     int    `env:"CLOUDFS_QUEUE_SIZE,default:1024"`
	HashAlgorithm string `env:"CLOUDFS_HASH_ALGORITHM,default:sha1"`
}

// GetConfig returns config loaded from environment
func GetConfig() (*Config, error) {
	cfg := &Config{}
	if err := config.Load(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GetConfigWithPrefix loads config from environment variables carrying a
// custom prefix instead of the loader default.
func GetConfigWithPrefix(prefix string) (*Config, error) {
	cfg := &Config{}
	if err := config.Load(cfg, config.LoadOptions{Prefix: prefix}); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the pipeline settings. Backend settings are checked by
// the backend factories.
func (c *Config) Validate() error {
	if c.QueueSize < 0 {
		return fmt.Errorf("invalid config: queue size must not be negative, got %d", c.QueueSize)
	}
	if c.HashAlgorithm != "" {
		if _, err := NewHasher(ChecksumAlgorithm(c.HashAlgorithm)); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
	}
	return nil
}

// PipelineOptions turns the pipeline defaults into options for Copy and
// Compare.
func (c *Config) PipelineOptions() []Option {
	var opts []Option
	if c.QueueSize > 0 {
		opts = append(opts, WithQueueSize(c.QueueSize))
	}
	return opts
}
