package gcs

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// Config holds the settings needed to build a storage client
type Config struct {
	CredentialsFile string // Path to service account JSON; default credentials otherwise
	ProjectID       string
	Endpoint        string // Optional, e.g. an emulator
}

// NewFromConfig builds a storage client from cfg and wraps it in an Adapter.
// The Adapter owns the client; Close releases it.
func NewFromConfig(ctx context.Context, cfg Config) (*Adapter, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	}

	// Uses GOOGLE_APPLICATION_CREDENTIALS or default credentials when no file is set
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcs client: %w", err)
	}
	return New(client, WithProject(cfg.ProjectID)), nil
}

// Close releases the underlying storage client
func (a *Adapter) Close() error {
	return a.client.Close()
}
