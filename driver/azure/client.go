package azure

import (
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// Config holds the settings needed to build a blob service client. A
// connection string wins over account name and key.
type Config struct {
	ConnectionString string
	AccountName      string
	AccountKey       string
	Endpoint         string // Optional custom service URL
	MaxRetries       int32
}

// NewFromConfig builds a blob service client from cfg and wraps it in an
// Adapter.
func NewFromConfig(cfg Config) (*Adapter, error) {
	client, err := createClient(cfg)
	if err != nil {
		return nil, err
	}
	return New(client), nil
}

func createClient(cfg Config) (*azblob.Client, error) {
	opts := &azblob.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{MaxRetries: cfg.MaxRetries},
		},
	}

	if cfg.ConnectionString != "" {
		client, err := azblob.NewClientFromConnectionString(cfg.ConnectionString, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to create azure client: %w", err)
		}
		return client, nil
	}

	if cfg.AccountName == "" || cfg.AccountKey == "" {
		return nil, errors.New("azure connection string or account name and key are required")
	}

	// Build service URL
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AccountName)
	if cfg.Endpoint != "" {
		serviceURL = cfg.Endpoint
	}

	// Create shared key credential
	cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure credential: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure client: %w", err)
	}
	return client, nil
}
