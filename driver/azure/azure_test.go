package azure

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"

	"github.com/gobeaver/cloudfs"
)

func TestSplitPath(t *testing.T) {
	tests := []struct {
		in, container, blob string
	}{
		{"/", "", ""},
		{"/media", "media", ""},
		{"/media/", "media", ""},
		{"/media/a/b.png", "media", "a/b.png"},
	}
	for _, tt := range tests {
		c, b := splitPath(tt.in)
		if c != tt.container || b != tt.blob {
			t.Errorf("splitPath(%q) = (%q, %q), want (%q, %q)", tt.in, c, b, tt.container, tt.blob)
		}
	}
}

func TestMapAzureError(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantNotFound bool
		wantBackend  bool
	}{
		{
			name:         "blob not found code",
			err:          &azcore.ResponseError{ErrorCode: "BlobNotFound", StatusCode: http.StatusNotFound},
			wantNotFound: true,
		},
		{
			name:         "container not found code",
			err:          &azcore.ResponseError{ErrorCode: "ContainerNotFound", StatusCode: http.StatusNotFound},
			wantNotFound: true,
		},
		{
			name:         "bare 404",
			err:          &azcore.ResponseError{StatusCode: http.StatusNotFound},
			wantNotFound: true,
		},
		{
			name:        "forbidden",
			err:         &azcore.ResponseError{ErrorCode: "AuthorizationFailure", StatusCode: http.StatusForbidden},
			wantBackend: true,
		},
		{
			name: "cancelled",
			err:  context.Canceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapAzureError("open", "/c/b", tt.err)
			if cloudfs.IsNotExist(got) != tt.wantNotFound {
				t.Errorf("IsNotExist = %v, want %v", cloudfs.IsNotExist(got), tt.wantNotFound)
			}
			var be *cloudfs.BackendError
			if errors.As(got, &be) != tt.wantBackend {
				t.Errorf("BackendError = %v, want %v", errors.As(got, &be), tt.wantBackend)
			}
			if tt.wantBackend && be.Backend != BackendID {
				t.Errorf("Backend = %q, want %q", be.Backend, BackendID)
			}
		})
	}
}

func TestNewFromConfigRequiresCredentials(t *testing.T) {
	if _, err := NewFromConfig(Config{}); err == nil {
		t.Fatal("expected error without credentials")
	}
}

func TestInvalidPaths(t *testing.T) {
	a := New(nil)
	ctx := context.Background()
	if _, err := a.OpenRead(ctx, "/container"); !errors.Is(err, cloudfs.ErrInvalidPath) {
		t.Errorf("expected ErrInvalidPath, got %v", err)
	}
	if err := a.WriteFrom(ctx, "/", &cloudfs.ReadResponse{}); !errors.Is(err, cloudfs.ErrInvalidPath) {
		t.Errorf("expected ErrInvalidPath, got %v", err)
	}
	if ok, err := a.Exists(ctx, "/"); err != nil || !ok {
		t.Errorf("Exists(/) = %v, %v; want true, nil", ok, err)
	}
}
