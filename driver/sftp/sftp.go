// Package sftp provides the cloudfs backend for a directory tree on an SFTP
// server.
package sftp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path"
	"sort"
	"sync"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/gobeaver/cloudfs"
)

// BackendID is the registry id of this backend
const BackendID = "sftp"

// Adapter provides an SFTP implementation of cloudfs.Backend
type Adapter struct {
	mu       sync.Mutex
	client   *sftp.Client
	sshConn  *ssh.Client
	basePath string
	config   Config
}

// Config holds SFTP connection configuration
type Config struct {
	Host       string
	Port       int
	Username   string
	Password   string
	PrivateKey []byte // PEM encoded private key
	BasePath   string

	// HostKeyCallback verifies the server key; nil accepts any key
	HostKeyCallback ssh.HostKeyCallback
}

var _ cloudfs.Backend = (*Adapter)(nil)

// New connects to the server described by cfg
func New(cfg Config) (*Adapter, error) {
	adapter := &Adapter{
		config:   cfg,
		basePath: cfg.BasePath,
	}

	// Establish connection
	if _, err := adapter.conn(); err != nil {
		return nil, err
	}

	return adapter, nil
}

// NewWithClient wraps an established SFTP session. The caller keeps
// ownership of the transport beneath client.
func NewWithClient(client *sftp.Client, basePath string) *Adapter {
	return &Adapter{client: client, basePath: basePath}
}

// conn returns the live client, dialing when there is none.
func (a *Adapter) conn() (*sftp.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client != nil {
		return a.client, nil
	}
	if a.config.Host == "" {
		return nil, errors.New("sftp connection is closed")
	}

	// Build SSH config
	sshConfig := &ssh.ClientConfig{
		User:            a.config.Username,
		HostKeyCallback: a.config.HostKeyCallback,
	}
	if sshConfig.HostKeyCallback == nil {
		sshConfig.HostKeyCallback = ssh.InsecureIgnoreHostKey()
	}

	// Add authentication method
	if len(a.config.PrivateKey) > 0 {
		signer, err := ssh.ParsePrivateKey(a.config.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		sshConfig.Auth = append(sshConfig.Auth, ssh.PublicKeys(signer))
	}

	if a.config.Password != "" {
		sshConfig.Auth = append(sshConfig.Auth, ssh.Password(a.config.Password))
	}

	if len(sshConfig.Auth) == 0 {
		return nil, fmt.Errorf("no authentication method provided")
	}

	port := a.config.Port
	if port == 0 {
		port = 22
	}

	addr := fmt.Sprintf("%s:%d", a.config.Host, port)
	sshConn, err := ssh.Dial("tcp", addr, sshConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SSH: %w", err)
	}

	// Create SFTP client
	sftpClient, err := sftp.NewClient(sshConn)
	if err != nil {
		sshConn.Close()
		return nil, fmt.Errorf("failed to create SFTP client: %w", err)
	}

	a.sshConn = sshConn
	a.client = sftpClient
	return sftpClient, nil
}

// Close closes the SFTP and SSH connections
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error

	if a.client != nil {
		if err := a.client.Close(); err != nil {
			errs = append(errs, err)
		}
		a.client = nil
	}

	if a.sshConn != nil {
		if err := a.sshConn.Close(); err != nil {
			errs = append(errs, err)
		}
		a.sshConn = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing connections: %w", errors.Join(errs...))
	}

	return nil
}

// List implements cloudfs.Backend. Entries are sorted by name.
func (a *Adapter) List(ctx context.Context, dir string) iter.Seq2[cloudfs.FsNode, error] {
	return func(yield func(cloudfs.FsNode, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(cloudfs.FsNode{}, err)
			return
		}
		client, err := a.conn()
		if err != nil {
			yield(cloudfs.FsNode{}, mapSFTPError("list", dir, err))
			return
		}

		infos, err := client.ReadDir(a.fullPath(dir))
		if err != nil {
			yield(cloudfs.FsNode{}, mapSFTPError("list", dir, err))
			return
		}
		sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })

		for _, info := range infos {
			node := cloudfs.FsNode{
				IsDir: info.IsDir(),
				Name:  info.Name(),
			}
			if !node.IsDir {
				node.ContentType = cloudfs.DetectContentType(info.Name())
				node.ContentLength = cloudfs.Int64(info.Size())
			}
			if !yield(node, nil) {
				return
			}
		}
	}
}

// Exists implements cloudfs.Backend
func (a *Adapter) Exists(ctx context.Context, filePath string) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}

	client, err := a.conn()
	if err != nil {
		return false, mapSFTPError("exists", filePath, err)
	}

	_, err = client.Stat(a.fullPath(filePath))
	if err != nil {
		if isNotExist(err) {
			return false, nil
		}
		return false, mapSFTPError("exists", filePath, err)
	}
	return true, nil
}

// OpenRead implements cloudfs.Backend
func (a *Adapter) OpenRead(ctx context.Context, filePath string) (*cloudfs.ReadResponse, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	client, err := a.conn()
	if err != nil {
		return nil, mapSFTPError("open", filePath, err)
	}

	fullPath := a.fullPath(filePath)
	file, err := client.Open(fullPath)
	if err != nil {
		return nil, mapSFTPError("open", filePath, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, mapSFTPError("open", filePath, err)
	}
	if info.IsDir() {
		file.Close()
		return nil, cloudfs.NewPathError("open", filePath, cloudfs.ErrInvalidPath)
	}

	return &cloudfs.ReadResponse{
		Stream:        file,
		ContentType:   cloudfs.DetectContentType(fullPath),
		ContentLength: cloudfs.Int64(info.Size()),
	}, nil
}

// WriteFrom implements cloudfs.Backend. Parent directories are created and
// a partially written file is removed when the copy fails.
func (a *Adapter) WriteFrom(ctx context.Context, filePath string, in *cloudfs.ReadResponse) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	fullPath := a.fullPath(filePath)
	if fullPath == a.fullPath("/") {
		return cloudfs.NewPathError("write", filePath, cloudfs.ErrInvalidPath)
	}

	client, err := a.conn()
	if err != nil {
		return mapSFTPError("write", filePath, err)
	}

	// Ensure parent directory exists
	if err := client.MkdirAll(path.Dir(fullPath)); err != nil {
		return mapSFTPError("write", filePath, err)
	}

	file, err := client.Create(fullPath)
	if err != nil {
		return mapSFTPError("write", filePath, err)
	}

	if _, err := io.Copy(file, in.Stream); err != nil {
		file.Close()
		_ = client.Remove(fullPath)
		return mapSFTPError("write", filePath, err)
	}
	if err := file.Close(); err != nil {
		_ = client.Remove(fullPath)
		return mapSFTPError("write", filePath, err)
	}
	return nil
}

// fullPath joins a backend path onto the base path. Cleaning against "/"
// first keeps ".." from escaping the base.
func (a *Adapter) fullPath(relativePath string) string {
	cleanPath := path.Clean("/" + relativePath)
	if a.basePath == "" {
		return cleanPath
	}
	return path.Join(a.basePath, cleanPath)
}

func isNotExist(err error) bool {
	if os.IsNotExist(err) || errors.Is(err, os.ErrNotExist) {
		return true
	}
	var statusErr *sftp.StatusError
	return errors.As(err, &statusErr) && statusErr.FxCode() == sftp.ErrSSHFxNoSuchFile
}

// mapSFTPError maps SFTP errors to cloudfs errors
func mapSFTPError(op, path string, err error) error {
	if isNotExist(err) {
		return cloudfs.NewPathError(op, path, cloudfs.ErrNotExist)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &cloudfs.BackendError{Backend: BackendID, Op: op, Path: path, Err: err}
}
