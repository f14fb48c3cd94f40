package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"eldercare/backend/internal/pkg/urlsign"
)

const tempFilePrefix = ".upload-"

// LocalStore keeps blobs on the local filesystem and hands out signed download
// URLs served by the /files route.
type LocalStore struct {
	baseDir string
	baseURL string
	signer  *urlsign.Signer
}

func NewLocalStore(baseDir, baseURL string, signer *urlsign.Signer) (*LocalStore, error) {
	if signer == nil {
		return nil, errors.New("local store requires a signer")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob dir: %w", err)
	}
	return &LocalStore{
		baseDir: baseDir,
		baseURL: strings.TrimRight(baseURL, "/"),
		signer:  signer,
	}, nil
}

func (s *LocalStore) Save(ctx context.Context, key string, payload []byte, contentType string) error {
	if err := ValidateKey(key); err != nil {
		return failure("save", key, err)
	}
	if err := ctx.Err(); err != nil {
		return failure("save", key, err)
	}

	fullPath := s.fullPath(key)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return failure("save", key, fmt.Errorf("mkdir: %w", err))
	}

	// Write to a temp file first so a blob is never visible half written.
	tmp, err := os.CreateTemp(filepath.Dir(fullPath), tempFilePrefix+"*")
	if err != nil {
		return failure("save", key, fmt.Errorf("create temp: %w", err))
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return failure("save", key, fmt.Errorf("write: %w", err))
	}
	if err := tmp.Close(); err != nil {
		return failure("save", key, fmt.Errorf("close: %w", err))
	}
	// Link fails if the key exists, unlike Rename which would replace it.
	if err := os.Link(tmpName, fullPath); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return failure("save", key, ErrExists)
		}
		return failure("save", key, fmt.Errorf("link: %w", err))
	}

	return nil
}

func (s *LocalStore) IssueRetrievalURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", failure("sign", key, err)
	}
	if err := ctx.Err(); err != nil {
		return "", failure("sign", key, err)
	}

	if _, err := os.Stat(s.fullPath(key)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", failure("sign", key, ErrNotFound)
		}
		return "", failure("sign", key, err)
	}

	token, err := s.signer.Sign(key, expiry)
	if err != nil {
		return "", failure("sign", key, err)
	}

	u, err := url.Parse(s.baseURL)
	if err != nil {
		return "", failure("sign", key, fmt.Errorf("parse base url: %w", err))
	}
	u.Path = path.Join("/", u.Path, "files", key)
	u.RawQuery = url.Values{"token": {token}}.Encode()

	return u.String(), nil
}

func (s *LocalStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ValidateKey(key); err != nil {
		return nil, failure("open", key, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, failure("open", key, err)
	}

	f, err := os.Open(s.fullPath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, failure("open", key, ErrNotFound)
		}
		return nil, failure("open", key, err)
	}
	return f, nil
}

func (s *LocalStore) List(ctx context.Context, prefix string) ([]string, error) {
	root := s.baseDir
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		if err := ValidateKey(prefix); err != nil {
			return nil, failure("list", prefix, err)
		}
		root = s.fullPath(prefix)
	}

	var keys []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), tempFilePrefix) {
			return nil
		}
		rel, err := filepath.Rel(s.baseDir, p)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, failure("list", prefix, err)
	}

	sort.Strings(keys)
	return keys, nil
}

// Verify checks a download token issued by IssueRetrievalURL.
func (s *LocalStore) Verify(token, key string) error {
	return s.signer.Verify(token, key)
}

func (s *LocalStore) fullPath(key string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(key))
}

var _ BlobStore = (*LocalStore)(nil)
