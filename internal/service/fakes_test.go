package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"eldercare/backend/internal/model"
	"eldercare/backend/internal/pkg/storage"
)

type memBlobStore struct {
	mu       sync.Mutex
	blobs    map[string][]byte
	saveErr  error
	issueErr error
	saves    int
	// blockSave makes Save wait for the context to end.
	blockSave bool
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{blobs: map[string][]byte{}}
}

func (m *memBlobStore) Save(ctx context.Context, key string, payload []byte, contentType string) error {
	m.mu.Lock()
	m.saves++
	block := m.blockSave
	m.mu.Unlock()

	if block {
		<-ctx.Done()
		return &storage.StorageFailure{Op: "save", Key: key, Err: ctx.Err()}
	}
	if m.saveErr != nil {
		return &storage.StorageFailure{Op: "save", Key: key, Err: m.saveErr}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[key]; ok {
		return &storage.StorageFailure{Op: "save", Key: key, Err: storage.ErrExists}
	}
	m.blobs[key] = append([]byte(nil), payload...)
	return nil
}

func (m *memBlobStore) IssueRetrievalURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if m.issueErr != nil {
		return "", &storage.StorageFailure{Op: "sign", Key: key, Err: m.issueErr}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[key]; !ok {
		return "", &storage.StorageFailure{Op: "sign", Key: key, Err: storage.ErrNotFound}
	}
	return "https://blobs.test/" + key + "?exp=" + expiry.String(), nil
}

func (m *memBlobStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[key]
	if !ok {
		return nil, &storage.StorageFailure{Op: "open", Key: key, Err: storage.ErrNotFound}
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *memBlobStore) List(ctx context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := []string{}
	for k := range m.blobs {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *memBlobStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}

type memEnvRepo struct {
	mu        sync.Mutex
	envs      []model.Environment
	createErr error
}

func (r *memEnvRepo) Create(ctx context.Context, env *model.Environment) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	env.ID = fmt.Sprintf("env-%d", len(r.envs)+1)
	r.envs = append(r.envs, *env)
	return nil
}

func (r *memEnvRepo) List(ctx context.Context) ([]model.Environment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Environment(nil), r.envs...), nil
}

func (r *memEnvRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.envs)
}
