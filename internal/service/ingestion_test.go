package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eldercare/backend/internal/model"
	"eldercare/backend/internal/pkg/keygen"
	"eldercare/backend/internal/pkg/storage"
	"eldercare/backend/internal/pkg/urlsign"
	"eldercare/backend/internal/repository"
)

var fixedNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedGenerator() *keygen.Generator {
	g := keygen.NewGenerator(keygen.DefaultPrefix)
	g.Now = func() time.Time { return fixedNow }
	return g
}

func newTestIngestion(blobs storage.BlobStore, repo repository.EnvironmentRepository, keys *keygen.Generator) IngestionService {
	return NewIngestionService(blobs, repo, keys, discardLogger(), IngestionOptions{
		URLExpiry: time.Hour,
		Timeout:   5 * time.Second,
		Now:       func() time.Time { return fixedNow },
	})
}

func gardenUpload() model.UploadDescriptor {
	return model.UploadDescriptor{
		Filename:    "scene.pak",
		ContentType: "application/octet-stream",
		Payload:     []byte("0123456789"),
		Name:        "Garden",
		Description: "Calm garden",
	}
}

func requireIngestionError(t *testing.T, err error, reason Reason) *IngestionError {
	t.Helper()
	var ie *IngestionError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, reason, ie.Reason)
	return ie
}

func TestIngestCompleted(t *testing.T) {
	blobs := newMemBlobStore()
	repo := &memEnvRepo{}
	svc := newTestIngestion(blobs, repo, fixedGenerator())

	env, err := svc.Ingest(context.Background(), gardenUpload())
	require.NoError(t, err)

	wantKey := "unreal-envs/1740823200000_scene.pak"
	assert.Equal(t, "env-1", env.ID)
	assert.Equal(t, "Garden", env.Name)
	assert.Equal(t, "Calm garden", env.Description)
	assert.Equal(t, wantKey, env.StoragePath)
	assert.Equal(t, "https://blobs.test/"+wantKey+"?exp=1h0m0s", env.DownloadURL)
	assert.Equal(t, fixedNow, env.CreatedAt)

	assert.Equal(t, []byte("0123456789"), blobs.blobs[wantKey])
	require.Equal(t, 1, repo.count())
	assert.Equal(t, *env, repo.envs[0])
}

func TestIngestDefaultsNameAndDescription(t *testing.T) {
	svc := newTestIngestion(newMemBlobStore(), &memEnvRepo{}, fixedGenerator())
	upload := gardenUpload()
	upload.Name = "  "
	upload.Description = ""

	env, err := svc.Ingest(context.Background(), upload)
	require.NoError(t, err)
	assert.Equal(t, PlaceholderName, env.Name)
	assert.Equal(t, "", env.Description)
}

func TestIngestMissingFile(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{name: "nil payload", payload: nil},
		{name: "empty payload", payload: []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blobs := newMemBlobStore()
			repo := &memEnvRepo{}
			svc := newTestIngestion(blobs, repo, fixedGenerator())
			upload := gardenUpload()
			upload.Payload = tt.payload

			env, err := svc.Ingest(context.Background(), upload)
			assert.Nil(t, env)
			ie := requireIngestionError(t, err, ReasonMissingFile)
			assert.False(t, ie.Orphan())
			assert.Empty(t, ie.StorageKey)
			assert.Equal(t, 0, blobs.saves)
			assert.Equal(t, 0, repo.count())
		})
	}
}

func TestIngestBlobWriteFailureCreatesNoRecord(t *testing.T) {
	blobs := newMemBlobStore()
	blobs.saveErr = errors.New("disk full")
	repo := &memEnvRepo{}
	svc := newTestIngestion(blobs, repo, fixedGenerator())

	_, err := svc.Ingest(context.Background(), gardenUpload())

	ie := requireIngestionError(t, err, ReasonBlobWrite)
	assert.Equal(t, StateValidated, ie.State)
	assert.False(t, ie.Orphan())
	assert.Equal(t, 0, blobs.count())
	assert.Equal(t, 0, repo.count())

	var sf *storage.StorageFailure
	assert.ErrorAs(t, err, &sf)
}

func TestIngestURLIssueFailureLeavesOrphan(t *testing.T) {
	blobs := newMemBlobStore()
	blobs.issueErr = errors.New("signer offline")
	repo := &memEnvRepo{}
	svc := newTestIngestion(blobs, repo, fixedGenerator())

	_, err := svc.Ingest(context.Background(), gardenUpload())

	ie := requireIngestionError(t, err, ReasonURLIssue)
	assert.Equal(t, StateBlobWritten, ie.State)
	assert.True(t, ie.Orphan())
	assert.Equal(t, "unreal-envs/1740823200000_scene.pak", ie.StorageKey)
	assert.Equal(t, 1, blobs.count())
	assert.Equal(t, 0, repo.count())
}

func TestIngestRecordPersistFailureLeavesOrphan(t *testing.T) {
	blobs := newMemBlobStore()
	repo := &memEnvRepo{createErr: &repository.StoreFailure{Op: "insert", Collection: "environments", Err: errors.New("down")}}
	svc := newTestIngestion(blobs, repo, fixedGenerator())

	_, err := svc.Ingest(context.Background(), gardenUpload())

	ie := requireIngestionError(t, err, ReasonRecordPersist)
	assert.Equal(t, StateURLIssued, ie.State)
	assert.True(t, ie.Orphan())

	// The orphan blob is still retrievable by its key.
	rc, err := blobs.Open(context.Background(), ie.StorageKey)
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, []byte("0123456789"), got)
}

func TestIngestTimeoutDuringSave(t *testing.T) {
	blobs := newMemBlobStore()
	blobs.blockSave = true
	repo := &memEnvRepo{}
	svc := NewIngestionService(blobs, repo, fixedGenerator(), discardLogger(), IngestionOptions{
		URLExpiry: time.Hour,
		Timeout:   20 * time.Millisecond,
	})

	_, err := svc.Ingest(context.Background(), gardenUpload())

	ie := requireIngestionError(t, err, ReasonTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateValidated, ie.State)
	// The write was interrupted, so the blob may or may not exist.
	assert.True(t, ie.Indeterminate)
	assert.False(t, ie.Orphan())
	assert.Equal(t, "unreal-envs/1740823200000_scene.pak", ie.StorageKey)
	assert.Equal(t, 0, repo.count())
}

func TestIngestExpiredContextHasNoSideEffects(t *testing.T) {
	blobs := newMemBlobStore()
	repo := &memEnvRepo{}
	svc := newTestIngestion(blobs, repo, fixedGenerator())

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := svc.Ingest(ctx, gardenUpload())

	ie := requireIngestionError(t, err, ReasonTimeout)
	assert.False(t, ie.Orphan())
	assert.False(t, ie.Indeterminate)
	assert.Equal(t, 0, blobs.saves)
	assert.Equal(t, 0, repo.count())
}

func TestIngestCanceledContext(t *testing.T) {
	blobs := newMemBlobStore()
	svc := newTestIngestion(blobs, &memEnvRepo{}, fixedGenerator())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Ingest(ctx, gardenUpload())
	ie := requireIngestionError(t, err, ReasonCanceled)
	assert.False(t, ie.Indeterminate)
	assert.Equal(t, 0, blobs.saves)
}

func TestIngestBlobWriteFailureIsNotIndeterminate(t *testing.T) {
	blobs := newMemBlobStore()
	blobs.saveErr = errors.New("disk full")
	svc := newTestIngestion(blobs, &memEnvRepo{}, fixedGenerator())

	_, err := svc.Ingest(context.Background(), gardenUpload())

	ie := requireIngestionError(t, err, ReasonBlobWrite)
	assert.False(t, ie.Indeterminate)
}

func TestIngestSameNameSameMillisecondKeepsFirstBlob(t *testing.T) {
	signer, err := urlsign.NewSigner("secret")
	require.NoError(t, err)
	blobs, err := storage.NewLocalStore(t.TempDir(), "http://localhost:5000", signer)
	require.NoError(t, err)

	badger, err := repository.OpenBadgerStore("", true, discardLogger())
	require.NoError(t, err)
	defer badger.Close()
	repo := repository.NewEnvironmentRepository(badger)

	svc := newTestIngestion(blobs, repo, fixedGenerator())

	first := gardenUpload()
	first.Payload = []byte("AAAA")
	env, err := svc.Ingest(context.Background(), first)
	require.NoError(t, err)

	second := gardenUpload()
	second.Payload = []byte("BBBB")
	_, err = svc.Ingest(context.Background(), second)

	ie := requireIngestionError(t, err, ReasonBlobWrite)
	assert.ErrorIs(t, err, storage.ErrExists)
	assert.Equal(t, env.StoragePath, ie.StorageKey)
	assert.False(t, ie.Orphan())
	assert.False(t, ie.Indeterminate)

	rc, err := blobs.Open(context.Background(), env.StoragePath)
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, []byte("AAAA"), got)

	envs, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, envs, 1)
	assert.Equal(t, env.ID, envs[0].ID)
}

func TestIngestConcurrentUploadsGetDistinctKeys(t *testing.T) {
	blobs := newMemBlobStore()
	repo := &memEnvRepo{}

	// Each key is taken one millisecond after the previous one.
	var tick atomic.Int64
	keys := keygen.NewGenerator(keygen.DefaultPrefix)
	keys.Now = func() time.Time {
		return fixedNow.Add(time.Duration(tick.Add(1)) * time.Millisecond)
	}
	svc := NewIngestionService(blobs, repo, keys, discardLogger(), IngestionOptions{URLExpiry: time.Hour})

	const uploads = 8
	var wg sync.WaitGroup
	for i := 0; i < uploads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Ingest(context.Background(), gardenUpload())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	envs, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, envs, uploads)

	seen := map[string]bool{}
	for _, env := range envs {
		assert.False(t, seen[env.StoragePath], "duplicate key %s", env.StoragePath)
		seen[env.StoragePath] = true
	}
	assert.Equal(t, uploads, blobs.count())
}

func TestIngestRoundTripThroughLocalStore(t *testing.T) {
	signer, err := urlsign.NewSigner("secret")
	require.NoError(t, err)
	blobs, err := storage.NewLocalStore(t.TempDir(), "http://localhost:5000", signer)
	require.NoError(t, err)

	badger, err := repository.OpenBadgerStore("", true, discardLogger())
	require.NoError(t, err)
	defer badger.Close()
	repo := repository.NewEnvironmentRepository(badger)

	svc := newTestIngestion(blobs, repo, fixedGenerator())
	payload := []byte{0x00, 0xff, 0x10, 0x80, 'p', 'a', 'k', 0x00}
	upload := gardenUpload()
	upload.Payload = payload

	env, err := svc.Ingest(context.Background(), upload)
	require.NoError(t, err)
	assert.Contains(t, env.DownloadURL, "/files/"+env.StoragePath+"?token=")

	rc, err := blobs.Open(context.Background(), env.StoragePath)
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	envs, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, envs, 1)
	assert.Equal(t, env.ID, envs[0].ID)
}

func TestIngestionErrorMessage(t *testing.T) {
	err := &IngestionError{Reason: ReasonBlobWrite, State: StateValidated, Err: errors.New("boom")}
	assert.Equal(t, "ingestion BlobWriteError after validated: boom", err.Error())
	assert.Equal(t, "Error en desar el fitxer", ReasonBlobWrite.Message())
	assert.Equal(t, "Other", Reason("Other").Message())
}
