package repository

import (
	"context"
	"fmt"
	"time"

	"eldercare/backend/internal/model"
)

const EnvironmentsCollection = "environments"

type EnvironmentRepository interface {
	Create(ctx context.Context, env *model.Environment) error
	List(ctx context.Context) ([]model.Environment, error)
}

// The id is owned by the store, so it is not part of the stored document.
type environmentDocument struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	StoragePath string    `json:"storagePath"`
	DownloadURL string    `json:"downloadURL"`
	CreatedAt   time.Time `json:"createdAt"`
}

type environmentRepository struct {
	store DocumentStore
}

func NewEnvironmentRepository(store DocumentStore) EnvironmentRepository {
	return &environmentRepository{store: store}
}

// Create persists env and sets env.ID to the id assigned by the store.
func (r *environmentRepository) Create(ctx context.Context, env *model.Environment) error {
	id, err := r.store.Insert(ctx, EnvironmentsCollection, environmentDocument{
		Name:        env.Name,
		Description: env.Description,
		StoragePath: env.StoragePath,
		DownloadURL: env.DownloadURL,
		CreatedAt:   env.CreatedAt,
	})
	if err != nil {
		return err
	}
	env.ID = id
	return nil
}

func (r *environmentRepository) List(ctx context.Context) ([]model.Environment, error) {
	docs, err := r.store.ListAll(ctx, EnvironmentsCollection)
	if err != nil {
		return nil, err
	}

	envs := make([]model.Environment, 0, len(docs))
	for _, doc := range docs {
		var d environmentDocument
		if err := doc.Decode(&d); err != nil {
			return nil, fmt.Errorf("failed to decode environment %s: %w", doc.ID, err)
		}
		envs = append(envs, model.Environment{
			ID:          doc.ID,
			Name:        d.Name,
			Description: d.Description,
			StoragePath: d.StoragePath,
			DownloadURL: d.DownloadURL,
			CreatedAt:   d.CreatedAt,
		})
	}
	return envs, nil
}
