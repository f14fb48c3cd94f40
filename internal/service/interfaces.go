package service

import (
	"context"

	"eldercare/backend/internal/model"
)

type IngestionService interface {
	// Ingest runs one upload through the pipeline. Failures are *IngestionError.
	Ingest(ctx context.Context, upload model.UploadDescriptor) (*model.Environment, error)
}

type EnvironmentService interface {
	ListEnvironments(ctx context.Context) ([]model.Environment, error)
	// FindOrphans returns blob keys that no environment record points at.
	FindOrphans(ctx context.Context) ([]string, error)
}

type UserService interface {
	CreateUser(ctx context.Context, name, email string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
}
