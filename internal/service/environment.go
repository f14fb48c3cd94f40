package service

import (
	"context"
	"fmt"

	"eldercare/backend/internal/model"
	"eldercare/backend/internal/pkg/storage"
	"eldercare/backend/internal/repository"
)

type environmentService struct {
	envRepo repository.EnvironmentRepository
	blobs   storage.BlobStore
	prefix  string
}

func NewEnvironmentService(envRepo repository.EnvironmentRepository, blobs storage.BlobStore, prefix string) EnvironmentService {
	return &environmentService{envRepo: envRepo, blobs: blobs, prefix: prefix}
}

func (s *environmentService) ListEnvironments(ctx context.Context) ([]model.Environment, error) {
	return s.envRepo.List(ctx)
}

func (s *environmentService) FindOrphans(ctx context.Context) ([]string, error) {
	envs, err := s.envRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list environments: %w", err)
	}
	keys, err := s.blobs.List(ctx, s.prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}

	referenced := make(map[string]struct{}, len(envs))
	for _, env := range envs {
		referenced[env.StoragePath] = struct{}{}
	}

	orphans := []string{}
	for _, key := range keys {
		if _, ok := referenced[key]; !ok {
			orphans = append(orphans, key)
		}
	}
	return orphans, nil
}
