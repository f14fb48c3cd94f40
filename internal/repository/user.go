package repository

import (
	"context"
	"fmt"
	"time"

	"eldercare/backend/internal/model"
)

const UsersCollection = "users"

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	List(ctx context.Context) ([]model.User, error)
}

type userDocument struct {
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

type userRepository struct {
	store DocumentStore
}

func NewUserRepository(store DocumentStore) UserRepository {
	return &userRepository{store: store}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	id, err := r.store.Insert(ctx, UsersCollection, userDocument{
		Name:      user.Name,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	})
	if err != nil {
		return err
	}
	user.ID = id
	return nil
}

func (r *userRepository) List(ctx context.Context) ([]model.User, error) {
	docs, err := r.store.ListAll(ctx, UsersCollection)
	if err != nil {
		return nil, err
	}

	users := make([]model.User, 0, len(docs))
	for _, doc := range docs {
		var d userDocument
		if err := doc.Decode(&d); err != nil {
			return nil, fmt.Errorf("failed to decode user %s: %w", doc.ID, err)
		}
		users = append(users, model.User{ID: doc.ID, Name: d.Name, Email: d.Email, CreatedAt: d.CreatedAt})
	}
	return users, nil
}
