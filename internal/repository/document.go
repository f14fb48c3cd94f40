package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidCollection = errors.New("invalid collection name")

// Document is one schema-less record as held by a DocumentStore.
type Document struct {
	ID   string
	Data []byte
}

func (d Document) Decode(v any) error {
	return json.Unmarshal(d.Data, v)
}

// DocumentStore keeps JSON records in named collections and assigns their ids.
type DocumentStore interface {
	Insert(ctx context.Context, collection string, record any) (string, error)
	// ListAll returns every record of collection in insertion order.
	ListAll(ctx context.Context, collection string) ([]Document, error)
	Close() error
}

type StoreFailure struct {
	Op         string
	Collection string
	Err        error
}

func (e *StoreFailure) Error() string {
	return fmt.Sprintf("document store %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *StoreFailure) Unwrap() error {
	return e.Err
}

func storeFailure(op, collection string, err error) error {
	return &StoreFailure{Op: op, Collection: collection, Err: err}
}

func validateCollection(collection string) error {
	if strings.TrimSpace(collection) == "" || strings.ContainsAny(collection, ": /") {
		return ErrInvalidCollection
	}
	return nil
}

func encodeRecord(op, collection string, record any) ([]byte, error) {
	if err := validateCollection(collection); err != nil {
		return nil, storeFailure(op, collection, err)
	}
	data, err := json.Marshal(record)
	if err != nil {
		return nil, storeFailure(op, collection, fmt.Errorf("failed to marshal record: %w", err))
	}
	return data, nil
}
