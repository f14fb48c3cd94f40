package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type documentRow struct {
	ID         string `gorm:"primaryKey;type:uuid"`
	Collection string
	Seq        int64  `gorm:"->"`
	Data       []byte `gorm:"type:jsonb"`
	CreatedAt  time.Time
}

func (documentRow) TableName() string {
	return "documents"
}

// PostgresStore keeps every collection in the documents table, ordered by seq.
type PostgresStore struct {
	db *gorm.DB
}

func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, collection string, record any) (string, error) {
	data, err := encodeRecord("insert", collection, record)
	if err != nil {
		return "", err
	}

	row := documentRow{
		ID:         uuid.NewString(),
		Collection: collection,
		Data:       data,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", storeFailure("insert", collection, err)
	}

	return row.ID, nil
}

func (s *PostgresStore) ListAll(ctx context.Context, collection string) ([]Document, error) {
	if err := validateCollection(collection); err != nil {
		return nil, storeFailure("list", collection, err)
	}

	var rows []documentRow
	err := s.db.WithContext(ctx).
		Where("collection = ?", collection).
		Order("seq").
		Find(&rows).Error
	if err != nil {
		return nil, storeFailure("list", collection, err)
	}

	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, Document{ID: row.ID, Data: row.Data})
	}
	return docs, nil
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ DocumentStore = (*PostgresStore)(nil)
