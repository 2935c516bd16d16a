package store

import (
	"gorm.io/gorm"

	"github.com/orthoflow/orthoflow/internal/store/model"
)

type Store interface {
	Request() Request
	InitialMigration() error
	Close() error
}

type DataStore struct {
	db      *gorm.DB
	request Request
}

func NewStore(db *gorm.DB) Store {
	return &DataStore{
		db:      db,
		request: NewRequestStore(db),
	}
}

func (s *DataStore) Request() Request {
	return s.request
}

// InitialMigration creates the schema from the models. Deployments on
// PostgreSQL run the SQL migrations instead (see pkg/migrations).
func (s *DataStore) InitialMigration() error {
	return s.db.AutoMigrate(&model.Request{})
}

func (s *DataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
