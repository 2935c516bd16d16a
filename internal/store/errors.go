package store

import "errors"

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrCreateRequest  = errors.New("failed to create request record")
	ErrEmptyUpdate    = errors.New("no fields to update")
)
