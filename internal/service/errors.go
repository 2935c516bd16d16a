package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type ErrResourceNotFound struct {
	error
}

func NewErrResourceNotFound(id uuid.UUID, resourceType string) *ErrResourceNotFound {
	return &ErrResourceNotFound{fmt.Errorf("%s %s not found", resourceType, id)}
}

func NewErrMosaicNotFound(id uuid.UUID) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "mosaic request")
}

type ErrServiceBusy struct {
	error
}

func NewErrServiceBusy() *ErrServiceBusy {
	return &ErrServiceBusy{errors.New("processing capacity exhausted, try again later")}
}
