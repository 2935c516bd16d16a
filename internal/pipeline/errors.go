package pipeline

import (
	"errors"
	"fmt"
)

const (
	KindNoInput          = "no_input"
	KindSubmitFailed     = "submit_failed"
	KindProcessingFailed = "processing_failed"
	KindResultMissing    = "result_missing"
	KindPublishFailed    = "publish_failed"
	KindCommitFailed     = "commit_failed"
	KindUnexpected       = "unexpected"
)

// abortError is implemented by every error ending a run early. The error text
// is the reason stored in the ledger and sent with the notification.
type abortError interface {
	error
	Kind() string
}

type ErrNoInput struct {
	error
}

func NewErrNoInput() *ErrNoInput {
	return &ErrNoInput{errors.New("no images found for project")}
}

func (e *ErrNoInput) Kind() string { return KindNoInput }

type ErrSubmission struct {
	error
}

func NewErrSubmission(cause error) *ErrSubmission {
	return &ErrSubmission{fmt.Errorf("failed to start remote processing: %w", cause)}
}

func (e *ErrSubmission) Kind() string { return KindSubmitFailed }

func (e *ErrSubmission) Unwrap() error { return e.error }

type ErrProcessing struct {
	error
	Status string
}

func NewErrProcessing(status string) *ErrProcessing {
	return &ErrProcessing{error: fmt.Errorf("processing failed: %s", status), Status: status}
}

func (e *ErrProcessing) Kind() string { return KindProcessingFailed }

type ErrResultMissing struct {
	error
}

func NewErrResultMissing() *ErrResultMissing {
	return &ErrResultMissing{errors.New("orthophoto not found in results")}
}

func (e *ErrResultMissing) Kind() string { return KindResultMissing }

type ErrPublish struct {
	error
}

func NewErrPublish(cause error) *ErrPublish {
	return &ErrPublish{fmt.Errorf("failed to upload orthophoto: %w", cause)}
}

func (e *ErrPublish) Kind() string { return KindPublishFailed }

func (e *ErrPublish) Unwrap() error { return e.error }

type ErrCommit struct {
	error
}

func NewErrCommit(cause error) *ErrCommit {
	return &ErrCommit{fmt.Errorf("failed to update request record: %w", cause)}
}

func (e *ErrCommit) Kind() string { return KindCommitFailed }

func (e *ErrCommit) Unwrap() error { return e.error }

type ErrUnexpected struct {
	error
}

func NewErrUnexpected(cause error) *ErrUnexpected {
	return &ErrUnexpected{cause}
}

func (e *ErrUnexpected) Kind() string { return KindUnexpected }

func (e *ErrUnexpected) Unwrap() error { return e.error }

// KindOf returns the kind of the abort error err. Errors that are not abort
// errors are unexpected.
func KindOf(err error) string {
	var ae abortError
	if errors.As(err, &ae) {
		return ae.Kind()
	}
	return KindUnexpected
}

func asAbortError(err error) abortError {
	var ae abortError
	if errors.As(err, &ae) {
		return ae
	}
	return NewErrUnexpected(err)
}
