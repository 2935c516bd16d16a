package odm

import (
	"encoding/json"
	"fmt"
	"time"
)

// StatusCode is the NodeODM task status code.
type StatusCode int

const (
	StatusQueued    StatusCode = 10
	StatusRunning   StatusCode = 20
	StatusFailed    StatusCode = 30
	StatusCompleted StatusCode = 40
	StatusCanceled  StatusCode = 50
)

func (c StatusCode) String() string {
	switch c {
	case StatusQueued:
		return "QUEUED"
	case StatusRunning:
		return "RUNNING"
	case StatusFailed:
		return "FAILED"
	case StatusCompleted:
		return "COMPLETED"
	case StatusCanceled:
		return "CANCELED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(c))
	}
}

// Terminal reports whether the remote node will not move the task out of this status anymore.
func (c StatusCode) Terminal() bool {
	return c == StatusFailed || c == StatusCompleted || c == StatusCanceled
}

// Task is the handle of a task created on a processing node.
type Task struct {
	UUID string
}

type TaskStatus struct {
	Code         StatusCode `json:"code"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
}

// TaskInfo is the payload of GET /task/{uuid}/info.
type TaskInfo struct {
	UUID           string     `json:"uuid"`
	Name           string     `json:"name"`
	DateCreated    int64      `json:"dateCreated"`
	ProcessingTime int64      `json:"processingTime"`
	Status         TaskStatus `json:"status"`
	ImagesCount    int        `json:"imagesCount"`
	Progress       float64    `json:"progress"`
}

// ProcessingDuration is the time the node spent processing the task. It is
// zero while the node did not report it.
func (t TaskInfo) ProcessingDuration() time.Duration {
	if t.ProcessingTime <= 0 {
		return 0
	}
	return time.Duration(t.ProcessingTime) * time.Millisecond
}

// NodeInfo is the payload of GET /info.
type NodeInfo struct {
	Version        string `json:"version"`
	TaskQueueCount int    `json:"taskQueueCount"`
	MaxImages      *int   `json:"maxImages"`
	Engine         string `json:"engine"`
	EngineVersion  string `json:"engineVersion"`
}

// Options is the processing option bundle sent along a new task.
type Options map[string]any

type option struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// MarshalJSON encodes the options the way NodeODM expects them: a list of name/value pairs.
func (o Options) MarshalJSON() ([]byte, error) {
	list := make([]option, 0, len(o))
	for _, name := range sortedKeys(o) {
		list = append(list, option{Name: name, Value: o[name]})
	}
	return json.Marshal(list)
}

type errorResponse struct {
	Error string `json:"error"`
}

type newTaskResponse struct {
	errorResponse
	UUID string `json:"uuid"`
}
