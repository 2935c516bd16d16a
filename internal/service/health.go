package service

import (
	"context"
	"fmt"
	"time"

	"github.com/orthoflow/orthoflow/internal/odm"
	"github.com/orthoflow/orthoflow/pkg/version"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

type NodeInfoGetter interface {
	NodeInfo(ctx context.Context) (*odm.NodeInfo, error)
}

type Status struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

type Readiness struct {
	Database string `json:"database"`
	Node     string `json:"node"`
	// NodeVersion is the version reported by the processing node.
	NodeVersion string `json:"node_version,omitempty"`
	NodeQueue   int    `json:"node_queue"`
}

func (r Readiness) Ready() bool {
	return r.Database == "ok" && r.Node == "ok"
}

type HealthService struct {
	db       Pinger
	node     NodeInfoGetter
	location *time.Location
	now      func() time.Time
}

func NewHealthService(db Pinger, node NodeInfoGetter, location *time.Location) *HealthService {
	if location == nil {
		location = time.UTC
	}
	return &HealthService{db: db, node: node, location: location, now: time.Now}
}

// Status reports that the service is up. It does not depend on any backend.
func (h *HealthService) Status() Status {
	return Status{
		Status:    "online",
		Version:   version.Get().String(),
		Timestamp: h.now().In(h.location),
	}
}

// Readiness checks the ledger database and the processing node.
func (h *HealthService) Readiness(ctx context.Context) Readiness {
	r := Readiness{Database: "ok", Node: "ok"}

	if err := h.db.PingContext(ctx); err != nil {
		r.Database = fmt.Sprintf("unavailable: %s", err)
	}

	info, err := h.node.NodeInfo(ctx)
	if err != nil {
		r.Node = fmt.Sprintf("unavailable: %s", err)
		return r
	}
	r.NodeVersion = info.Version
	r.NodeQueue = info.TaskQueueCount
	return r
}
