// Package storage holds the rules shared by every WorkflowRepository
// implementation.
package storage

import (
	"errors"
	"strings"
	"time"

	"github.com/flowbaker/weave/pkg/domain"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

var ErrWorkflowNameRequired = errors.New("workflow name is required")

// PrepareCreate validates a new workflow and fills in its id, slug and
// timestamps.
func PrepareCreate(workflow domain.Workflow, now time.Time) (domain.Workflow, error) {
	if workflow.UserID == "" {
		return domain.Workflow{}, domain.ErrUnauthenticated
	}

	workflow.Name = strings.TrimSpace(workflow.Name)
	if workflow.Name == "" {
		return domain.Workflow{}, ErrWorkflowNameRequired
	}

	if workflow.ID == "" {
		workflow.ID = uuid.NewString()
	}

	workflow.Slug = slug.Make(workflow.Name)
	workflow.Snapshot = normalizeSnapshot(workflow.Snapshot)
	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	return workflow, nil
}

// PrepareUpdate merges an update into the stored workflow. Ownership and
// creation time are taken from the stored copy.
func PrepareUpdate(stored, update domain.Workflow, now time.Time) (domain.Workflow, error) {
	if update.UserID == "" {
		return domain.Workflow{}, domain.ErrUnauthenticated
	}

	if stored.UserID != update.UserID {
		return domain.Workflow{}, domain.ErrWorkflowNotFound
	}

	name := strings.TrimSpace(update.Name)
	if name == "" {
		name = stored.Name
	}

	stored.Name = name
	stored.Slug = slug.Make(name)
	stored.Snapshot = normalizeSnapshot(update.Snapshot)
	stored.UpdatedAt = now

	return stored, nil
}

// ListWindow clamps the pagination parameters.
func ListWindow(params domain.ListWorkflowsParams) (limit, offset int) {
	limit = params.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	offset = params.Offset
	if offset < 0 {
		offset = 0
	}

	return limit, offset
}

func normalizeSnapshot(snapshot domain.Snapshot) domain.Snapshot {
	if snapshot.Nodes == nil {
		snapshot.Nodes = []domain.Node{}
	}

	if snapshot.Edges == nil {
		snapshot.Edges = []domain.Edge{}
	}

	return snapshot
}
