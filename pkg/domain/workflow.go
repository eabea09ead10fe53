package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrWorkflowNotFound = errors.New("workflow not found")
	ErrUnauthenticated  = errors.New("authenticated user is required")
)

type Workflow struct {
	ID        string    `json:"id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	Slug      string    `json:"slug" bson:"slug"`
	UserID    string    `json:"user_id" bson:"user_id"`
	Snapshot  Snapshot  `json:"snapshot" bson:"-"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

type ListWorkflowsParams struct {
	UserID string
	Limit  int
	Offset int
}

type WorkflowRepository interface {
	Create(ctx context.Context, workflow Workflow) (Workflow, error)
	GetByID(ctx context.Context, userID, workflowID string) (Workflow, error)
	Update(ctx context.Context, workflow Workflow) (Workflow, error)
	ListByUser(ctx context.Context, params ListWorkflowsParams) ([]Workflow, error)
	Delete(ctx context.Context, userID, workflowID string) error
}
