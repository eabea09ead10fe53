package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/flowbaker/weave/pkg/domain"
	"github.com/flowbaker/weave/pkg/storage"
)

type WorkflowRepository struct {
	mu        sync.RWMutex
	workflows map[string]domain.Workflow
	now       func() time.Time
}

func NewWorkflowRepository() *WorkflowRepository {
	return &WorkflowRepository{
		workflows: make(map[string]domain.Workflow),
		now:       time.Now,
	}
}

func (r *WorkflowRepository) Create(ctx context.Context, workflow domain.Workflow) (domain.Workflow, error) {
	workflow, err := storage.PrepareCreate(workflow, r.now().UTC())
	if err != nil {
		return domain.Workflow{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.workflows[workflow.ID]; exists {
		return domain.Workflow{}, domain.ErrDuplicateID
	}

	r.workflows[workflow.ID] = cloneWorkflow(workflow)

	return workflow, nil
}

func (r *WorkflowRepository) GetByID(ctx context.Context, userID, workflowID string) (domain.Workflow, error) {
	if userID == "" {
		return domain.Workflow{}, domain.ErrUnauthenticated
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	workflow, ok := r.workflows[workflowID]
	if !ok || workflow.UserID != userID {
		return domain.Workflow{}, domain.ErrWorkflowNotFound
	}

	return cloneWorkflow(workflow), nil
}

func (r *WorkflowRepository) Update(ctx context.Context, workflow domain.Workflow) (domain.Workflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.workflows[workflow.ID]
	if !ok {
		return domain.Workflow{}, domain.ErrWorkflowNotFound
	}

	updated, err := storage.PrepareUpdate(stored, workflow, r.now().UTC())
	if err != nil {
		return domain.Workflow{}, err
	}

	r.workflows[updated.ID] = cloneWorkflow(updated)

	return updated, nil
}

func (r *WorkflowRepository) ListByUser(ctx context.Context, params domain.ListWorkflowsParams) ([]domain.Workflow, error) {
	if params.UserID == "" {
		return nil, domain.ErrUnauthenticated
	}

	limit, offset := storage.ListWindow(params)

	r.mu.RLock()
	var owned []domain.Workflow
	for _, workflow := range r.workflows {
		if workflow.UserID == params.UserID {
			owned = append(owned, cloneWorkflow(workflow))
		}
	}
	r.mu.RUnlock()

	sort.Slice(owned, func(i, j int) bool {
		if owned[i].UpdatedAt.Equal(owned[j].UpdatedAt) {
			return owned[i].ID < owned[j].ID
		}
		return owned[i].UpdatedAt.After(owned[j].UpdatedAt)
	})

	if offset >= len(owned) {
		return []domain.Workflow{}, nil
	}

	end := min(offset+limit, len(owned))

	return owned[offset:end], nil
}

func (r *WorkflowRepository) Delete(ctx context.Context, userID, workflowID string) error {
	if userID == "" {
		return domain.ErrUnauthenticated
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	workflow, ok := r.workflows[workflowID]
	if !ok || workflow.UserID != userID {
		return domain.ErrWorkflowNotFound
	}

	delete(r.workflows, workflowID)

	return nil
}

func cloneWorkflow(workflow domain.Workflow) domain.Workflow {
	workflow.Snapshot = workflow.Snapshot.Clone()
	return workflow
}
