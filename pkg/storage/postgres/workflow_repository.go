package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/flowbaker/weave/pkg/domain"
	"github.com/flowbaker/weave/pkg/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

const selectColumns = `id, user_id, name, slug, snapshot, created_at, updated_at`

// WorkflowRepository implements domain.WorkflowRepository on PostgreSQL.
// Snapshots are stored as JSONB.
type WorkflowRepository struct {
	db  *pgxpool.Pool
	now func() time.Time
}

func NewWorkflowRepository(db *pgxpool.Pool) *WorkflowRepository {
	return &WorkflowRepository{
		db:  db,
		now: time.Now,
	}
}

func (r *WorkflowRepository) Create(ctx context.Context, workflow domain.Workflow) (domain.Workflow, error) {
	workflow, err := storage.PrepareCreate(workflow, r.now().UTC())
	if err != nil {
		return domain.Workflow{}, err
	}

	snapshot, err := json.Marshal(workflow.Snapshot)
	if err != nil {
		return domain.Workflow{}, fmt.Errorf("workflows: marshal snapshot: %w", err)
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO workflows (id, user_id, name, slug, snapshot, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		workflow.ID, workflow.UserID, workflow.Name, workflow.Slug, snapshot, workflow.CreatedAt, workflow.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.Workflow{}, domain.ErrDuplicateID
		}

		return domain.Workflow{}, fmt.Errorf("workflows: insert %s: %w", workflow.ID, err)
	}

	return workflow, nil
}

func (r *WorkflowRepository) GetByID(ctx context.Context, userID, workflowID string) (domain.Workflow, error) {
	if userID == "" {
		return domain.Workflow{}, domain.ErrUnauthenticated
	}

	row := r.db.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM workflows WHERE id = $1 AND user_id = $2`, workflowID, userID)

	return scanWorkflow(row)
}

func (r *WorkflowRepository) Update(ctx context.Context, workflow domain.Workflow) (domain.Workflow, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.Workflow{}, fmt.Errorf("workflows: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	stored, err := scanWorkflow(tx.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM workflows WHERE id = $1 FOR UPDATE`, workflow.ID))
	if err != nil {
		return domain.Workflow{}, err
	}

	updated, err := storage.PrepareUpdate(stored, workflow, r.now().UTC())
	if err != nil {
		return domain.Workflow{}, err
	}

	snapshot, err := json.Marshal(updated.Snapshot)
	if err != nil {
		return domain.Workflow{}, fmt.Errorf("workflows: marshal snapshot: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE workflows SET name = $1, slug = $2, snapshot = $3, updated_at = $4 WHERE id = $5`,
		updated.Name, updated.Slug, snapshot, updated.UpdatedAt, updated.ID,
	); err != nil {
		return domain.Workflow{}, fmt.Errorf("workflows: update %s: %w", updated.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Workflow{}, fmt.Errorf("workflows: commit: %w", err)
	}

	return updated, nil
}

func (r *WorkflowRepository) ListByUser(ctx context.Context, params domain.ListWorkflowsParams) ([]domain.Workflow, error) {
	if params.UserID == "" {
		return nil, domain.ErrUnauthenticated
	}

	limit, offset := storage.ListWindow(params)

	rows, err := r.db.Query(ctx,
		`SELECT `+selectColumns+` FROM workflows WHERE user_id = $1 ORDER BY updated_at DESC, id LIMIT $2 OFFSET $3`,
		params.UserID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("workflows: query: %w", err)
	}
	defer rows.Close()

	workflows := []domain.Workflow{}

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, workflow)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("workflows: rows: %w", err)
	}

	return workflows, nil
}

func (r *WorkflowRepository) Delete(ctx context.Context, userID, workflowID string) error {
	if userID == "" {
		return domain.ErrUnauthenticated
	}

	tag, err := r.db.Exec(ctx, `DELETE FROM workflows WHERE id = $1 AND user_id = $2`, workflowID, userID)
	if err != nil {
		return fmt.Errorf("workflows: delete %s: %w", workflowID, err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrWorkflowNotFound
	}

	return nil
}

func scanWorkflow(row pgx.Row) (domain.Workflow, error) {
	var (
		workflow domain.Workflow
		snapshot []byte
	)

	err := row.Scan(&workflow.ID, &workflow.UserID, &workflow.Name, &workflow.Slug, &snapshot, &workflow.CreatedAt, &workflow.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Workflow{}, domain.ErrWorkflowNotFound
	}
	if err != nil {
		return domain.Workflow{}, fmt.Errorf("workflows: scan: %w", err)
	}

	if err := json.Unmarshal(snapshot, &workflow.Snapshot); err != nil {
		return domain.Workflow{}, fmt.Errorf("workflows: unmarshal snapshot: %w", err)
	}

	return workflow, nil
}
