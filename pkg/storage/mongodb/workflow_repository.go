package mongodb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/flowbaker/weave/pkg/domain"
	"github.com/flowbaker/weave/pkg/storage"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const workflowsCollection = "workflows"

// Connect opens a client and returns the named database.
func Connect(ctx context.Context, uri, database string) (*mongo.Client, *mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return client, client.Database(database), nil
}

type workflowDocument struct {
	domain.Workflow `bson:",inline"`
	Snapshot        bson.M `bson:"snapshot"`
}

// WorkflowRepository implements domain.WorkflowRepository on MongoDB. The
// snapshot is stored as a nested document so it stays queryable.
type WorkflowRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

func NewWorkflowRepository(database *mongo.Database) *WorkflowRepository {
	repo := &WorkflowRepository{
		collection: database.Collection(workflowsCollection),
		now:        time.Now,
	}
	repo.ensureIndexes()
	return repo
}

func (r *WorkflowRepository) ensureIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "updated_at", Value: -1},
			},
		},
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		log.Error().Err(err).Msg("Failed to create indexes for workflows")
	}
}

func (r *WorkflowRepository) Create(ctx context.Context, workflow domain.Workflow) (domain.Workflow, error) {
	workflow, err := storage.PrepareCreate(workflow, r.now().UTC().Truncate(time.Millisecond))
	if err != nil {
		return domain.Workflow{}, err
	}

	doc, err := toDocument(workflow)
	if err != nil {
		return domain.Workflow{}, err
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.Workflow{}, domain.ErrDuplicateID
		}

		return domain.Workflow{}, fmt.Errorf("failed to insert workflow: %w", err)
	}

	return workflow, nil
}

func (r *WorkflowRepository) GetByID(ctx context.Context, userID, workflowID string) (domain.Workflow, error) {
	if userID == "" {
		return domain.Workflow{}, domain.ErrUnauthenticated
	}

	return r.findOne(ctx, bson.M{"_id": workflowID, "user_id": userID})
}

func (r *WorkflowRepository) Update(ctx context.Context, workflow domain.Workflow) (domain.Workflow, error) {
	stored, err := r.findOne(ctx, bson.M{"_id": workflow.ID})
	if err != nil {
		return domain.Workflow{}, err
	}

	updated, err := storage.PrepareUpdate(stored, workflow, r.now().UTC().Truncate(time.Millisecond))
	if err != nil {
		return domain.Workflow{}, err
	}

	doc, err := toDocument(updated)
	if err != nil {
		return domain.Workflow{}, err
	}

	filter := bson.M{"_id": updated.ID, "user_id": updated.UserID}
	update := bson.M{
		"$set": bson.M{
			"name":       doc.Name,
			"slug":       doc.Slug,
			"snapshot":   doc.Snapshot,
			"updated_at": doc.UpdatedAt,
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return domain.Workflow{}, fmt.Errorf("failed to update workflow: %w", err)
	}

	if result.MatchedCount == 0 {
		return domain.Workflow{}, domain.ErrWorkflowNotFound
	}

	return updated, nil
}

func (r *WorkflowRepository) ListByUser(ctx context.Context, params domain.ListWorkflowsParams) ([]domain.Workflow, error) {
	if params.UserID == "" {
		return nil, domain.ErrUnauthenticated
	}

	limit, offset := storage.ListWindow(params)

	findOptions := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	cursor, err := r.collection.Find(ctx, bson.M{"user_id": params.UserID}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to find workflows: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []workflowDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode workflows: %w", err)
	}

	workflows := make([]domain.Workflow, 0, len(docs))
	for _, doc := range docs {
		workflow, err := fromDocument(doc)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, workflow)
	}

	return workflows, nil
}

func (r *WorkflowRepository) Delete(ctx context.Context, userID, workflowID string) error {
	if userID == "" {
		return domain.ErrUnauthenticated
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": workflowID, "user_id": userID})
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	if result.DeletedCount == 0 {
		return domain.ErrWorkflowNotFound
	}

	return nil
}

func (r *WorkflowRepository) findOne(ctx context.Context, filter bson.M) (domain.Workflow, error) {
	var doc workflowDocument

	err := r.collection.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Workflow{}, domain.ErrWorkflowNotFound
	}
	if err != nil {
		return domain.Workflow{}, fmt.Errorf("failed to find workflow: %w", err)
	}

	return fromDocument(doc)
}

func toDocument(workflow domain.Workflow) (workflowDocument, error) {
	data, err := json.Marshal(workflow.Snapshot)
	if err != nil {
		return workflowDocument{}, fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	var snapshot bson.M
	if err := bson.UnmarshalExtJSON(data, false, &snapshot); err != nil {
		return workflowDocument{}, fmt.Errorf("failed to convert snapshot: %w", err)
	}

	return workflowDocument{Workflow: workflow, Snapshot: snapshot}, nil
}

func fromDocument(doc workflowDocument) (domain.Workflow, error) {
	workflow := doc.Workflow

	if doc.Snapshot == nil {
		return workflow, nil
	}

	data, err := bson.MarshalExtJSON(doc.Snapshot, false, false)
	if err != nil {
		return domain.Workflow{}, fmt.Errorf("failed to convert snapshot: %w", err)
	}

	if err := json.Unmarshal(data, &workflow.Snapshot); err != nil {
		return domain.Workflow{}, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	return workflow, nil
}
