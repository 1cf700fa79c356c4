package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KarpovAlexandrGo/tasks-api/internal/entity"
	"github.com/KarpovAlexandrGo/tasks-api/internal/usecase"
	"github.com/KarpovAlexandrGo/tasks-api/pkg/logger"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CollectionName = "tasks"

// taskDocument is the stored shape of a task.
type taskDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Title       string             `bson:"title"`
	Description string             `bson:"description"`
	Status      string             `bson:"status"`
	DueDate     *time.Time         `bson:"dueDate,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

func (d taskDocument) toEntity() entity.Task {
	t := entity.Task{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Description: d.Description,
		Status:      d.Status,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
	if d.DueDate != nil {
		due := d.DueDate.UTC()
		t.DueDate = &due
	}
	return t
}

// bsonFields maps API field names to document keys.
var bsonFields = map[string]string{
	entity.FieldID:          "_id",
	entity.FieldTitle:       "title",
	entity.FieldDescription: "description",
	entity.FieldStatus:      "status",
	entity.FieldDueDate:     "dueDate",
	entity.FieldCreatedAt:   "createdAt",
	entity.FieldUpdatedAt:   "updatedAt",
}

type TaskRepository struct {
	coll    *mongo.Collection
	timeout time.Duration
	logger  *logrus.Logger
	now     func() time.Time
}

func NewTaskRepository(db *mongo.Database, timeout time.Duration) *TaskRepository {
	return &TaskRepository{
		coll:    db.Collection(CollectionName),
		timeout: timeout,
		logger:  logger.Log,
		now:     func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

var _ usecase.TaskRepository = (*TaskRepository)(nil)

// EnsureIndexes creates the unique title index that makes the title check race-free.
func (r *TaskRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "title", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("title_unique"),
	})
	if err != nil {
		return fmt.Errorf("failed to create title index: %w", err)
	}
	return nil
}

func (r *TaskRepository) IsValidID(id string) bool {
	return primitive.IsValidObjectID(id)
}

func (r *TaskRepository) FindAll(ctx context.Context, fields ...string) ([]entity.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	opts := options.Find()
	if len(fields) > 0 {
		projection := bson.D{}
		for _, f := range fields {
			if key, ok := bsonFields[f]; ok {
				projection = append(projection, bson.E{Key: key, Value: 1})
			}
		}
		opts.SetProjection(projection)
	}

	cursor, err := r.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		r.logger.WithFields(logrus.Fields{
			"method": "FindAll",
		}).WithError(err).Error("Failed to list tasks")
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	var docs []taskDocument
	if err := cursor.All(ctx, &docs); err != nil {
		r.logger.WithFields(logrus.Fields{
			"method": "FindAll",
		}).WithError(err).Error("Failed to decode tasks")
		return nil, fmt.Errorf("failed to decode tasks: %w", err)
	}

	tasks := make([]entity.Task, 0, len(docs))
	for _, d := range docs {
		tasks = append(tasks, d.toEntity())
	}
	return tasks, nil
}

func (r *TaskRepository) FindByField(ctx context.Context, field, value string) (entity.Task, error) {
	key, ok := bsonFields[field]
	if !ok {
		return entity.Task{}, fmt.Errorf("field %q is not searchable", field)
	}
	if key == "_id" {
		return r.FindByID(ctx, value)
	}
	return r.findOne(ctx, "FindByField", bson.M{key: value})
}

func (r *TaskRepository) FindByID(ctx context.Context, id string) (entity.Task, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return entity.Task{}, usecase.ErrTaskNotFound
	}
	return r.findOne(ctx, "FindByID", bson.M{"_id": oid})
}

func (r *TaskRepository) findOne(ctx context.Context, method string, filter bson.M) (entity.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var doc taskDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return entity.Task{}, usecase.ErrTaskNotFound
		}
		r.logger.WithFields(logrus.Fields{
			"method": method,
		}).WithError(err).Error("Failed to get task")
		return entity.Task{}, fmt.Errorf("failed to get task: %w", err)
	}
	return doc.toEntity(), nil
}

func (r *TaskRepository) Insert(ctx context.Context, task entity.Task) (entity.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	now := r.now()
	doc := taskDocument{
		ID:          primitive.NewObjectID(),
		Title:       task.Title,
		Description: task.Description,
		Status:      task.Status,
		DueDate:     truncate(task.DueDate),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			r.logger.WithFields(logrus.Fields{
				"method": "Insert",
				"title":  task.Title,
			}).Warn("Duplicate task title")
			return entity.Task{}, usecase.ErrDuplicateTitle
		}
		r.logger.WithFields(logrus.Fields{
			"method": "Insert",
			"title":  task.Title,
		}).WithError(err).Error("Failed to create task")
		return entity.Task{}, fmt.Errorf("failed to create task: %w", err)
	}

	return doc.toEntity(), nil
}

func (r *TaskRepository) UpdateByID(ctx context.Context, id string, patch entity.TaskPatch) (entity.Task, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return entity.Task{}, usecase.ErrTaskNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	set := bson.M{"updatedAt": r.now()}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Status != nil {
		set["status"] = *patch.Status
	}
	if patch.DueDate != nil {
		set["dueDate"] = *truncate(patch.DueDate)
	}
	update := bson.M{"$set": set}
	if patch.ClearDueDate {
		update["$unset"] = bson.M{"dueDate": ""}
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc taskDocument
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			r.logger.WithFields(logrus.Fields{
				"method":  "UpdateByID",
				"task_id": id,
			}).Warn("Task not found for update")
			return entity.Task{}, usecase.ErrTaskNotFound
		}
		r.logger.WithFields(logrus.Fields{
			"method":  "UpdateByID",
			"task_id": id,
		}).WithError(err).Error("Failed to update task")
		return entity.Task{}, fmt.Errorf("failed to update task: %w", err)
	}

	return doc.toEntity(), nil
}

func (r *TaskRepository) DeleteByID(ctx context.Context, id string) (entity.Task, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return entity.Task{}, usecase.ErrTaskNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var doc taskDocument
	if err := r.coll.FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			r.logger.WithFields(logrus.Fields{
				"method":  "DeleteByID",
				"task_id": id,
			}).Warn("Task not found for deletion")
			return entity.Task{}, usecase.ErrTaskNotFound
		}
		r.logger.WithFields(logrus.Fields{
			"method":  "DeleteByID",
			"task_id": id,
		}).WithError(err).Error("Failed to delete task")
		return entity.Task{}, fmt.Errorf("failed to delete task: %w", err)
	}

	return doc.toEntity(), nil
}

// truncate drops precision BSON dates cannot hold.
func truncate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := t.UTC().Truncate(time.Millisecond)
	return &d
}
