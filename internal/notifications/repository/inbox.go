package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	notificationserrors "uniparking/internal/notifications/errors"
	"uniparking/pkg/config"
	"uniparking/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Notifications"
)

type InboxRepository interface {
	// Insert stores n unless a notification for the same event id already
	// exists. inserted is false for a redelivered event.
	Insert(ctx context.Context, n *model.Notification) (inserted bool, err error)
	FindByUser(ctx context.Context, userID int64, unreadOnly bool, limit int, offset int64) ([]*model.Notification, error)
	CountByUser(ctx context.Context, userID int64, unreadOnly bool) (int64, error)
	MarkRead(ctx context.Context, userID int64, id string, at time.Time) (*model.Notification, error)
}

type mongoInboxRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoInboxRepository(cfg *config.Config) InboxRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoInboxRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoInboxRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline && time.Until(deadline) < timeout {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoInboxRepository) Insert(ctx context.Context, n *model.Notification) (bool, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	n.CreatedAt = n.CreatedAt.UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, n)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert notification: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		n.ID = oid
	}
	return true, nil
}

func userFilter(userID int64, unreadOnly bool) bson.M {
	filter := bson.M{"user_id": userID}
	if unreadOnly {
		filter["read"] = false
	}
	return filter
}

func (r *mongoInboxRepository) FindByUser(ctx context.Context, userID int64, unreadOnly bool, limit int, offset int64) ([]*model.Notification, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, userFilter(userID, unreadOnly), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find notifications: %w", err)
	}
	defer cursor.Close(ctx)

	notifications := make([]*model.Notification, 0)
	if err = cursor.All(ctx, &notifications); err != nil {
		return nil, fmt.Errorf("failed to decode notifications: %w", err)
	}
	return notifications, nil
}

func (r *mongoInboxRepository) CountByUser(ctx context.Context, userID int64, unreadOnly bool) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, userFilter(userID, unreadOnly))
	if err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return count, nil
}

// MarkRead only matches documents owned by userID, so another user's id reads
// as not found.
func (r *mongoInboxRepository) MarkRead(ctx context.Context, userID int64, id string, at time.Time) (*model.Notification, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", notificationserrors.ErrInvalidID, id)
	}

	// read_at keeps the first read time on repeat calls.
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"read":    true,
			"read_at": bson.M{"$ifNull": bson.A{"$read_at", at.UTC().Truncate(time.Millisecond)}},
		}}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var n model.Notification
	err = r.collection.FindOneAndUpdate(ctx, bson.M{"_id": objectID, "user_id": userID}, update, opts).Decode(&n)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notificationserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to mark notification read: %w", err)
	}
	return &n, nil
}
