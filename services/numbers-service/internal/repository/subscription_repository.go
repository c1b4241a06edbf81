package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vanityline/vanityline/pkg/database"
	"github.com/vanityline/vanityline/services/numbers-service/internal/models"
)

const subscriptionsCollection = "subscriptions"

type SubscriptionRepository struct {
	collection *mongo.Collection
}

func NewSubscriptionRepository(db *mongo.Database) *SubscriptionRepository {
	return &SubscriptionRepository{collection: db.Collection(subscriptionsCollection)}
}

func (r *SubscriptionRepository) Create(ctx context.Context, s *models.Subscription) error {
	result, err := r.collection.InsertOne(ctx, s)
	if err != nil {
		if database.IsDuplicateKey(err) {
			return models.ErrAlreadySubscribed
		}
		return fmt.Errorf("failed to insert subscription: %w", err)
	}

	s.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *SubscriptionRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Subscription, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *SubscriptionRepository) FindActive(ctx context.Context, userID, numberID primitive.ObjectID) (*models.Subscription, error) {
	return r.findOne(ctx, bson.M{
		"user":         userID,
		"phone_number": numberID,
		"status":       models.SubscriptionActive,
	})
}

func (r *SubscriptionRepository) findOne(ctx context.Context, filter bson.M) (*models.Subscription, error) {
	var s models.Subscription
	err := r.collection.FindOne(ctx, filter).Decode(&s)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find subscription: %w", err)
	}
	return &s, nil
}

func (r *SubscriptionRepository) FindByUser(ctx context.Context, userID primitive.ObjectID) ([]*models.Subscription, error) {
	return r.find(ctx, bson.M{"user": userID}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

func (r *SubscriptionRepository) List(ctx context.Context, filter models.SubscriptionFilter) ([]*models.Subscription, int64, error) {
	query := bson.M{}
	if filter.User != nil {
		query["user"] = *filter.User
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Plan != "" {
		query["plan"] = filter.Plan
	}

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count subscriptions: %w", err)
	}

	page, limit := models.NormalizePage(filter.Page, filter.Limit)
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	subs, err := r.find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	return subs, total, nil
}

// FindExpired returns subscriptions past their end date that have not been marked expired,
// oldest end date first.
func (r *SubscriptionRepository) FindExpired(ctx context.Context, now time.Time) ([]*models.Subscription, error) {
	return r.find(ctx, bson.M{
		"end_date": bson.M{"$lt": now},
		"status":   bson.M{"$ne": models.SubscriptionExpired},
	}, options.Find().SetSort(bson.D{{Key: "end_date", Value: 1}}))
}

// FindExpiringBetween returns active subscriptions ending in [start, end) that have not had a reminder.
func (r *SubscriptionRepository) FindExpiringBetween(ctx context.Context, start, end time.Time) ([]*models.Subscription, error) {
	return r.find(ctx, bson.M{
		"status":                models.SubscriptionActive,
		"renewal_reminder_sent": false,
		"end_date":              bson.M{"$gte": start, "$lt": end},
	}, options.Find().SetSort(bson.D{{Key: "end_date", Value: 1}}))
}

func (r *SubscriptionRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*models.Subscription, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find subscriptions: %w", err)
	}
	defer cursor.Close(ctx)

	subs := make([]*models.Subscription, 0)
	for cursor.Next(ctx) {
		var s models.Subscription
		if err := cursor.Decode(&s); err != nil {
			return nil, fmt.Errorf("failed to decode subscription: %w", err)
		}
		subs = append(subs, &s)
	}

	return subs, cursor.Err()
}

func (r *SubscriptionRepository) Save(ctx context.Context, s *models.Subscription) error {
	update := bson.M{
		"$set": bson.M{
			"plan":                  s.Plan,
			"status":                s.Status,
			"start_date":            s.StartDate,
			"end_date":              s.EndDate,
			"auto_renew":            s.AutoRenew,
			"price":                 s.Price,
			"minutes_used":          s.MinutesUsed,
			"renewal_reminder_sent": s.RenewalReminderSent,
			"cancelled_at":          s.CancelledAt,
			"updated_at":            s.UpdatedAt,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": s.ID}, update)
	if err != nil {
		if database.IsDuplicateKey(err) {
			return models.ErrAlreadySubscribed
		}
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	if result.MatchedCount == 0 {
		return models.ErrSubscriptionNotFound
	}
	return nil
}

func (r *SubscriptionRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	if result.DeletedCount == 0 {
		return models.ErrSubscriptionNotFound
	}
	return nil
}

func (r *SubscriptionRepository) CountByStatus(ctx context.Context) (map[models.SubscriptionStatus]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to count subscriptions by status: %w", err)
	}
	defer cursor.Close(ctx)

	counts := make(map[models.SubscriptionStatus]int64)
	for cursor.Next(ctx) {
		var row struct {
			Status models.SubscriptionStatus `bson:"_id"`
			Count  int64                     `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("failed to decode status count: %w", err)
		}
		counts[row.Status] = row.Count
	}

	return counts, cursor.Err()
}

// CreateIndexes includes a partial unique index so two active subscriptions for the same
// user and number cannot both be written, even when the pre-check races.
func (r *SubscriptionRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		database.PartialUniqueIndex(bson.M{"status": models.SubscriptionActive}, "user", "phone_number"),
		database.Index("status", "end_date"),
		database.Index("status", "renewal_reminder_sent", "end_date"),
		database.Index("user", "created_at"),
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create subscription indexes: %w", err)
	}
	return nil
}
