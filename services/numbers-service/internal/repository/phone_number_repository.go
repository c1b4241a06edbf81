package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vanityline/vanityline/pkg/database"
	"github.com/vanityline/vanityline/services/numbers-service/internal/models"
)

const phoneNumbersCollection = "phone_numbers"

type PhoneNumberRepository struct {
	collection *mongo.Collection
}

func NewPhoneNumberRepository(db *mongo.Database) *PhoneNumberRepository {
	return &PhoneNumberRepository{collection: db.Collection(phoneNumbersCollection)}
}

func (r *PhoneNumberRepository) Create(ctx context.Context, p *models.PhoneNumber) error {
	p.Version = 0
	result, err := r.collection.InsertOne(ctx, p)
	if err != nil {
		if database.IsDuplicateKey(err) {
			return fmt.Errorf("%w: %s", models.ErrDuplicateNumber, p.Number)
		}
		return fmt.Errorf("failed to insert phone number: %w", err)
	}

	p.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *PhoneNumberRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.PhoneNumber, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *PhoneNumberRepository) FindByNumber(ctx context.Context, number string) (*models.PhoneNumber, error) {
	return r.findOne(ctx, bson.M{"number": number})
}

func (r *PhoneNumberRepository) findOne(ctx context.Context, filter bson.M) (*models.PhoneNumber, error) {
	var p models.PhoneNumber
	err := r.collection.FindOne(ctx, filter).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find phone number: %w", err)
	}
	return &p, nil
}

func (r *PhoneNumberRepository) List(ctx context.Context, filter models.PhoneNumberFilter) ([]*models.PhoneNumber, int64, error) {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Type != "" {
		query["type"] = filter.Type
	}
	if filter.Search != "" {
		query["number"] = bson.M{"$regex": regexp.QuoteMeta(filter.Search), "$options": "i"}
	}
	if filter.MinPrice != nil || filter.MaxPrice != nil {
		price := bson.M{}
		if filter.MinPrice != nil {
			price["$gte"] = *filter.MinPrice
		}
		if filter.MaxPrice != nil {
			price["$lte"] = *filter.MaxPrice
		}
		query["price"] = price
	}

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count phone numbers: %w", err)
	}

	sortField := "number"
	switch filter.SortBy {
	case "price", "created_at", "number":
		sortField = filter.SortBy
	}
	order := 1
	if filter.SortDesc {
		order = -1
	}

	page, limit := models.NormalizePage(filter.Page, filter.Limit)
	opts := options.Find().
		SetSort(bson.D{{Key: sortField, Value: order}, {Key: "_id", Value: 1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	numbers, err := r.find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	return numbers, total, nil
}

func (r *PhoneNumberRepository) FindByUser(ctx context.Context, userID primitive.ObjectID) ([]*models.PhoneNumber, error) {
	return r.find(ctx, bson.M{"user": userID}, options.Find().SetSort(bson.D{{Key: "number", Value: 1}}))
}

func (r *PhoneNumberRepository) FindExpiredReservations(ctx context.Context, now time.Time) ([]*models.PhoneNumber, error) {
	return r.find(ctx, bson.M{
		"status":         models.NumberReserved,
		"reserved_until": bson.M{"$lt": now},
	}, nil)
}

func (r *PhoneNumberRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*models.PhoneNumber, error) {
	var findOpts []*options.FindOptions
	if opts != nil {
		findOpts = append(findOpts, opts)
	}

	cursor, err := r.collection.Find(ctx, filter, findOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to find phone numbers: %w", err)
	}
	defer cursor.Close(ctx)

	numbers := make([]*models.PhoneNumber, 0)
	for cursor.Next(ctx) {
		var p models.PhoneNumber
		if err := cursor.Decode(&p); err != nil {
			return nil, fmt.Errorf("failed to decode phone number: %w", err)
		}
		numbers = append(numbers, &p)
	}

	return numbers, cursor.Err()
}

// Save writes the mutable fields only if nobody else saved the document since it was read.
// It bumps p.Version on success and returns ErrConcurrentUpdate when the version moved.
func (r *PhoneNumberRepository) Save(ctx context.Context, p *models.PhoneNumber) error {
	filter := bson.M{"_id": p.ID, "version": p.Version}
	update := bson.M{
		"$set": bson.M{
			"status":         p.Status,
			"user":           p.User,
			"reserved_until": p.ReservedUntil,
			"type":           p.Type,
			"price":          p.Price,
			"description":    p.Description,
			"updated_at":     p.UpdatedAt,
		},
		"$inc": bson.M{"version": 1},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update phone number: %w", err)
	}
	if result.MatchedCount == 0 {
		return models.ErrConcurrentUpdate
	}

	p.Version++
	return nil
}

// Delete only removes numbers that are still available.
func (r *PhoneNumberRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "status": models.NumberAvailable})
	if err != nil {
		return fmt.Errorf("failed to delete phone number: %w", err)
	}
	if result.DeletedCount == 0 {
		return models.ErrNumberInUse
	}
	return nil
}

func (r *PhoneNumberRepository) CountByStatus(ctx context.Context) (map[models.PhoneNumberStatus]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to count phone numbers by status: %w", err)
	}
	defer cursor.Close(ctx)

	counts := make(map[models.PhoneNumberStatus]int64)
	for cursor.Next(ctx) {
		var row struct {
			Status models.PhoneNumberStatus `bson:"_id"`
			Count  int64                    `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("failed to decode status count: %w", err)
		}
		counts[row.Status] = row.Count
	}

	return counts, cursor.Err()
}

func (r *PhoneNumberRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		database.UniqueIndex("number"),
		database.Index("status", "type"),
		database.Index("user"),
		database.Index("status", "reserved_until"),
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create phone number indexes: %w", err)
	}
	return nil
}
