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

type PaymentTransactionRepository struct {
	collection *mongo.Collection
}

func NewPaymentTransactionRepository(db *mongo.Database) *PaymentTransactionRepository {
	return &PaymentTransactionRepository{collection: db.Collection("payment_transactions")}
}

// Create returns database.ErrDuplicate when the reference was already recorded.
func (r *PaymentTransactionRepository) Create(ctx context.Context, tx *models.PaymentTransaction) error {
	result, err := r.collection.InsertOne(ctx, tx)
	if err != nil {
		if database.IsDuplicateKey(err) {
			return database.ErrDuplicate
		}
		return fmt.Errorf("failed to insert payment transaction: %w", err)
	}

	tx.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *PaymentTransactionRepository) FindByReference(ctx context.Context, reference string) (*models.PaymentTransaction, error) {
	var tx models.PaymentTransaction
	err := r.collection.FindOne(ctx, bson.M{"reference": reference}).Decode(&tx)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find payment transaction: %w", err)
	}
	return &tx, nil
}

func (r *PaymentTransactionRepository) List(ctx context.Context, filter models.TransactionFilter) ([]*models.PaymentTransaction, int64, error) {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count payment transactions: %w", err)
	}

	page, limit := models.NormalizePage(filter.Page, filter.Limit)
	opts := options.Find().
		SetSort(bson.D{{Key: "transaction_date", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	txs, err := r.find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}

func (r *PaymentTransactionRepository) SuccessfulSince(ctx context.Context, since time.Time) ([]*models.PaymentTransaction, error) {
	return r.find(ctx, bson.M{
		"status":           models.PaymentStatusSuccess,
		"transaction_date": bson.M{"$gte": since},
	}, options.Find().SetSort(bson.D{{Key: "transaction_date", Value: 1}}))
}

func (r *PaymentTransactionRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*models.PaymentTransaction, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find payment transactions: %w", err)
	}
	defer cursor.Close(ctx)

	txs := make([]*models.PaymentTransaction, 0)
	if err := cursor.All(ctx, &txs); err != nil {
		return nil, fmt.Errorf("failed to decode payment transactions: %w", err)
	}
	return txs, nil
}

// Review sets the audit fields. Nothing else on a transaction is writable after creation.
func (r *PaymentTransactionRepository) Review(ctx context.Context, reference string, reviewer primitive.ObjectID, notes string, at time.Time) (*models.PaymentTransaction, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{"$set": bson.M{
		"reviewed_by": reviewer,
		"reviewed_at": at,
		"notes":       notes,
	}}

	var tx models.PaymentTransaction
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"reference": reference}, update, opts).Decode(&tx)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to review payment transaction: %w", err)
	}
	return &tx, nil
}

func (r *PaymentTransactionRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		database.UniqueIndex("reference"),
		database.Index("status", "transaction_date"),
	}
	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create payment transaction indexes: %w", err)
	}
	return nil
}

type PaymentLinkRepository struct {
	collection *mongo.Collection
}

func NewPaymentLinkRepository(db *mongo.Database) *PaymentLinkRepository {
	return &PaymentLinkRepository{collection: db.Collection("payment_links")}
}

func (r *PaymentLinkRepository) Create(ctx context.Context, link *models.PaymentLink) error {
	result, err := r.collection.InsertOne(ctx, link)
	if err != nil {
		return fmt.Errorf("failed to insert payment link: %w", err)
	}

	link.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *PaymentLinkRepository) FindByReference(ctx context.Context, reference string) (*models.PaymentLink, error) {
	var link models.PaymentLink
	err := r.collection.FindOne(ctx, bson.M{"reference": reference}).Decode(&link)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find payment link: %w", err)
	}
	return &link, nil
}

// MarkCompleted keeps the first completion time when called again.
func (r *PaymentLinkRepository) MarkCompleted(ctx context.Context, reference string, at time.Time) error {
	filter := bson.M{"reference": reference, "status": bson.M{"$ne": models.PaymentLinkCompleted}}
	update := bson.M{"$set": bson.M{
		"status":       models.PaymentLinkCompleted,
		"completed_at": at,
		"updated_at":   at,
	}}

	if _, err := r.collection.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to complete payment link: %w", err)
	}
	return nil
}

func (r *PaymentLinkRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		database.UniqueIndex("reference"),
		database.Index("user", "created_at"),
	}
	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create payment link indexes: %w", err)
	}
	return nil
}
