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
	pkgmodels "github.com/vanityline/vanityline/pkg/models"
)

// AccountRepository backs both the users and the admins collections.
type AccountRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *AccountRepository {
	return &AccountRepository{collection: db.Collection("users")}
}

func NewAdminRepository(db *mongo.Database) *AccountRepository {
	return &AccountRepository{collection: db.Collection("admins")}
}

func (r *AccountRepository) Create(ctx context.Context, u *pkgmodels.User) error {
	if u.PhoneNumbers == nil {
		u.PhoneNumbers = []primitive.ObjectID{}
	}

	result, err := r.collection.InsertOne(ctx, u)
	if err != nil {
		if database.IsDuplicateKey(err) {
			return pkgmodels.ErrEmailTaken
		}
		return fmt.Errorf("failed to insert account: %w", err)
	}

	u.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *AccountRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*pkgmodels.User, error) {
	return r.findOne(ctx, bson.M{"_id": id}, nil)
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*pkgmodels.User, error) {
	return r.findOne(ctx, bson.M{"email": pkgmodels.NormalizeEmail(email)}, nil)
}

// FindPrimary returns the oldest active account. Lifecycle notifications go to this admin.
func (r *AccountRepository) FindPrimary(ctx context.Context) (*pkgmodels.User, error) {
	return r.findOne(ctx, bson.M{"is_active": true}, options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}}))
}

func (r *AccountRepository) findOne(ctx context.Context, filter bson.M, opts *options.FindOneOptions) (*pkgmodels.User, error) {
	var findOpts []*options.FindOneOptions
	if opts != nil {
		findOpts = append(findOpts, opts)
	}

	var u pkgmodels.User
	err := r.collection.FindOne(ctx, filter, findOpts...).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	return &u, nil
}

func (r *AccountRepository) List(ctx context.Context, page, limit int) ([]*pkgmodels.User, int64, error) {
	total, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count accounts: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer cursor.Close(ctx)

	users := make([]*pkgmodels.User, 0)
	if err := cursor.All(ctx, &users); err != nil {
		return nil, 0, fmt.Errorf("failed to decode accounts: %w", err)
	}
	return users, total, nil
}

func (r *AccountRepository) AddPhoneNumber(ctx context.Context, userID, numberID primitive.ObjectID) error {
	return r.updateProfile(ctx, userID, bson.M{"$addToSet": bson.M{"phone_numbers": numberID}})
}

func (r *AccountRepository) PullPhoneNumber(ctx context.Context, userID, numberID primitive.ObjectID) error {
	return r.updateProfile(ctx, userID, bson.M{"$pull": bson.M{"phone_numbers": numberID}})
}

func (r *AccountRepository) updateProfile(ctx context.Context, userID primitive.ObjectID, update bson.M) error {
	update["$set"] = bson.M{"updated_at": time.Now()}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": userID}, update)
	if err != nil {
		return fmt.Errorf("failed to update account phone numbers: %w", err)
	}
	if result.MatchedCount == 0 {
		return pkgmodels.ErrUserNotFound
	}
	return nil
}

func (r *AccountRepository) UpdateLastLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"last_login_at": at}})
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

func (r *AccountRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		database.UniqueIndex("email"),
		database.Index("is_active", "created_at"),
	}
	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create account indexes: %w", err)
	}
	return nil
}
