package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/klawrenceboxx/postergenius2025-sub000/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoRepository struct {
	collection   *mongo.Collection
	transactions bool
	guestTTL     time.Duration
}

type Option func(*MongoRepository)

// WithTransactions enables multi-document transactions. The deployment must
// be a replica set.
func WithTransactions(enabled bool) Option {
	return func(m *MongoRepository) { m.transactions = enabled }
}

// WithGuestTTL sets how long an untouched guest cart is kept.
func WithGuestTTL(ttl time.Duration) Option {
	return func(m *MongoRepository) { m.guestTTL = ttl }
}

func NewMongoRepository(db *mongo.Database, opts ...Option) *MongoRepository {
	m := &MongoRepository{
		collection: db.Collection("carts"),
		guestTTL:   30 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MongoRepository) GetCart(ctx context.Context, owner domain.Owner) (*domain.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	var doc cartDocument
	err := m.collection.FindOne(ctx, ownerFilter(owner)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return doc.toDomain(), nil
}

func (m *MongoRepository) SaveCart(ctx context.Context, cart *domain.Cart) error {
	if err := cart.Owner.Validate(); err != nil {
		return err
	}

	now := time.Now()
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now

	if cart.ID == "" {
		return m.insertCart(ctx, cart)
	}

	id, err := primitive.ObjectIDFromHex(cart.ID)
	if err != nil {
		return fmt.Errorf("invalid cart id %q: %w", cart.ID, err)
	}

	filter := ownerFilter(cart.Owner)
	filter["_id"] = id
	filter["version"] = cart.Version
	update := bson.M{
		"$set": bson.M{
			"items":        toItemDocuments(cart.Items),
			"merged_carts": cart.MergedCarts,
			"updated_at":   now,
		},
		"$inc": bson.M{"version": 1},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update cart: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrConcurrentUpdate
	}

	cart.Version++
	return nil
}

func (m *MongoRepository) insertCart(ctx context.Context, cart *domain.Cart) error {
	doc := bson.M{
		"items":        toItemDocuments(cart.Items),
		"merged_carts": cart.MergedCarts,
		"version":      int64(1),
		"created_at":   cart.CreatedAt,
		"updated_at":   cart.UpdatedAt,
	}
	if cart.Owner.Kind == domain.OwnerGuest {
		doc["guest_id"] = cart.Owner.ID
	} else {
		doc["user_id"] = cart.Owner.ID
	}

	result, err := m.collection.InsertOne(ctx, doc)
	if err != nil {
		// Someone else created the cart first.
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrConcurrentUpdate
		}
		return fmt.Errorf("failed to create cart: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		cart.ID = oid.Hex()
	}
	cart.Version = 1
	return nil
}

func (m *MongoRepository) DeleteCart(ctx context.Context, owner domain.Owner) error {
	if err := owner.Validate(); err != nil {
		return err
	}

	result, err := m.collection.DeleteOne(ctx, ownerFilter(owner))
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrCartNotFound
	}
	return nil
}

func (m *MongoRepository) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) (bool, error) {
	if !m.transactions {
		return false, fn(ctx)
	}

	session, err := m.collection.Database().Client().StartSession()
	if err != nil {
		return false, fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return true, err
}

func (m *MongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"user_id": bson.M{"$type": "string"}}),
		},
		{
			Keys: bson.D{{Key: "guest_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"guest_id": bson.M{"$type": "string"}}),
		},
		{
			// Orphaned guest carts expire; user carts are kept.
			Keys: bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().
				SetName("guest_cart_ttl").
				SetExpireAfterSeconds(int32(m.guestTTL.Seconds())).
				SetPartialFilterExpression(bson.M{"guest_id": bson.M{"$type": "string"}}),
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
