package repository

import (
	"time"

	"github.com/klawrenceboxx/postergenius2025-sub000/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// cartDocument is the stored cart. Exactly one of UserID and GuestID is set.
// Items are read raw because older documents hold bare quantities.
type cartDocument struct {
	ID          primitive.ObjectID       `bson:"_id,omitempty"`
	UserID      string                   `bson:"user_id,omitempty"`
	GuestID     string                   `bson:"guest_id,omitempty"`
	Items       map[string]bson.RawValue `bson:"items"`
	MergedCarts []string                 `bson:"merged_carts,omitempty"`
	Version     int64                    `bson:"version"`
	CreatedAt   time.Time                `bson:"created_at"`
	UpdatedAt   time.Time                `bson:"updated_at"`
}

// itemDocument keeps the camelCase field names clients have always written.
type itemDocument struct {
	ProductID  string   `bson:"productId"`
	Quantity   int      `bson:"quantity"`
	Format     *string  `bson:"format,omitempty"`
	Dimensions *string  `bson:"dimensions,omitempty"`
	Title      *string  `bson:"title,omitempty"`
	ImageURL   *string  `bson:"imageUrl,omitempty"`
	Price      *float64 `bson:"price,omitempty"`
	Slug       *string  `bson:"slug,omitempty"`
}

func ownerFilter(owner domain.Owner) bson.M {
	if owner.Kind == domain.OwnerGuest {
		return bson.M{"guest_id": owner.ID}
	}
	return bson.M{"user_id": owner.ID}
}

func toItemDocuments(items domain.Items) map[string]itemDocument {
	out := make(map[string]itemDocument, len(items))
	for key, it := range items {
		out[key] = itemDocument{
			ProductID:  it.ProductID,
			Quantity:   it.Quantity,
			Format:     it.Format,
			Dimensions: it.Dimensions,
			Title:      it.Title,
			ImageURL:   it.ImageURL,
			Price:      it.Price,
			Slug:       it.Slug,
		}
	}
	return out
}

func (d *cartDocument) toDomain() *domain.Cart {
	owner := domain.UserOwner(d.UserID)
	if d.UserID == "" {
		owner = domain.GuestOwner(d.GuestID)
	}

	entries := make(map[string]domain.Entry, len(d.Items))
	for key, raw := range d.Items {
		if e, ok := domain.ParseEntry(rawValue(raw)); ok {
			entries[key] = e
		}
	}

	return &domain.Cart{
		ID:          d.ID.Hex(),
		Owner:       owner,
		Items:       domain.MergeCartItems(entries, nil),
		MergedCarts: d.MergedCarts,
		Version:     d.Version,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

// rawValue converts a stored item into the loose shape domain.ParseEntry
// accepts. Unsupported BSON types yield nil.
func rawValue(v bson.RawValue) any {
	switch v.Type {
	case bson.TypeDouble:
		return v.Double()
	case bson.TypeInt32:
		return v.Int32()
	case bson.TypeInt64:
		return v.Int64()
	case bson.TypeEmbeddedDocument:
		var m map[string]any
		if err := v.Unmarshal(&m); err != nil {
			return nil
		}
		return m
	}
	return nil
}
