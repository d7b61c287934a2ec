package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/imrishuroy/go-storefront-orders/internal/idempotency"
	"github.com/imrishuroy/go-storefront-orders/internal/orders"
)

// recordDoc is the stored form of an idempotency.Record. expiresAt is a date
// so the TTL index on it removes settled keys.
type recordDoc struct {
	Key            string    `bson:"_id"`
	Status         string    `bson:"status"`
	OrderID        string    `bson:"orderId,omitempty"`
	ResponseBody   string    `bson:"responseBody,omitempty"`
	ResponseStatus int       `bson:"responseStatus,omitempty"`
	CreatedAt      time.Time `bson:"createdAt"`
	UpdatedAt      time.Time `bson:"updatedAt"`
	ExpiresAt      time.Time `bson:"expiresAt"`
	Note           string    `bson:"note,omitempty"`
}

func newRecordDoc(rec idempotency.Record) recordDoc {
	d := recordDoc{
		Key:            rec.Key,
		Status:         rec.Status,
		OrderID:        rec.OrderID,
		ResponseBody:   rec.ResponseBody,
		ResponseStatus: rec.ResponseStatus,
		CreatedAt:      rec.CreatedAt.UTC(),
		UpdatedAt:      rec.UpdatedAt.UTC(),
		Note:           rec.Note,
	}
	if rec.ExpiresAt > 0 {
		d.ExpiresAt = time.Unix(rec.ExpiresAt, 0).UTC()
	}
	return d
}

func (d recordDoc) record() idempotency.Record {
	rec := idempotency.Record{
		Key:            d.Key,
		Status:         d.Status,
		OrderID:        d.OrderID,
		ResponseBody:   d.ResponseBody,
		ResponseStatus: d.ResponseStatus,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
		Note:           d.Note,
	}
	if !d.ExpiresAt.IsZero() {
		rec.ExpiresAt = d.ExpiresAt.Unix()
	}
	return rec
}

// Idempotency is the MongoDB idempotency.Store.
type Idempotency struct {
	coll    *mongo.Collection
	nowFunc func() time.Time
}

var _ idempotency.Store = (*Idempotency)(nil)

func NewIdempotency(db *mongo.Database) *Idempotency {
	return &Idempotency{coll: db.Collection(IdempotencyCollection), nowFunc: time.Now}
}

// insertRecord writes rec unless a live record holds the key. The filter only
// matches an expired record, so a live one makes the upsert collide on _id.
func insertRecord(ctx context.Context, db *mongo.Database, rec idempotency.Record, now time.Time) error {
	_, err := db.Collection(IdempotencyCollection).ReplaceOne(ctx,
		bson.M{"_id": rec.Key, "expiresAt": bson.M{"$lte": now.UTC()}},
		newRecordDoc(rec),
		options.Replace().SetUpsert(true),
	)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s", orders.ErrDuplicateRequest, rec.Key)
	}
	if err != nil {
		return fmt.Errorf("insert idempotency record: %w", err)
	}
	return nil
}

func (s *Idempotency) Get(ctx context.Context, key string) (*idempotency.Record, error) {
	var doc recordDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find idempotency record: %w", err)
	}
	rec := doc.record()
	if rec.Expired(s.nowFunc()) {
		return nil, nil
	}
	return &rec, nil
}

func (s *Idempotency) MarkDone(ctx context.Context, key, responseBody string, responseStatus int) error {
	return s.set(ctx, key, bson.M{
		"status":         idempotency.StatusDone,
		"responseBody":   responseBody,
		"responseStatus": responseStatus,
	})
}

// MarkFailed resets expiresAt so the key is released one TTL after the failure.
func (s *Idempotency) MarkFailed(ctx context.Context, key, note string, expiresAt time.Time) error {
	return s.set(ctx, key, bson.M{
		"status":    idempotency.StatusFailed,
		"note":      note,
		"expiresAt": expiresAt.UTC(),
	})
}

func (s *Idempotency) set(ctx context.Context, key string, fields bson.M) error {
	now := s.nowFunc().UTC()
	fields["updatedAt"] = now
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": key},
		bson.M{"$set": fields, "$setOnInsert": bson.M{"createdAt": now}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("update idempotency record: %w", err)
	}
	return nil
}
