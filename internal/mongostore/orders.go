package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/imrishuroy/go-storefront-orders/internal/orders"
)

// Orders is the MongoDB orders.Repository.
type Orders struct {
	db *mongo.Database
	// transactions wraps Create in a multi-document transaction. Standalone
	// servers do not support them.
	transactions bool
	nowFunc      func() time.Time
}

var _ orders.Repository = (*Orders)(nil)

func NewOrders(db *mongo.Database, transactions bool) *Orders {
	return &Orders{db: db, transactions: transactions, nowFunc: time.Now}
}

func (s *Orders) orders() *mongo.Collection { return s.db.Collection(OrdersCollection) }

// Create writes the idempotency record, the order and the cart reset. With
// transactions enabled they commit together; otherwise they run in that
// order so a duplicate key stops the request before the order is written.
func (s *Orders) Create(ctx context.Context, order orders.Order, opts orders.CreateOptions) error {
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = s.nowFunc().UTC()
	}
	if !s.transactions {
		return s.create(ctx, order, opts)
	}

	sess, err := s.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, s.create(sc, order, opts)
	})
	return err
}

func (s *Orders) create(ctx context.Context, order orders.Order, opts orders.CreateOptions) error {
	if opts.Idempotency != nil {
		if err := insertRecord(ctx, s.db, *opts.Idempotency, s.nowFunc()); err != nil {
			return err
		}
	}
	if _, err := s.orders().InsertOne(ctx, order); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	if opts.ClearCart {
		if err := s.ClearCart(ctx, order.UserID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Orders) Get(ctx context.Context, orderID string) (*orders.Order, error) {
	var o orders.Order
	err := s.orders().FindOne(ctx, bson.M{"_id": orderID}).Decode(&o)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	return &o, nil
}

func (s *Orders) List(ctx context.Context) ([]orders.Order, error) {
	return s.find(ctx, bson.M{})
}

func (s *Orders) ListByUser(ctx context.Context, userID string) ([]orders.Order, error) {
	return s.find(ctx, bson.M{"userId": userID})
}

func (s *Orders) find(ctx context.Context, filter bson.M) ([]orders.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.orders().Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find orders: %w", err)
	}
	list := []orders.Order{}
	if err := cur.All(ctx, &list); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	return list, nil
}

func (s *Orders) UpdateStatus(ctx context.Context, orderID string, expected, next orders.Status, markPaid bool) error {
	set := bson.M{"status": next, "updatedAt": s.nowFunc().UTC()}
	if markPaid {
		set["payment"] = true
	}
	res, err := s.orders().UpdateOne(ctx,
		bson.M{"_id": orderID, "status": expected},
		bson.M{"$set": set},
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if res.MatchedCount == 0 {
		return orders.ErrStatusMismatch
	}
	return nil
}

func (s *Orders) MarkPaid(ctx context.Context, orderID string) error {
	res, err := s.orders().UpdateOne(ctx,
		bson.M{"_id": orderID, "payment": false},
		bson.M{"$set": bson.M{"payment": true, "updatedAt": s.nowFunc().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("mark paid: %w", err)
	}
	if res.MatchedCount == 0 {
		return orders.ErrAlreadyPaid
	}
	return nil
}

func (s *Orders) ClearCart(ctx context.Context, userID string) error {
	_, err := s.db.Collection(UsersCollection).UpdateOne(ctx,
		bson.M{"_id": userKey(userID)},
		bson.M{"$set": bson.M{"cartData": bson.M{}}},
	)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
