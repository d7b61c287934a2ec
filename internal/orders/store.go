package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-storefront-orders/internal/aws"
	"github.com/imrishuroy/go-storefront-orders/internal/idempotency"
)

// DynamoTables names the tables DynamoStore writes to.
type DynamoTables struct {
	Orders      string
	UserIndex   string // GSI on orders: user_id (hash), created_at (range)
	Idempotency string
	Users       string
}

// DynamoStore encapsulates operations on the orders table.
type DynamoStore struct {
	client  aws.DynamoDBAPI
	tables  DynamoTables
	nowFunc func() time.Time
}

var _ Repository = (*DynamoStore)(nil)

// NewDynamoStore creates a new orders store.
func NewDynamoStore(client aws.DynamoDBAPI, tables DynamoTables) *DynamoStore {
	return &DynamoStore{
		client:  client,
		tables:  tables,
		nowFunc: time.Now,
	}
}

// Create atomically writes, in one TransactWriteItems call:
//   - the idempotency record (condition: no live record holds the key), when given
//   - the order (condition: order_id does not exist)
//   - an empty cart on the owner's user item, when opts.ClearCart
//
// A user without a user item has no cart; the transaction is then retried
// without the cart update instead of failing the order.
func (s *DynamoStore) Create(ctx context.Context, order Order, opts CreateOptions) error {
	now := s.nowFunc()
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = now
	}

	var transactItems []types.TransactWriteItem
	idempIndex := -1
	if opts.Idempotency != nil {
		put, err := idempotency.PutItem(s.tables.Idempotency, *opts.Idempotency, now)
		if err != nil {
			return err
		}
		idempIndex = len(transactItems)
		transactItems = append(transactItems, put)
	}

	orderMap, err := attributevalue.MarshalMap(order)
	if err != nil {
		return fmt.Errorf("marshal order item: %w", err)
	}
	transactItems = append(transactItems, types.TransactWriteItem{
		Put: &types.Put{
			TableName:           &s.tables.Orders,
			Item:                orderMap,
			ConditionExpression: awsString("attribute_not_exists(order_id)"),
		},
	})

	cartIndex := -1
	if opts.ClearCart {
		cartIndex = len(transactItems)
		transactItems = append(transactItems, types.TransactWriteItem{
			Update: s.clearCartUpdate(order.UserID),
		})
	}

	err = s.transact(ctx, transactItems)
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) && idempIndex >= 0 && idempotencyConflict(tce, idempIndex) {
		return fmt.Errorf("%w: %s", ErrDuplicateRequest, opts.Idempotency.Key)
	}
	if errors.As(err, &tce) && cartIndex >= 0 && conditionFailed(tce, cartIndex) {
		err = s.transact(ctx, transactItems[:cartIndex])
		if errors.As(err, &tce) && idempIndex >= 0 && idempotencyConflict(tce, idempIndex) {
			return fmt.Errorf("%w: %s", ErrDuplicateRequest, opts.Idempotency.Key)
		}
	}
	if err != nil {
		return fmt.Errorf("transact write: %w", err)
	}
	return nil
}

func (s *DynamoStore) transact(ctx context.Context, items []types.TransactWriteItem) error {
	_, err := s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems: items,
	})
	return err
}

// idempotencyConflict reports whether the cancellation was caused by the
// idempotency Put. Without per-item reasons the key is assumed to exist.
func idempotencyConflict(tce *types.TransactionCanceledException, idx int) bool {
	if len(tce.CancellationReasons) == 0 {
		return true
	}
	return conditionFailed(tce, idx)
}

func conditionFailed(tce *types.TransactionCanceledException, idx int) bool {
	if idx >= len(tce.CancellationReasons) {
		return false
	}
	code := tce.CancellationReasons[idx].Code
	return code != nil && *code == "ConditionalCheckFailed"
}

// Get fetches an order by order_id. Returns (nil, nil) if not found.
func (s *DynamoStore) Get(ctx context.Context, orderID string) (*Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tables.Orders,
		Key:            orderKey(orderID),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// List scans the whole table. The admin list and analytics read every order.
func (s *DynamoStore) List(ctx context.Context) ([]Order, error) {
	p := dyn.NewScanPaginator(s.client, &dyn.ScanInput{
		TableName: &s.tables.Orders,
	})
	var result []Order
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan orders: %w", err)
		}
		var batch []Order
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal orders: %w", err)
		}
		result = append(result, batch...)
	}
	sortByDate(result)
	return result, nil
}

// ListByUser queries the user index.
func (s *DynamoStore) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	p := dyn.NewQueryPaginator(s.client, &dyn.QueryInput{
		TableName:              &s.tables.Orders,
		IndexName:              &s.tables.UserIndex,
		KeyConditionExpression: awsString("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
	})
	var result []Order
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query orders: %w", err)
		}
		var batch []Order
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal orders: %w", err)
		}
		result = append(result, batch...)
	}
	sortByDate(result)
	return result, nil
}

// UpdateStatus conditionally updates the order status from expected -> next.
// Returns ErrStatusMismatch if the order is missing or its status changed.
func (s *DynamoStore) UpdateStatus(ctx context.Context, orderID string, expected, next Status, markPaid bool) error {
	now := s.nowFunc()
	updateExpr := "SET #s = :new, updated_at = :ua"
	values := map[string]types.AttributeValue{
		":new":      &types.AttributeValueMemberS{Value: string(next)},
		":expected": &types.AttributeValueMemberS{Value: string(expected)},
		":ua":       &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
	}
	if markPaid {
		updateExpr += ", payment = :paid"
		values[":paid"] = &types.AttributeValueMemberBOOL{Value: true}
	}

	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 &s.tables.Orders,
		Key:                       orderKey(orderID),
		UpdateExpression:          &updateExpr,
		ConditionExpression:       awsString("attribute_exists(order_id) AND #s = :expected"),
		ExpressionAttributeNames:  map[string]string{"#s": "status"},
		ExpressionAttributeValues: values,
	})
	if err != nil {
		var sc *types.ConditionalCheckFailedException
		if errors.As(err, &sc) {
			return ErrStatusMismatch
		}
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

// MarkPaid flips payment false -> true. Returns ErrAlreadyPaid when the
// condition fails.
func (s *DynamoStore) MarkPaid(ctx context.Context, orderID string) error {
	now := s.nowFunc()
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:           &s.tables.Orders,
		Key:                 orderKey(orderID),
		UpdateExpression:    awsString("SET payment = :paid, updated_at = :ua"),
		ConditionExpression: awsString("attribute_exists(order_id) AND payment = :unpaid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":paid":   &types.AttributeValueMemberBOOL{Value: true},
			":unpaid": &types.AttributeValueMemberBOOL{Value: false},
			":ua":     &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		var sc *types.ConditionalCheckFailedException
		if errors.As(err, &sc) {
			return ErrAlreadyPaid
		}
		return fmt.Errorf("update item (mark paid): %w", err)
	}
	return nil
}

// ClearCart resets the user's cart to an empty map. Unknown users are left
// alone.
func (s *DynamoStore) ClearCart(ctx context.Context, userID string) error {
	u := s.clearCartUpdate(userID)
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 u.TableName,
		Key:                       u.Key,
		UpdateExpression:          u.UpdateExpression,
		ConditionExpression:       u.ConditionExpression,
		ExpressionAttributeValues: u.ExpressionAttributeValues,
	})
	var sc *types.ConditionalCheckFailedException
	if errors.As(err, &sc) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func (s *DynamoStore) clearCartUpdate(userID string) *types.Update {
	return &types.Update{
		TableName: &s.tables.Users,
		Key: map[string]types.AttributeValue{
			"user_id": &types.AttributeValueMemberS{Value: userID},
		},
		UpdateExpression:    awsString("SET cart_data = :empty"),
		ConditionExpression: awsString("attribute_exists(user_id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":empty": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{}},
		},
	}
}

func orderKey(orderID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"order_id": &types.AttributeValueMemberS{Value: orderID},
	}
}

func sortByDate(list []Order) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Date != list[j].Date {
			return list[i].Date < list[j].Date
		}
		return list[i].OrderID < list[j].OrderID
	})
}

func awsString(s string) *string { return &s }

func awsBool(b bool) *bool { return &b }
