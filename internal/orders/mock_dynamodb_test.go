package orders

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-storefront-orders/internal/idempotency"
)

// mockDynamo stores items per table in a nested map: table -> pkValue -> item.
// It understands exactly the expressions DynamoStore issues.
type mockDynamo struct {
	mu     sync.Mutex
	tables map[string]map[string]map[string]types.AttributeValue
	// keys maps a table name to its partition key attribute.
	keys map[string]string
	// failNext, when set, is returned by the next call.
	failNext error
	// transactCalls counts TransactWriteItems calls, including cancelled ones.
	transactCalls int
}

func newMockDynamo() *mockDynamo {
	return &mockDynamo{
		tables: map[string]map[string]map[string]types.AttributeValue{},
		keys: map[string]string{
			testTables.Orders:      "order_id",
			testTables.Idempotency: "idempotency_key",
			testTables.Users:       "user_id",
		},
	}
}

func (m *mockDynamo) ensureTable(tbl string) map[string]map[string]types.AttributeValue {
	if _, ok := m.tables[tbl]; !ok {
		m.tables[tbl] = map[string]map[string]types.AttributeValue{}
	}
	return m.tables[tbl]
}

func (m *mockDynamo) pkOf(tbl string, item map[string]types.AttributeValue) (string, error) {
	attr, ok := m.keys[tbl]
	if !ok {
		return "", fmt.Errorf("unknown table %q", tbl)
	}
	v, ok := item[attr].(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("item has no %s", attr)
	}
	return v.Value, nil
}

func (m *mockDynamo) takeFailure() error {
	err := m.failNext
	m.failNext = nil
	return err
}

func (m *mockDynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	pk, err := m.pkOf(*params.TableName, params.Item)
	if err != nil {
		return nil, err
	}
	m.ensureTable(*params.TableName)[pk] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *mockDynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	pk, err := m.pkOf(*params.TableName, params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := m.ensureTable(*params.TableName)[pk]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

// conditionHolds evaluates the condition expressions used by the stores.
func conditionHolds(cond *string, item map[string]types.AttributeValue, exists bool, values map[string]types.AttributeValue) bool {
	if cond == nil {
		return true
	}
	switch *cond {
	case "attribute_not_exists(order_id)":
		return !exists
	case "attribute_exists(user_id)":
		return exists
	case idempotency.PutCondition:
		if !exists {
			return true
		}
		exp, ok := item["expires_at"].(*types.AttributeValueMemberN)
		if !ok {
			return false
		}
		e, _ := strconv.ParseInt(exp.Value, 10, 64)
		now, _ := strconv.ParseInt(values[":now"].(*types.AttributeValueMemberN).Value, 10, 64)
		return e <= now
	case "attribute_exists(order_id) AND #s = :expected":
		if !exists {
			return false
		}
		cur, _ := item["status"].(*types.AttributeValueMemberS)
		want := values[":expected"].(*types.AttributeValueMemberS)
		return cur != nil && cur.Value == want.Value
	case "attribute_exists(order_id) AND payment = :unpaid":
		if !exists {
			return false
		}
		cur, _ := item["payment"].(*types.AttributeValueMemberBOOL)
		return cur != nil && !cur.Value
	}
	return false
}

// applySet copies the known placeholders into item.
func applySet(item map[string]types.AttributeValue, values map[string]types.AttributeValue) {
	if v, ok := values[":new"]; ok {
		item["status"] = v
	}
	if v, ok := values[":paid"]; ok {
		item["payment"] = v
	}
	if v, ok := values[":ua"]; ok {
		item["updated_at"] = v
	}
	if v, ok := values[":empty"]; ok {
		item["cart_data"] = v
	}
}

func (m *mockDynamo) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	pk, err := m.pkOf(*params.TableName, params.Key)
	if err != nil {
		return nil, err
	}
	table := m.ensureTable(*params.TableName)
	item, exists := table[pk]
	if !conditionHolds(params.ConditionExpression, item, exists, params.ExpressionAttributeValues) {
		return nil, &types.ConditionalCheckFailedException{}
	}
	if !exists {
		item = map[string]types.AttributeValue{}
		for k, v := range params.Key {
			item[k] = v
		}
	}
	applySet(item, params.ExpressionAttributeValues)
	table[pk] = item
	return &dyn.UpdateItemOutput{Attributes: item}, nil
}

func (m *mockDynamo) Query(ctx context.Context, params *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	uid := params.ExpressionAttributeValues[":uid"].(*types.AttributeValueMemberS).Value
	var items []map[string]types.AttributeValue
	for _, item := range m.ensureTable(*params.TableName) {
		if v, ok := item["user_id"].(*types.AttributeValueMemberS); ok && v.Value == uid {
			items = append(items, item)
		}
	}
	return &dyn.QueryOutput{Items: items, Count: int32(len(items))}, nil
}

// Scan returns one item per page to exercise pagination.
func (m *mockDynamo) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	table := m.ensureTable(*params.TableName)
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sortStrings(keys)

	start := 0
	if params.ExclusiveStartKey != nil {
		last, _ := m.pkOf(*params.TableName, params.ExclusiveStartKey)
		for i, k := range keys {
			if k == last {
				start = i + 1
			}
		}
	}
	if start >= len(keys) {
		return &dyn.ScanOutput{}, nil
	}
	item := table[keys[start]]
	out := &dyn.ScanOutput{Items: []map[string]types.AttributeValue{item}, Count: 1}
	if start+1 < len(keys) {
		attr := m.keys[*params.TableName]
		out.LastEvaluatedKey = map[string]types.AttributeValue{attr: item[attr]}
	}
	return out, nil
}

func (m *mockDynamo) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactCalls++
	if err := m.takeFailure(); err != nil {
		return nil, err
	}

	// First pass: verify conditions, reporting a reason per item.
	reasons := make([]types.CancellationReason, len(params.TransactItems))
	failed := false
	for i, it := range params.TransactItems {
		none := "None"
		reasons[i] = types.CancellationReason{Code: &none}
		var (
			tbl, cond *string
			key       map[string]types.AttributeValue
			values    map[string]types.AttributeValue
		)
		switch {
		case it.Put != nil:
			tbl, cond, key, values = it.Put.TableName, it.Put.ConditionExpression, it.Put.Item, it.Put.ExpressionAttributeValues
		case it.Update != nil:
			tbl, cond, key, values = it.Update.TableName, it.Update.ConditionExpression, it.Update.Key, it.Update.ExpressionAttributeValues
		default:
			continue
		}
		pk, err := m.pkOf(*tbl, key)
		if err != nil {
			return nil, err
		}
		cur, exists := m.ensureTable(*tbl)[pk]
		if !conditionHolds(cond, cur, exists, values) {
			code := "ConditionalCheckFailed"
			reasons[i] = types.CancellationReason{Code: &code}
			failed = true
		}
	}
	if failed {
		return nil, &types.TransactionCanceledException{CancellationReasons: reasons}
	}

	// Second pass: apply all writes.
	for _, it := range params.TransactItems {
		if p := it.Put; p != nil {
			pk, _ := m.pkOf(*p.TableName, p.Item)
			m.ensureTable(*p.TableName)[pk] = p.Item
		}
		if u := it.Update; u != nil {
			pk, _ := m.pkOf(*u.TableName, u.Key)
			table := m.ensureTable(*u.TableName)
			item, ok := table[pk]
			if !ok {
				item = map[string]types.AttributeValue{}
				for k, v := range u.Key {
					item[k] = v
				}
			}
			applySet(item, u.ExpressionAttributeValues)
			table[pk] = item
		}
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}
