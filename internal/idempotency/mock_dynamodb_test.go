package idempotency

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// simpleMock is a small in-memory table keyed by idempotency_key.
type simpleMock struct {
	mu          sync.Mutex
	table       map[string]map[string]types.AttributeValue
	getCalls    int
	updateCalls int
}

func newSimpleMock() *simpleMock {
	return &simpleMock{
		table: map[string]map[string]types.AttributeValue{},
	}
}

func (m *simpleMock) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	return nil, errors.New("PutItem not used by idempotency store")
}

func (m *simpleMock) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	keyAttr := params.Key["idempotency_key"]
	if keyAttr == nil {
		return nil, errors.New("missing key")
	}
	k := keyAttr.(*types.AttributeValueMemberS).Value
	item, ok := m.table[k]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

// UpdateItem upserts like DynamoDB and supports the SET expressions used by
// MarkDone and MarkFailed.
func (m *simpleMock) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	keyAttr := params.Key["idempotency_key"]
	if keyAttr == nil {
		return nil, errors.New("missing key")
	}
	k := keyAttr.(*types.AttributeValueMemberS).Value
	item, ok := m.table[k]
	if !ok {
		item = map[string]types.AttributeValue{"idempotency_key": keyAttr}
	}
	vals := params.ExpressionAttributeValues
	set := map[string]string{
		":rb": "response_body", ":rs": "response_status", ":ua": "updated_at",
		":n": "note", ":done": "status", ":failed": "status", ":exp": "expires_at",
	}
	for placeholder, attr := range set {
		if v, ok := vals[placeholder]; ok {
			item[attr] = v
		}
	}
	if _, ok := item["created_at"]; !ok && strings.Contains(*params.UpdateExpression, "if_not_exists(created_at") {
		item["created_at"] = vals[":ua"]
	}
	m.table[k] = item
	return &dyn.UpdateItemOutput{}, nil
}

func (m *simpleMock) Query(ctx context.Context, params *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	return nil, errors.New("Query not used by idempotency store")
}

func (m *simpleMock) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	return nil, errors.New("Scan not used by idempotency store")
}

// TransactWriteItems applies Puts produced by PutItem, honouring PutCondition.
func (m *simpleMock) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range params.TransactItems {
		if p := it.Put; p != nil {
			k := p.Item["idempotency_key"].(*types.AttributeValueMemberS).Value
			if cur, ok := m.table[k]; ok && !expiredBy(cur, p.ExpressionAttributeValues[":now"]) {
				return nil, &types.TransactionCanceledException{}
			}
		}
	}
	for _, it := range params.TransactItems {
		if p := it.Put; p != nil {
			k := p.Item["idempotency_key"].(*types.AttributeValueMemberS).Value
			m.table[k] = p.Item
		}
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

// expiredBy evaluates "expires_at <= :now" against item.
func expiredBy(item map[string]types.AttributeValue, now types.AttributeValue) bool {
	exp, ok := item["expires_at"].(*types.AttributeValueMemberN)
	n, nok := now.(*types.AttributeValueMemberN)
	if !ok || !nok {
		return false
	}
	e, _ := strconv.ParseInt(exp.Value, 10, 64)
	t, _ := strconv.ParseInt(n.Value, 10, 64)
	return e <= t
}
