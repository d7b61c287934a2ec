package idempotency

import (
	"context"
	"testing"
	"time"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func putRecord(mock *simpleMock, rec Record, now time.Time) error {
	put, err := PutItem("idempotency-table", rec, now)
	if err != nil {
		return err
	}
	_, err = mock.TransactWriteItems(context.Background(), &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{put},
	})
	return err
}

func seed(t *testing.T, mock *simpleMock, rec Record) {
	t.Helper()
	require.NoError(t, putRecord(mock, rec, rec.CreatedAt))
}

func TestPutItem_ConditionRejectsDuplicate(t *testing.T) {
	mock := newSimpleMock()
	now := time.Now()
	seed(t, mock, NewRecord("key-1", "order-1", now, time.Hour))

	put, err := PutItem("idempotency-table", NewRecord("key-1", "order-2", now, time.Hour), now)
	require.NoError(t, err)
	assert.Equal(t, "attribute_not_exists(idempotency_key) OR expires_at <= :now", *put.Put.ConditionExpression)

	var tce *types.TransactionCanceledException
	assert.ErrorAs(t, putRecord(mock, NewRecord("key-1", "order-2", now, time.Hour), now), &tce)
}

func TestPutItem_OverwritesExpiredRecord(t *testing.T) {
	mock := newSimpleMock()
	created := time.Now().Add(-72 * time.Hour)
	old := NewRecord("stale", "order-1", created, 48*time.Hour)
	old.Status = StatusDone
	seed(t, mock, old)

	now := time.Now()
	require.NoError(t, putRecord(mock, NewRecord("stale", "order-2", now, 48*time.Hour), now))

	rec, err := NewDynamoStore(mock, "idempotency-table").Get(context.Background(), "stale")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, StatusInProgress, rec.Status)
	assert.Equal(t, "order-2", rec.OrderID)
}

func TestGet_MarkDone_MarkFailed(t *testing.T) {
	mock := newSimpleMock()
	s := NewDynamoStore(mock, "idempotency-table")
	ctx := context.Background()

	missing, err := s.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	seed(t, mock, NewRecord("test-key-1", "order-123", time.Now(), 48*time.Hour))

	rec, err := s.Get(ctx, "test-key-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, StatusInProgress, rec.Status)
	assert.Equal(t, "order-123", rec.OrderID)

	require.NoError(t, s.MarkDone(ctx, "test-key-1", `{"ok":true}`, 200))
	rec, err = s.Get(ctx, "test-key-1")
	require.NoError(t, err)
	assert.Equal(t, StatusDone, rec.Status)
	assert.Equal(t, `{"ok":true}`, rec.ResponseBody)
	assert.Equal(t, 200, rec.ResponseStatus)

	require.NoError(t, s.MarkFailed(ctx, "test-key-1", "failed-reason", time.Now().Add(time.Hour)))
	rec, err = s.Get(ctx, "test-key-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, rec.Status)
	assert.Equal(t, "failed-reason", rec.Note)
}

func TestMarkFailed_WithoutRecordExpires(t *testing.T) {
	mock := newSimpleMock()
	s := NewDynamoStore(mock, "idempotency-table")
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	s.nowFunc = func() time.Time { return now }

	require.NoError(t, s.MarkFailed(ctx, "gw-down", "gateway 503", now.Add(48*time.Hour)))

	rec, err := s.Get(ctx, "gw-down")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, StatusFailed, rec.Status)
	assert.Equal(t, now.Add(48*time.Hour).Unix(), rec.ExpiresAt)
	assert.True(t, rec.CreatedAt.Equal(now))

	s.nowFunc = func() time.Time { return now.Add(49 * time.Hour) }
	rec, err = s.Get(ctx, "gw-down")
	require.NoError(t, err)
	assert.Nil(t, rec)

	require.NoError(t, putRecord(mock, NewRecord("gw-down", "order-1", now.Add(49*time.Hour), time.Hour), now.Add(49*time.Hour)))
}

func TestGet_ExpiredRecordIsIgnored(t *testing.T) {
	mock := newSimpleMock()
	s := NewDynamoStore(mock, "idempotency-table")
	created := time.Now().Add(-72 * time.Hour)
	seed(t, mock, NewRecord("old", "order-1", created, 48*time.Hour))

	rec, err := s.Get(context.Background(), "old")
	require.NoError(t, err)
	assert.Nil(t, rec)
}
