package money

import (
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestSumsDoNotDrift(t *testing.T) {
	total := Zero
	for i := 0; i < 10; i++ {
		total = total.Add(MustParse("0.1"))
	}
	assert.True(t, total.Equal(FromInt(1)), "got %s", total)
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(4000), FromInt(40).MinorUnits())
	assert.Equal(t, int64(1999), MustParse("19.99").MinorUnits())
	assert.Equal(t, int64(1000), MustParse("9.995").MinorUnits())
}

func TestJSONNumber(t *testing.T) {
	b, err := json.Marshal(struct {
		Amount Money `json:"amount"`
	}{Amount: MustParse("12.50")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":12.5}`, string(b))

	var in struct {
		Amount Money `json:"amount"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"amount":"7.25"}`), &in))
	assert.Equal(t, "7.25", in.Amount.String())
	require.NoError(t, json.Unmarshal([]byte(`{"amount":40}`), &in))
	assert.True(t, in.Amount.Equal(FromInt(40)))
}

func TestDynamoAttribute(t *testing.T) {
	type row struct {
		Amount Money `dynamodbav:"amount"`
	}
	item, err := attributevalue.MarshalMap(row{Amount: MustParse("99.95")})
	require.NoError(t, err)
	n, ok := item["amount"].(*types.AttributeValueMemberN)
	require.True(t, ok)
	assert.Equal(t, "99.95", n.Value)

	var out row
	require.NoError(t, attributevalue.UnmarshalMap(item, &out))
	assert.True(t, out.Amount.Equal(MustParse("99.95")))
}

func TestBSONValue(t *testing.T) {
	type doc struct {
		Amount Money `bson:"amount"`
	}
	raw, err := bson.Marshal(doc{Amount: MustParse("10.05")})
	require.NoError(t, err)
	var out doc
	require.NoError(t, bson.Unmarshal(raw, &out))
	assert.True(t, out.Amount.Equal(MustParse("10.05")))

	legacy, err := bson.Marshal(bson.M{"amount": 40})
	require.NoError(t, err)
	require.NoError(t, bson.Unmarshal(legacy, &out))
	assert.True(t, out.Amount.Equal(FromInt(40)))
}
