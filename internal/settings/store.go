package settings

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-storefront-orders/internal/aws"
)

// settingsID is the partition key of the only item in the table.
const settingsID = "store"

type settingsItem struct {
	SettingsID string `dynamodbav:"settings_id"`
	Settings
}

// DynamoStore keeps the settings as a single item.
type DynamoStore struct {
	client    aws.DynamoDBAPI
	tableName string
}

var _ Store = (*DynamoStore)(nil)

func NewDynamoStore(client aws.DynamoDBAPI, tableName string) *DynamoStore {
	return &DynamoStore{client: client, tableName: tableName}
}

func (s *DynamoStore) Get(ctx context.Context) (*Settings, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"settings_id": &types.AttributeValueMemberS{Value: settingsID},
		},
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var item settingsItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	return &item.Settings, nil
}

func (s *DynamoStore) Save(ctx context.Context, st Settings) error {
	item, err := attributevalue.MarshalMap(settingsItem{SettingsID: settingsID, Settings: st})
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	}); err != nil {
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

func awsBool(b bool) *bool { return &b }
