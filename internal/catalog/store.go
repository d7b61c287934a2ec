package catalog

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-storefront-orders/internal/aws"
)

// DynamoStore reads the products table.
type DynamoStore struct {
	client    aws.DynamoDBAPI
	tableName string
}

var _ Catalog = (*DynamoStore)(nil)

func NewDynamoStore(client aws.DynamoDBAPI, tableName string) *DynamoStore {
	return &DynamoStore{client: client, tableName: tableName}
}

// List scans every product.
func (s *DynamoStore) List(ctx context.Context) ([]Product, error) {
	p := dyn.NewScanPaginator(s.client, &dyn.ScanInput{TableName: &s.tableName})
	var products []Product
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan products: %w", err)
		}
		var batch []Product
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal products: %w", err)
		}
		products = append(products, batch...)
	}
	return products, nil
}

// Count uses a COUNT scan so no item data is transferred.
func (s *DynamoStore) Count(ctx context.Context) (int, error) {
	p := dyn.NewScanPaginator(s.client, &dyn.ScanInput{
		TableName: &s.tableName,
		Select:    types.SelectCount,
	})
	total := 0
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return 0, fmt.Errorf("count products: %w", err)
		}
		total += int(page.Count)
	}
	return total, nil
}
