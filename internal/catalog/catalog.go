// Package catalog is the read-only view of the product catalog used for
// pricing and analytics. Catalog management lives elsewhere.
package catalog

import (
	"context"
	"slices"

	"github.com/imrishuroy/go-storefront-orders/internal/money"
)

// Product is a catalog entry.
type Product struct {
	ProductID   string      `dynamodbav:"product_id" bson:"_id" json:"productId"`
	Name        string      `dynamodbav:"name" bson:"name" json:"name"`
	Category    string      `dynamodbav:"category" bson:"category" json:"category"`
	SubCategory string      `dynamodbav:"sub_category" bson:"subCategory" json:"subCategory"`
	Price       money.Money `dynamodbav:"price" bson:"price" json:"price"`
	Sizes       []string    `dynamodbav:"sizes" bson:"sizes" json:"sizes"`
	Bestseller  bool        `dynamodbav:"bestseller" bson:"bestseller" json:"bestseller"`
	Date        int64       `dynamodbav:"date" bson:"date" json:"date"`
}

// HasSize reports whether size may be ordered. Products without sizes accept
// any size.
func (p Product) HasSize(size string) bool {
	return len(p.Sizes) == 0 || slices.Contains(p.Sizes, size)
}

// Catalog reads products.
type Catalog interface {
	List(ctx context.Context) ([]Product, error)
	Count(ctx context.Context) (int, error)
}

// ByName indexes products by name. When names collide the first product wins.
func ByName(products []Product) map[string]Product {
	idx := make(map[string]Product, len(products))
	for _, p := range products {
		if _, ok := idx[p.Name]; !ok {
			idx[p.Name] = p
		}
	}
	return idx
}
