package mongostore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/imrishuroy/go-storefront-orders/internal/catalog"
	"github.com/imrishuroy/go-storefront-orders/internal/money"
)

// Catalog reads the products collection.
type Catalog struct {
	coll *mongo.Collection
}

var _ catalog.Catalog = (*Catalog)(nil)

func NewCatalog(db *mongo.Database) *Catalog {
	return &Catalog{coll: db.Collection(ProductsCollection)}
}

// productDoc accepts both ObjectID and string ids.
type productDoc struct {
	ID          any         `bson:"_id"`
	Name        string      `bson:"name"`
	Category    string      `bson:"category"`
	SubCategory string      `bson:"subCategory"`
	Price       money.Money `bson:"price"`
	Sizes       []string    `bson:"sizes"`
	Bestseller  bool        `bson:"bestseller"`
	Date        int64       `bson:"date"`
}

func (d productDoc) product() catalog.Product {
	p := catalog.Product{
		Name:        d.Name,
		Category:    d.Category,
		SubCategory: d.SubCategory,
		Price:       d.Price,
		Sizes:       d.Sizes,
		Bestseller:  d.Bestseller,
		Date:        d.Date,
	}
	switch id := d.ID.(type) {
	case primitive.ObjectID:
		p.ProductID = id.Hex()
	case string:
		p.ProductID = id
	default:
		p.ProductID = fmt.Sprint(id)
	}
	return p
}

func (c *Catalog) List(ctx context.Context) ([]catalog.Product, error) {
	cur, err := c.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	var docs []productDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	products := make([]catalog.Product, 0, len(docs))
	for _, d := range docs {
		products = append(products, d.product())
	}
	return products, nil
}

func (c *Catalog) Count(ctx context.Context) (int, error) {
	n, err := c.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return int(n), nil
}
