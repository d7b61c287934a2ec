// Package analytics computes the admin dashboard figures over all orders.
package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/imrishuroy/go-storefront-orders/internal/catalog"
	"github.com/imrishuroy/go-storefront-orders/internal/money"
	"github.com/imrishuroy/go-storefront-orders/internal/orders"
)

// Window is how far back monthly revenue reaches.
const Window = 6 * 30 * 24 * time.Hour

// TopN is the number of products in TopProducts.
const TopN = 5

// MonthKey identifies a calendar month.
type MonthKey struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// MonthlyRevenue is one calendar month in the window.
type MonthlyRevenue struct {
	ID      MonthKey    `json:"_id"`
	Revenue money.Money `json:"revenue"`
	Orders  int         `json:"orders"`
}

// ProductSales is units and revenue for one product name.
type ProductSales struct {
	Name      string      `json:"_id"`
	TotalSold int         `json:"totalSold"`
	Revenue   money.Money `json:"revenue"`
}

// CategorySales is units and revenue for one catalog category.
type CategorySales struct {
	Category  string      `json:"_id"`
	TotalSold int         `json:"totalSold"`
	Revenue   money.Money `json:"revenue"`
}

// Summary is the analytics response body.
type Summary struct {
	TotalOrders     int              `json:"totalOrders"`
	TotalRevenue    money.Money      `json:"totalRevenue"`
	PendingOrders   int              `json:"pendingOrders"`
	DeliveredOrders int              `json:"deliveredOrders"`
	TotalProducts   int              `json:"totalProducts"`
	MonthlyRevenue  []MonthlyRevenue `json:"monthlyRevenue"`
	TopProducts     []ProductSales   `json:"topProducts"`
	CategorySales   []CategorySales  `json:"categorySales"`
}

// Aggregator reads the stores and computes a Summary on every call.
type Aggregator struct {
	orders   orders.Repository
	catalog  catalog.Catalog
	location func() *time.Location
	nowFunc  func() time.Time
}

// NewAggregator returns an aggregator bucketing months in the zone returned
// by location (UTC when nil).
func NewAggregator(repo orders.Repository, cat catalog.Catalog, location func() *time.Location) *Aggregator {
	if location == nil {
		location = func() *time.Location { return time.UTC }
	}
	return &Aggregator{orders: repo, catalog: cat, location: location, nowFunc: time.Now}
}

// Compute reads every order and product. Any read failure fails the whole
// summary.
func (a *Aggregator) Compute(ctx context.Context) (*Summary, error) {
	list, err := a.orders.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	products, err := a.catalog.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	count, err := a.catalog.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}
	s := Summarize(list, products, a.nowFunc(), a.location())
	s.TotalProducts = count
	return &s, nil
}

// Summarize is the pure computation behind Compute. TotalProducts is the
// length of products.
func Summarize(list []orders.Order, products []catalog.Product, now time.Time, loc *time.Location) Summary {
	s := Summary{
		TotalOrders:    len(list),
		TotalRevenue:   money.Zero,
		TotalProducts:  len(products),
		MonthlyRevenue: monthly(list, now, loc),
		TopProducts:    topProducts(list),
		CategorySales:  categorySales(list, products),
	}
	for _, o := range list {
		s.TotalRevenue = s.TotalRevenue.Add(o.Amount)
		switch o.Status {
		case orders.StatusPlaced:
			s.PendingOrders++
		case orders.StatusDelivered:
			s.DeliveredOrders++
		}
	}
	return s
}

func monthly(list []orders.Order, now time.Time, loc *time.Location) []MonthlyRevenue {
	since := now.Add(-Window).UnixMilli()
	buckets := map[MonthKey]*MonthlyRevenue{}
	for _, o := range list {
		if o.Date < since {
			continue
		}
		t := time.UnixMilli(o.Date).In(loc)
		k := MonthKey{Year: t.Year(), Month: int(t.Month())}
		b, ok := buckets[k]
		if !ok {
			b = &MonthlyRevenue{ID: k, Revenue: money.Zero}
			buckets[k] = b
		}
		b.Revenue = b.Revenue.Add(o.Amount)
		b.Orders++
	}

	out := make([]MonthlyRevenue, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ID.Year != out[j].ID.Year {
			return out[i].ID.Year < out[j].ID.Year
		}
		return out[i].ID.Month < out[j].ID.Month
	})
	return out
}

func topProducts(list []orders.Order) []ProductSales {
	byName := map[string]*ProductSales{}
	for _, o := range list {
		for _, it := range o.Items {
			p, ok := byName[it.Name]
			if !ok {
				p = &ProductSales{Name: it.Name, Revenue: money.Zero}
				byName[it.Name] = p
			}
			p.TotalSold += it.Quantity
			p.Revenue = p.Revenue.Add(it.Subtotal())
		}
	}

	out := make([]ProductSales, 0, len(byName))
	for _, p := range byName {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalSold != out[j].TotalSold {
			return out[i].TotalSold > out[j].TotalSold
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > TopN {
		out = out[:TopN]
	}
	return out
}

// categorySales joins line items to the live catalog by product name. Items
// whose product no longer exists are not counted.
func categorySales(list []orders.Order, products []catalog.Product) []CategorySales {
	categoryOf := make(map[string]string, len(products))
	for name, p := range catalog.ByName(products) {
		categoryOf[name] = p.Category
	}

	byCategory := map[string]*CategorySales{}
	for _, o := range list {
		for _, it := range o.Items {
			cat, ok := categoryOf[it.Name]
			if !ok {
				continue
			}
			c, ok := byCategory[cat]
			if !ok {
				c = &CategorySales{Category: cat, Revenue: money.Zero}
				byCategory[cat] = c
			}
			c.TotalSold += it.Quantity
			c.Revenue = c.Revenue.Add(it.Subtotal())
		}
	}

	out := make([]CategorySales, 0, len(byCategory))
	for _, c := range byCategory {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if cmp := out[i].Revenue.Cmp(out[j].Revenue); cmp != 0 {
			return cmp > 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}
