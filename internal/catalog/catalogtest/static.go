// Package catalogtest provides a fixed catalog for tests.
package catalogtest

import (
	"context"

	"github.com/imrishuroy/go-storefront-orders/internal/catalog"
)

// Static serves Products, or Err when set.
type Static struct {
	Products []catalog.Product
	Err      error
}

var _ catalog.Catalog = (*Static)(nil)

func (s *Static) List(context.Context) ([]catalog.Product, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return append([]catalog.Product(nil), s.Products...), nil
}

func (s *Static) Count(context.Context) (int, error) {
	if s.Err != nil {
		return 0, s.Err
	}
	return len(s.Products), nil
}
