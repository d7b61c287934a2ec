package validation

import (
	"reflect"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/go-storefront-orders/internal/money"
	"github.com/imrishuroy/go-storefront-orders/internal/orders"
)

// New returns a validator that understands money.Money and order statuses and
// reports fields by their JSON names.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// money.Money compares as a float for gt/gte; exact arithmetic happens in
	// the services.
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		m, ok := field.Interface().(money.Money)
		if !ok {
			return nil
		}
		f, _ := m.Decimal().Float64()
		return f
	}, money.Money{})

	_ = v.RegisterValidation("order_status", func(fl validatorv10.FieldLevel) bool {
		return orders.Status(fl.Field().String()).Valid()
	})

	// at most one line per (name, size)
	v.RegisterStructValidation(placeOrderStructValidation, PlaceOrderRequest{})

	return v
}

func placeOrderStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(PlaceOrderRequest)

	type lineKey struct{ name, size string }
	seen := make(map[lineKey]bool, len(req.Items))
	for _, it := range req.Items {
		k := lineKey{it.Name, it.Size}
		if seen[k] {
			sl.ReportError(req.Items, "items", "Items", "unique_item", it.Name+"/"+it.Size)
			return
		}
		seen[k] = true
	}
}
