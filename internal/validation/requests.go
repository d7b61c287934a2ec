package validation

import (
	"github.com/imrishuroy/go-storefront-orders/internal/checkout"
	"github.com/imrishuroy/go-storefront-orders/internal/money"
	"github.com/imrishuroy/go-storefront-orders/internal/orders"
	"github.com/imrishuroy/go-storefront-orders/internal/settings"
)

// Item is a single cart line. Any price the storefront sends is ignored.
type Item struct {
	Name     string `json:"name" validate:"required"`
	Size     string `json:"size"`
	Quantity int    `json:"quantity" validate:"required,min=1"`
}

// Address is the shipping address as the storefront form sends it.
type Address struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName"`
	Email     string `json:"email" validate:"omitempty,email"`
	Street    string `json:"street" validate:"required"`
	City      string `json:"city" validate:"required"`
	State     string `json:"state" validate:"required"`
	Zipcode   string `json:"zipcode" validate:"required"`
	Country   string `json:"country" validate:"required"`
	Phone     string `json:"phone" validate:"required"`
}

// PlaceOrderRequest is the body of /api/order/place and /api/order/razorpay.
// A userId in the body is ignored; the token decides the owner.
type PlaceOrderRequest struct {
	Items   []Item      `json:"items" validate:"required,min=1,dive"`
	Amount  money.Money `json:"amount" validate:"gt=0"`
	Address Address     `json:"address"`
}

// ToPlaceRequest converts the body for the checkout service.
func (r PlaceOrderRequest) ToPlaceRequest(userID, idempotencyKey string) checkout.PlaceRequest {
	items := make([]checkout.ItemRequest, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, checkout.ItemRequest{Name: it.Name, Size: it.Size, Quantity: it.Quantity})
	}
	a := r.Address
	return checkout.PlaceRequest{
		UserID: userID,
		Items:  items,
		Amount: r.Amount,
		Address: orders.Address{
			FirstName: a.FirstName,
			LastName:  a.LastName,
			Email:     a.Email,
			Street:    a.Street,
			City:      a.City,
			State:     a.State,
			Zipcode:   a.Zipcode,
			Country:   a.Country,
			Phone:     a.Phone,
		},
		IdempotencyKey: idempotencyKey,
	}
}

// VerifyRequest is the body of /api/order/verifyRazorpay. The storefront
// sends razorpay_order_id; gatewayOrderId is accepted as well.
type VerifyRequest struct {
	RazorpayOrderID string `json:"razorpay_order_id" validate:"required_without=GatewayOrderID"`
	GatewayOrderID  string `json:"gatewayOrderId"`
}

// OrderID returns whichever id field was set.
func (r VerifyRequest) OrderID() string {
	if r.RazorpayOrderID != "" {
		return r.RazorpayOrderID
	}
	return r.GatewayOrderID
}

// StatusRequest is the body of /api/order/status.
type StatusRequest struct {
	OrderID string        `json:"orderId" validate:"required"`
	Status  orders.Status `json:"status" validate:"required,order_status"`
}

// SettingsRequest is a partial settings update.
type SettingsRequest struct {
	StoreName   *string      `json:"storeName" validate:"omitempty,min=1,max=100"`
	Currency    *string      `json:"currency" validate:"omitempty,len=3"`
	Timezone    *string      `json:"timezone" validate:"omitempty,timezone"`
	DeliveryFee *money.Money `json:"deliveryFee" validate:"omitempty,gte=0"`
}

// ToPatch converts the body for settings.Service.Update.
func (r SettingsRequest) ToPatch() settings.Patch {
	return settings.Patch{
		StoreName:   r.StoreName,
		Currency:    r.Currency,
		Timezone:    r.Timezone,
		DeliveryFee: r.DeliveryFee,
	}
}
