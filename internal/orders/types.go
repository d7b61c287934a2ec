package orders

import (
	"time"

	"github.com/imrishuroy/go-storefront-orders/internal/money"
)

// PaymentMethod is how the customer pays for an order.
type PaymentMethod string

const (
	PaymentCOD      PaymentMethod = "COD"
	PaymentRazorpay PaymentMethod = "Razorpay"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentCOD || m == PaymentRazorpay
}

// LineItem is a snapshot of a purchased product. It is copied into the order
// at checkout so later catalog edits do not change history.
type LineItem struct {
	Name     string      `dynamodbav:"name" bson:"name" json:"name"`
	Size     string      `dynamodbav:"size" bson:"size" json:"size"`
	Quantity int         `dynamodbav:"quantity" bson:"quantity" json:"quantity"`
	Price    money.Money `dynamodbav:"price" bson:"price" json:"price"`
}

// Subtotal is price × quantity.
func (li LineItem) Subtotal() money.Money {
	return li.Price.Times(li.Quantity)
}

// Address is the shipping address copied into the order.
type Address struct {
	FirstName string `dynamodbav:"first_name" bson:"firstName" json:"firstName"`
	LastName  string `dynamodbav:"last_name" bson:"lastName" json:"lastName"`
	Email     string `dynamodbav:"email" bson:"email" json:"email"`
	Street    string `dynamodbav:"street" bson:"street" json:"street"`
	City      string `dynamodbav:"city" bson:"city" json:"city"`
	State     string `dynamodbav:"state" bson:"state" json:"state"`
	Zipcode   string `dynamodbav:"zipcode" bson:"zipcode" json:"zipcode"`
	Country   string `dynamodbav:"country" bson:"country" json:"country"`
	Phone     string `dynamodbav:"phone" bson:"phone" json:"phone"`
}

// Order represents the item stored in the orders table / collection.
type Order struct {
	OrderID        string        `dynamodbav:"order_id" bson:"_id" json:"orderId"` // PK
	UserID         string        `dynamodbav:"user_id" bson:"userId" json:"userId"`
	Items          []LineItem    `dynamodbav:"items" bson:"items" json:"items"`
	Address        Address       `dynamodbav:"address" bson:"address" json:"address"`
	Amount         money.Money   `dynamodbav:"amount" bson:"amount" json:"amount"`
	PaymentMethod  PaymentMethod `dynamodbav:"payment_method" bson:"paymentMethod" json:"paymentMethod"`
	Payment        bool          `dynamodbav:"payment" bson:"payment" json:"payment"`
	Status         Status        `dynamodbav:"status" bson:"status" json:"status"`
	Date           int64         `dynamodbav:"created_at" bson:"date" json:"date"` // epoch ms, immutable
	GatewayOrderID string        `dynamodbav:"gateway_order_id,omitempty" bson:"gatewayOrderId,omitempty" json:"gatewayOrderId,omitempty"`
	UpdatedAt      time.Time     `dynamodbav:"updated_at" bson:"updatedAt" json:"updatedAt"`
}

// CreatedAt returns Date as a time.
func (o Order) CreatedAt() time.Time {
	return time.UnixMilli(o.Date)
}
