// Package settings holds the store-wide configuration edited from the admin
// console: loaded once at start, validated, and persisted on every change.
package settings

import (
	"errors"
	"fmt"
	"strings"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/go-storefront-orders/internal/money"
)

// ErrInvalidSettings wraps every validation failure.
var ErrInvalidSettings = errors.New("invalid settings")

// Settings is the persisted store configuration.
type Settings struct {
	StoreName   string      `dynamodbav:"store_name" bson:"storeName" json:"storeName" validate:"required,max=100"`
	Currency    string      `dynamodbav:"currency" bson:"currency" json:"currency" validate:"required,iso4217"`
	Timezone    string      `dynamodbav:"timezone" bson:"timezone" json:"timezone" validate:"required,timezone"`
	DeliveryFee money.Money `dynamodbav:"delivery_fee" bson:"deliveryFee" json:"deliveryFee"`
	UpdatedAt   time.Time   `dynamodbav:"updated_at" bson:"updatedAt" json:"updatedAt"`
}

// Patch is a partial update; nil fields keep their current value.
type Patch struct {
	StoreName   *string
	Currency    *string
	Timezone    *string
	DeliveryFee *money.Money
}

// Apply returns s with the patch merged in.
func (p Patch) Apply(s Settings) Settings {
	if p.StoreName != nil {
		s.StoreName = strings.TrimSpace(*p.StoreName)
	}
	if p.Currency != nil {
		s.Currency = strings.ToUpper(strings.TrimSpace(*p.Currency))
	}
	if p.Timezone != nil {
		s.Timezone = strings.TrimSpace(*p.Timezone)
	}
	if p.DeliveryFee != nil {
		s.DeliveryFee = *p.DeliveryFee
	}
	return s
}

var validate = validatorv10.New()

// Validate checks the schema. The returned error wraps ErrInvalidSettings.
func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		var ve validatorv10.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			fe := ve[0]
			return fmt.Errorf("%w: %s failed %q", ErrInvalidSettings, fe.Field(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if s.DeliveryFee.IsNegative() {
		return fmt.Errorf("%w: DeliveryFee must not be negative", ErrInvalidSettings)
	}
	return nil
}

// Location resolves Timezone, falling back to UTC.
func (s Settings) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
