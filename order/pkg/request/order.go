package request

import (
	"github.com/rs/zerolog"
)

const DefaultCountry = "Nigeria"

type Shipping struct {
	FullName       string `validate:"required"       json:"full_name"`
	Email          string `validate:"required,email" json:"email"`
	PhoneNumber    string `validate:"required"       json:"phone_number"`
	WhatsappNumber string `validate:"required"       json:"whatsapp_number"`
	PickupLocation string `validate:"required"       json:"pickup_location"`
	City           string `validate:"required"       json:"city"`
	State          string `validate:"required"       json:"state"`
	Country        string `                          json:"country"`
}

func (s Shipping) WithDefaults() Shipping {
	if s.Country == "" {
		s.Country = DefaultCountry
	}
	return s
}

func (s Shipping) MarshalZerologObject(e *zerolog.Event) {
	e.Str("fullName", s.FullName).
		Str("email", s.Email).
		Str("phoneNumber", "***").
		Str("whatsappNumber", "***").
		Str("city", s.City).
		Str("state", s.State).
		Str("country", s.Country)
}

type Checkout struct {
	Shipping Shipping `validate:"required" json:"shipping"`
}

type UpdateOrderStatus struct {
	Status string `validate:"required,oneof=pending processing shipped delivered cancelled" json:"status"`
}
