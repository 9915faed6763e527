package types

// ShippingAddress is captured on the order at checkout and never re-derived.
type ShippingAddress struct {
	FullName     string `json:"fullName" validate:"required,min=2,max=120"`
	AddressLine1 string `json:"addressLine1" validate:"required,max=200"`
	AddressLine2 string `json:"addressLine2,omitempty" validate:"max=200"`
	City         string `json:"city" validate:"required,max=100"`
	Region       string `json:"region" validate:"required,max=100"`
	PostalCode   string `json:"postalCode" validate:"required,max=20"`
	Phone        string `json:"phone" validate:"required,min=7,max=30"`
}
