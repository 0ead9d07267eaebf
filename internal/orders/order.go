package orders

import "time"

// MetadataUnset is the recorded value for an optional order-configuration
// field that was absent from the checkout payload or failed to parse.
const MetadataUnset = "n/a"

// Order is the durable record derived from a completed checkout session.
type Order struct {
	SessionID        string
	Email            string
	AmountMinorUnits int64
	Currency         string
	PaymentStatus    string
	Options          Options
	Customer         Customer
	CreatedAt        time.Time
}

// Options carries the order-configuration fields supplied through checkout
// metadata. String fields hold MetadataUnset when missing; PageCount is nil
// when missing or non-numeric.
type Options struct {
	BindingType    string
	BindingName    string
	Format         string
	PaperWeight    string
	PrintingOption string
	PageCount      *int64
	TotalPrice     string
	PaymentMethod  string
}

// Customer holds the optional buyer contact fields from the session.
type Customer struct {
	Name    string
	Phone   string
	Address *Address
}

// Address mirrors the structured shipping address sub-document.
type Address struct {
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	State      string `json:"state,omitempty"`
	Country    string `json:"country,omitempty"`
}
