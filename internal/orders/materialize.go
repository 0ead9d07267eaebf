package orders

import (
	"strconv"
	"strings"
	"time"

	stripeapi "github.com/stripe/stripe-go/v82"
)

// FromCheckoutSession maps a completed checkout session onto an Order.
// Every optional field resolves to its documented default when absent or
// malformed; partial metadata never blocks capture of the fields that are
// present. The mapping is pure apart from the injected timestamp.
//
// amount_total is the authoritative amount. The totalPrice metadata entry is
// carried verbatim for display only and never overrides it.
func FromCheckoutSession(session *stripeapi.CheckoutSession, now time.Time) Order {
	order := Order{
		SessionID:        session.ID,
		AmountMinorUnits: session.AmountTotal,
		Currency:         string(session.Currency),
		PaymentStatus:    string(session.PaymentStatus),
		CreatedAt:        now,
	}

	md := session.Metadata
	order.Options = Options{
		BindingType:    metadataValue(md, "bindingType"),
		BindingName:    metadataValue(md, "bindingName"),
		Format:         metadataValue(md, "format"),
		PaperWeight:    metadataValue(md, "paperWeight"),
		PrintingOption: metadataValue(md, "printingOption"),
		PageCount:      metadataInt(md, "pageCount"),
		TotalPrice:     metadataDecimal(md, "totalPrice"),
		PaymentMethod:  metadataValue(md, "paymentMethod"),
	}

	if details := session.CustomerDetails; details != nil {
		order.Email = strings.TrimSpace(details.Email)
		order.Customer.Name = strings.TrimSpace(details.Name)
		order.Customer.Phone = strings.TrimSpace(details.Phone)
		if addr := details.Address; addr != nil {
			order.Customer.Address = &Address{
				Line1:      addr.Line1,
				Line2:      addr.Line2,
				City:       addr.City,
				PostalCode: addr.PostalCode,
				State:      addr.State,
				Country:    addr.Country,
			}
		}
	}
	if order.Email == "" {
		order.Email = strings.TrimSpace(session.CustomerEmail)
	}

	return order
}

func metadataValue(md map[string]string, key string) string {
	value := strings.TrimSpace(md[key])
	if value == "" {
		return MetadataUnset
	}
	return value
}

// metadataInt returns nil for a missing or non-numeric entry.
func metadataInt(md map[string]string, key string) *int64 {
	value := strings.TrimSpace(md[key])
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil
	}
	return &parsed
}

// metadataDecimal keeps the original decimal string when it parses, and
// falls back to the unset marker otherwise.
func metadataDecimal(md map[string]string, key string) string {
	value := strings.TrimSpace(md[key])
	if value == "" {
		return MetadataUnset
	}
	if _, err := strconv.ParseFloat(value, 64); err != nil {
		return MetadataUnset
	}
	return value
}
