package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/clarencejohnson126/stripe-webook-server/internal/config"
	"github.com/clarencejohnson126/stripe-webook-server/internal/orders"
)

// ErrNotConfigured is returned when the SMTP credentials are missing.
var ErrNotConfigured = errors.New("email sender not configured")

// SMTPSender delivers order-confirmation emails. One delivery attempt per
// order; retries are left to out-of-band recovery.
type SMTPSender struct {
	cfg config.EmailConfig
}

// NewSMTPSender constructs the sender from SMTP configuration.
func NewSMTPSender(cfg config.EmailConfig) (*SMTPSender, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, ErrNotConfigured
	}
	return &SMTPSender{cfg: cfg}, nil
}

// SendOrderConfirmation composes and sends the confirmation email for one
// captured order.
func (s *SMTPSender) SendOrderConfirmation(ctx context.Context, order orders.Order) error {
	if order.Email == "" {
		return fmt.Errorf("order %s has no recipient email", order.SessionID)
	}

	msg := buildMessage(s.cfg.From, order)
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	var auth smtp.Auth
	if s.cfg.User != "" {
		auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)
	}

	slog.InfoContext(ctx, "sending order confirmation", "session_id", order.SessionID, "to", order.Email)
	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{order.Email}, msg); err != nil {
		return fmt.Errorf("send confirmation for %s: %w", order.SessionID, err)
	}
	return nil
}

func buildMessage(from string, order orders.Order) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", order.Email)
	fmt.Fprintf(&b, "Subject: Order confirmation %s\r\n", order.SessionID)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(Summary(order))
	return []byte(b.String())
}

// Summary renders the human-readable order overview used as the email body.
func Summary(order orders.Order) string {
	pageCount := orders.MetadataUnset
	if order.Options.PageCount != nil {
		pageCount = fmt.Sprintf("%d", *order.Options.PageCount)
	}

	var b strings.Builder
	name := order.Customer.Name
	if name == "" {
		name = "there"
	}
	fmt.Fprintf(&b, "Hello %s,\n\n", name)
	b.WriteString("thank you for your order! Here is what we received:\n\n")
	fmt.Fprintf(&b, "Order reference: %s\n", order.SessionID)
	fmt.Fprintf(&b, "Amount paid: %s\n", formatAmount(order.AmountMinorUnits, order.Currency))
	fmt.Fprintf(&b, "Payment status: %s\n", order.PaymentStatus)
	b.WriteString("\nConfiguration:\n")
	fmt.Fprintf(&b, "  Binding: %s (%s)\n", order.Options.BindingType, order.Options.BindingName)
	fmt.Fprintf(&b, "  Format: %s\n", order.Options.Format)
	fmt.Fprintf(&b, "  Paper weight: %s\n", order.Options.PaperWeight)
	fmt.Fprintf(&b, "  Printing: %s\n", order.Options.PrintingOption)
	fmt.Fprintf(&b, "  Pages: %s\n", pageCount)
	fmt.Fprintf(&b, "  Total price: %s\n", order.Options.TotalPrice)
	fmt.Fprintf(&b, "  Payment method: %s\n", order.Options.PaymentMethod)
	if addr := order.Customer.Address; addr != nil {
		b.WriteString("\nShipping to:\n")
		for _, line := range []string{addr.Line1, addr.Line2, addr.PostalCode + " " + addr.City, addr.State, addr.Country} {
			if strings.TrimSpace(line) != "" {
				fmt.Fprintf(&b, "  %s\n", strings.TrimSpace(line))
			}
		}
	}
	b.WriteString("\nWe will start processing your order right away.\n")
	return b.String()
}

func formatAmount(minorUnits int64, currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = "EUR"
	}
	return fmt.Sprintf("%.2f %s", float64(minorUnits)/100, currency)
}
