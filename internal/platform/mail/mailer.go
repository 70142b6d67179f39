package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/freshpress/api/internal/domain"
)

// sender abstracts gomail's dialer so tests can capture outgoing messages.
type sender interface {
	DialAndSend(messages ...*gomail.Message) error
}

// SMTPConfig carries the connection settings for the confirmation mailer.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPOrderMailer sends order confirmation emails over SMTP.
type SMTPOrderMailer struct {
	sender sender
	from   string
	tmpl   *template.Template
}

// NewSMTPOrderMailer constructs a mailer from SMTP settings.
func NewSMTPOrderMailer(cfg SMTPConfig) (*SMTPOrderMailer, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("smtp mailer: host is required")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, errors.New("smtp mailer: from address is required")
	}
	port := cfg.Port
	if port <= 0 {
		port = 587
	}
	return &SMTPOrderMailer{
		sender: gomail.NewDialer(cfg.Host, port, cfg.Username, cfg.Password),
		from:   cfg.From,
		tmpl:   confirmationTemplate,
	}, nil
}

// SendOrderConfirmation renders and sends the confirmation email for an order.
func (m *SMTPOrderMailer) SendOrderConfirmation(ctx context.Context, order domain.Order) error {
	if strings.TrimSpace(order.CustomerEmail) == "" {
		return errors.New("smtp mailer: order has no customer email")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := renderConfirmation(m.tmpl, order)
	if err != nil {
		return fmt.Errorf("render confirmation email: %w", err)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", order.CustomerEmail)
	msg.SetHeader("Subject", "Order Confirmation #"+OrderNumber(order.ID))
	msg.SetBody("text/html", body)

	if err := m.sender.DialAndSend(msg); err != nil {
		return fmt.Errorf("send confirmation email: %w", err)
	}
	return nil
}

// OrderNumber derives the short human-facing order number shown in emails and
// on the confirmation page.
func OrderNumber(orderID string) string {
	trimmed := strings.TrimPrefix(orderID, "ord_")
	if len(trimmed) <= 6 {
		return strings.ToUpper(trimmed)
	}
	return strings.ToUpper(trimmed[len(trimmed)-6:])
}

type confirmationLine struct {
	Title    string
	Quantity int
	Addons   string
	Total    string
}

type confirmationView struct {
	OrderNumber  string
	CustomerName string
	Lines        []confirmationLine
	Subtotal     string
	Shipping     string
	Total        string
	Address      []string
}

func renderConfirmation(tmpl *template.Template, order domain.Order) (string, error) {
	view := confirmationView{
		OrderNumber:  OrderNumber(order.ID),
		CustomerName: order.CustomerName,
		Subtotal:     order.Subtotal.String(),
		Shipping:     order.Shipping.String(),
		Total:        order.Total.String(),
		Address:      addressLines(order.ShippingAddress),
	}
	for _, line := range order.Items {
		names := make([]string, 0, len(line.Addons))
		for _, addon := range line.Addons {
			names = append(names, addon.Name)
		}
		view.Lines = append(view.Lines, confirmationLine{
			Title:    line.Product.Title,
			Quantity: line.Quantity,
			Addons:   strings.Join(names, ", "),
			Total:    line.Total().String(),
		})
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, view); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func addressLines(addr domain.Address) []string {
	parts := []string{addr.FullName, addr.AddressLine1, addr.AddressLine2, addr.Area}
	cityLine := strings.TrimSpace(strings.Join(nonEmpty(addr.City, addr.State, addr.PinCode), ", "))
	parts = append(parts, cityLine, addr.PhoneNumber)
	return nonEmpty(parts...)
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

var confirmationTemplate = template.Must(template.New("order_confirmation").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #2d3436; max-width: 560px; margin: 0 auto;">
  <h1 style="color: #27ae60;">Thank you for your order!</h1>
  <p>Hi {{.CustomerName}}, your order <strong>#{{.OrderNumber}}</strong> is confirmed.</p>
  <table style="width: 100%; border-collapse: collapse;">
    <tr>
      <th style="text-align: left; border-bottom: 1px solid #dfe6e9; padding: 6px;">Item</th>
      <th style="text-align: right; border-bottom: 1px solid #dfe6e9; padding: 6px;">Qty</th>
      <th style="text-align: right; border-bottom: 1px solid #dfe6e9; padding: 6px;">Total</th>
    </tr>
    {{range .Lines}}
    <tr>
      <td style="padding: 6px;">{{.Title}}{{if .Addons}} <small>(+ {{.Addons}})</small>{{end}}</td>
      <td style="text-align: right; padding: 6px;">{{.Quantity}}</td>
      <td style="text-align: right; padding: 6px;">${{.Total}}</td>
    </tr>
    {{end}}
  </table>
  <p style="text-align: right;">
    Subtotal: ${{.Subtotal}}<br>
    Shipping: ${{.Shipping}}<br>
    <strong>Total: ${{.Total}}</strong>
  </p>
  {{if .Address}}
  <h3>Delivery address</h3>
  <p>{{range .Address}}{{.}}<br>{{end}}</p>
  {{end}}
  <p>Fresh Press will start preparing your juices shortly.</p>
</body>
</html>
`))
