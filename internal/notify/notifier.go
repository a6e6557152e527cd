package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"

	"github.com/Skotchmaster/storefront/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// StatusMessage is the customer-facing line for an order status.
func StatusMessage(s models.OrderStatus) (string, error) {
	switch s {
	case models.StatusPending:
		return "We have received your order and are waiting for payment.", nil
	case models.StatusProcessing:
		return "Your payment is confirmed and your order is being prepared.", nil
	case models.StatusShipped:
		return "Your order is on its way.", nil
	case models.StatusDelivered:
		return "Your order has been delivered.", nil
	case models.StatusCancelled:
		return "Your order has been cancelled.", nil
	case models.StatusRefunded:
		return "Your order has been refunded.", nil
	}
	return "", fmt.Errorf("notify: no message for order status %q", s)
}

type Notifier struct {
	Mailer Mailer
	From   string
	// ShopName appears in subjects and greetings.
	ShopName string
}

func (n *Notifier) render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("notify: render %s: %w", name, err)
	}
	return buf.String(), nil
}

func (n *Notifier) send(ctx context.Context, to, subject, tmpl string, data any) error {
	html, err := n.render(tmpl, data)
	if err != nil {
		return err
	}
	return n.Mailer.Send(ctx, Message{From: n.From, To: to, Subject: subject, HTML: html})
}

func (n *Notifier) OrderPlaced(ctx context.Context, o *models.Order) error {
	return n.send(ctx, o.ShippingEmail,
		fmt.Sprintf("%s: order %s confirmed", n.ShopName, o.OrderNumber),
		"order_placed.html",
		map[string]any{"Shop": n.ShopName, "Order": o},
	)
}

func (n *Notifier) OrderStatusChanged(ctx context.Context, o *models.Order) error {
	msg, err := StatusMessage(o.Status)
	if err != nil {
		return err
	}
	return n.send(ctx, o.ShippingEmail,
		fmt.Sprintf("%s: order %s is %s", n.ShopName, o.OrderNumber, o.Status),
		"order_status.html",
		map[string]any{"Shop": n.ShopName, "Order": o, "Message": msg},
	)
}

func (n *Notifier) UserRegistered(ctx context.Context, u *models.User) error {
	return n.send(ctx, u.Email,
		fmt.Sprintf("Welcome to %s", n.ShopName),
		"welcome.html",
		map[string]any{"Shop": n.ShopName, "User": u},
	)
}
