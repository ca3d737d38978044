package email

import (
	"html/template"
	"strings"

	"github.com/shopspring/decimal"
)

// Confirmation is the data of an order confirmation mail. Prices are in tenge.
type Confirmation struct {
	OrderID       string
	FirstName     string
	PaymentMethod string
	Items         []Item
	Total         decimal.Decimal
}

type Item struct {
	ProductID string
	Name      string
	Quantity  int
	Price     decimal.Decimal
}

func (i Item) Label() string {
	if i.Name == "" {
		return i.ProductID
	}
	return i.Name
}

func (i Item) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

var confirmationTemplate = template.Must(template.New("confirmation").
	Funcs(template.FuncMap{"money": FormatTenge}).
	Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: sans-serif; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<h1 style="font-size: 22px;">Thank you for your order{{if .FirstName}}, {{.FirstName}}{{end}}!</h1>
	<p>Order number: <strong style="font-family: monospace;">{{.OrderID}}</strong></p>
	<table style="width: 100%; border-collapse: collapse; margin: 20px 0;">
		<thead>
			<tr style="background: #f5f5f5;">
				<th style="padding: 8px; text-align: left;">Product</th>
				<th style="padding: 8px; text-align: center;">Qty</th>
				<th style="padding: 8px; text-align: right;">Price</th>
				<th style="padding: 8px; text-align: right;">Subtotal</th>
			</tr>
		</thead>
		<tbody>
{{- range .Items}}
			<tr>
				<td style="padding: 8px; border-bottom: 1px solid #eee;">{{.Label}}</td>
				<td style="padding: 8px; border-bottom: 1px solid #eee; text-align: center;">{{.Quantity}}</td>
				<td style="padding: 8px; border-bottom: 1px solid #eee; text-align: right;">{{money .Price}}</td>
				<td style="padding: 8px; border-bottom: 1px solid #eee; text-align: right;">{{money .Subtotal}}</td>
			</tr>
{{- end}}
		</tbody>
	</table>
	<p style="text-align: right; font-size: 18px;">Total: <strong>{{money .Total}}</strong></p>
	{{if .PaymentMethod}}<p>Payment method: {{.PaymentMethod}}</p>{{end}}
	<p style="font-size: 12px; color: #999;">This message was sent automatically. Please do not reply.</p>
</body>
</html>
`))

// RenderOrderConfirmation renders the HTML body. Names are HTML-escaped.
func RenderOrderConfirmation(c Confirmation) (string, error) {
	var b strings.Builder
	if err := confirmationTemplate.Execute(&b, c); err != nil {
		return "", err
	}
	return b.String(), nil
}

// FormatTenge formats an amount with space-grouped thousands, e.g. "12 500 ₸" or
// "1 999.50 ₸". Whole amounts carry no fraction.
func FormatTenge(d decimal.Decimal) string {
	s := d.StringFixed(2)
	if d.Equal(d.Truncate(0)) {
		s = d.Truncate(0).String()
	}

	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}

	var grouped strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			grouped.WriteByte(' ')
		}
		grouped.WriteRune(r)
	}
	return sign + grouped.String() + frac + " ₸"
}
