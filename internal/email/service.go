package email

import (
	"fmt"
	"net"
	"net/smtp"
	"strings"
)

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service sends HTML mail through an SMTP relay without authentication.
type Service struct {
	host     string
	port     string
	from     string
	sendMail sendMailFunc
}

func NewService(host, port, from string) *Service {
	return &Service{
		host:     host,
		port:     port,
		from:     from,
		sendMail: smtp.SendMail,
	}
}

// SendOrderConfirmation mails the confirmation for a placed order to `to`.
func (s *Service) SendOrderConfirmation(to string, c Confirmation) error {
	body, err := RenderOrderConfirmation(c)
	if err != nil {
		return fmt.Errorf("render confirmation for %s: %w", c.OrderID, err)
	}
	subject := fmt.Sprintf("Order confirmation #%s", shortID(c.OrderID))
	return s.send(to, subject, body)
}

func (s *Service) send(to, subject, body string) error {
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	msg.WriteString(body)

	return s.sendMail(net.JoinHostPort(s.host, s.port), nil, s.from, []string{to}, []byte(msg.String()))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
