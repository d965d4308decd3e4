// Package mailer relays ticket emails over SMTP.
package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"html"
	netmail "net/mail"
	"strings"
	"time"

	"ticket-service/internal/models"
	"ticket-service/internal/util"

	"github.com/google/uuid"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// sendTimeout bounds dialing and each SMTP command
const sendTimeout = 30 * time.Second

// AttachmentName is the filename used for the relayed PDF
const AttachmentName = "T&M_Ticket.pdf"

// Attachment is a file carried by a Message
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is a fully resolved outgoing email
type Message struct {
	ID          string
	From        string
	To          []string
	CC          []string
	Subject     string
	Text        string
	HTML        string
	Attachments []Attachment
	Date        time.Time
}

// Receipt identifies a relayed message
type Receipt struct {
	MessageID  string
	PreviewURL string
}

// Sender transmits a message
type Sender interface {
	Send(ctx context.Context, msg Message) (Receipt, error)
}

// SMTPConfig holds the relay connection settings
type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	PreviewURL string // optional base URL, the message id is appended
}

// SMTPSender sends through an SMTP server with PLAIN auth when credentials are set
type SMTPSender struct {
	cfg  SMTPConfig
	send func(ctx context.Context, client *mail.Client, msg *mail.Msg) error
}

// NewSMTPSender creates a sender for cfg
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPSender{
		cfg: cfg,
		send: func(ctx context.Context, client *mail.Client, msg *mail.Msg) error {
			return client.DialAndSendWithContext(ctx, msg)
		},
	}
}

// Send renders msg and submits it, returning a receipt that carries a preview
// link when PreviewURL is configured
func (s *SMTPSender) Send(ctx context.Context, msg Message) (Receipt, error) {
	if s.cfg.Host == "" {
		return Receipt{}, fmt.Errorf("smtp host not configured")
	}
	m, err := newMsg(msg)
	if err != nil {
		return Receipt{}, err
	}
	client, err := s.client()
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to create smtp client: %w", err)
	}
	if err := s.send(ctx, client, m); err != nil {
		return Receipt{}, fmt.Errorf("smtp send failed: %w", err)
	}

	receipt := Receipt{MessageID: msg.ID}
	if s.cfg.PreviewURL != "" {
		receipt.PreviewURL = strings.TrimRight(s.cfg.PreviewURL, "/") + "/" + msg.ID
	}
	return receipt, nil
}

func (s *SMTPSender) client() (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(sendTimeout),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	return mail.NewClient(s.cfg.Host, opts...)
}

// newMsg builds a multipart message: text with an HTML alternative, then attachments
func newMsg(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(msg.From); err != nil {
		return nil, models.Invalid("from", "invalid sender %q", msg.From)
	}
	if err := m.To(msg.To...); err != nil {
		return nil, models.Invalid("to", "invalid recipient: %v", err)
	}
	if len(msg.CC) > 0 {
		if err := m.Cc(msg.CC...); err != nil {
			return nil, models.Invalid("cc", "invalid cc recipient: %v", err)
		}
	}
	m.Subject(msg.Subject)
	if msg.ID != "" {
		m.SetMessageIDWithValue(msg.ID)
	}
	if msg.Date.IsZero() {
		m.SetDate()
	} else {
		m.SetDateWithValue(msg.Date)
	}

	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}
	for _, a := range msg.Attachments {
		if err := m.AttachReader(a.Filename, bytes.NewReader(a.Data), mail.WithFileContentType(mail.ContentType(a.ContentType))); err != nil {
			return nil, fmt.Errorf("failed to attach %s: %w", a.Filename, err)
		}
	}
	return m, nil
}

// BuildMIME renders msg as it would be submitted
func BuildMIME(msg Message) ([]byte, error) {
	m, err := newMsg(msg)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to render message: %w", err)
	}
	return buf.Bytes(), nil
}

// Relay validates incoming send requests and hands them to a Sender
type Relay struct {
	sender Sender
	from   string
	logger *zap.Logger
	newID  func() string
}

// NewRelay creates a relay sending as from
func NewRelay(sender Sender, from string) *Relay {
	return &Relay{
		sender: sender,
		from:   from,
		logger: util.ComponentLogger("mail_relay"),
		newID:  uuid.NewString,
	}
}

// ErrMissingFields is returned when to, subject or message is empty
var ErrMissingFields = &models.ValidationError{Message: "Missing required fields"}

// SendEmail builds the message for data and relays it.
// The attachment is taken from the base64 part of data.PDFData after ";base64,".
func (r *Relay) SendEmail(ctx context.Context, data models.EmailData) (Receipt, error) {
	ctx, span := util.StartSpan(ctx, "Relay.SendEmail")
	defer span.End()

	if strings.TrimSpace(data.To) == "" || strings.TrimSpace(data.Subject) == "" || strings.TrimSpace(data.Message) == "" {
		util.MailRelayTotal.WithLabelValues("rejected").Inc()
		return Receipt{}, ErrMissingFields
	}

	to, err := ParseRecipients(data.To)
	if err != nil {
		util.MailRelayTotal.WithLabelValues("rejected").Inc()
		return Receipt{}, err
	}
	cc, err := ParseRecipients(data.CC)
	if err != nil {
		util.MailRelayTotal.WithLabelValues("rejected").Inc()
		return Receipt{}, err
	}

	msg := Message{
		ID:      r.newID() + "@ticket-service",
		From:    r.from,
		To:      to,
		CC:      cc,
		Subject: data.Subject,
		Text:    data.Message,
		HTML:    "<p>" + strings.ReplaceAll(html.EscapeString(data.Message), "\n", "<br>") + "</p>",
		Date:    time.Now(),
	}
	if data.PDFData != "" {
		pdf, err := decodeDataURI(data.PDFData)
		if err != nil {
			util.MailRelayTotal.WithLabelValues("rejected").Inc()
			return Receipt{}, err
		}
		msg.Attachments = append(msg.Attachments, Attachment{
			Filename:    AttachmentName,
			ContentType: "application/pdf",
			Data:        pdf,
		})
	}

	receipt, err := r.sender.Send(ctx, msg)
	if err != nil {
		util.MailRelayTotal.WithLabelValues("failed").Inc()
		r.logger.Error("Failed to send email", zap.Strings("to", to), zap.Error(err))
		return Receipt{}, err
	}

	util.MailRelayTotal.WithLabelValues("sent").Inc()
	r.logger.Info("Email sent", zap.String("message_id", receipt.MessageID), zap.Strings("to", to))
	return receipt, nil
}

// ParseRecipients splits a comma separated address list. Empty input yields nil.
func ParseRecipients(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	list, err := netmail.ParseAddressList(s)
	if err != nil {
		return nil, models.Invalid("recipients", "invalid recipient list %q", s)
	}
	out := make([]string, len(list))
	for i, a := range list {
		out[i] = a.Address
	}
	return out, nil
}

func decodeDataURI(uri string) ([]byte, error) {
	encoded := uri
	if idx := strings.Index(uri, ";base64,"); idx >= 0 {
		encoded = uri[idx+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, models.Invalid("pdfData", "attachment is not valid base64")
	}
	return data, nil
}
