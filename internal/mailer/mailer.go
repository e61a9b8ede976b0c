package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/platform/logger"
)

var ErrIncompleteConfig = errors.New("SMTP configuration is incomplete")

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// NotifyTo receives a message for every created listing. Empty disables it.
	NotifyTo string
}

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPMailer notifies moderators about new listings.
type SMTPMailer struct {
	cfg    Config
	dialer sender
	logger *logger.Logger
}

func NewSMTPMailer(cfg Config, log *logger.Logger) (*SMTPMailer, error) {
	if cfg.NotifyTo != "" && (cfg.Host == "" || cfg.Port == 0 || cfg.From == "") {
		return nil, ErrIncompleteConfig
	}
	return &SMTPMailer{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		logger: log.Named("SMTPMailer"),
	}, nil
}

func (m *SMTPMailer) buildMessage(l *domain.Listing) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", m.cfg.NotifyTo)
	msg.SetHeader("Subject", "New listing created: "+l.Title)

	var body strings.Builder
	fmt.Fprintf(&body, "A new listing was created and is waiting for moderation.\n\n")
	fmt.Fprintf(&body, "Title: %s\n", l.Title)
	fmt.Fprintf(&body, "ID: %s\n", l.ID)
	if l.ClassificationFr != "" {
		fmt.Fprintf(&body, "Classification: %s\n", l.ClassificationFr)
	}
	if l.Price != nil {
		fmt.Fprintf(&body, "Price: %.2f\n", *l.Price)
	}
	if l.Contact != "" {
		fmt.Fprintf(&body, "Contact: %s\n", l.Contact)
	}
	fmt.Fprintf(&body, "Images: %t\n", l.HaveImage)
	msg.SetBody("text/plain", body.String())
	return msg
}

func (m *SMTPMailer) NotifyListingCreated(ctx context.Context, l *domain.Listing) error {
	if m.cfg.NotifyTo == "" {
		return nil
	}
	if err := m.dialer.DialAndSend(m.buildMessage(l)); err != nil {
		m.logger.Error("NotifyListingCreated: send failed", "listing_id", l.ID, "error", err)
		return fmt.Errorf("send listing notification: %w", err)
	}
	m.logger.Info("NotifyListingCreated: notification sent", "listing_id", l.ID, "to", m.cfg.NotifyTo)
	return nil
}
