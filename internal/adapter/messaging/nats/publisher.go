package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/platform/logger"
)

type Publisher struct {
	conn   *nats.Conn
	source string
	logger *logger.Logger
}

// envelope wraps every event published by the service.
type envelope struct {
	Subject    string      `json:"subject"`
	Source     string      `json:"source"`
	OccurredAt time.Time   `json:"occurredAt"`
	Data       interface{} `json:"data"`
}

func NewPublisher(url, source string, log *logger.Logger) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Name(source),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS: disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("NATS: reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", url, err)
	}
	log.Info("NATS publisher connected", "url", url)
	return &Publisher{conn: conn, source: source, logger: log.Named("NATSPublisher")}, nil
}

func encode(subject, source string, data interface{}) ([]byte, error) {
	return json.Marshal(envelope{
		Subject:    subject,
		Source:     source,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
}

// Publish sends data on subject with the trace context in the message headers.
func (p *Publisher) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := encode(subject, p.source, data)
	if err != nil {
		return err
	}
	msg := nats.NewMsg(subject)
	msg.Data = payload
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(http.Header(msg.Header)))

	if err := p.conn.PublishMsg(msg); err != nil {
		p.logger.Error("Publish failed", "subject", subject, "error", err)
		return err
	}
	p.logger.Debug("Event published", "subject", subject)
	return nil
}

func (p *Publisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
