// internal/queue/nats.go
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/fawad-mazhar/taskflow/internal/config"
	"github.com/fawad-mazhar/taskflow/internal/models"
	"github.com/nats-io/nats.go"
)

// Publisher fans notifications and scheduler status out to subscribers
type Publisher interface {
	PublishNotification(ctx context.Context, n *models.Notification) error
	PublishStatus(ctx context.Context, status *models.StatusMessage) error
	Close() error
}

type NATSPublisher struct {
	conn   *nats.Conn
	config config.NATSConfig
}

func NewNATSPublisher(cfg config.NATSConfig) (*NATSPublisher, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name("taskflow"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSPublisher{conn: conn, config: cfg}, nil
}

// UserSubject is the per-user subject a notification is also published on
func UserSubject(base string, userID int64) string {
	return base + ".user." + strconv.FormatInt(userID, 10)
}

func (p *NATSPublisher) PublishNotification(ctx context.Context, n *models.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	if err := p.conn.Publish(p.config.NotificationSubject, data); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	if err := p.conn.Publish(UserSubject(p.config.NotificationSubject, n.UserID), data); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

func (p *NATSPublisher) PublishStatus(ctx context.Context, status *models.StatusMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	return p.conn.Publish(p.config.StatusSubject, data)
}

func (p *NATSPublisher) Close() error {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return err
	}
	return nil
}

// NopPublisher is used when no broker is configured
type NopPublisher struct{}

func (NopPublisher) PublishNotification(context.Context, *models.Notification) error { return nil }
func (NopPublisher) PublishStatus(context.Context, *models.StatusMessage) error      { return nil }
func (NopPublisher) Close() error                                                    { return nil }
