// Package mqttpush delivers dispatch events to couriers and companies over an
// MQTT broker. Each recipient subscribes to its own topic.
package mqttpush

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"courierhub/internal/core/domain/model/notification"
	"courierhub/internal/core/ports"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

var ErrPublishTimeout = errors.New("mqtt publish timed out")

// Client is the subset of the paho client the session uses.
type Client interface {
	Connect() mqtt.Token
	IsConnected() bool
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
}

type Config struct {
	Broker         string
	ClientID       string
	QoS            byte
	TopicPrefix    string
	PublishTimeout time.Duration
}

// Session owns one broker connection. It is created disconnected; the caller
// drives Connect and Disconnect.
type Session struct {
	mu      sync.RWMutex
	client  Client
	factory func() Client
	cfg     Config
	logger  *slog.Logger
}

func NewSession(cfg Config, logger *slog.Logger) *Session {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "courierhub"
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 2 * time.Second
	}
	s := &Session{cfg: cfg, logger: logger.With("component", "mqtt_push")}
	s.factory = func() Client {
		opts := mqtt.NewClientOptions().
			AddBroker(cfg.Broker).
			SetClientID(cfg.ClientID).
			SetConnectTimeout(5 * time.Second).
			SetAutoReconnect(true).
			SetConnectionLostHandler(func(_ mqtt.Client, err error) {
				s.logger.Warn("connection lost", "error", err)
			})
		return mqtt.NewClient(opts)
	}
	return s
}

// newSessionWithClient is used by tests to inject a fake client.
func newSessionWithClient(cfg Config, client Client, logger *slog.Logger) *Session {
	s := NewSession(cfg, logger)
	s.factory = func() Client { return client }
	return s
}

func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil && s.client.IsConnected() {
		return nil
	}

	client := s.factory()
	token := client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to %s: %w", s.cfg.Broker, err)
	}
	s.client = client
	s.logger.Info("connected", "broker", s.cfg.Broker)
	return nil
}

func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return
	}
	if s.client.IsConnected() {
		s.client.Disconnect(250)
	}
	s.client = nil
}

// Topic is where events for r are published.
func (s *Session) Topic(r notification.Recipient) string {
	return fmt.Sprintf("%s/%s/%s/events", s.cfg.TopicPrefix, r.Kind, r.ID)
}

// Notify returns ports.ErrRecipientOffline while the session is not connected.
func (s *Session) Notify(ctx context.Context, event notification.Event) error {
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()
	if client == nil || !client.IsConnected() {
		return ports.ErrRecipientOffline
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event.ID, err)
	}

	token := client.Publish(s.Topic(event.Recipient), s.cfg.QoS, false, payload)
	timer := time.NewTimer(s.cfg.PublishTimeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return ErrPublishTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}
