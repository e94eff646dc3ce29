// Package mqtt publishes location statuses as retained MQTT messages so a
// subscriber always receives the current status of every location.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/couchcryptid/hab-status-etl/internal/config"
	"github.com/couchcryptid/hab-status-etl/internal/domain"
)

const (
	topicPrefix = "habstatus"

	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second

	// disconnectQuiesce is in milliseconds.
	disconnectQuiesce = 250
)

// ErrPublishTimeout is returned when the broker does not acknowledge a publish in time.
var ErrPublishTimeout = errors.New("mqtt publish timed out")

// client is the subset of pahomqtt.Client the publisher uses.
type client interface {
	Connect() pahomqtt.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
}

// Publisher implements pipeline.Publisher over MQTT.
type Publisher struct {
	client         client
	qos            byte
	publishTimeout time.Duration
	logger         *slog.Logger
}

// NewPublisher creates a publisher for the configured broker. Call Connect
// before the first Publish.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.MQTTBroker)
	opts.SetClientID(cfg.MQTTClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(30 * time.Second)

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker)
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	})

	return &Publisher{
		client:         pahomqtt.NewClient(opts),
		qos:            byte(cfg.MQTTQoS),
		publishTimeout: defaultPublishTimeout,
		logger:         logger,
	}
}

// Connect waits for the initial broker connection or for ctx to end.
func (p *Publisher) Connect(ctx context.Context) error {
	token := p.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// Name identifies the sink in logs and metrics.
func (p *Publisher) Name() string { return "mqtt" }

// Publish sends one retained message per status. Every status is attempted;
// the returned error joins all failures.
func (p *Publisher) Publish(ctx context.Context, snap domain.Snapshot) error {
	var errs []error
	for _, st := range snap.All() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.publishStatus(st); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Publisher) publishStatus(st domain.LocationStatus) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("serialize status %s: %w", st.LocationID, err)
	}

	topic := Topic(st)
	token := p.client.Publish(topic, p.qos, true, payload)
	if !token.WaitTimeout(p.publishTimeout) {
		return fmt.Errorf("%w: %s", ErrPublishTimeout, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() error {
	p.client.Disconnect(disconnectQuiesce)
	return nil
}

// Topic returns the retained topic of a status: habstatus/<kind>/<id>.
func Topic(st domain.LocationStatus) string {
	return fmt.Sprintf("%s/%s/%s", topicPrefix, st.Kind, st.LocationID)
}
