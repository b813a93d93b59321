// v0
// internal/events/mqtt.go
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	sinkMQTT    = "mqtt"
	mqttQoS     = 1
	mqttQuiesce = 250
)

// MQTTConfig addresses the broker and topic prefix for run summaries.
type MQTTConfig struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	Timeout     time.Duration
}

// mqttPublisher is the subset of mqtt.Client used here.
type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTNotifier publishes a retained summary per project to
// {prefix}/{projectId}/summary so site displays always show the latest run.
type MQTTNotifier struct {
	client  mqttPublisher
	prefix  string
	timeout time.Duration
	log     *slog.Logger
	rec     Recorder
}

// NewMQTTNotifier connects to the broker.
func NewMQTTNotifier(cfg MQTTConfig, log *slog.Logger, rec Recorder) (*MQTTNotifier, error) {
	if strings.TrimSpace(cfg.Broker) == "" {
		return nil, errors.New("mqtt broker must not be empty")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "compliance-service"
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)
	c := mqtt.NewClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, token.Error())
	}
	return newMQTTNotifier(c, cfg, log, rec), nil
}

func newMQTTNotifier(client mqttPublisher, cfg MQTTConfig, log *slog.Logger, rec Recorder) *MQTTNotifier {
	if log == nil {
		log = slog.Default()
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	prefix := strings.TrimRight(strings.TrimSpace(cfg.TopicPrefix), "/")
	if prefix == "" {
		prefix = "compliance"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MQTTNotifier{
		client:  client,
		prefix:  prefix,
		timeout: timeout,
		log:     log.With(slog.String("component", "mqtt_notifier")),
		rec:     rec,
	}
}

// Topic returns the topic a project's summaries are published to.
func (n *MQTTNotifier) Topic(projectID string) string {
	if projectID == "" {
		projectID = "_"
	}
	return n.prefix + "/" + projectID + "/summary"
}

func (n *MQTTNotifier) Notify(ctx context.Context, ev RunCompleted) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		n.rec.Published(sinkMQTT, "fail")
		return err
	}
	topic := n.Topic(ev.ProjectID)
	token := n.client.Publish(topic, mqttQoS, true, payload)

	timer := time.NewTimer(n.timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
	case <-ctx.Done():
		n.rec.Published(sinkMQTT, "fail")
		return ctx.Err()
	case <-timer.C:
		n.rec.Published(sinkMQTT, "fail")
		return fmt.Errorf("mqtt publish %s: timed out after %s", topic, n.timeout)
	}
	if err := token.Error(); err != nil {
		n.rec.Published(sinkMQTT, "fail")
		n.log.Error("mqtt_publish_err", slog.String("topic", topic), slog.Any("err", err))
		return err
	}
	n.rec.Published(sinkMQTT, "ok")
	n.log.Info("mqtt_publish_success", slog.String("topic", topic), slog.String("run", ev.RunID))
	return nil
}

func (n *MQTTNotifier) Close() {
	n.client.Disconnect(mqttQuiesce)
}
