package transport

import (
	"context"
	"errors"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/jengzang/roadsurvey-backend-go/internal/config"
)

const (
	mqttQoS                  = 1
	mqttConnectTimeout       = 30 * time.Second
	mqttConnectRetryInterval = 10 * time.Second
	mqttQuiesceMillis        = 250
)

// MQTT subscribes to a vehicle's telemetry topic on a broker. Every
// (re)connection starts a new session before the subscription is renewed.
type MQTT struct {
	cfg    config.MQTTConfig
	feed   string
	sink   Sink
	logger *slog.Logger

	newClient func(*mqtt.ClientOptions) mqtt.Client
	ctx       context.Context
	minDelay  time.Duration
	maxDelay  time.Duration
}

// NewMQTT creates an MQTT transport for feed
func NewMQTT(cfg config.MQTTConfig, feed string, sink Sink, logger *slog.Logger) *MQTT {
	if logger == nil {
		logger = slog.Default()
	}
	return &MQTT{
		cfg:       cfg,
		feed:      feed,
		sink:      sink,
		logger:    logger,
		newClient: mqtt.NewClient,
		minDelay:  retryMinDelay,
		maxDelay:  retryMaxDelay,
	}
}

// Topic is the subscribed topic
func (t *MQTT) Topic() string {
	return t.cfg.Topic(t.feed)
}

func (t *MQTT) options() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions().
		AddBroker(t.cfg.Broker).
		SetClientID(t.cfg.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(mqttConnectRetryInterval).
		SetOrderMatters(true).
		SetConnectTimeout(mqttConnectTimeout).
		SetOnConnectHandler(t.onConnect).
		SetConnectionLostHandler(t.onConnectionLost)
	if t.cfg.Username != "" {
		opts.SetUsername(t.cfg.Username)
		opts.SetPassword(t.cfg.Password)
	}
	return opts
}

// Run connects and keeps the subscription alive until ctx is done. A broker
// that is unreachable or refuses the connection is retried, never fatal.
func (t *MQTT) Run(ctx context.Context) error {
	if t.cfg.Broker == "" {
		return errors.New("mqtt broker is not configured")
	}
	t.ctx = ctx

	client := t.newClient(t.options())
	t.connect(ctx, client)

	<-ctx.Done()
	client.Disconnect(mqttQuiesceMillis)
	t.logger.Info("mqtt disconnected", "broker", t.cfg.Broker)
	return ctx.Err()
}

// connect returns once the first connection succeeds or ctx is done; later
// drops are handled by the client's auto reconnect
func (t *MQTT) connect(ctx context.Context, client mqtt.Client) {
	delay := t.minDelay
	for {
		token := client.Connect()
		select {
		case <-ctx.Done():
			return
		case <-token.Done():
		}
		err := token.Error()
		if err == nil {
			return
		}

		t.logger.Error("mqtt connect failed", "broker", t.cfg.Broker, "err", err, "retry_in", delay)
		if !sleepCtx(ctx, delay) {
			return
		}
		delay = nextDelay(delay, t.maxDelay)
	}
}

func (t *MQTT) onConnect(client mqtt.Client) {
	t.logger.Info("mqtt connected", "broker", t.cfg.Broker, "topic", t.Topic())

	if err := t.sink.Start(t.ctx, t.feed); err != nil {
		t.logger.Error("session start failed, not subscribing", "feed", t.feed, "err", err)
		return
	}

	token := client.Subscribe(t.Topic(), mqttQoS, t.onMessage)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			t.logger.Error("mqtt subscribe failed", "topic", t.Topic(), "err", err)
		}
	}()
}

func (t *MQTT) onMessage(_ mqtt.Client, msg mqtt.Message) {
	if err := t.sink.Submit(t.ctx, msg.Payload()); err != nil {
		t.logger.Warn("message not queued", "topic", msg.Topic(), "err", err)
	}
}

func (t *MQTT) onConnectionLost(_ mqtt.Client, err error) {
	t.logger.Warn("mqtt connection lost", "broker", t.cfg.Broker, "err", err)
}
