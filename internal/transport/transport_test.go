package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"

	"github.com/jengzang/roadsurvey-backend-go/internal/config"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type recordingSink struct {
	mu       sync.Mutex
	events   []string
	startErr error
}

func (s *recordingSink) Start(_ context.Context, feed string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return s.startErr
	}
	s.events = append(s.events, "start:"+feed)
	return nil
}

func (s *recordingSink) Submit(_ context.Context, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, string(payload))
	return nil
}

func (s *recordingSink) Events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

func TestLineSource(t *testing.T) {
	input := "{\"a\":1}\n\n  {\"b\":2}  \r\nnot json\n"
	sink := &recordingSink{}

	n, err := NewLineSource(strings.NewReader(input), "vehicle-1", sink, discard).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"start:vehicle-1", `{"a":1}`, `{"b":2}`, "not json"}, sink.Events())
}

func TestLineSourceStartRejected(t *testing.T) {
	sink := &recordingSink{startErr: errors.New("unknown feed")}

	n, err := NewLineSource(strings.NewReader("{}\n"), "vehicle-9", sink, discard).Run(context.Background())
	assert.Error(t, err)
	assert.Zero(t, n)
	assert.Empty(t, sink.Events())
}

func TestLineSourceTooLong(t *testing.T) {
	sink := &recordingSink{}
	input := "{}\n" + strings.Repeat("x", maxLineBytes+1) + "\n"

	n, err := NewLineSource(strings.NewReader(input), "vehicle-1", sink, discard).Run(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, n)
}

type fakeToken struct{ err error }

func (t fakeToken) Wait() bool                     { return true }
func (t fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t fakeToken) Error() error { return t.err }

type fakeClient struct {
	mqtt.Client
	opts *mqtt.ClientOptions

	mu           sync.Mutex
	connectErrs  []error
	connects     int
	subscribed   []string
	handler      mqtt.MessageHandler
	disconnected bool
}

// Connect fails with each queued error in turn, then succeeds
func (c *fakeClient) Connect() mqtt.Token {
	c.mu.Lock()
	c.connects++
	if len(c.connectErrs) > 0 {
		err := c.connectErrs[0]
		c.connectErrs = c.connectErrs[1:]
		c.mu.Unlock()
		return fakeToken{err: err}
	}
	c.mu.Unlock()

	c.opts.OnConnect(c)
	return fakeToken{}
}

func (c *fakeClient) Subscribe(topic string, _ byte, cb mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribed = append(c.subscribed, topic)
	c.handler = cb
	return fakeToken{}
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	c.disconnected = true
	c.mu.Unlock()
}

type fakeMessage struct {
	mqtt.Message
	topic   string
	payload []byte
}

func (m fakeMessage) Topic() string   { return m.topic }
func (m fakeMessage) Payload() []byte { return m.payload }

func TestMQTTConnectStartsSessionThenSubscribes(t *testing.T) {
	sink := &recordingSink{}
	cfg := config.MQTTConfig{Broker: "tcp://broker:1883", TopicPrefix: "survey/", ClientID: "test"}
	tr := NewMQTT(cfg, "vehicle-1", sink, discard)

	client := &fakeClient{}
	tr.newClient = func(opts *mqtt.ClientOptions) mqtt.Client {
		client.opts = opts
		return client
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx) }()

	require.Eventually(t, func() bool {
		client.mu.Lock()
		defer client.mu.Unlock()
		return client.handler != nil
	}, time.Second, 5*time.Millisecond)

	client.mu.Lock()
	assert.Equal(t, []string{"survey/vehicle-1"}, client.subscribed)
	handler := client.handler
	client.mu.Unlock()

	handler(client, fakeMessage{topic: "survey/vehicle-1", payload: []byte(`{"x":1}`)})
	// a reconnect is a new connection
	client.opts.OnConnect(client)
	handler(client, fakeMessage{topic: "survey/vehicle-1", payload: []byte(`{"x":2}`)})

	assert.Equal(t, []string{"start:vehicle-1", `{"x":1}`, "start:vehicle-1", `{"x":2}`}, sink.Events())

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	client.mu.Lock()
	assert.True(t, client.disconnected)
	client.mu.Unlock()
}

func TestMQTTOptions(t *testing.T) {
	cfg := config.MQTTConfig{
		Broker:      "tcp://broker:1883",
		TopicPrefix: "survey/",
		ClientID:    "backend",
		Username:    "user",
		Password:    "secret",
	}
	opts := NewMQTT(cfg, "vehicle-1", &recordingSink{}, discard).options()

	require.Len(t, opts.Servers, 1)
	assert.Equal(t, "broker:1883", opts.Servers[0].Host)
	assert.Equal(t, "backend", opts.ClientID)
	assert.Equal(t, "user", opts.Username)
	assert.Equal(t, "secret", opts.Password)
	assert.True(t, opts.AutoReconnect)
	assert.True(t, opts.ConnectRetry)
	assert.Equal(t, mqttConnectRetryInterval, opts.ConnectRetryInterval)
	assert.True(t, opts.Order)
}

func TestMQTTRetriesFailedConnect(t *testing.T) {
	sink := &recordingSink{}
	tr := NewMQTT(config.MQTTConfig{Broker: "tcp://broker:1883", TopicPrefix: "survey/"}, "vehicle-1", sink, discard)
	tr.minDelay, tr.maxDelay = time.Millisecond, 4*time.Millisecond

	client := &fakeClient{connectErrs: []error{errors.New("connection refused"), errors.New("not authorized")}}
	tr.newClient = func(opts *mqtt.ClientOptions) mqtt.Client {
		client.opts = opts
		return client
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx) }()

	require.Eventually(t, func() bool {
		client.mu.Lock()
		defer client.mu.Unlock()
		return client.handler != nil
	}, time.Second, 5*time.Millisecond)

	client.mu.Lock()
	assert.Equal(t, 3, client.connects)
	assert.Equal(t, []string{"survey/vehicle-1"}, client.subscribed)
	client.mu.Unlock()
	assert.Equal(t, []string{"start:vehicle-1"}, sink.Events())

	select {
	case err := <-done:
		t.Fatalf("Run returned early: %v", err)
	default:
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestMQTTCancelledWhileRetrying(t *testing.T) {
	errs := make([]error, 1000)
	for i := range errs {
		errs[i] = errors.New("connection refused")
	}
	tr := NewMQTT(config.MQTTConfig{Broker: "tcp://broker:1883"}, "vehicle-1", &recordingSink{}, discard)
	tr.minDelay, tr.maxDelay = time.Millisecond, 2*time.Millisecond

	client := &fakeClient{connectErrs: errs}
	tr.newClient = func(opts *mqtt.ClientOptions) mqtt.Client {
		client.opts = opts
		return client
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx) }()

	require.Eventually(t, func() bool {
		client.mu.Lock()
		defer client.mu.Unlock()
		return client.connects >= 3
	}, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Nil(t, client.handler)
}

func TestMQTTStartRejectedSkipsSubscribe(t *testing.T) {
	sink := &recordingSink{startErr: errors.New("unknown feed")}
	tr := NewMQTT(config.MQTTConfig{Broker: "tcp://broker:1883"}, "vehicle-9", sink, discard)
	tr.ctx = context.Background()

	client := &fakeClient{}
	tr.onConnect(client)
	assert.Empty(t, client.subscribed)
}

func TestMQTTRequiresBroker(t *testing.T) {
	err := NewMQTT(config.MQTTConfig{}, "vehicle-1", &recordingSink{}, discard).Run(context.Background())
	assert.Error(t, err)
}

type fakePort struct{ io.Reader }

func (fakePort) Close() error { return nil }

func TestSerialReopensAfterOpenFailures(t *testing.T) {
	sink := &recordingSink{}
	tr := NewSerial(config.SerialConfig{Port: "/dev/ttyUSB0", BaudRate: 9600}, "vehicle-1", sink, discard)
	tr.minDelay, tr.maxDelay = time.Millisecond, 4*time.Millisecond

	var attempts atomic.Int32
	tr.open = func(name string, mode *serial.Mode) (io.ReadCloser, error) {
		attempts.Add(1)
		assert.Equal(t, "/dev/ttyUSB0", name)
		assert.Equal(t, 9600, mode.BaudRate)
		return nil, errors.New("no such file or directory")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx) }()

	require.Eventually(t, func() bool { return attempts.Load() >= 3 }, time.Second, time.Millisecond)
	select {
	case err := <-done:
		t.Fatalf("Run returned early: %v", err)
	default:
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Empty(t, sink.Events())
}

func TestSerialReopenStartsNewSession(t *testing.T) {
	sink := &recordingSink{}
	tr := NewSerial(config.SerialConfig{Port: "/dev/ttyUSB0", BaudRate: 9600}, "vehicle-1", sink, discard)
	tr.minDelay, tr.maxDelay = time.Millisecond, time.Millisecond

	var attempts atomic.Int32
	tr.open = func(string, *serial.Mode) (io.ReadCloser, error) {
		switch attempts.Add(1) {
		case 1:
			return fakePort{strings.NewReader("{\"x\":1}\n")}, nil
		case 2:
			return nil, errors.New("device busy")
		case 3:
			return fakePort{strings.NewReader("{\"x\":2}\n")}, nil
		default:
			return nil, errors.New("device unplugged")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx) }()

	require.Eventually(t, func() bool { return len(sink.Events()) == 4 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"start:vehicle-1", `{"x":1}`, "start:vehicle-1", `{"x":2}`}, sink.Events())

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
