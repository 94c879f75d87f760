package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sweeney/footswitch/internal/gesture"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	retryInterval  = 5 * time.Second
	quiesceMs      = 1000
)

// Options configures a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string
	BufferSize int // messages kept while disconnected
	Logger     *zap.SugaredLogger
}

// RealPublisher publishes to an actual MQTT broker.
//
// Messages published while the connection is down are kept in a ring buffer
// and replayed, oldest first, when the client reconnects. The broker holds a
// retained OFFLINE last will on TopicSystem; ONLINE replaces it on connect.
type RealPublisher struct {
	client paho.Client
	logger *zap.SugaredLogger

	// mu serializes publishing and buffer replay so replayed messages stay
	// ahead of new ones.
	mu  sync.Mutex
	buf *ringBuffer
}

// NewRealPublisher creates a publisher for the given broker. If the broker is
// not reachable within the connect timeout the publisher is still returned;
// paho keeps retrying in the background and messages are buffered.
func NewRealPublisher(opts Options) (*RealPublisher, error) {
	if opts.ClientID == "" {
		opts.ClientID = "footswitch"
	}
	p := newPublisher(nil, opts.BufferSize, opts.Logger)

	will, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: EventOffline})
	if err != nil {
		return nil, fmt.Errorf("format last will: %w", err)
	}

	co := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(retryInterval).
		SetWill(TopicSystem, string(will), 1, true).
		SetOnConnectHandler(func(paho.Client) { p.onConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.logger.Warnw("connection lost", "error", err)
		}).
		SetReconnectingHandler(func(paho.Client, *paho.ClientOptions) {
			p.logger.Debugw("reconnecting")
		})

	p.client = paho.NewClient(co)
	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		p.logger.Warnw("broker not reachable yet, buffering", "broker", opts.Broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

func newPublisher(client paho.Client, bufferSize int, logger *zap.SugaredLogger) *RealPublisher {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	logger = logger.Named("mqtt")
	return &RealPublisher{
		client: client,
		logger: logger,
		buf:    newRingBuffer(bufferSize, logger),
	}
}

// Publish sends a gesture to the broker, or buffers it while disconnected.
func (p *RealPublisher) Publish(event gesture.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return p.publish(Topic, 0, false, payload)
}

// PublishSystem sends a system lifecycle event, or buffers it while
// disconnected.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once): lifecycle events are rare and worth delivering
	return p.publish(TopicSystem, 1, event.Retained, payload)
}

// IsConnected reports whether the client currently has an open connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// Close publishes a retained OFFLINE (a clean disconnect does not trigger the
// last will) and disconnects from the broker.
func (p *RealPublisher) Close() error {
	if p.client.IsConnectionOpen() {
		offline, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: EventOffline})
		if err == nil {
			p.mu.Lock()
			if err := p.send(TopicSystem, 1, true, offline); err != nil {
				p.logger.Warnw("publish offline failed", "error", err)
			}
			p.mu.Unlock()
		}
	}
	p.client.Disconnect(quiesceMs)
	return nil
}

func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.client.IsConnectionOpen() {
		p.buf.push(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		p.logger.Debugw("buffered while disconnected", "topic", topic, "buffered", p.buf.len())
		return nil
	}
	return p.send(topic, qos, retained, payload)
}

// send publishes and waits for the token. Caller holds mu.
func (p *RealPublisher) send(topic string, qos byte, retained bool, payload []byte) error {
	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// onConnect runs on every (re)connection: announce ONLINE, then replay the
// buffer.
func (p *RealPublisher) onConnect() {
	p.mu.Lock()
	defer p.mu.Unlock()

	online, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: EventOnline})
	if err == nil {
		if err := p.send(TopicSystem, 1, true, online); err != nil {
			p.logger.Warnw("publish online failed", "error", err)
		}
	}

	msgs := p.buf.drainAll()
	if len(msgs) == 0 {
		p.logger.Infow("connected")
		return
	}
	p.logger.Infow("connected, replaying buffer", "messages", len(msgs))
	for _, m := range msgs {
		if err := p.send(m.topic, m.qos, m.retained, m.payload); err != nil {
			p.logger.Warnw("replay failed", "topic", m.topic, "error", err)
		}
	}
}
