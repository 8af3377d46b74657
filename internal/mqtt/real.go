package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/sweeney/community-signage/internal/display"
	"github.com/sweeney/community-signage/internal/music"
)

// DefaultBufferSize is how many messages are kept while disconnected.
const DefaultBufferSize = 200

const publishTimeout = 5 * time.Second

// client is the subset of paho.Client the publisher uses.
type client interface {
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// Options configures a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string
	Name       string
	BufferSize int
	Logger     zerolog.Logger

	// OnConnectionChange is called whenever the broker connection goes up
	// or down.
	OnConnectionChange func(connected bool)
}

// RealPublisher publishes to an actual MQTT broker. Messages published
// while the connection is down are buffered and replayed on reconnect.
type RealPublisher struct {
	client   client
	topics   Topics
	log      zerolog.Logger
	onChange func(bool)
	now      func() time.Time

	mu          sync.Mutex
	buf         *ringBuffer
	connectedAt int // number of successful connects
}

// NewRealPublisher creates a publisher connected to the given broker. The
// broker holds a retained SHUTDOWN will that it publishes if the display
// vanishes.
func NewRealPublisher(opts Options) (*RealPublisher, error) {
	p := newPublisher(nil, opts)

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     EventShutdown,
		Reason:    ReasonDisconnect,
	})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	clientID := opts.ClientID
	if clientID == "" {
		clientID = "signage-" + opts.Name
	}
	po := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(p.topics.System, will, 1, true).
		SetOnConnectHandler(func(paho.Client) { p.onConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) { p.onConnectionLost(err) })

	c := paho.NewClient(po)
	p.client = c
	token := c.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		// Connect keeps retrying in the background; messages are buffered
		// until it succeeds.
		p.log.Warn().Str("broker", opts.Broker).Msg("mqtt broker not reachable yet, buffering")
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

func newPublisher(c client, opts Options) *RealPublisher {
	size := opts.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	log := opts.Logger.With().Str("component", "mqtt").Logger()
	return &RealPublisher{
		client:   c,
		topics:   NewTopics(opts.Name),
		log:      log,
		onChange: opts.OnConnectionChange,
		now:      time.Now,
		buf:      newRingBuffer(size, log),
	}
}

// Render publishes a frame summary on the display topic (QoS 0).
func (p *RealPublisher) Render(_ context.Context, f display.Frame) error {
	payload, err := FormatDisplayPayload(f)
	if err != nil {
		return fmt.Errorf("format display payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: p.topics.Display, payload: payload})
}

// Play publishes a retained music instruction so late subscribers see what
// is playing.
func (p *RealPublisher) Play(_ context.Context, t music.Track) error {
	payload, err := FormatMusicPayload(t, p.now())
	if err != nil {
		return fmt.Errorf("format music payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: p.topics.Music, payload: payload, retained: true})
}

// PublishSystem sends a system lifecycle event (QoS 1).
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: p.topics.System, payload: payload, qos: 1, retained: event.Retained})
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client != nil && p.client.IsConnectionOpen()
}

// Buffered returns how many messages are waiting for a reconnect.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	if p.client != nil {
		p.client.Disconnect(1000) // 1 second quiesce
	}
	return nil
}

func (p *RealPublisher) publish(msg bufferedMsg) error {
	p.mu.Lock()
	if !p.IsConnected() {
		p.buf.push(msg)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()
	return p.send(msg)
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

func (p *RealPublisher) onConnect() {
	p.mu.Lock()
	p.connectedAt++
	reconnect := p.connectedAt > 1
	pending, dropped := p.buf.drainAll()
	p.mu.Unlock()

	p.log.Info().Bool("reconnect", reconnect).Int("buffered", len(pending)).Int("dropped", dropped).Msg("mqtt connected")
	if p.onChange != nil {
		p.onChange(true)
	}

	for _, msg := range pending {
		if err := p.send(msg); err != nil {
			p.log.Warn().Err(err).Msg("replay failed")
		}
	}
	if reconnect {
		if err := p.PublishSystem(SystemEvent{Timestamp: p.now(), Event: EventReconnected}); err != nil {
			p.log.Warn().Err(err).Msg("publish reconnected")
		}
	}
}

func (p *RealPublisher) onConnectionLost(err error) {
	p.log.Warn().Err(err).Msg("mqtt connection lost")
	if p.onChange != nil {
		p.onChange(false)
	}
}
