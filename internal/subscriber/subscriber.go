// Package subscriber owns the MQTT session that feeds the panel store: it
// connects to the broker, subscribes to every registered topic, and applies
// each inbound encrypted message to the store.
package subscriber

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/eclipse/paho.golang/paho"
	"github.com/eclipse/paho.golang/paho/session/state"

	"github.com/hospitech/bedwatch/internal/aescbc"
	"github.com/hospitech/bedwatch/internal/log"
	"github.com/hospitech/bedwatch/internal/panel"
	"github.com/hospitech/bedwatch/internal/wallclock"
)

type (
	// Subscriber runs one connect-subscribe-consume session against the
	// broker. Message dispatch happens on the client's network goroutine,
	// one message at a time in arrival order; the store absorbs the
	// concurrency with the query side.
	Subscriber struct {
		settings Settings
		registry panel.Registry
		cipher   *aescbc.Cipher
		store    *panel.Store

		connect ConnectionProvider
		clock   wallclock.WallClock
		log     logger

		// Ensures the session is started at most once.
		started atomic.Bool
		state   atomic.Int32

		client *paho.Client
	}

	// Option configures the subscriber.
	Option func(*Subscriber)
)

// WithLogger sets the logger for subscriber diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Subscriber) {
		s.log = logger{log.Wrap(l)}
	}
}

// WithConnectionProvider overrides how the network connection to the broker
// is opened. Defaults to TCP (or TLS, per the settings).
func WithConnectionProvider(provider ConnectionProvider) Option {
	return func(s *Subscriber) {
		s.connect = provider
	}
}

// New builds a Subscriber. It performs no I/O; the session begins on Start.
func New(
	settings Settings,
	registry panel.Registry,
	cipher *aescbc.Cipher,
	store *panel.Store,
	opts ...Option,
) *Subscriber {
	s := &Subscriber{
		settings: settings,
		registry: registry,
		cipher:   cipher,
		store:    store,
		clock:    wallclock.Instance,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// State reports where the subscriber is in its session lifecycle.
func (s *Subscriber) State() State {
	return State(s.state.Load())
}

func (s *Subscriber) setState(ctx context.Context, next State) {
	s.state.Store(int32(next))
	s.log.Debug(ctx, "session state changed",
		slog.String("state", next.String()))
}

// Start opens the network connection, performs the CONNECT exchange, and
// issues a subscribe request for every registered topic. It returns once all
// subscribe requests have been issued; individual SUBACKs are logged but do
// not gate the message loop, which is already running on the client's
// network goroutine by then.
//
// A connection failure is fatal to the session: the subscriber moves to
// Failed and performs no retries. A second call to Start fails with
// AlreadyStartedError.
func (s *Subscriber) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return &AlreadyStartedError{}
	}

	s.setState(ctx, Connecting)

	connect := s.connect
	if connect == nil {
		if s.settings.UseTLS {
			config, err := s.settings.tlsConfig()
			if err != nil {
				s.setState(ctx, Failed)
				return err
			}
			connect = TLSConnection(s.settings.Hostname, s.settings.TCPPort, config)
		} else {
			connect = TCPConnection(s.settings.Hostname, s.settings.TCPPort)
		}
	}

	conn, err := connect(ctx)
	if err != nil {
		s.setState(ctx, Failed)
		s.log.Err(ctx, err)
		return err
	}

	s.client = paho.NewClient(paho.ClientConfig{
		Conn:     conn,
		ClientID: s.settings.ClientID,
		Session:  state.NewInMemory(),
		OnClientError: func(err error) {
			s.log.Err(ctx, &ConnectionError{
				message: "client error on broker connection",
				wrapped: err,
			})
		},
		OnServerDisconnect: func(d *paho.Disconnect) {
			s.log.Warn(ctx, "broker sent a DISCONNECT packet",
				slog.Int("reason_code", int(d.ReasonCode)))
		},
	})
	s.client.AddOnPublishReceived(
		func(pb paho.PublishReceived) (bool, error) {
			s.onMessage(ctx, pb.Packet)
			return true, nil
		},
	)

	cp := &paho.Connect{
		ClientID:     s.settings.ClientID,
		CleanStart:   true,
		KeepAlive:    uint16(s.settings.KeepAlive.Seconds()),
		Username:     s.settings.Username,
		UsernameFlag: s.settings.Username != "",
		Password:     s.settings.Password,
		PasswordFlag: len(s.settings.Password) != 0,
	}
	s.log.Packet(ctx, "sending CONNECT", cp)

	connack, err := s.client.Connect(ctx, cp)
	if err != nil {
		s.setState(ctx, Failed)
		connErr := &ConnectionError{
			message: "CONNECT exchange with broker failed",
			wrapped: err,
		}
		s.log.Err(ctx, connErr)
		return connErr
	}
	if connack.ReasonCode != 0 {
		s.setState(ctx, Failed)
		connackErr := &ConnackError{ReasonCode: connack.ReasonCode}
		s.log.Err(ctx, connackErr)
		return connackErr
	}

	s.setState(ctx, Connected)
	s.log.Info(ctx, "connected to broker",
		slog.String("hostname", s.settings.Hostname),
		slog.Int("port", s.settings.TCPPort),
		slog.String("client_id", s.settings.ClientID))

	for _, topic := range s.registry.Topics() {
		sub := &paho.Subscribe{
			Subscriptions: []paho.SubscribeOptions{{
				Topic: topic,
				QoS:   1,
			}},
		}
		s.log.Packet(ctx, "sending SUBSCRIBE", sub)

		// Subscribe failures are logged but do not gate the remaining
		// topics; messages for the failed topic simply never arrive.
		suback, err := s.client.Subscribe(ctx, sub)
		if err != nil {
			s.log.Err(ctx, &ConnectionError{
				message: "subscribe request for " + topic + " failed",
				wrapped: err,
			})
			continue
		}
		s.log.Info(ctx, "subscribed",
			slog.String("topic", topic),
			slog.Any("reasons", suback.Reasons))
	}

	s.setState(ctx, SubscribedAll)
	return nil
}

// onMessage applies one inbound message to the store. Messages on unknown
// topics and messages that fail decryption are dropped with a diagnostic,
// leaving the store untouched.
func (s *Subscriber) onMessage(ctx context.Context, p *paho.Publish) {
	reading, ok := s.registry.Resolve(p.Topic)
	if !ok {
		s.log.Err(ctx, &panel.UnknownTopicError{Topic: p.Topic})
		return
	}

	plaintext, err := s.cipher.Decrypt(p.Payload)
	if err != nil {
		s.log.Err(ctx, err)
		s.log.Debug(ctx, "payload dropped",
			slog.String("topic", p.Topic),
			slog.String("reading", string(reading)))
		return
	}

	value := strings.TrimSpace(plaintext)
	s.store.Update(reading, value, s.clock.Now())
	s.log.Debug(ctx, "reading updated",
		slog.String("reading", string(reading)),
		slog.String("value", value))
}

// Stop sends a DISCONNECT packet to the broker and ends the session. It is
// only meaningful after a successful Start.
func (s *Subscriber) Stop() error {
	if s.client == nil || s.State() != SubscribedAll && s.State() != Connected {
		return nil
	}
	return s.client.Disconnect(&paho.Disconnect{ReasonCode: 0})
}
