package mqtt

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/weighbridge/internal/logic"
)

// Retry defaults.
const (
	DefaultAttempts   = 3
	DefaultRetryDelay = 2 * time.Second
	DefaultBacklog    = 32
)

// ErrLinkDown is reported when the network link is known to be down and no
// connection attempt was made.
var ErrLinkDown = errors.New("network link down")

// GatewayConfig configures a Gateway.
type GatewayConfig struct {
	Topics     Topics
	Attempts   int
	RetryDelay time.Duration
	Backlog    int
	QoS        byte
}

// DefaultGatewayConfig returns the standard retry settings and topics.
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		Topics:     DefaultTopics(),
		Attempts:   DefaultAttempts,
		RetryDelay: DefaultRetryDelay,
		Backlog:    DefaultBacklog,
		QoS:        1,
	}
}

// Stats counts publish results since start.
type Stats struct {
	Delivered   int
	GaveUp      int
	Replayed    int
	Backlog     int
	Unconfirmed int // handed to the client but not acknowledged in time
}

// Gateway connects on demand and publishes with a bounded number of
// attempts. It implements logic.Publisher. It is driven from the main loop
// and is not safe for concurrent use.
type Gateway struct {
	client  Client
	cfg     GatewayConfig
	log     *zap.SugaredLogger
	pending *backlog
	stats   Stats

	// Sleep waits between attempts. Replaced in tests.
	Sleep func(time.Duration)

	// LinkUp, if set, is consulted before connecting. A false result
	// gives up immediately with LinkDown set.
	LinkUp func() bool
}

// NewGateway creates a gateway over client. Zero config values take defaults.
func NewGateway(client Client, cfg GatewayConfig, log *zap.SugaredLogger) *Gateway {
	def := DefaultGatewayConfig()
	if cfg.Attempts < 1 {
		cfg.Attempts = def.Attempts
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	if cfg.Backlog < 1 {
		cfg.Backlog = def.Backlog
	}
	if cfg.Topics.State == "" {
		cfg.Topics.State = def.Topics.State
	}
	if cfg.Topics.Game == "" {
		cfg.Topics.Game = def.Topics.Game
	}
	if cfg.Topics.System == "" {
		cfg.Topics.System = def.Topics.System
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Gateway{
		client:  client,
		cfg:     cfg,
		log:     log,
		pending: newBacklog(cfg.Backlog),
		Sleep:   time.Sleep,
	}
}

// Publish delivers payload to topic. Every call starts with the full attempt
// budget; a failed connect or publish costs one attempt and is followed by the
// retry delay unless it was the last one. Undelivered payloads are kept in the
// backlog. A publish the client accepted but the broker did not acknowledge
// in time stays queued in the client and is never sent again from here.
func (g *Gateway) Publish(topic string, payload []byte) logic.Outcome {
	if g.LinkUp != nil && !g.LinkUp() {
		g.giveUp(topic, payload)
		g.log.Warnw("publish skipped, link down", "topic", topic)
		return logic.Outcome{Kind: logic.GaveUp, Code: CodeNoLink, LinkDown: true, Err: ErrLinkDown}
	}

	attempts := g.cfg.Attempts
	var lastErr error
	code := CodeConnectFailed
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			g.Sleep(g.cfg.RetryDelay)
		}
		if !g.client.IsConnected() {
			if err := g.client.Connect(); err != nil {
				lastErr, code = err, errorCode(err)
				g.log.Warnw("broker connect failed", "attempt", attempt, "of", attempts, "code", code, "error", err)
				continue
			}
			g.log.Infow("broker connected", "attempt", attempt)
			g.replay()
		}
		if err := g.client.Publish(topic, g.cfg.QoS, false, payload); err != nil {
			if errors.Is(err, ErrPublishTimeout) {
				g.stats.Unconfirmed++
				g.log.Warnw("publish unconfirmed, left queued in client", "topic", topic, "error", err)
				return logic.Outcome{Kind: logic.GaveUp, Code: CodePublishTimeout, Err: err}
			}
			lastErr, code = err, CodePublishFailed
			g.log.Warnw("publish failed", "attempt", attempt, "of", attempts, "topic", topic, "error", err)
			continue
		}
		g.stats.Delivered++
		return logic.Outcome{Kind: logic.Delivered}
	}

	g.giveUp(topic, payload)
	g.log.Errorw("publish gave up", "topic", topic, "attempts", attempts, "code", code)
	return logic.Outcome{Kind: logic.GaveUp, Code: code, Err: lastErr}
}

func (g *Gateway) giveUp(topic string, payload []byte) {
	g.stats.GaveUp++
	if g.pending.add(pending{topic: topic, payload: payload, qos: g.cfg.QoS}) && g.pending.dropped == 1 {
		g.log.Warnw("backlog full, dropping oldest", "capacity", len(g.pending.slots))
	}
}

// replay sends backlogged messages after a reconnect. Messages that fail are
// put back, along with everything after them. An unacknowledged one is left
// to the client.
func (g *Gateway) replay() {
	msgs := g.pending.take()
	if len(msgs) == 0 {
		return
	}
	for i, m := range msgs {
		if err := g.client.Publish(m.topic, m.qos, m.retained, m.payload); err != nil {
			g.log.Warnw("backlog replay interrupted", "error", err, "remaining", len(msgs)-i)
			rest := msgs[i:]
			if errors.Is(err, ErrPublishTimeout) {
				g.stats.Unconfirmed++
				rest = msgs[i+1:]
			}
			for _, p := range rest {
				g.pending.add(p)
			}
			return
		}
		g.stats.Replayed++
	}
	g.log.Infow("backlog replayed", "count", len(msgs))
}

// PublishConsumption sends a consumption event to the state topic.
func (g *Gateway) PublishConsumption(ev logic.ConsumptionEvent) logic.Outcome {
	payload, err := FormatConsumption(ev)
	if err != nil {
		return logic.Outcome{Kind: logic.GaveUp, Code: CodePublishFailed, Err: err}
	}
	return g.Publish(g.cfg.Topics.State, payload)
}

// PublishGameResult sends a finished game to the game topic.
func (g *Gateway) PublishGameResult(r logic.GameResult) logic.Outcome {
	payload, err := FormatGameResult(r)
	if err != nil {
		return logic.Outcome{Kind: logic.GaveUp, Code: CodePublishFailed, Err: err}
	}
	return g.Publish(g.cfg.Topics.Game, payload)
}

// PublishSystem sends a lifecycle event with a single connection attempt.
// System events are not retried or backlogged.
func (g *Gateway) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	if !g.client.IsConnected() {
		if err := g.client.Connect(); err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		g.replay()
	}
	if err := g.client.Publish(g.cfg.Topics.System, 1, event.Retained, payload); err != nil {
		return fmt.Errorf("publish system event: %w", err)
	}
	return nil
}

// IsConnected reports whether the broker connection is open.
func (g *Gateway) IsConnected() bool {
	return g.client.IsConnected()
}

// Stats returns publish counters.
func (g *Gateway) Stats() Stats {
	s := g.stats
	s.Backlog = g.pending.len()
	return s
}

// Close disconnects from the broker.
func (g *Gateway) Close() error {
	if g.client.IsConnected() {
		g.client.Disconnect()
	}
	return nil
}
