package mqtt

import (
	"errors"
	"testing"
	"time"

	"github.com/sweeney/weighbridge/internal/logic"
)

var errRefused = &ConnectError{Code: CodeConnectFailed, Err: errors.New("connection refused")}

// newTestGateway returns a gateway whose sleeps are recorded instead of taken.
func newTestGateway(client *FakeClient) (*Gateway, *[]time.Duration) {
	g := NewGateway(client, DefaultGatewayConfig(), nil)
	var sleeps []time.Duration
	g.Sleep = func(d time.Duration) { sleeps = append(sleeps, d) }
	return g, &sleeps
}

func TestGatewayDeliversWhenConnected(t *testing.T) {
	client := NewFakeClient()
	client.Connected = true
	g, sleeps := newTestGateway(client)

	out := g.PublishConsumption(logic.ConsumptionEvent{Consumed: -80, Consumption: 80})
	if out.Kind != logic.Delivered {
		t.Fatalf("expected Delivered, got %v (%v)", out.Kind, out.Err)
	}
	if client.ConnectCalls != 0 {
		t.Errorf("expected no connect when already connected, got %d", client.ConnectCalls)
	}
	if len(*sleeps) != 0 {
		t.Errorf("expected no sleeps, got %v", *sleeps)
	}
	if len(client.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(client.Messages))
	}
	msg := client.Messages[0]
	if msg.Topic != TopicState {
		t.Errorf("topic: got %s, want %s", msg.Topic, TopicState)
	}
	if string(msg.Payload) != `{"consumed":-80,"consumption":80}` {
		t.Errorf("payload: got %s", msg.Payload)
	}
}

func TestGatewayConnectsOnDemand(t *testing.T) {
	client := NewFakeClient()
	g, _ := newTestGateway(client)

	out := g.PublishGameResult(logic.GameResult{TimePlayed: 3 * time.Second, Score: 4})
	if !out.OK() {
		t.Fatalf("expected Delivered, got %v", out.Kind)
	}
	if client.ConnectCalls != 1 {
		t.Errorf("expected 1 connect, got %d", client.ConnectCalls)
	}
	if client.Messages[0].Topic != TopicGame {
		t.Errorf("topic: got %s, want %s", client.Messages[0].Topic, TopicGame)
	}
}

func TestGatewayRecoversWithinBudget(t *testing.T) {
	client := NewFakeClient()
	client.ConnectErrors = []error{errRefused, errRefused}
	g, sleeps := newTestGateway(client)

	out := g.Publish(TopicState, []byte("x"))
	if !out.OK() {
		t.Fatalf("expected Delivered on third attempt, got %v", out.Kind)
	}
	if client.ConnectCalls != 3 {
		t.Errorf("expected 3 connects, got %d", client.ConnectCalls)
	}
	if len(*sleeps) != 2 {
		t.Errorf("expected 2 sleeps, got %d", len(*sleeps))
	}
}

func TestGatewayGivesUpAfterBudget(t *testing.T) {
	client := NewFakeClient()
	timeout := &ConnectError{Code: CodeConnectionTimeout, Err: errors.New("timeout")}
	client.ConnectErrors = []error{errRefused, errRefused, timeout}
	g, sleeps := newTestGateway(client)

	out := g.Publish(TopicState, []byte("x"))
	if out.Kind != logic.GaveUp {
		t.Fatalf("expected GaveUp, got %v", out.Kind)
	}
	if out.Code != CodeConnectionTimeout {
		t.Errorf("expected last error code %d, got %d", CodeConnectionTimeout, out.Code)
	}
	if out.LinkDown {
		t.Error("LinkDown should not be set without a link check")
	}
	if client.ConnectCalls != 3 {
		t.Errorf("expected 3 connect attempts, got %d", client.ConnectCalls)
	}
	// No sleep after the last attempt.
	if len(*sleeps) != 2 {
		t.Fatalf("expected 2 sleeps, got %d", len(*sleeps))
	}
	for _, d := range *sleeps {
		if d != DefaultRetryDelay {
			t.Errorf("expected delay %v, got %v", DefaultRetryDelay, d)
		}
	}
}

func TestGatewayBudgetResetsPerCall(t *testing.T) {
	client := NewFakeClient()
	client.ConnectErrors = []error{errRefused, errRefused, errRefused, errRefused, errRefused, errRefused}
	g, _ := newTestGateway(client)

	g.Publish(TopicState, []byte("a"))
	if client.ConnectCalls != 3 {
		t.Fatalf("first call: expected 3 attempts, got %d", client.ConnectCalls)
	}
	out := g.Publish(TopicState, []byte("b"))
	if out.Kind != logic.GaveUp {
		t.Fatalf("second call: expected GaveUp, got %v", out.Kind)
	}
	if client.ConnectCalls != 6 {
		t.Errorf("second call should get a full budget: total attempts %d, want 6", client.ConnectCalls)
	}
}

func TestGatewayPublishErrorCostsAttempt(t *testing.T) {
	client := NewFakeClient()
	client.Connected = true
	client.PublishErrors = []error{errors.New("broken pipe")}
	g, sleeps := newTestGateway(client)

	out := g.Publish(TopicState, []byte("x"))
	if !out.OK() {
		t.Fatalf("expected Delivered on retry, got %v", out.Kind)
	}
	if client.PublishCalls != 2 {
		t.Errorf("expected 2 publish calls, got %d", client.PublishCalls)
	}
	if len(*sleeps) != 1 {
		t.Errorf("expected 1 sleep, got %d", len(*sleeps))
	}
}

func TestGatewayLinkDown(t *testing.T) {
	client := NewFakeClient()
	g, sleeps := newTestGateway(client)
	g.LinkUp = func() bool { return false }

	out := g.Publish(TopicState, []byte("x"))
	if out.Kind != logic.GaveUp || !out.LinkDown {
		t.Fatalf("expected GaveUp with LinkDown, got %+v", out)
	}
	if !errors.Is(out.Err, ErrLinkDown) {
		t.Errorf("expected ErrLinkDown, got %v", out.Err)
	}
	if out.Code != CodeNoLink {
		t.Errorf("code: got %d, want %d", out.Code, CodeNoLink)
	}
	if client.ConnectCalls != 0 || len(*sleeps) != 0 {
		t.Errorf("expected no connect attempts or sleeps, got %d/%d", client.ConnectCalls, len(*sleeps))
	}
}

func TestGatewayReplaysBacklog(t *testing.T) {
	client := NewFakeClient()
	client.ConnectErrors = []error{errRefused, errRefused, errRefused}
	g, _ := newTestGateway(client)

	g.Publish(TopicState, []byte("first"))
	if g.Stats().Backlog != 1 {
		t.Fatalf("expected 1 backlogged message, got %d", g.Stats().Backlog)
	}

	out := g.Publish(TopicGame, []byte("second"))
	if !out.OK() {
		t.Fatalf("expected Delivered, got %v", out.Kind)
	}
	if len(client.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(client.Messages))
	}
	if string(client.Messages[0].Payload) != "first" || string(client.Messages[1].Payload) != "second" {
		t.Errorf("expected backlog before new message, got %s then %s", client.Messages[0].Payload, client.Messages[1].Payload)
	}

	stats := g.Stats()
	if stats.Delivered != 1 || stats.GaveUp != 1 || stats.Replayed != 1 || stats.Backlog != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestGatewayReplayInterrupted(t *testing.T) {
	client := NewFakeClient()
	client.ConnectErrors = []error{errRefused, errRefused, errRefused}
	g, _ := newTestGateway(client)
	g.Publish(TopicState, []byte("a"))

	// Connect succeeds but the replay publish fails; the new message then
	// goes out and the backlog is kept.
	client.PublishErrors = []error{errors.New("write failed")}
	out := g.Publish(TopicState, []byte("b"))
	if !out.OK() {
		t.Fatalf("expected Delivered, got %v", out.Kind)
	}
	if g.Stats().Backlog != 1 {
		t.Errorf("expected backlog kept, got %d", g.Stats().Backlog)
	}
}

func TestGatewayTimeoutNotRepublished(t *testing.T) {
	client := NewFakeClient()
	client.Connected = true
	client.SlowPublishes = 1
	g, sleeps := newTestGateway(client)

	out := g.PublishConsumption(logic.ConsumptionEvent{Consumed: -80, Consumption: 80})
	if out.Kind != logic.GaveUp || out.Code != CodePublishTimeout {
		t.Fatalf("expected GaveUp with code %d, got %v/%d", CodePublishTimeout, out.Kind, out.Code)
	}
	if !errors.Is(out.Err, ErrPublishTimeout) {
		t.Errorf("expected ErrPublishTimeout, got %v", out.Err)
	}
	if client.PublishCalls != 1 || len(*sleeps) != 0 {
		t.Errorf("expected a single publish and no sleeps, got %d/%d", client.PublishCalls, len(*sleeps))
	}

	// The next publish must not replay the unacknowledged one.
	if out := g.Publish(TopicState, []byte("next")); !out.OK() {
		t.Fatalf("expected Delivered, got %v", out.Kind)
	}
	if len(client.Messages) != 2 {
		t.Fatalf("expected each payload once, got %d messages", len(client.Messages))
	}
	if string(client.Messages[0].Payload) != `{"consumed":-80,"consumption":80}` {
		t.Errorf("first: got %s", client.Messages[0].Payload)
	}
	if string(client.Messages[1].Payload) != "next" {
		t.Errorf("second: got %s", client.Messages[1].Payload)
	}

	stats := g.Stats()
	if stats.Unconfirmed != 1 || stats.Backlog != 0 || stats.GaveUp != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestGatewayReplayTimeoutLeavesMessageToClient(t *testing.T) {
	client := NewFakeClient()
	client.ConnectErrors = []error{errRefused, errRefused, errRefused, errRefused, errRefused, errRefused}
	g, _ := newTestGateway(client)
	g.Publish(TopicState, []byte("a"))
	g.Publish(TopicState, []byte("b"))

	client.SlowPublishes = 1
	if out := g.Publish(TopicState, []byte("c")); !out.OK() {
		t.Fatalf("expected Delivered, got %v", out.Kind)
	}

	var got []string
	for _, m := range client.Messages {
		got = append(got, string(m.Payload))
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Errorf("messages: got %v, want [a c]", got)
	}
	stats := g.Stats()
	if stats.Backlog != 1 || stats.Unconfirmed != 1 {
		t.Errorf("expected b still backlogged and a unconfirmed, got %+v", stats)
	}
}

func TestGatewayPublishSystem(t *testing.T) {
	client := NewFakeClient()
	g, _ := newTestGateway(client)

	err := g.PublishSystem(SystemEvent{Event: "STARTUP", RawPayload: []byte(`{"s":1}`), Retained: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	msg := client.Messages[0]
	if msg.Topic != TopicSystem || !msg.Retained || msg.QoS != 1 {
		t.Errorf("unexpected system message: %+v", msg)
	}

	client.Connected = false
	client.ConnectErrors = []error{errRefused}
	if err := g.PublishSystem(SystemEvent{Event: "HEARTBEAT"}); err == nil {
		t.Error("expected error when connect fails")
	}
	if client.ConnectCalls != 2 {
		t.Errorf("system events get a single attempt, got %d connects", client.ConnectCalls)
	}
}

func TestGatewayClose(t *testing.T) {
	client := NewFakeClient()
	client.Connected = true
	g, _ := newTestGateway(client)

	if err := g.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.Disconnects != 1 || g.IsConnected() {
		t.Error("expected disconnect")
	}
}

func TestNewGatewayDefaults(t *testing.T) {
	g := NewGateway(NewFakeClient(), GatewayConfig{}, nil)
	if g.cfg.Attempts != DefaultAttempts {
		t.Errorf("attempts: got %d", g.cfg.Attempts)
	}
	if g.cfg.Topics != DefaultTopics() {
		t.Errorf("topics: got %+v", g.cfg.Topics)
	}
	if len(g.pending.slots) != DefaultBacklog {
		t.Errorf("backlog: got %d", len(g.pending.slots))
	}
}
