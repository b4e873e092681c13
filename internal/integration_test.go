package internal

import (
	"errors"
	"testing"
	"time"

	"github.com/sweeney/weighbridge/internal/display"
	"github.com/sweeney/weighbridge/internal/gpio"
	"github.com/sweeney/weighbridge/internal/hx711"
	"github.com/sweeney/weighbridge/internal/logic"
	"github.com/sweeney/weighbridge/internal/mqtt"
	"github.com/sweeney/weighbridge/internal/snake"
)

const calibration = 392.0

// rig wires the real components together over fake hardware. Tick k runs at
// k*100ms and uses button sample k-1 and load conversion k-1.
type rig struct {
	reader     *gpio.FakeReader
	bus        *hx711.FakeBus
	scale      *hx711.Scale
	input      *logic.Debouncer
	dispatcher *logic.Dispatcher
	pipeline   *logic.Pipeline
	client     *mqtt.FakeClient
	gateway    *mqtt.Gateway
	display    *display.Display
	events     []logic.ConsumptionEvent
	sleeps     int
}

func newRig(t *testing.T, buttons []gpio.Sample, grams []int) *rig {
	t.Helper()
	raw := make([]int32, len(grams))
	for i, g := range grams {
		raw[i] = int32(float64(g) * calibration)
	}

	r := &rig{
		reader: gpio.NewFakeReader(buttons),
		bus:    &hx711.FakeBus{Values: raw},
		client: mqtt.NewFakeClient(),
	}
	r.scale = hx711.New(r.bus, hx711.Config{Calibration: calibration, Samples: 1})
	r.input = logic.NewDebouncer(r.reader, 50)
	r.display = display.New(nil, nil)
	r.gateway = mqtt.NewGateway(r.client, mqtt.DefaultGatewayConfig(), nil)
	r.gateway.Sleep = func(time.Duration) { r.sleeps++ }

	r.pipeline = logic.NewPipeline(logic.DefaultPipelineConfig(), r.scale, r.display, r.gateway, 0)
	r.pipeline.OnEvent = func(ev logic.ConsumptionEvent, _ logic.Outcome) {
		r.events = append(r.events, ev)
	}

	r.dispatcher = logic.NewDispatcher(logic.DefaultCapacity)
	for _, m := range []logic.Mode{
		logic.NewWeightMode(r.scale, r.display, r.input, 0),
		logic.NewVolumeMode(r.pipeline, r.input),
		snake.NewMode(r.input, r.display, r.gateway, nil),
	} {
		if err := r.dispatcher.Register(m); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	if err := r.dispatcher.SwitchTo(0, 0); err != nil {
		t.Fatalf("switch: %v", err)
	}
	return r
}

func (r *rig) run(t *testing.T, ticks int) {
	t.Helper()
	for k := 1; k <= ticks; k++ {
		now := logic.Millis(k * 100)
		r.input.PollAll(now)
		if _, err := r.dispatcher.Tick(now); err != nil {
			t.Fatalf("tick %d: %v", k, err)
		}
		r.reader.Advance()
	}
}

func (r *rig) mode() string {
	_, m := r.dispatcher.Current()
	return m.Name()
}

// buttonScript holds each button for the given tick ranges [from, to).
func buttonScript(n int, holds map[logic.Channel][][2]int) []gpio.Sample {
	out := make([]gpio.Sample, n)
	for ch, ranges := range holds {
		for _, rg := range ranges {
			for k := rg[0]; k < rg[1] && k <= n; k++ {
				out[k-1][ch] = logic.High
			}
		}
	}
	return out
}

// loadScript returns per-tick grams: before until tick change, after from it.
func loadScript(n, change, before, after int) []int {
	out := make([]int, n)
	for i := range out {
		if i+1 < change {
			out[i] = before
		} else {
			out[i] = after
		}
	}
	return out
}

// TestIntegrationDrinkPublished walks weight -> volume, settles a 500ml
// vessel and detects an 80ml drink.
func TestIntegrationDrinkPublished(t *testing.T) {
	const n = 75
	buttons := buttonScript(n, map[logic.Channel][][2]int{logic.ChannelRight: {{1, 4}}})
	r := newRig(t, buttons, loadScript(n, 50, 500, 420))

	r.run(t, n)

	if r.mode() != "volume" {
		t.Fatalf("mode: got %q, want volume", r.mode())
	}
	if len(r.events) != 2 {
		t.Fatalf("expected 2 events, got %d: %+v", len(r.events), r.events)
	}
	if r.events[0].Consumed != 0 || r.events[0].Consumption != 0 {
		t.Errorf("first event after entering volume mode: %+v", r.events[0])
	}
	if r.events[1].Consumed != -80 || r.events[1].Consumption != 80 {
		t.Errorf("drink event: %+v", r.events[1])
	}
	if r.events[1].Time != 7100 {
		t.Errorf("drink published at %d, want 7100", r.events[1].Time)
	}

	if len(r.client.Messages) != 2 {
		t.Fatalf("expected 2 broker messages, got %d", len(r.client.Messages))
	}
	msg := r.client.Messages[1]
	if msg.Topic != mqtt.TopicState {
		t.Errorf("topic: got %s", msg.Topic)
	}
	if string(msg.Payload) != `{"consumed":-80,"consumption":80}` {
		t.Errorf("payload: got %s", msg.Payload)
	}
	if primary, _ := r.display.Text(); primary != "80ml" {
		t.Errorf("display: got %q, want 80ml", primary)
	}
}

// TestIntegrationFluxNeverPublishes keeps the load moving so nothing settles.
func TestIntegrationFluxNeverPublishes(t *testing.T) {
	const n = 80
	buttons := buttonScript(n, map[logic.Channel][][2]int{logic.ChannelRight: {{1, 4}}})
	grams := make([]int, n)
	for i := range grams {
		grams[i] = 300 + (i%15)*10
	}
	r := newRig(t, buttons, grams)

	r.run(t, n)

	if len(r.events) != 0 {
		t.Errorf("expected no events while in flux, got %+v", r.events)
	}
	if len(r.client.Messages) != 0 {
		t.Errorf("expected no broker traffic, got %d", len(r.client.Messages))
	}
}

// TestIntegrationModeCycle moves right through every mode and back.
func TestIntegrationModeCycle(t *testing.T) {
	const n = 30
	buttons := buttonScript(n, map[logic.Channel][][2]int{
		logic.ChannelRight: {{1, 4}},
		logic.ChannelLeft:  {{10, 13}, {20, 23}},
	})
	r := newRig(t, buttons, loadScript(n, 1, 0, 0))

	var modes []string
	for k := 1; k <= n; k++ {
		now := logic.Millis(k * 100)
		r.input.PollAll(now)
		if _, err := r.dispatcher.Tick(now); err != nil {
			t.Fatalf("tick %d: %v", k, err)
		}
		r.reader.Advance()
		if m := r.mode(); len(modes) == 0 || modes[len(modes)-1] != m {
			modes = append(modes, m)
		}
	}

	// Left in weight mode tares instead of switching.
	want := []string{"weight", "volume", "weight"}
	if len(modes) != len(want) {
		t.Fatalf("modes: got %v, want %v", modes, want)
	}
	for i := range want {
		if modes[i] != want[i] {
			t.Errorf("mode %d: got %q, want %q", i, modes[i], want[i])
		}
	}
}

// TestIntegrationTare zeroes the scale with the left button in weight mode.
func TestIntegrationTare(t *testing.T) {
	const n = 10
	buttons := buttonScript(n, map[logic.Channel][][2]int{logic.ChannelLeft: {{2, 5}}})
	r := newRig(t, buttons, loadScript(n, 1, 250, 250))

	r.run(t, n)

	if want := 250 * calibration; r.scale.Offset() != want {
		t.Errorf("offset: got %v, want %v", r.scale.Offset(), want)
	}
	if primary, _ := r.display.Text(); primary != "0g" {
		t.Errorf("display after tare: got %q, want 0g", primary)
	}
}

// TestIntegrationOfflineThenReplay loses the first event to a dead broker and
// delivers it ahead of the next one.
func TestIntegrationOfflineThenReplay(t *testing.T) {
	const n = 75
	buttons := buttonScript(n, map[logic.Channel][][2]int{logic.ChannelRight: {{1, 4}}})
	r := newRig(t, buttons, loadScript(n, 50, 500, 420))
	refused := &mqtt.ConnectError{Code: mqtt.CodeConnectFailed, Err: errors.New("refused")}
	r.client.ConnectErrors = []error{refused, refused, refused}

	r.run(t, n)

	if r.sleeps != 2 {
		t.Errorf("sleeps: got %d, want 2", r.sleeps)
	}
	if len(r.client.Messages) != 2 {
		t.Fatalf("expected replayed and new message, got %d", len(r.client.Messages))
	}
	if string(r.client.Messages[0].Payload) != `{"consumed":0,"consumption":0}` {
		t.Errorf("replayed first: got %s", r.client.Messages[0].Payload)
	}
	if string(r.client.Messages[1].Payload) != `{"consumed":-80,"consumption":80}` {
		t.Errorf("then new: got %s", r.client.Messages[1].Payload)
	}
	stats := r.gateway.Stats()
	if stats.GaveUp != 1 || stats.Replayed != 1 || stats.Delivered != 1 {
		t.Errorf("stats: %+v", stats)
	}
}
