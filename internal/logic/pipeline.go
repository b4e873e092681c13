package logic

import (
	"fmt"
	"math"
)

// Defaults mirror the shipped firmware configuration.
const (
	DefaultThreshold      = 1
	DefaultStabilization  Millis = 2000
	DefaultDisplayTimeout Millis = 30000
)

// Status texts shown under the quantity.
const (
	StatusNoConnection  = "No connection"
	StatusPublishFailed = "Publishing failed"
)

// Phase is the detection state of the consumption pipeline.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseTracking
	PhaseStabilizing
	PhasePublishing
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseTracking:
		return "TRACKING"
	case PhaseStabilizing:
		return "STABILIZING"
	case PhasePublishing:
		return "PUBLISHING"
	}
	return "UNKNOWN"
}

// PipelineConfig holds the tuning of the consumption pipeline.
type PipelineConfig struct {
	// Threshold is the magnitude a quantity, and a delta, must exceed to count.
	Threshold int
	// Stabilization is how long a quantity must stay unchanged before it is
	// treated as settled.
	Stabilization Millis
	// DisplayTimeout blanks the display after this long without change.
	// Zero disables standby.
	DisplayTimeout Millis
	// FirstDeltaZero reports a zero delta for the first publish after
	// activation, matching totals kept by deployed devices.
	FirstDeltaZero bool
}

// DefaultPipelineConfig returns the firmware defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Threshold:      DefaultThreshold,
		Stabilization:  DefaultStabilization,
		DisplayTimeout: DefaultDisplayTimeout,
		FirstDeltaZero: true,
	}
}

// PipelineState is a copy of the pipeline's state for status reporting.
type PipelineState struct {
	Phase    Phase
	Quantity int
	LastSent int
	Total    int
	Status   string
	Standby  bool
}

// Pipeline detects drinks from successive scale readings and publishes the
// consumed amount.
type Pipeline struct {
	cfg       PipelineConfig
	sensor    Sensor
	display   Display
	publisher Publisher

	phase    Phase
	readout  readout
	lastSent int
	total    int
	status   string

	// OnEvent, if set, is called after every publish attempt.
	OnEvent func(ev ConsumptionEvent, out Outcome)
}

// NewPipeline creates a pipeline whose lifetime total starts at total.
func NewPipeline(cfg PipelineConfig, sensor Sensor, display Display, publisher Publisher, total int) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		sensor:    sensor,
		display:   display,
		publisher: publisher,
		total:     total,
	}
}

// Activate starts a new session. The lifetime total is kept.
func (p *Pipeline) Activate(now Millis) {
	p.lastSent = 0
	p.status = ""
	p.phase = PhaseTracking
	p.readout.touch(now)
	p.render()
}

// Tick samples the sensor once and publishes when a settled change is found.
func (p *Pipeline) Tick(now Millis) {
	if p.phase == PhaseIdle {
		p.Activate(now)
	}

	q := int(math.Round(p.sensor.Sample()))

	if p.readout.update(q, now) {
		// In flux: never publish on a moving reading.
		p.phase = PhaseTracking
		p.status = ""
		p.render()
		return
	}

	if abs(q) > p.cfg.Threshold && q != p.lastSent {
		if now.Since(p.readout.lastChange) > p.cfg.Stabilization {
			p.readout.touch(now)
			p.publish(q, now)
		} else {
			p.phase = PhaseStabilizing
		}
	}

	if p.readout.idle(now, p.cfg.DisplayTimeout) {
		p.display.Render("", "")
	}
}

func (p *Pipeline) publish(q int, now Millis) {
	p.phase = PhasePublishing
	defer func() { p.phase = PhaseTracking }()

	delta := q - p.lastSent
	if p.lastSent == 0 && p.cfg.FirstDeltaZero {
		delta = p.lastSent
	}

	// Settling noise on an already tracked vessel.
	if p.lastSent != 0 && abs(delta) <= p.cfg.Threshold {
		return
	}

	p.total += -delta
	ev := ConsumptionEvent{Consumed: delta, Consumption: p.total, Time: now}

	out := p.publisher.PublishConsumption(ev)
	switch {
	case out.OK():
		p.status = ""
	case out.LinkDown:
		p.status = StatusNoConnection
	default:
		p.status = StatusPublishFailed
	}
	p.lastSent = q
	p.render()

	if p.OnEvent != nil {
		p.OnEvent(ev, out)
	}
}

func (p *Pipeline) render() {
	p.display.Render(FormatVolume(p.total), p.status)
}

// State returns a copy of the pipeline state.
func (p *Pipeline) State() PipelineState {
	return PipelineState{
		Phase:    p.phase,
		Quantity: p.readout.quantity,
		LastSent: p.lastSent,
		Total:    p.total,
		Status:   p.status,
		Standby:  p.readout.standby,
	}
}

// readout tracks the displayed quantity and display standby.
type readout struct {
	quantity   int
	lastChange Millis
	standby    bool
}

// update stores q and reports whether it differs from the displayed quantity.
func (r *readout) update(q int, now Millis) bool {
	if q == r.quantity {
		return false
	}
	r.quantity = q
	r.touch(now)
	return true
}

func (r *readout) touch(now Millis) {
	r.lastChange = now
	r.standby = false
}

// idle reports true exactly once when the display should be blanked.
func (r *readout) idle(now, timeout Millis) bool {
	if timeout == 0 || r.standby {
		return false
	}
	if now.Since(r.lastChange) > timeout {
		r.standby = true
		return true
	}
	return false
}

// FormatVolume renders millilitres, switching to litres from 1000.
func FormatVolume(ml int) string {
	return humanize(ml, "ml", "l")
}

// FormatWeight renders grams, switching to kilograms from 1000.
func FormatWeight(g int) string {
	return humanize(g, "g", "kg")
}

func humanize(v int, small, large string) string {
	if v >= 1000 {
		return fmt.Sprintf("%.2f%s", float64(v)/1000, large)
	}
	return fmt.Sprintf("%d%s", v, small)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
