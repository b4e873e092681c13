package logic

import "math"

// Buttons is the part of the Debouncer the modes use.
type Buttons interface {
	WasPressed(ch Channel, now Millis) bool
	ClearEdges()
}

// WeightMode shows the current load in grams. Left tares, right moves on.
type WeightMode struct {
	sensor  Sensor
	display Display
	buttons Buttons
	timeout Millis
	readout readout
}

// NewWeightMode creates the weighing mode. timeout blanks the display after
// that long without a change; zero disables it.
func NewWeightMode(sensor Sensor, display Display, buttons Buttons, timeout Millis) *WeightMode {
	return &WeightMode{sensor: sensor, display: display, buttons: buttons, timeout: timeout}
}

// Name implements Mode.
func (m *WeightMode) Name() string { return "weight" }

// Activate implements Mode.
func (m *WeightMode) Activate(now Millis) {
	m.buttons.ClearEdges()
	m.readout.touch(now)
	m.display.Render(FormatWeight(m.readout.quantity), "")
}

// Tick implements Mode.
func (m *WeightMode) Tick(now Millis) SwitchRequest {
	w := int(math.Round(m.sensor.Sample()))
	if m.readout.update(w, now) {
		m.display.Render(FormatWeight(w), "")
	}

	if m.buttons.WasPressed(ChannelLeft, now) {
		m.sensor.Tare()
	}

	if m.readout.idle(now, m.timeout) {
		m.display.Render("", "")
	}

	if m.buttons.WasPressed(ChannelRight, now) {
		return Next()
	}
	return Stay
}

// Quantity returns the last displayed weight.
func (m *WeightMode) Quantity() int { return m.readout.quantity }

// VolumeMode runs the consumption pipeline. Left and right cycle modes.
type VolumeMode struct {
	pipeline *Pipeline
	buttons  Buttons
}

// NewVolumeMode wraps p as a mode.
func NewVolumeMode(p *Pipeline, buttons Buttons) *VolumeMode {
	return &VolumeMode{pipeline: p, buttons: buttons}
}

// Name implements Mode.
func (m *VolumeMode) Name() string { return "volume" }

// Activate implements Mode.
func (m *VolumeMode) Activate(now Millis) {
	m.buttons.ClearEdges()
	m.pipeline.Activate(now)
}

// Tick implements Mode.
func (m *VolumeMode) Tick(now Millis) SwitchRequest {
	m.pipeline.Tick(now)

	if m.buttons.WasPressed(ChannelLeft, now) {
		return Previous()
	}
	if m.buttons.WasPressed(ChannelRight, now) {
		return Next()
	}
	return Stay
}

// Pipeline returns the wrapped pipeline.
func (m *VolumeMode) Pipeline() *Pipeline { return m.pipeline }
