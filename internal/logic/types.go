// Package logic contains the pure control logic of the scale: button debouncing,
// mode dispatch and consumption detection.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via Millis parameters.
package logic

import "time"

// Millis is a free-running 32-bit millisecond counter. It wraps after ~49 days;
// elapsed time is always computed with Since, which is wraparound safe.
type Millis uint32

// Since returns the milliseconds elapsed from earlier to m.
// Unsigned subtraction keeps the result correct across a counter wrap.
func (m Millis) Since(earlier Millis) Millis {
	return m - earlier
}

// Duration converts a millisecond count to a time.Duration.
func (m Millis) Duration() time.Duration {
	return time.Duration(m) * time.Millisecond
}

// MillisOf converts a duration to Millis, truncating sub-millisecond parts.
func MillisOf(d time.Duration) Millis {
	return Millis(d / time.Millisecond)
}

// Level is the logical level of a digital input.
type Level bool

const (
	Low  Level = false
	High Level = true
)

// Channel identifies a physical button.
type Channel int

const (
	ChannelUp Channel = iota
	ChannelDown
	ChannelLeft
	ChannelRight

	// NumChannels is the number of button channels.
	NumChannels
)

func (c Channel) String() string {
	switch c {
	case ChannelUp:
		return "up"
	case ChannelDown:
		return "down"
	case ChannelLeft:
		return "left"
	case ChannelRight:
		return "right"
	}
	return "unknown"
}

// Sensor is the load-cell collaborator.
type Sensor interface {
	// Sample returns the latest smoothed reading in calibrated units.
	Sample() float64

	// Tare zeroes the scale at the current load.
	Tare()
}

// Display is the screen collaborator. Implementations only lay out the text.
type Display interface {
	Render(primary, status string)
}

// ConsumptionEvent is a detected drink, ready to be published.
type ConsumptionEvent struct {
	Consumed    int // signed delta, negative when the quantity went down
	Consumption int // running total after this event
	Time        Millis
}

// GameResult is the outcome of a finished snake game.
type GameResult struct {
	TimePlayed time.Duration
	Score      int
}

// OutcomeKind tells whether a publish reached the broker.
type OutcomeKind int

const (
	Delivered OutcomeKind = iota
	GaveUp
)

func (k OutcomeKind) String() string {
	if k == Delivered {
		return "DELIVERED"
	}
	return "GAVE_UP"
}

// Outcome is the result of a publish call.
type Outcome struct {
	Kind OutcomeKind
	// Code is the last connect/publish error code when Kind is GaveUp.
	Code int
	// LinkDown is set when the gateway gave up because no network link exists.
	LinkDown bool
	Err      error
}

// OK reports whether the payload was delivered.
func (o Outcome) OK() bool {
	return o.Kind == Delivered
}

// Publisher delivers events to the broker. Implementations may block for a
// bounded number of retry delays but must always return.
type Publisher interface {
	PublishConsumption(event ConsumptionEvent) Outcome
	PublishGameResult(result GameResult) Outcome
}
