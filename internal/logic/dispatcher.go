package logic

import "errors"

// DefaultCapacity is the registry size used when none is configured.
const DefaultCapacity = 10

var (
	// ErrRegistryFull is returned by Register once the registry is at capacity.
	ErrRegistryFull = errors.New("mode registry full")

	// ErrNoModes is returned when switching with an empty registry.
	ErrNoModes = errors.New("no modes registered")
)

// Mode is an operating mode of the device.
type Mode interface {
	// Name identifies the mode in logs and status output.
	Name() string

	// Activate resets the mode's own state. It runs every time the mode is
	// selected, before its first Tick.
	Activate(now Millis)

	// Tick runs one cycle of the mode and returns the switch the user asked for.
	Tick(now Millis) SwitchRequest
}

// SwitchKind enumerates switch requests a mode can return from Tick.
type SwitchKind int

const (
	SwitchNone SwitchKind = iota
	SwitchNext
	SwitchPrevious
	SwitchIndex
)

// SwitchRequest asks the dispatcher to change the current mode.
type SwitchRequest struct {
	Kind  SwitchKind
	Index int // used with SwitchIndex
}

// Stay is the request returned by a mode that keeps running.
var Stay = SwitchRequest{}

// Next requests the following mode.
func Next() SwitchRequest { return SwitchRequest{Kind: SwitchNext} }

// Previous requests the preceding mode.
func Previous() SwitchRequest { return SwitchRequest{Kind: SwitchPrevious} }

// Select requests the mode at index.
func Select(index int) SwitchRequest { return SwitchRequest{Kind: SwitchIndex, Index: index} }

// Dispatcher is a fixed-capacity registry of modes with a cyclic current pointer.
type Dispatcher struct {
	modes   []Mode
	current int
}

// NewDispatcher creates a Dispatcher holding at most capacity modes.
// A non-positive capacity selects DefaultCapacity.
func NewDispatcher(capacity int) *Dispatcher {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Dispatcher{modes: make([]Mode, 0, capacity)}
}

// Register appends a mode. It does not activate it.
func (d *Dispatcher) Register(m Mode) error {
	if len(d.modes) == cap(d.modes) {
		return ErrRegistryFull
	}
	d.modes = append(d.modes, m)
	return nil
}

// Len returns the number of registered modes.
func (d *Dispatcher) Len() int {
	return len(d.modes)
}

// Current returns the current index and mode. The mode is nil when the registry
// is empty.
func (d *Dispatcher) Current() (int, Mode) {
	if len(d.modes) == 0 {
		return 0, nil
	}
	return d.current, d.modes[d.current]
}

// SwitchTo wraps index into [0, Len()) and activates that mode.
// Negative indices wrap from the end, so -1 selects the last mode.
func (d *Dispatcher) SwitchTo(index int, now Millis) error {
	n := len(d.modes)
	if n == 0 {
		return ErrNoModes
	}
	d.current = ((index % n) + n) % n
	d.modes[d.current].Activate(now)
	return nil
}

// Next activates the mode after the current one.
func (d *Dispatcher) Next(now Millis) error {
	return d.SwitchTo(d.current+1, now)
}

// Previous activates the mode before the current one.
func (d *Dispatcher) Previous(now Millis) error {
	return d.SwitchTo(d.current-1, now)
}

// Tick runs the current mode once and then executes the switch it requested.
// It returns the request so the caller can log mode changes.
func (d *Dispatcher) Tick(now Millis) (SwitchRequest, error) {
	if len(d.modes) == 0 {
		return Stay, ErrNoModes
	}
	req := d.modes[d.current].Tick(now)
	switch req.Kind {
	case SwitchNext:
		return req, d.Next(now)
	case SwitchPrevious:
		return req, d.Previous(now)
	case SwitchIndex:
		return req, d.SwitchTo(req.Index, now)
	}
	return req, nil
}
