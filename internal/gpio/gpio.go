// Package gpio reads the scale's push buttons with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "github.com/sweeney/weighbridge/internal/logic"

// Reader reads raw button levels. It satisfies logic.InputReader.
type Reader interface {
	// ReadLevel returns the raw level of a button; High means pressed.
	ReadLevel(ch logic.Channel) (logic.Level, error)

	// Close releases GPIO resources.
	Close() error
}

// Pins maps the logical buttons to line offsets (BCM numbering).
type Pins struct {
	Up    int
	Down  int
	Left  int
	Right int
}

// Default pin assignment (BCM numbering)
const (
	DefaultPinUp    = 5
	DefaultPinDown  = 6
	DefaultPinLeft  = 13
	DefaultPinRight = 19
)

// DefaultPins returns the default wiring.
func DefaultPins() Pins {
	return Pins{Up: DefaultPinUp, Down: DefaultPinDown, Left: DefaultPinLeft, Right: DefaultPinRight}
}

// offsets returns the pins indexed by channel.
func (p Pins) offsets() [logic.NumChannels]int {
	var o [logic.NumChannels]int
	o[logic.ChannelUp] = p.Up
	o[logic.ChannelDown] = p.Down
	o[logic.ChannelLeft] = p.Left
	o[logic.ChannelRight] = p.Right
	return o
}
