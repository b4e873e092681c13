//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/weighbridge/internal/logic"
)

// RealReader reads buttons from actual hardware using the Linux GPIO character device.
type RealReader struct {
	chip  *gpiocdev.Chip
	lines [logic.NumChannels]*gpiocdev.Line
}

// NewRealReader requests the button lines on the named chip (e.g. "gpiochip0").
// Buttons pull the line high when pressed; activeLow inverts that for
// buttons wired to ground.
func NewRealReader(chipName string, pins Pins, activeLow bool) (*RealReader, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	opts := []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithPullDown}
	if activeLow {
		opts = []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithPullUp, gpiocdev.AsActiveLow}
	}

	r := &RealReader{chip: chip}
	for ch, offset := range pins.offsets() {
		line, err := chip.RequestLine(offset, opts...)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request %s pin %d: %w", logic.Channel(ch), offset, err)
		}
		r.lines[ch] = line
	}
	return r, nil
}

// ReadLevel returns the logical level of the button line.
func (r *RealReader) ReadLevel(ch logic.Channel) (logic.Level, error) {
	if ch < 0 || ch >= logic.NumChannels || r.lines[ch] == nil {
		return logic.Low, fmt.Errorf("unknown channel %d", ch)
	}
	v, err := r.lines[ch].Value()
	if err != nil {
		return logic.Low, fmt.Errorf("read %s pin: %w", ch, err)
	}
	return logic.Level(v == 1), nil
}

// Close releases GPIO resources.
// Lines are reconfigured to input with pull-down (matching Pi boot defaults)
// before closing.
func (r *RealReader) Close() error {
	var errs []error

	for ch, line := range r.lines {
		if line == nil {
			continue
		}
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s pin: %w", logic.Channel(ch), err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pin: %w", logic.Channel(ch), err))
		}
		r.lines[ch] = nil
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		r.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
