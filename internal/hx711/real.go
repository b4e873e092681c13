//go:build linux

package hx711

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// LineBus bit-bangs the HX711 through the Linux GPIO character device.
type LineBus struct {
	chip *gpiocdev.Chip
	dout *gpiocdev.Line
	sck  *gpiocdev.Line
}

// NewLineBus requests DOUT as input and SCK as output (low) on the named chip.
func NewLineBus(chipName string, doutPin, sckPin int) (*LineBus, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	dout, err := chip.RequestLine(doutPin, gpiocdev.AsInput)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request DOUT pin %d: %w", doutPin, err)
	}

	// SCK held high for more than 60us powers the chip down, so start low.
	sck, err := chip.RequestLine(sckPin, gpiocdev.AsOutput(0))
	if err != nil {
		dout.Close()
		chip.Close()
		return nil, fmt.Errorf("request SCK pin %d: %w", sckPin, err)
	}

	return &LineBus{chip: chip, dout: dout, sck: sck}, nil
}

// DataReady reports whether DOUT is low.
func (b *LineBus) DataReady() (bool, error) {
	v, err := b.dout.Value()
	if err != nil {
		return false, err
	}
	return v == 0, nil
}

// Pulse drives SCK high, samples DOUT, and drives SCK low.
func (b *LineBus) Pulse() (bool, error) {
	if err := b.sck.SetValue(1); err != nil {
		return false, fmt.Errorf("set SCK: %w", err)
	}
	v, err := b.dout.Value()
	if lerr := b.sck.SetValue(0); lerr != nil && err == nil {
		err = fmt.Errorf("clear SCK: %w", lerr)
	}
	if err != nil {
		return false, err
	}
	return v == 1, nil
}

// Close releases the lines and chip.
func (b *LineBus) Close() error {
	var errs []error
	if b.sck != nil {
		if err := b.sck.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close SCK pin: %w", err))
		}
	}
	if b.dout != nil {
		if err := b.dout.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close DOUT pin: %w", err))
		}
	}
	if b.chip != nil {
		if err := b.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
