//go:build !linux

package gpio

import (
	"errors"

	"github.com/sweeney/weighbridge/internal/logic"
)

// RealReader is not available on non-Linux platforms.
type RealReader struct{}

// NewRealReader returns an error on non-Linux platforms.
func NewRealReader(chipName string, pins Pins, activeLow bool) (*RealReader, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// ReadLevel is not implemented on non-Linux platforms.
func (r *RealReader) ReadLevel(ch logic.Channel) (logic.Level, error) {
	return logic.Low, errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (r *RealReader) Close() error {
	return nil
}
