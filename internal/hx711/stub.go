//go:build !linux

package hx711

import "errors"

// LineBus is not available on non-Linux platforms.
type LineBus struct{}

// NewLineBus returns an error on non-Linux platforms.
func NewLineBus(chipName string, doutPin, sckPin int) (*LineBus, error) {
	return nil, errors.New("hx711: not supported on this platform (requires Linux)")
}

// DataReady is not implemented on non-Linux platforms.
func (b *LineBus) DataReady() (bool, error) { return false, errors.New("hx711: not supported") }

// Pulse is not implemented on non-Linux platforms.
func (b *LineBus) Pulse() (bool, error) { return false, errors.New("hx711: not supported") }

// Close is not implemented on non-Linux platforms.
func (b *LineBus) Close() error { return nil }
