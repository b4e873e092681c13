// Package hx711 drives an HX711 load-cell amplifier over two GPIO lines and
// turns its conversions into a smoothed, calibrated reading.
package hx711

import (
	"errors"
	"fmt"
	"sync"
)

// Defaults for a 5kg load cell.
const (
	DefaultCalibration = 392.0
	DefaultSamples     = 16
)

// Gain selects input channel and gain via the number of trailing clock pulses.
type Gain int

const (
	GainA128 Gain = 1 // channel A, gain 128
	GainB32  Gain = 2 // channel B, gain 32
	GainA64  Gain = 3 // channel A, gain 64
)

// ErrNotReady is returned by ReadRaw while a conversion is in progress.
var ErrNotReady = errors.New("hx711: conversion not ready")

// Bus is the two-wire interface of the chip.
type Bus interface {
	// DataReady reports whether DOUT is low, i.e. a conversion is available.
	DataReady() (bool, error)
	// Pulse drives one clock pulse and returns the DOUT level sampled while
	// the clock is high.
	Pulse() (bool, error)
	Close() error
}

// Config holds calibration settings.
type Config struct {
	// Calibration is the raw count per unit (grams).
	Calibration float64
	// Samples is the moving-average window length.
	Samples int
	Gain    Gain
}

// Scale reads the chip and smooths the result. It satisfies logic.Sensor.
// Tare may be called from the HTTP goroutine, so state is guarded.
type Scale struct {
	bus Bus
	cfg Config

	mu     sync.Mutex
	window []int32
	next   int
	filled int
	offset float64

	// Errors counts failed reads since start.
	Errors int
}

// New creates a Scale on bus. Zero config fields take defaults.
func New(bus Bus, cfg Config) *Scale {
	if cfg.Calibration == 0 {
		cfg.Calibration = DefaultCalibration
	}
	if cfg.Samples <= 0 {
		cfg.Samples = DefaultSamples
	}
	if cfg.Gain == 0 {
		cfg.Gain = GainA128
	}
	return &Scale{bus: bus, cfg: cfg, window: make([]int32, cfg.Samples)}
}

// ReadRaw clocks out one 24-bit conversion. It returns ErrNotReady if the chip
// has not finished converting.
func (s *Scale) ReadRaw() (int32, error) {
	ready, err := s.bus.DataReady()
	if err != nil {
		return 0, fmt.Errorf("hx711: poll ready: %w", err)
	}
	if !ready {
		return 0, ErrNotReady
	}

	var v uint32
	for i := 0; i < 24; i++ {
		bit, err := s.bus.Pulse()
		if err != nil {
			return 0, fmt.Errorf("hx711: read bit %d: %w", i, err)
		}
		v <<= 1
		if bit {
			v |= 1
		}
	}
	// Trailing pulses select gain for the next conversion.
	for i := 0; i < int(s.cfg.Gain); i++ {
		if _, err := s.bus.Pulse(); err != nil {
			return 0, fmt.Errorf("hx711: set gain: %w", err)
		}
	}
	return decode(v), nil
}

// decode sign-extends a 24-bit two's complement value.
func decode(v uint32) int32 {
	v &= 0xFFFFFF
	if v&0x800000 != 0 {
		v |= 0xFF000000
	}
	return int32(v)
}

// Update reads a conversion into the window if one is ready.
// Read failures keep the previous window.
func (s *Scale) Update() bool {
	raw, err := s.ReadRaw()
	if err != nil {
		if !errors.Is(err, ErrNotReady) {
			s.mu.Lock()
			s.Errors++
			s.mu.Unlock()
		}
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.window[s.next] = raw
	s.next = (s.next + 1) % len(s.window)
	if s.filled < len(s.window) {
		s.filled++
	}
	return true
}

func (s *Scale) average() float64 {
	if s.filled == 0 {
		return 0
	}
	var sum int64
	for i := 0; i < s.filled; i++ {
		sum += int64(s.window[i])
	}
	return float64(sum) / float64(s.filled)
}

// Sample updates and returns the smoothed reading in calibrated units.
func (s *Scale) Sample() float64 {
	s.Update()
	s.mu.Lock()
	defer s.mu.Unlock()
	return (s.average() - s.offset) / s.cfg.Calibration
}

// Tare zeroes the scale at the current smoothed load.
func (s *Scale) Tare() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offset = s.average()
}

// Offset returns the tare offset in raw counts.
func (s *Scale) Offset() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset
}

// SetOffset restores a previously saved tare offset.
func (s *Scale) SetOffset(offset float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offset = offset
}

// Close releases the bus.
func (s *Scale) Close() error {
	return s.bus.Close()
}
