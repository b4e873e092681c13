package gpio

import (
	"errors"

	"github.com/sweeney/weighbridge/internal/logic"
)

// FakeReader is a test double that returns scripted button levels.
type FakeReader struct {
	// Samples contains scripted levels, one entry per Advance.
	Samples []Sample

	// index tracks current position in Samples
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by ReadLevel()
	ReadError error
}

// Sample is the state of all buttons at one point in time.
type Sample [logic.NumChannels]logic.Level

// Pressed returns a Sample with the given buttons held down.
func Pressed(channels ...logic.Channel) Sample {
	var s Sample
	for _, ch := range channels {
		s[ch] = logic.High
	}
	return s
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples []Sample) *FakeReader {
	return &FakeReader{Samples: samples}
}

// ReadLevel returns the level of ch in the current sample.
func (f *FakeReader) ReadLevel(ch logic.Channel) (logic.Level, error) {
	if f.ReadError != nil {
		return logic.Low, f.ReadError
	}
	if len(f.Samples) == 0 {
		return logic.Low, errors.New("no samples configured")
	}
	if ch < 0 || ch >= logic.NumChannels {
		return logic.Low, errors.New("unknown channel")
	}
	return f.Samples[f.index][ch], nil
}

// Advance moves to the next sample.
// If samples are exhausted, the last sample repeats.
func (f *FakeReader) Advance() {
	if f.index < len(f.Samples)-1 {
		f.index++
	}
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}

// Reset resets the reader to the beginning of samples.
func (f *FakeReader) Reset() {
	f.index = 0
	f.Closed = false
}
