package hx711

// FakeBus plays back scripted 24-bit conversions.
type FakeBus struct {
	// Values are returned one per conversion; the last repeats.
	Values []int32
	// NotReady, if set, makes DataReady report false.
	NotReady bool
	// Err, if set, is returned from every call.
	Err error
	// Pulses counts clock pulses.
	Pulses int
	Closed bool

	index int
	bit   int
}

// DataReady reports a conversion as available unless NotReady is set.
func (f *FakeBus) DataReady() (bool, error) {
	if f.Err != nil {
		return false, f.Err
	}
	if f.bit >= 24 {
		// Previous conversion fully clocked out.
		if f.index < len(f.Values)-1 {
			f.index++
		}
		f.bit = 0
	}
	return !f.NotReady && len(f.Values) > 0, nil
}

// Pulse shifts out the current value MSB first; gain pulses read as low.
func (f *FakeBus) Pulse() (bool, error) {
	if f.Err != nil {
		return false, f.Err
	}
	f.Pulses++
	v := uint32(f.Values[f.index]) & 0xFFFFFF
	b := f.bit < 24 && v&(1<<(23-f.bit)) != 0
	f.bit++
	return b, nil
}

// Close marks the bus closed.
func (f *FakeBus) Close() error {
	f.Closed = true
	return nil
}

// FakeSensor returns scripted readings. It satisfies logic.Sensor.
type FakeSensor struct {
	Readings []float64
	Tares    int
	index    int
}

// Sample returns the next reading; the last repeats.
func (f *FakeSensor) Sample() float64 {
	if len(f.Readings) == 0 {
		return 0
	}
	v := f.Readings[f.index]
	if f.index < len(f.Readings)-1 {
		f.index++
	}
	return v
}

// Tare counts calls.
func (f *FakeSensor) Tare() { f.Tares++ }
