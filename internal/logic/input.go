package logic

// DefaultDebounce is the debounce window used when none is configured.
const DefaultDebounce Millis = 50

// InputReader reads the raw level of a button channel.
type InputReader interface {
	ReadLevel(ch Channel) (Level, error)
}

// channelState tracks debounce state for a single button.
type channelState struct {
	// Last accepted (debounced) level
	debounced Level
	// Raw level seen on the previous poll
	lastRaw Level
	// Time the raw level last changed
	lastChange Millis
	// Rising edge accepted but not yet consumed by WasPressed
	pressed bool
}

// Debouncer filters raw button levels into stable levels and press edges.
// It is owned by the control loop and is not safe for concurrent use.
type Debouncer struct {
	reader   InputReader
	window   Millis
	channels [NumChannels]channelState
}

// NewDebouncer creates a Debouncer reading from r. A zero window selects
// DefaultDebounce.
func NewDebouncer(r InputReader, window Millis) *Debouncer {
	if window == 0 {
		window = DefaultDebounce
	}
	return &Debouncer{reader: r, window: window}
}

// Poll samples the channel and returns its debounced level.
// A read error or unknown channel counts as a stable Low level.
func (d *Debouncer) Poll(ch Channel, now Millis) Level {
	if ch < 0 || ch >= NumChannels {
		return Low
	}
	st := &d.channels[ch]

	raw, err := d.reader.ReadLevel(ch)
	if err != nil {
		raw = Low
	}

	if raw != st.lastRaw {
		st.lastChange = now
	}

	if now.Since(st.lastChange) > d.window && raw != st.debounced {
		st.debounced = raw
		if raw == High {
			st.pressed = true
		}
	}

	st.lastRaw = raw
	return st.debounced
}

// WasPressed polls the channel and reports a rising edge at most once per press.
// The edge is consumed: a second call returns false until the button is
// released and pressed again.
func (d *Debouncer) WasPressed(ch Channel, now Millis) bool {
	if ch < 0 || ch >= NumChannels {
		return false
	}
	d.Poll(ch, now)
	st := &d.channels[ch]
	pressed := st.pressed
	st.pressed = false
	return pressed
}

// PollAll samples every channel so that edges are latched even for buttons the
// active mode does not look at this tick.
func (d *Debouncer) PollAll(now Millis) {
	for ch := Channel(0); ch < NumChannels; ch++ {
		d.Poll(ch, now)
	}
}

// ClearEdges discards press edges that have not been consumed yet.
func (d *Debouncer) ClearEdges() {
	for i := range d.channels {
		d.channels[i].pressed = false
	}
}
