package logic

import (
	"errors"
	"testing"
)

func TestDebounceAcceptsStableChange(t *testing.T) {
	r := &scriptedReader{}
	d := NewDebouncer(r, 50)

	d.Poll(ChannelUp, 0)
	r.levels[ChannelUp] = High

	// Change observed at 100
	if lvl := d.Poll(ChannelUp, 100); lvl != Low {
		t.Fatalf("level right after change: got %v, want Low", lvl)
	}
	// Exactly the window is not enough
	if lvl := d.Poll(ChannelUp, 150); lvl != Low {
		t.Fatalf("level at window: got %v, want Low", lvl)
	}
	if lvl := d.Poll(ChannelUp, 151); lvl != High {
		t.Fatalf("level after window: got %v, want High", lvl)
	}
}

func TestDebounceNoChatter(t *testing.T) {
	r := &scriptedReader{}
	d := NewDebouncer(r, 50)

	// Toggle every 20ms: never stable for longer than the window.
	now := Millis(0)
	for i := 0; i < 50; i++ {
		r.levels[ChannelLeft] = Level(i%2 == 0)
		if lvl := d.Poll(ChannelLeft, now); lvl != Low {
			t.Fatalf("iteration %d: debounced level flipped to %v", i, lvl)
		}
		now += 20
	}
}

func TestWasPressedConsumesEdge(t *testing.T) {
	r := &scriptedReader{}
	d := NewDebouncer(r, 50)

	r.levels[ChannelRight] = High
	d.Poll(ChannelRight, 10)

	if !d.WasPressed(ChannelRight, 100) {
		t.Fatal("expected first WasPressed to be true")
	}
	if d.WasPressed(ChannelRight, 110) {
		t.Error("expected second WasPressed to be false")
	}
	if d.WasPressed(ChannelRight, 500) {
		t.Error("held button must not report another press")
	}
}

func TestWasPressedOncePerPress(t *testing.T) {
	r := &scriptedReader{}
	d := NewDebouncer(r, 50)

	presses := 0
	now := Millis(0)
	press := func(level Level, ticks int) {
		r.levels[ChannelDown] = level
		for i := 0; i < ticks; i++ {
			if d.WasPressed(ChannelDown, now) {
				presses++
			}
			now += 10
		}
	}

	press(High, 20)
	press(Low, 20)
	press(High, 20)
	press(Low, 20)

	if presses != 2 {
		t.Errorf("presses: got %d, want 2", presses)
	}
}

func TestReleaseIsNotAPress(t *testing.T) {
	r := &scriptedReader{}
	d := NewDebouncer(r, 50)

	r.levels[ChannelUp] = High
	d.Poll(ChannelUp, 0)
	d.Poll(ChannelUp, 100)
	d.WasPressed(ChannelUp, 100)

	r.levels[ChannelUp] = Low
	d.Poll(ChannelUp, 200)
	if d.WasPressed(ChannelUp, 300) {
		t.Error("falling edge reported as press")
	}
	if lvl := d.Poll(ChannelUp, 300); lvl != Low {
		t.Errorf("level after release: got %v, want Low", lvl)
	}
}

func TestPollIsolatesChannels(t *testing.T) {
	r := &scriptedReader{}
	d := NewDebouncer(r, 50)

	r.levels[ChannelUp] = High
	r.levels[ChannelDown] = High
	d.Poll(ChannelUp, 0)
	d.Poll(ChannelUp, 100)

	if d.channels[ChannelDown].lastRaw != Low {
		t.Error("polling up must not touch down")
	}
	if d.WasPressed(ChannelLeft, 100) {
		t.Error("left was never pressed")
	}
}

func TestReadErrorIsLow(t *testing.T) {
	r := &scriptedReader{err: errors.New("gpio fault")}
	d := NewDebouncer(r, 50)

	for now := Millis(0); now < 500; now += 10 {
		if lvl := d.Poll(ChannelUp, now); lvl != Low {
			t.Fatalf("at %d: got %v, want Low on read error", now, lvl)
		}
	}
}

func TestUnknownChannel(t *testing.T) {
	d := NewDebouncer(&scriptedReader{}, 0)
	if d.window != DefaultDebounce {
		t.Errorf("default window: got %d, want %d", d.window, DefaultDebounce)
	}
	if d.Poll(Channel(-1), 0) != Low || d.Poll(NumChannels, 0) != Low {
		t.Error("unknown channel should read Low")
	}
	if d.WasPressed(NumChannels, 0) {
		t.Error("unknown channel cannot be pressed")
	}
}

func TestDebounceAcrossClockWrap(t *testing.T) {
	r := &scriptedReader{}
	d := NewDebouncer(r, 50)

	start := Millis(0xFFFFFFE0)
	d.Poll(ChannelUp, start)
	r.levels[ChannelUp] = High
	d.Poll(ChannelUp, start+10)

	// 30ms later the counter has wrapped; still inside the window.
	if d.Poll(ChannelUp, start+40) != Low {
		t.Fatal("accepted before window elapsed")
	}
	if d.Poll(ChannelUp, start+70) != High {
		t.Fatal("not accepted after window across wrap")
	}
}

func TestClearEdges(t *testing.T) {
	r := &scriptedReader{}
	d := NewDebouncer(r, 50)

	r.levels[ChannelLeft] = High
	d.PollAll(0)
	d.PollAll(100)
	d.ClearEdges()

	if d.WasPressed(ChannelLeft, 110) {
		t.Error("edge should have been cleared")
	}
}
