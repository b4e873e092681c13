// Package display is the text display the modes render to. The device has no
// panel driver of its own here; frames are logged and mirrored to the status
// page.
package display

import (
	"sync"

	"go.uber.org/zap"
)

// Mirror receives every frame that changes the display.
type Mirror interface {
	SetDisplay(primary, status string)
}

// Display implements logic.Display.
type Display struct {
	mu      sync.Mutex
	primary string
	status  string
	frames  int
	mirror  Mirror
	log     *zap.SugaredLogger
}

// New creates a Display. mirror may be nil.
func New(mirror Mirror, log *zap.SugaredLogger) *Display {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Display{mirror: mirror, log: log}
}

// Render shows primary and status text. Two empty strings blank the display.
// Repeated identical frames are ignored.
func (d *Display) Render(primary, status string) {
	d.mu.Lock()
	if d.frames > 0 && primary == d.primary && status == d.status {
		d.mu.Unlock()
		return
	}
	d.primary, d.status = primary, status
	d.frames++
	d.mu.Unlock()

	if primary == "" && status == "" {
		d.log.Debugw("display blanked")
	} else {
		d.log.Debugw("display", "primary", primary, "status", status)
	}
	if d.mirror != nil {
		d.mirror.SetDisplay(primary, status)
	}
}

// Text returns the current frame.
func (d *Display) Text() (primary, status string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.primary, d.status
}

// Blank reports whether the display is in standby.
func (d *Display) Blank() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.primary == "" && d.status == ""
}

// Frames returns how many distinct frames have been rendered.
func (d *Display) Frames() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frames
}
