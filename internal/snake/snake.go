// Package snake implements the snake game mode. The game itself is a toy; the
// mode's job in the device is to report a result when a game ends.
package snake

import (
	"fmt"
	"math/rand/v2"

	"github.com/sweeney/weighbridge/internal/logic"
)

// Board size in cells (a 128x64 screen drawn with 4px cells).
const (
	DefaultWidth  = 32
	DefaultHeight = 16
)

// Step timing: the snake speeds up from slowStep to fastStep as it fills the board.
const (
	slowStep logic.Millis = 300
	fastStep logic.Millis = 100
)

// DefaultHold is how long the score stays on screen after game over.
const DefaultHold logic.Millis = 4000

type point struct{ x, y int }

type direction int

const (
	right direction = iota
	up
	left
	down
)

func (d direction) horizontal() bool { return d == right || d == left }

func (d direction) move(p point) point {
	switch d {
	case right:
		p.x++
	case up:
		p.y--
	case left:
		p.x--
	case down:
		p.y++
	}
	return p
}

// Game is a single round on a width x height board.
type Game struct {
	width, height int
	body          []point // tail first, head last
	dir           direction
	moved         direction // direction of the last step
	bounty        point
	over          bool
	rng           *rand.Rand
}

// NewGame places a four-cell snake in the middle of the board heading right.
func NewGame(width, height int, rng *rand.Rand) *Game {
	g := &Game{width: width, height: height, rng: rng, dir: right, moved: right}
	cx, cy := width/2, height/2
	for x := cx - 1; x <= cx+2; x++ {
		g.body = append(g.body, point{x, cy})
	}
	g.placeBounty()
	return g
}

// Score is the snake length.
func (g *Game) Score() int { return len(g.body) }

// Over reports whether the snake crashed.
func (g *Game) Over() bool { return g.over }

// Steer turns the snake. Turns are checked against the last step taken, so
// any number of presses between steps cannot reverse it onto its neck.
func (g *Game) Steer(d direction) {
	if d.horizontal() != g.moved.horizontal() {
		g.dir = d
	}
}

// Step advances the snake one cell.
func (g *Game) Step() {
	if g.over {
		return
	}
	head := g.body[len(g.body)-1]
	next := g.dir.move(head)
	g.moved = g.dir

	if next.x < 0 || next.x >= g.width || next.y < 0 || next.y >= g.height {
		g.over = true
		return
	}

	ate := next == g.bounty
	if !ate {
		g.body = g.body[1:]
	}
	for _, p := range g.body {
		if p == next {
			g.over = true
			return
		}
	}
	g.body = append(g.body, next)

	if ate {
		g.placeBounty()
	}
}

func (g *Game) occupied(p point) bool {
	for _, b := range g.body {
		if b == p {
			return true
		}
	}
	return false
}

func (g *Game) placeBounty() {
	if len(g.body) >= g.width*g.height {
		g.over = true
		return
	}
	for {
		p := point{g.rng.IntN(g.width), g.rng.IntN(g.height)}
		if !g.occupied(p) {
			g.bounty = p
			return
		}
	}
}

// stepInterval shortens as the snake grows.
func (g *Game) stepInterval() logic.Millis {
	fill := logic.Millis(len(g.body) * int(slowStep-fastStep) / (g.width * g.height))
	return slowStep - fill
}

type phase int

const (
	phaseMenu phase = iota
	phasePlaying
	phaseOver
)

var controls = []struct {
	ch  logic.Channel
	dir direction
}{
	{logic.ChannelUp, up},
	{logic.ChannelDown, down},
	{logic.ChannelLeft, left},
	{logic.ChannelRight, right},
}

// Mode is the snake game as a device mode.
type Mode struct {
	buttons   logic.Buttons
	display   logic.Display
	publisher logic.Publisher
	rng       *rand.Rand
	width     int
	height    int
	hold      logic.Millis

	phase    phase
	game     *Game
	started  logic.Millis
	lastStep logic.Millis
	overAt   logic.Millis

	// LastResult is the outcome of the most recent game.
	LastResult *logic.GameResult
}

// NewMode creates the snake mode on the default board. A nil rng seeds one
// from the runtime.
func NewMode(buttons logic.Buttons, display logic.Display, publisher logic.Publisher, rng *rand.Rand) *Mode {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Mode{
		buttons:   buttons,
		display:   display,
		publisher: publisher,
		rng:       rng,
		width:     DefaultWidth,
		height:    DefaultHeight,
		hold:      DefaultHold,
	}
}

// Name implements logic.Mode.
func (m *Mode) Name() string { return "snake" }

// Activate implements logic.Mode. It always returns to the menu.
func (m *Mode) Activate(now logic.Millis) {
	m.buttons.ClearEdges()
	m.phase = phaseMenu
	m.game = nil
	m.display.Render("SNAKE", ">> Play >>")
}

// Tick implements logic.Mode.
func (m *Mode) Tick(now logic.Millis) logic.SwitchRequest {
	switch m.phase {
	case phaseMenu:
		if m.buttons.WasPressed(logic.ChannelRight, now) {
			m.start(now)
			return logic.Stay
		}
		if m.buttons.WasPressed(logic.ChannelLeft, now) {
			return logic.Previous()
		}
	case phasePlaying:
		m.play(now)
	case phaseOver:
		if now.Since(m.overAt) >= m.hold {
			return logic.Select(0)
		}
	}
	return logic.Stay
}

func (m *Mode) start(now logic.Millis) {
	m.game = NewGame(m.width, m.height, m.rng)
	m.phase = phasePlaying
	m.started = now
	m.lastStep = now
	m.render()
}

func (m *Mode) play(now logic.Millis) {
	for _, c := range controls {
		if m.buttons.WasPressed(c.ch, now) {
			m.game.Steer(c.dir)
		}
	}

	if now.Since(m.lastStep) < m.game.stepInterval() {
		return
	}
	m.lastStep = now
	m.game.Step()

	if !m.game.Over() {
		m.render()
		return
	}

	m.phase = phaseOver
	m.overAt = now
	result := logic.GameResult{
		TimePlayed: now.Since(m.started).Duration(),
		Score:      m.game.Score(),
	}
	m.LastResult = &result

	status := fmt.Sprintf("Score: %d", result.Score)
	if out := m.publisher.PublishGameResult(result); !out.OK() {
		status += " (not sent)"
	}
	m.display.Render("GameOver", status)
}

func (m *Mode) render() {
	m.display.Render(fmt.Sprintf("%d", m.game.Score()), "Playing")
}
