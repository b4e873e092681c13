package logic

import "errors"

// scriptedReader returns levels set by the test. Not safe for concurrent use.
type scriptedReader struct {
	levels [NumChannels]Level
	err    error
}

func (r *scriptedReader) ReadLevel(ch Channel) (Level, error) {
	if r.err != nil {
		return High, r.err
	}
	return r.levels[ch], nil
}

// scriptedSensor returns samples in order, repeating the last one.
type scriptedSensor struct {
	samples []float64
	index   int
	tares   int
}

func (s *scriptedSensor) Sample() float64 {
	if len(s.samples) == 0 {
		return 0
	}
	v := s.samples[s.index]
	if s.index < len(s.samples)-1 {
		s.index++
	}
	return v
}

func (s *scriptedSensor) Tare() { s.tares++ }

type frame struct {
	primary string
	status  string
}

type recordingDisplay struct {
	frames []frame
}

func (d *recordingDisplay) Render(primary, status string) {
	d.frames = append(d.frames, frame{primary, status})
}

func (d *recordingDisplay) last() frame {
	if len(d.frames) == 0 {
		return frame{}
	}
	return d.frames[len(d.frames)-1]
}

var errLink = errors.New("link down")

type recordingPublisher struct {
	events  []ConsumptionEvent
	results []GameResult
	outcome Outcome
}

func (p *recordingPublisher) PublishConsumption(ev ConsumptionEvent) Outcome {
	p.events = append(p.events, ev)
	return p.outcome
}

func (p *recordingPublisher) PublishGameResult(r GameResult) Outcome {
	p.results = append(p.results, r)
	return p.outcome
}
