package scene

import (
	"math"

	"github.com/brassline/core/clock"
)

// FrameIndexResult is what CalculateFrameIndex returns for one tick:
// the frame that should be active right now, the loop iteration and
// within-frame repetition it falls in, the exact instant the frame
// boundary was crossed, and how long until the next one.
type FrameIndexResult struct {
	FrameIndex     uint32
	Iteration      int64
	Repetition     int
	ScheduledDate  clock.SyncTime
	NextFrameDelay clock.SyncTime
}

// CalculateFrameIndex is the pure function spec.md §4.6 names: given a
// Line and the current instant, it determines which frame is active,
// what loop iteration and within-frame repetition that is, and when
// the next boundary falls. It performs no mutation — callers decide
// whether the result differs from the Line's stored position and, if
// so, commit it via Line.SetPosition.
func CalculateFrameIndex(l *Line, c *clock.Clock, now clock.SyncTime) FrameIndexResult {
	l.mu.RLock()
	frames := l.Frames
	speed := l.Speed
	loopBeats := l.loopBeatsLocked()
	l.mu.RUnlock()

	if len(frames) == 0 || loopBeats <= 0 {
		return FrameIndexResult{FrameIndex: NoFrame, NextFrameDelay: math.MaxInt64}
	}

	beatNow := c.BeatAtDate(now) * speed
	iteration := int64(math.Floor(beatNow / loopBeats))
	offset := beatNow - float64(iteration)*loopBeats

	var frameStart float64
	for idx, f := range frames {
		frameEnd := frameStart + f.LengthBeats
		if offset < frameEnd || idx == len(frames)-1 {
			repLen := f.LengthBeats / float64(max(1, f.Repetitions))
			repetition := 0
			if repLen > 0 {
				repetition = int(math.Floor((offset - frameStart) / repLen))
				if repetition >= f.Repetitions {
					repetition = f.Repetitions - 1
				}
				if repetition < 0 {
					repetition = 0
				}
			}

			// the beat at which this frame (in this iteration) started
			frameStartBeat := float64(iteration)*loopBeats + frameStart
			scheduledDate := c.DateAtBeat(frameStartBeat / speedOrOne(speed))
			nextBoundaryBeat := frameStartBeat + f.LengthBeats
			nextDate := c.DateAtBeat(nextBoundaryBeat / speedOrOne(speed))

			var delay clock.SyncTime
			if nextDate > now {
				delay = nextDate - now
			}

			return FrameIndexResult{
				FrameIndex:     uint32(idx),
				Iteration:      iteration,
				Repetition:     repetition,
				ScheduledDate:  scheduledDate,
				NextFrameDelay: delay,
			}
		}
		frameStart = frameEnd
	}

	return FrameIndexResult{FrameIndex: NoFrame, NextFrameDelay: math.MaxInt64}
}

func speedOrOne(speed float64) float64 {
	if speed <= 0 {
		return 1
	}
	return speed
}
