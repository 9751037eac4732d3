package realtime

import "time"

// slidingWindow enforces spec.md §4.10's inbound control-frame limit: at
// most maxFrames in any window-length interval. Strikes accumulate across
// violations; the caller closes the connection once strikes reach
// maxStrikes.
type slidingWindow struct {
	window     time.Duration
	maxFrames  int
	maxStrikes int
	events     []time.Time
	strikes    int
}

func newSlidingWindow(window time.Duration, maxFrames, maxStrikes int) *slidingWindow {
	return &slidingWindow{window: window, maxFrames: maxFrames, maxStrikes: maxStrikes}
}

// allow records an inbound frame at now and reports whether it is within
// limits. When it is not, it also reports whether the connection has now
// accumulated enough strikes to be closed.
func (w *slidingWindow) allow(now time.Time) (ok bool, mustClose bool) {
	cutoff := now.Add(-w.window)

	kept := w.events[:0]
	for _, t := range w.events {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	w.events = kept

	w.events = append(w.events, now)

	if len(w.events) <= w.maxFrames {
		return true, false
	}

	w.strikes++

	return false, w.strikes >= w.maxStrikes
}
