// Package playback drives the 24-hour time-travel index of the console.
//
// The index runs from 0 (24 hours ago) to MaxIndex (now). State holds the
// pure transitions; Scheduler advances the index on a clock while playing.
package playback

// MaxIndex is the playback index that represents the present.
const MaxIndex = 24

// State is the playback position. Index only increases while Playing and
// Playing is false whenever Index == MaxIndex after a tick.
type State struct {
	Index   int  `json:"index"`
	Playing bool `json:"playing"`
}

// Initial is the state at startup: idle at the present.
func Initial() State {
	return State{Index: MaxIndex}
}

// HoursAgo is how far the index is behind the present.
func (s State) HoursAgo() int {
	return MaxIndex - s.Index
}

// Play starts playback. At the present there is nothing to play forward
// to, so the state stays idle.
func (s State) Play() State {
	if s.Index >= MaxIndex {
		s.Playing = false
		return s
	}
	s.Playing = true
	return s
}

// Tick advances a playing state by one step, clamped at MaxIndex.
// Reaching MaxIndex ends the run. Idle states are unchanged.
func (s State) Tick() State {
	if !s.Playing {
		return s
	}
	s.Index = min(s.Index+1, MaxIndex)
	if s.Index == MaxIndex {
		s.Playing = false
	}
	return s
}

// Pause stops playback at the current index.
func (s State) Pause() State {
	s.Playing = false
	return s
}

// SetIndex scrubs to i, clamped to [0, MaxIndex]. Scrubbing always stops
// playback.
func (s State) SetIndex(i int) State {
	return State{Index: max(0, min(i, MaxIndex))}
}

// Reset returns to the present and stops playback.
func (s State) Reset() State {
	return Initial()
}

// Toggle pauses a playing state and plays an idle one.
func (s State) Toggle() State {
	if s.Playing {
		return s.Pause()
	}
	return s.Play()
}
