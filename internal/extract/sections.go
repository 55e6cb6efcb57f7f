package extract

import "strings"

// State is a state of the dual-section machine.
type State uint8

// Machine states.
const (
	StateSeeking State = iota
	StateCollectingContent
	StateCollectingNotes
	StateDone
)

func (s State) String() string {
	switch s {
	case StateSeeking:
		return "SEEKING"
	case StateCollectingContent:
		return "COLLECTING_CONTENT"
	case StateCollectingNotes:
		return "COLLECTING_NOTES"
	case StateDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// signal is what a fragment means to the machine.
type signal uint8

const (
	sigText signal = iota
	sigContentMarker
	sigNotesMarker
	sigEnd
)

// action is the side effect of a transition.
type action uint8

const (
	actSkip action = iota
	actOpenContent
	actAppendContent
	actOpenNotes
	actAppendNotes
)

type transition struct {
	next State
	act  action
}

// watch lists the markers a state reacts to, in priority order. A fragment
// matching none of them is plain text.
var watch = map[State][]signal{
	StateSeeking:           {sigContentMarker},
	StateCollectingContent: {sigNotesMarker},
	StateCollectingNotes:   nil,
	StateDone:              nil,
}

// transitions is the complete transition table. Pairs not listed keep the
// state and skip the fragment.
var transitions = map[State]map[signal]transition{
	StateSeeking: {
		sigText:          {StateSeeking, actSkip},
		sigContentMarker: {StateCollectingContent, actOpenContent},
		sigEnd:           {StateSeeking, actSkip},
	},
	StateCollectingContent: {
		sigText:        {StateCollectingContent, actAppendContent},
		sigNotesMarker: {StateCollectingNotes, actOpenNotes},
		sigEnd:         {StateDone, actSkip},
	},
	StateCollectingNotes: {
		sigText: {StateCollectingNotes, actAppendNotes},
		sigEnd:  {StateDone, actSkip},
	},
	StateDone: {
		sigText: {StateDone, actSkip},
		sigEnd:  {StateDone, actSkip},
	},
}

// SectionResult is the outcome of the dual-section machine.
type SectionResult struct {
	Content *string
	Notes   *string
	// Final is the state after the last fragment was consumed.
	Final State
}

// Markers configures the literal boundary markers.
type Markers struct {
	Content string
	Notes   string
}

// DefaultMarkers are the archive's "Descripción:" and "NOTAS" markers.
var DefaultMarkers = Markers{Content: MarkerContent, Notes: MarkerNotes}

// Sections splits fragments into content and notes using DefaultMarkers.
func Sections(fragments []string) SectionResult {
	return DefaultMarkers.Sections(fragments)
}

// Sections runs the machine over fragments.
func (m Markers) Sections(fragments []string) SectionResult {
	mc := machine{markers: m, state: StateSeeking}
	for _, f := range fragments {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		mc.step(mc.classify(f), f)
	}
	mc.step(sigEnd, "")
	return SectionResult{
		Content: optional(strings.Join(mc.content, " ")),
		Notes:   optional(strings.Join(mc.notes, " ")),
		Final:   mc.state,
	}
}

type machine struct {
	markers Markers
	state   State
	content []string
	notes   []string
}

func (mc *machine) marker(sig signal) string {
	switch sig {
	case sigContentMarker:
		return mc.markers.Content
	case sigNotesMarker:
		return mc.markers.Notes
	default:
		return ""
	}
}

func (mc *machine) classify(fragment string) signal {
	for _, sig := range watch[mc.state] {
		if m := mc.marker(sig); m != "" && strings.Contains(fragment, m) {
			return sig
		}
	}
	return sigText
}

func (mc *machine) step(sig signal, fragment string) {
	t, ok := transitions[mc.state][sig]
	if !ok {
		return
	}
	switch t.act {
	case actOpenContent:
		if rest := afterLast(fragment, mc.markers.Content); rest != "" {
			mc.content = append(mc.content, rest)
		}
	case actAppendContent:
		mc.content = append(mc.content, fragment)
	case actOpenNotes:
		if rest := afterLast(fragment, mc.markers.Notes); rest != "" {
			mc.notes = append(mc.notes, rest)
		}
	case actAppendNotes:
		mc.notes = append(mc.notes, fragment)
	case actSkip:
	}
	mc.state = t.next
}
