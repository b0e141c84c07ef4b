// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import "fmt"

// State is a Controller state.
type State int

const (
	// Active: the page is visible and the subscription is held.
	Active State = iota

	// HiddenPending: the page is hidden, the subscription is still
	// held and the release timer is armed.
	HiddenPending

	// Hidden: the page is hidden and the subscription is released.
	Hidden
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case HiddenPending:
		return "hidden-pending"
	case Hidden:
		return "hidden"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Event is an input to the state machine.
type Event int

const (
	EventHidden Event = iota
	EventVisible
	EventTimerFired
)

func (e Event) String() string {
	switch e {
	case EventHidden:
		return "hidden"
	case EventVisible:
		return "visible"
	case EventTimerFired:
		return "timer-fired"
	}
	return fmt.Sprintf("Event(%d)", int(e))
}

// effect is the side effect of a transition.
type effect int

const (
	effectNone effect = iota
	effectArmTimer
	effectCancelTimer
	effectRelease
	effectEnsure
)

type transition struct {
	next   State
	effect effect
}

var transitions = map[State]map[Event]transition{
	Active: {
		EventHidden:     {HiddenPending, effectArmTimer},
		EventVisible:    {Active, effectNone},
		EventTimerFired: {Active, effectNone},
	},
	HiddenPending: {
		EventHidden:     {HiddenPending, effectArmTimer},
		EventVisible:    {Active, effectCancelTimer},
		EventTimerFired: {Hidden, effectRelease},
	},
	Hidden: {
		EventHidden:     {Hidden, effectNone},
		EventVisible:    {Active, effectEnsure},
		EventTimerFired: {Hidden, effectNone},
	},
}

// next looks up the transition for (state, event). The table is total.
func next(state State, event Event) transition {
	return transitions[state][event]
}
