// Package peerlink describes the negotiation state of one presenter/viewer
// pair. Both endpoints track the same link independently, each through its
// own transition table; the broker never sees these states.
package peerlink

import (
	"errors"
	"fmt"
)

type State int

const (
	Uninitiated State = iota
	OfferCreating
	OfferSent
	AwaitingOffer
	AnsweringOffer
	Active
	Closed
)

func (s State) String() string {
	switch s {
	case Uninitiated:
		return "uninitiated"
	case OfferCreating:
		return "offer-creating"
	case OfferSent:
		return "offer-sent"
	case AwaitingOffer:
		return "awaiting-offer"
	case AnsweringOffer:
		return "answering-offer"
	case Active:
		return "active"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type Event int

const (
	// Presenter side.
	ViewerJoined Event = iota
	OfferCreated
	AnswerReceived

	// Viewer side.
	JoinReplied
	OfferReceived
	AnswerSent

	// Both sides: transport closed, peer left or explicit teardown.
	Teardown
)

func (e Event) String() string {
	switch e {
	case ViewerJoined:
		return "viewer-joined"
	case OfferCreated:
		return "offer-created"
	case AnswerReceived:
		return "answer-received"
	case JoinReplied:
		return "join-replied"
	case OfferReceived:
		return "offer-received"
	case AnswerSent:
		return "answer-sent"
	case Teardown:
		return "teardown"
	}
	return fmt.Sprintf("event(%d)", int(e))
}

// Side selects which endpoint's view of the link a table describes.
type Side int

const (
	PresenterSide Side = iota
	ViewerSide
)

func (s Side) String() string {
	if s == PresenterSide {
		return "presenter"
	}
	return "viewer"
}

var ErrInvalidTransition = errors.New("peerlink: invalid transition")

type table map[State]map[Event]State

var transitions = map[Side]table{
	PresenterSide: {
		Uninitiated:   {ViewerJoined: OfferCreating},
		OfferCreating: {OfferCreated: OfferSent},
		OfferSent:     {AnswerReceived: Active},
	},
	ViewerSide: {
		Uninitiated:    {JoinReplied: AwaitingOffer},
		AwaitingOffer:  {OfferReceived: AnsweringOffer},
		AnsweringOffer: {AnswerSent: Active},
	},
}

// Next returns the state reached from `from` on ev. Teardown moves any state
// to Closed; Closed is terminal and absorbs further teardowns.
func Next(side Side, from State, ev Event) (State, error) {
	if ev == Teardown {
		return Closed, nil
	}
	if to, ok := transitions[side][from][ev]; ok {
		return to, nil
	}
	return from, fmt.Errorf("%w: %s link cannot handle %s in %s", ErrInvalidTransition, side, ev, from)
}

// CanSendCandidates reports whether local candidates may go on the wire.
// The presenter may trickle as soon as its offer is out; the viewer waits
// until its answer has been sent so the presenter can apply them in order.
func CanSendCandidates(side Side, s State) bool {
	if side == PresenterSide {
		return s == OfferSent || s == Active
	}
	return s == Active
}
