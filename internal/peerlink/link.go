package peerlink

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// CandidatePolicy decides what happens to remote candidates that arrive
// before the remote description is applied.
type CandidatePolicy int

const (
	// CandidateBuffer holds early candidates and replays them once the
	// remote description is set.
	CandidateBuffer CandidatePolicy = iota
	// CandidateDrop discards early candidates.
	CandidateDrop
)

func (p CandidatePolicy) String() string {
	if p == CandidateDrop {
		return "drop"
	}
	return "buffer"
}

func ParsePolicy(s string) (CandidatePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "buffer":
		return CandidateBuffer, nil
	case "drop":
		return CandidateDrop, nil
	}
	return CandidateBuffer, fmt.Errorf("peerlink: unknown candidate policy %q", s)
}

// DefaultMaxPending bounds each candidate queue of a link.
const DefaultMaxPending = 64

var (
	ErrClosed      = errors.New("peerlink: link closed")
	ErrNegotiating = errors.New("peerlink: negotiation under way")
)

// Disposition tells the caller what to do with an inbound candidate.
type Disposition int

const (
	Apply Disposition = iota
	Buffered
	Dropped
)

type Config struct {
	Policy     CandidatePolicy
	MaxPending int

	// OnTransition, if set, is called after every state change with the
	// link lock released.
	OnTransition func(l *Link, from, to State, ev Event)
}

// Link is one endpoint's view of a presenter/viewer negotiation.
type Link struct {
	mu        sync.Mutex
	side      Side
	peerID    string
	state     State
	remoteSet bool
	inbound   []json.RawMessage
	outbound  []json.RawMessage
	config    Config
}

func New(side Side, peerID string, config Config) *Link {
	if config.MaxPending <= 0 {
		config.MaxPending = DefaultMaxPending
	}
	return &Link{
		side:   side,
		peerID: peerID,
		state:  Uninitiated,
		config: config,
	}
}

func (l *Link) Side() Side {
	return l.side
}

// PeerID is the id of the participant on the other end: a viewer id on the
// presenter side, the presenter's id on the viewer side.
func (l *Link) PeerID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.peerID
}

// Rekey points the link at a different peer. It is only allowed before any
// description has been exchanged; buffered candidates are kept.
func (l *Link) Rekey(peerID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != Uninitiated && l.state != AwaitingOffer {
		return fmt.Errorf("%w: rekey in %s", ErrNegotiating, l.state)
	}
	l.peerID = peerID
	return nil
}

func (l *Link) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Fire applies ev and returns the new state.
func (l *Link) Fire(ev Event) (State, error) {
	l.mu.Lock()
	from := l.state
	to, err := Next(l.side, from, ev)
	if err != nil {
		l.mu.Unlock()
		return from, err
	}
	l.state = to
	if to == Closed {
		l.inbound = nil
		l.outbound = nil
	}
	l.mu.Unlock()

	if from != to && l.config.OnTransition != nil {
		l.config.OnTransition(l, from, to, ev)
	}
	return to, nil
}

// Close is Fire(Teardown) without the return values.
func (l *Link) Close() {
	l.Fire(Teardown)
}

// Outbound reports whether a locally gathered candidate can be sent right
// away. If not, it is queued for DrainOutbound, unless the link is closed.
func (l *Link) Outbound(candidate json.RawMessage) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == Closed {
		return false
	}
	if CanSendCandidates(l.side, l.state) {
		return true
	}
	if len(l.outbound) < l.config.MaxPending {
		l.outbound = append(l.outbound, candidate)
	}
	return false
}

// DrainOutbound returns queued local candidates once they may be sent.
func (l *Link) DrainOutbound() []json.RawMessage {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !CanSendCandidates(l.side, l.state) {
		return nil
	}
	out := l.outbound
	l.outbound = nil
	return out
}

// Inbound classifies a candidate received from the peer.
func (l *Link) Inbound(candidate json.RawMessage) (Disposition, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == Closed {
		return Dropped, ErrClosed
	}
	if l.remoteSet {
		return Apply, nil
	}
	if l.config.Policy == CandidateDrop || len(l.inbound) >= l.config.MaxPending {
		return Dropped, nil
	}
	l.inbound = append(l.inbound, candidate)
	return Buffered, nil
}

// RemoteDescriptionSet records that the peer's description has been applied
// and returns any buffered candidates in arrival order.
func (l *Link) RemoteDescriptionSet() []json.RawMessage {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == Closed {
		return nil
	}
	l.remoteSet = true
	pending := l.inbound
	l.inbound = nil
	return pending
}

func (l *Link) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fmt.Sprintf("%s link %s (%s)", l.side, l.peerID, l.state)
}
