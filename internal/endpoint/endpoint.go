// Package endpoint implements the two participant roles of a session on top
// of real peer connections. A Presenter keeps one link per viewer; a Viewer
// keeps a single link to whoever is presenting.
package endpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mossy-p/classroom-signaling/internal/models"
	"github.com/mossy-p/classroom-signaling/internal/peerlink"
	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"
)

var (
	ErrNoPeerFactory = errors.New("endpoint: no peer connection factory")
	// ErrDisplaced ends a presenter whose seat was taken by a later join.
	ErrDisplaced = errors.New("endpoint: displaced by another presenter")
)

type Config struct {
	Name            string
	CandidatePolicy peerlink.CandidatePolicy
	// NewPeerConnection is required; see NewPionFactory.
	NewPeerConnection PeerConnectionFactory
	LoggerFactory     logging.LoggerFactory

	OnRoster    func(list []models.RosterEntry)
	OnLinkState func(peerID string, state peerlink.State)
	OnChat      func(peerID string, msg ChatMessage)
}

type base struct {
	cfg Config
	sig Signaler
	log logging.LeveledLogger
}

func newBase(sig Signaler, cfg Config, scope string) (base, error) {
	if cfg.NewPeerConnection == nil {
		return base{}, ErrNoPeerFactory
	}
	if cfg.LoggerFactory == nil {
		cfg.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	return base{cfg: cfg, sig: sig, log: cfg.LoggerFactory.NewLogger(scope)}, nil
}

func (b *base) linkConfig() peerlink.Config {
	return peerlink.Config{
		Policy:       b.cfg.CandidatePolicy,
		OnTransition: b.transition,
	}
}

func (b *base) transition(l *peerlink.Link, from, to peerlink.State, ev peerlink.Event) {
	b.log.Debugf("%s link %s: %s -> %s on %s", l.Side(), l.PeerID(), from, to, ev)
	if b.cfg.OnLinkState != nil {
		b.cfg.OnLinkState(l.PeerID(), to)
	}
}

func (b *base) send(msg *models.Envelope) {
	if err := b.sig.Send(msg); err != nil {
		b.log.Warnf("failed to send %s: %v", msg.Type, err)
	}
}

// run sends join and feeds every incoming envelope to handle until the
// signaling connection drops, ctx ends or handle returns an error.
func (b *base) run(ctx context.Context, join *models.Envelope, handle func(*models.Envelope) error) error {
	if err := b.sig.Send(join); err != nil {
		return fmt.Errorf("join as %s: %w", join.Role, err)
	}

	incoming := b.sig.Incoming()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-incoming:
			if !ok {
				return ErrSignalingClosed
			}
			if err := handle(msg); err != nil {
				return err
			}
		}
	}
}

func (b *base) roster(list []models.RosterEntry) {
	if b.cfg.OnRoster != nil {
		b.cfg.OnRoster(list)
	}
}

// applyCandidate hands a remote candidate to pc. Both the object form and a
// bare candidate string are accepted.
func (b *base) applyCandidate(pc PeerConnection, raw json.RawMessage) {
	candidate, err := decodeCandidate(raw)
	if err != nil {
		b.log.Warnf("dropping unreadable candidate: %v", err)
		return
	}
	if err := pc.AddICECandidate(candidate); err != nil {
		b.log.Warnf("failed to add candidate: %v", err)
	}
}

func (b *base) chatHandler(peerID string) func([]byte) {
	return func(data []byte) {
		msg, err := DecodeChat(data)
		if err != nil {
			b.log.Warnf("dropping chat from %s: %v", peerID, err)
			return
		}
		if b.cfg.OnChat != nil {
			b.cfg.OnChat(peerID, msg)
		}
	}
}

func decodeCandidate(raw json.RawMessage) (webrtc.ICECandidateInit, error) {
	var candidate webrtc.ICECandidateInit
	if err := json.Unmarshal(raw, &candidate); err == nil {
		return candidate, nil
	}
	var line string
	if err := json.Unmarshal(raw, &line); err != nil {
		return webrtc.ICECandidateInit{}, fmt.Errorf("decode candidate: %w", err)
	}
	return webrtc.ICECandidateInit{Candidate: line}, nil
}

func decodeDescription(raw json.RawMessage) (webrtc.SessionDescription, error) {
	var desc webrtc.SessionDescription
	if len(raw) == 0 {
		return desc, errors.New("decode description: empty sdp")
	}
	if err := json.Unmarshal(raw, &desc); err != nil {
		return desc, fmt.Errorf("decode description: %w", err)
	}
	return desc, nil
}
