package endpoint

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/mossy-p/classroom-signaling/internal/models"
	"github.com/mossy-p/classroom-signaling/internal/peerlink"
	"github.com/pion/webrtc/v4"
)

// Viewer answers the presenter's offer and keeps a single link to it.
type Viewer struct {
	base

	mu          sync.Mutex
	id          string
	presenterID string
	link        *peerlink.Link
	pc          PeerConnection
	chat        DataChannel
}

func NewViewer(sig Signaler, cfg Config) (*Viewer, error) {
	b, err := newBase(sig, cfg, "viewer")
	if err != nil {
		return nil, err
	}
	return &Viewer{base: b}, nil
}

// Run joins as viewer and follows whoever presents until ctx ends or the
// broker goes away.
func (v *Viewer) Run(ctx context.Context) error {
	defer v.teardown()
	join := &models.Envelope{Type: models.TypeJoin, Role: models.RoleViewer, Name: v.cfg.Name}
	return v.run(ctx, join, v.handle)
}

func (v *Viewer) ID() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.id
}

// State is the state of the current link; Uninitiated before joined.
func (v *Viewer) State() peerlink.State {
	v.mu.Lock()
	link := v.link
	v.mu.Unlock()
	if link == nil {
		return peerlink.Uninitiated
	}
	return link.State()
}

func (v *Viewer) handle(msg *models.Envelope) error {
	switch msg.Type {
	case models.TypeJoined:
		v.mu.Lock()
		v.id = msg.ID
		v.mu.Unlock()
		v.log.Infof("joined as viewer %s", msg.ID)
		v.reset()

	case models.TypeAttendantsList:
		v.roster(msg.List)
		v.followPresenter(msg.List)

	case models.TypeOffer:
		v.handleOffer(msg)

	case models.TypeICECandidate:
		v.handleCandidate(msg)

	default:
		v.log.Debugf("ignoring %s", msg.Type)
	}
	return nil
}

// followPresenter starts over when the presenter leaves or is replaced.
func (v *Viewer) followPresenter(list []models.RosterEntry) {
	var current string
	for _, entry := range list {
		if entry.Role == models.RolePresenter {
			current = entry.ID
			break
		}
	}

	v.mu.Lock()
	previous := v.presenterID
	v.presenterID = current
	joined := v.id != ""
	v.mu.Unlock()

	if previous == current || !joined {
		return
	}
	switch {
	case current == "":
		v.log.Infof("presenter %s left", previous)
	case previous == "":
		v.log.Infof("presenter %s is here", current)
	default:
		v.log.Infof("presenter changed from %s to %s", previous, current)
	}

	// nothing negotiated yet, so the waiting link only needs the new key
	v.mu.Lock()
	link := v.link
	v.mu.Unlock()
	if link != nil && link.Rekey(presenterKey(current)) == nil {
		return
	}
	v.reset()
}

// presenterKey names the link's peer; the role stands in until the roster
// says who is presenting.
func presenterKey(id string) string {
	if id == "" {
		return string(models.RolePresenter)
	}
	return id
}

// reset tears down the current link and opens a fresh one awaiting an offer.
func (v *Viewer) reset() {
	v.mu.Lock()
	peerID := presenterKey(v.presenterID)
	v.mu.Unlock()

	v.teardown()

	link := peerlink.New(peerlink.ViewerSide, peerID, v.linkConfig())
	v.mu.Lock()
	v.link = link
	v.mu.Unlock()

	if _, err := link.Fire(peerlink.JoinReplied); err != nil {
		v.log.Errorf("%v", err)
	}
}

func (v *Viewer) teardown() {
	v.mu.Lock()
	link, pc := v.link, v.pc
	v.link, v.pc, v.chat = nil, nil, nil
	v.mu.Unlock()

	if link != nil {
		link.Close()
	}
	if pc != nil {
		if err := pc.Close(); err != nil {
			v.log.Debugf("closing connection: %v", err)
		}
	}
}

func (v *Viewer) handleOffer(msg *models.Envelope) {
	if v.ID() == "" {
		v.log.Warnf("offer before joined, dropping")
		return
	}

	desc, err := decodeDescription(msg.SDP)
	if err != nil {
		v.log.Warnf("offer: %v", err)
		return
	}

	// a second offer means the presenter restarted negotiation
	if v.State() != peerlink.AwaitingOffer {
		v.reset()
	}

	v.mu.Lock()
	link := v.link
	v.mu.Unlock()
	if _, err := link.Fire(peerlink.OfferReceived); err != nil {
		v.log.Warnf("offer: %v", err)
		return
	}

	pc, err := v.cfg.NewPeerConnection()
	if err != nil {
		v.log.Errorf("offer: %v", err)
		link.Close()
		return
	}
	v.mu.Lock()
	v.pc = pc
	v.mu.Unlock()

	pc.OnICECandidate(func(c webrtc.ICECandidateInit) {
		raw, err := json.Marshal(c)
		if err != nil {
			return
		}
		if link.Outbound(raw) {
			v.sendCandidate(raw)
		}
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		v.log.Debugf("presenter connection %s", state)
		if state != webrtc.PeerConnectionStateFailed {
			return
		}
		v.mu.Lock()
		current := v.link == link
		v.mu.Unlock()
		if current {
			v.log.Warnf("connection to presenter failed, waiting for a new offer")
			v.reset()
		}
	})
	pc.OnDataChannel(func(dc DataChannel) {
		if dc.Label() != ChatLabel {
			return
		}
		v.mu.Lock()
		from := v.presenterID
		if v.link == link {
			v.chat = dc
		}
		v.mu.Unlock()
		dc.OnMessage(v.chatHandler(from))
	})

	if err := pc.SetRemoteDescription(desc); err != nil {
		v.log.Errorf("offer: %v", err)
		v.teardown()
		return
	}
	for _, raw := range link.RemoteDescriptionSet() {
		v.applyCandidate(pc, raw)
	}

	answer, err := pc.CreateAnswer()
	if err == nil {
		err = pc.SetLocalDescription(answer)
	}
	var sdp json.RawMessage
	if err == nil {
		sdp, err = json.Marshal(answer)
	}
	if err != nil {
		v.log.Errorf("answer: %v", err)
		v.teardown()
		return
	}

	v.send(&models.Envelope{Type: models.TypeAnswer, SDP: sdp})
	if _, err := link.Fire(peerlink.AnswerSent); err != nil {
		v.log.Debugf("answer: %v", err)
		return
	}
	for _, raw := range link.DrainOutbound() {
		v.sendCandidate(raw)
	}
	v.log.Infof("answered offer from %s", link.PeerID())
}

func (v *Viewer) sendCandidate(raw json.RawMessage) {
	v.send(&models.Envelope{
		Type:      models.TypeICECandidate,
		Target:    models.RolePresenter,
		Candidate: raw,
	})
}

func (v *Viewer) handleCandidate(msg *models.Envelope) {
	v.mu.Lock()
	link, pc := v.link, v.pc
	v.mu.Unlock()
	if link == nil {
		v.log.Warnf("candidate before joined, dropping")
		return
	}

	disposition, err := link.Inbound(msg.Candidate)
	switch {
	case err != nil:
		v.log.Debugf("candidate: %v", err)
	case disposition == peerlink.Apply && pc != nil:
		v.applyCandidate(pc, msg.Candidate)
	case disposition == peerlink.Buffered:
		v.log.Debugf("buffering early candidate")
	default:
		v.log.Warnf("dropping early candidate")
	}
}

// SendChat sends text to the presenter over the chat channel.
func (v *Viewer) SendChat(text string) error {
	v.mu.Lock()
	dc := v.chat
	v.mu.Unlock()
	if dc == nil {
		return ErrNoChatChannel
	}

	data, err := EncodeChat(ChatMessage{From: v.cfg.Name, Text: text, SentAt: time.Now()})
	if err != nil {
		return err
	}
	return dc.Send(data)
}
