package endpoint

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/mossy-p/classroom-signaling/internal/models"
	"github.com/mossy-p/classroom-signaling/internal/peerlink"
	"github.com/pion/webrtc/v4"
)

type viewerLink struct {
	name string
	link *peerlink.Link
	pc   PeerConnection
	chat DataChannel
}

// Presenter offers a peer connection to every viewer in the session.
type Presenter struct {
	base

	mu    sync.Mutex
	id    string
	links map[string]*viewerLink
}

func NewPresenter(sig Signaler, cfg Config) (*Presenter, error) {
	b, err := newBase(sig, cfg, "presenter")
	if err != nil {
		return nil, err
	}
	return &Presenter{base: b, links: make(map[string]*viewerLink)}, nil
}

// Run joins as presenter and negotiates until ctx ends or the broker goes
// away. Every link is torn down on return.
func (p *Presenter) Run(ctx context.Context) error {
	defer p.closeAll()
	join := &models.Envelope{Type: models.TypeJoin, Role: models.RolePresenter, Name: p.cfg.Name}
	return p.run(ctx, join, p.handle)
}

// ID is the id the broker assigned, empty before joined.
func (p *Presenter) ID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.id
}

// LinkState reports the state of the link to viewerID.
func (p *Presenter) LinkState(viewerID string) (peerlink.State, bool) {
	p.mu.Lock()
	vl, ok := p.links[viewerID]
	p.mu.Unlock()
	if !ok {
		return peerlink.Closed, false
	}
	return vl.link.State(), true
}

func (p *Presenter) handle(msg *models.Envelope) error {
	switch msg.Type {
	case models.TypeJoined:
		p.mu.Lock()
		p.id = msg.ID
		p.mu.Unlock()
		p.log.Infof("joined as presenter %s", msg.ID)

	case models.TypeStudentJoined:
		p.openLink(msg.StudentID, msg.Name)

	case models.TypeAttendantsList:
		p.roster(msg.List)
		if p.displaced(msg.List) {
			p.log.Warnf("another presenter took over the session")
			return ErrDisplaced
		}
		p.syncRoster(msg.List)

	case models.TypeAnswer:
		p.handleAnswer(msg)

	case models.TypeICECandidate:
		p.handleCandidate(msg)

	case models.TypeStudentLeft:
		p.log.Infof("viewer %s left", msg.StudentID)
		p.closeLink(msg.StudentID)

	default:
		p.log.Debugf("ignoring %s", msg.Type)
	}
	return nil
}

// displaced reports whether the roster names someone else as presenter.
func (p *Presenter) displaced(list []models.RosterEntry) bool {
	id := p.ID()
	if id == "" {
		return false
	}
	for _, entry := range list {
		if entry.Role == models.RolePresenter {
			return entry.ID != id
		}
	}
	return true
}

// syncRoster opens links to listed viewers we have not offered to yet and
// drops links to viewers no longer listed.
func (p *Presenter) syncRoster(list []models.RosterEntry) {
	listed := make(map[string]bool, len(list))
	for _, entry := range list {
		if entry.Role != models.RoleViewer {
			continue
		}
		listed[entry.ID] = true
		p.openLink(entry.ID, entry.Name)
	}

	p.mu.Lock()
	var gone []string
	for id := range p.links {
		if !listed[id] {
			gone = append(gone, id)
		}
	}
	p.mu.Unlock()

	for _, id := range gone {
		p.closeLink(id)
	}
}

func (p *Presenter) openLink(viewerID, name string) {
	if viewerID == "" {
		return
	}

	p.mu.Lock()
	if _, ok := p.links[viewerID]; ok {
		p.mu.Unlock()
		return
	}
	link := peerlink.New(peerlink.PresenterSide, viewerID, p.linkConfig())
	vl := &viewerLink{name: name, link: link}
	p.links[viewerID] = vl
	p.mu.Unlock()

	if _, err := link.Fire(peerlink.ViewerJoined); err != nil {
		p.log.Errorf("viewer %s: %v", viewerID, err)
		return
	}

	pc, err := p.cfg.NewPeerConnection()
	if err != nil {
		p.log.Errorf("viewer %s: %v", viewerID, err)
		p.closeLink(viewerID)
		return
	}
	p.mu.Lock()
	vl.pc = pc
	p.mu.Unlock()

	pc.OnICECandidate(func(c webrtc.ICECandidateInit) {
		raw, err := json.Marshal(c)
		if err != nil {
			return
		}
		if link.Outbound(raw) {
			p.sendCandidate(viewerID, raw)
		}
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		p.log.Debugf("viewer %s connection %s", viewerID, state)
		if state == webrtc.PeerConnectionStateFailed {
			p.log.Warnf("connection to viewer %s failed", viewerID)
			p.closeLink(viewerID)
		}
	})

	chat, err := pc.CreateDataChannel(ChatLabel)
	if err != nil {
		p.log.Errorf("viewer %s: %v", viewerID, err)
		p.closeLink(viewerID)
		return
	}
	chat.OnMessage(p.chatHandler(viewerID))
	p.mu.Lock()
	vl.chat = chat
	p.mu.Unlock()

	offer, err := pc.CreateOffer()
	if err == nil {
		err = pc.SetLocalDescription(offer)
	}
	var sdp json.RawMessage
	if err == nil {
		sdp, err = json.Marshal(offer)
	}
	if err != nil {
		p.log.Errorf("offer for viewer %s: %v", viewerID, err)
		p.closeLink(viewerID)
		return
	}

	p.send(&models.Envelope{Type: models.TypeOffer, StudentID: viewerID, SDP: sdp})
	if _, err := link.Fire(peerlink.OfferCreated); err != nil {
		// torn down while the offer was being built
		p.log.Debugf("viewer %s: %v", viewerID, err)
		return
	}
	for _, raw := range link.DrainOutbound() {
		p.sendCandidate(viewerID, raw)
	}
	p.log.Infof("sent offer to %s (%s)", name, viewerID)
}

func (p *Presenter) sendCandidate(viewerID string, raw json.RawMessage) {
	p.send(&models.Envelope{
		Type:      models.TypeICECandidate,
		Target:    models.RoleViewer,
		StudentID: viewerID,
		Candidate: raw,
	})
}

func (p *Presenter) lookup(viewerID string) *viewerLink {
	p.mu.Lock()
	defer p.mu.Unlock()
	vl := p.links[viewerID]
	if vl == nil || vl.pc == nil {
		return nil
	}
	return vl
}

func (p *Presenter) handleAnswer(msg *models.Envelope) {
	vl := p.lookup(msg.StudentID)
	if vl == nil {
		p.log.Warnf("answer from unknown viewer %s", msg.StudentID)
		return
	}

	desc, err := decodeDescription(msg.SDP)
	if err != nil {
		p.log.Warnf("answer from %s: %v", msg.StudentID, err)
		return
	}
	if _, err := vl.link.Fire(peerlink.AnswerReceived); err != nil {
		p.log.Warnf("answer from %s: %v", msg.StudentID, err)
		return
	}
	if err := vl.pc.SetRemoteDescription(desc); err != nil {
		p.log.Errorf("answer from %s: %v", msg.StudentID, err)
		p.closeLink(msg.StudentID)
		return
	}
	for _, raw := range vl.link.RemoteDescriptionSet() {
		p.applyCandidate(vl.pc, raw)
	}
}

func (p *Presenter) handleCandidate(msg *models.Envelope) {
	vl := p.lookup(msg.StudentID)
	if vl == nil {
		p.log.Warnf("candidate from unknown viewer %s", msg.StudentID)
		return
	}

	disposition, err := vl.link.Inbound(msg.Candidate)
	switch {
	case err != nil:
		p.log.Debugf("candidate from %s: %v", msg.StudentID, err)
	case disposition == peerlink.Apply:
		p.applyCandidate(vl.pc, msg.Candidate)
	case disposition == peerlink.Buffered:
		p.log.Debugf("buffering early candidate from %s", msg.StudentID)
	default:
		p.log.Warnf("dropping early candidate from %s", msg.StudentID)
	}
}

func (p *Presenter) closeLink(viewerID string) {
	p.mu.Lock()
	vl, ok := p.links[viewerID]
	delete(p.links, viewerID)
	p.mu.Unlock()
	if !ok {
		return
	}

	vl.link.Close()
	if vl.pc != nil {
		if err := vl.pc.Close(); err != nil {
			p.log.Debugf("closing connection to %s: %v", viewerID, err)
		}
	}
}

func (p *Presenter) closeAll() {
	p.mu.Lock()
	ids := make([]string, 0, len(p.links))
	for id := range p.links {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	for _, id := range ids {
		p.closeLink(id)
	}
}

// SendChat sends text to every viewer whose link is active.
func (p *Presenter) SendChat(text string) error {
	data, err := EncodeChat(ChatMessage{From: p.cfg.Name, Text: text, SentAt: time.Now()})
	if err != nil {
		return err
	}

	p.mu.Lock()
	var channels []DataChannel
	for _, vl := range p.links {
		if vl.chat != nil && vl.link.State() == peerlink.Active {
			channels = append(channels, vl.chat)
		}
	}
	p.mu.Unlock()

	if len(channels) == 0 {
		return ErrNoChatChannel
	}
	var errs []error
	for _, dc := range channels {
		if err := dc.Send(data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
