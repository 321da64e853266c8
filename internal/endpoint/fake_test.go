package endpoint

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/mossy-p/classroom-signaling/internal/logging"
	"github.com/mossy-p/classroom-signaling/internal/models"
	pionlogging "github.com/pion/logging"
	"github.com/pion/webrtc/v4"
)

func quietLogger() pionlogging.LoggerFactory {
	return logging.PionFactory(io.Discard, "error")
}

type fakeSignaler struct {
	in        chan *models.Envelope
	out       chan *models.Envelope
	closeOnce sync.Once
}

func newFakeSignaler() *fakeSignaler {
	return &fakeSignaler{
		in:  make(chan *models.Envelope, 64),
		out: make(chan *models.Envelope, 64),
	}
}

func (s *fakeSignaler) Send(msg *models.Envelope) error {
	select {
	case s.out <- msg:
		return nil
	default:
		return errors.New("fake signaler full")
	}
}

func (s *fakeSignaler) Incoming() <-chan *models.Envelope { return s.in }

func (s *fakeSignaler) Close() error {
	s.closeOnce.Do(func() { close(s.in) })
	return nil
}

func (s *fakeSignaler) deliver(msg *models.Envelope) { s.in <- msg }

// next returns the next envelope the endpoint sent.
func (s *fakeSignaler) next(t *testing.T) *models.Envelope {
	t.Helper()
	select {
	case msg := <-s.out:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an outgoing message")
		return nil
	}
}

func (s *fakeSignaler) none(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case msg := <-s.out:
		t.Fatalf("unexpected outgoing %s: %+v", msg.Type, msg)
	case <-time.After(d):
	}
}

type fakeChannel struct {
	label string

	mu        sync.Mutex
	sent      [][]byte
	onMessage func([]byte)
}

func (c *fakeChannel) Label() string { return c.label }

func (c *fakeChannel) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, data)
	return nil
}

func (c *fakeChannel) OnOpen(func()) {}

func (c *fakeChannel) OnMessage(f func([]byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMessage = f
}

func (c *fakeChannel) receive(data []byte) {
	c.mu.Lock()
	f := c.onMessage
	c.mu.Unlock()
	if f != nil {
		f(data)
	}
}

func (c *fakeChannel) messages() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.sent...)
}

var errNoRemote = errors.New("remote description not set")

// fakePeer behaves like a peer connection that never touches the network.
// Setting the local description "gathers" the configured candidates.
type fakePeer struct {
	gather []string

	mu          sync.Mutex
	local       *webrtc.SessionDescription
	remote      *webrtc.SessionDescription
	candidates  []string
	channels    []*fakeChannel
	onCandidate func(webrtc.ICECandidateInit)
	onState     func(webrtc.PeerConnectionState)
	onChannel   func(DataChannel)
	closed      bool
}

func (p *fakePeer) CreateOffer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "fake-offer"}, nil
}

func (p *fakePeer) CreateAnswer() (webrtc.SessionDescription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remote == nil {
		return webrtc.SessionDescription{}, errNoRemote
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "fake-answer"}, nil
}

func (p *fakePeer) SetLocalDescription(desc webrtc.SessionDescription) error {
	p.mu.Lock()
	p.local = &desc
	f := p.onCandidate
	p.mu.Unlock()
	if f != nil {
		for _, c := range p.gather {
			f(webrtc.ICECandidateInit{Candidate: c})
		}
	}
	return nil
}

func (p *fakePeer) SetRemoteDescription(desc webrtc.SessionDescription) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.remote = &desc
	return nil
}

func (p *fakePeer) AddICECandidate(c webrtc.ICECandidateInit) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remote == nil {
		return errNoRemote
	}
	p.candidates = append(p.candidates, c.Candidate)
	return nil
}

func (p *fakePeer) OnICECandidate(f func(webrtc.ICECandidateInit)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onCandidate = f
}

func (p *fakePeer) OnConnectionStateChange(f func(webrtc.PeerConnectionState)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onState = f
}

func (p *fakePeer) CreateDataChannel(label string) (DataChannel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	dc := &fakeChannel{label: label}
	p.channels = append(p.channels, dc)
	return dc, nil
}

func (p *fakePeer) OnDataChannel(f func(DataChannel)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChannel = f
}

func (p *fakePeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// openChannel simulates the remote side opening a data channel.
func (p *fakePeer) openChannel(label string) *fakeChannel {
	p.mu.Lock()
	f := p.onChannel
	p.mu.Unlock()
	dc := &fakeChannel{label: label}
	if f != nil {
		f(dc)
	}
	return dc
}

// setState simulates the ICE agent reporting a connection state.
func (p *fakePeer) setState(state webrtc.PeerConnectionState) {
	p.mu.Lock()
	f := p.onState
	p.mu.Unlock()
	if f != nil {
		f(state)
	}
}

func (p *fakePeer) snapshot() (remote *webrtc.SessionDescription, candidates []string, closed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remote, append([]string(nil), p.candidates...), p.closed
}

// fakeFactory hands out fakePeers and remembers them in creation order.
type fakeFactory struct {
	gather []string

	mu    sync.Mutex
	peers []*fakePeer
}

func (f *fakeFactory) New() (PeerConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &fakePeer{gather: f.gather}
	f.peers = append(f.peers, p)
	return p, nil
}

func (f *fakeFactory) peer(t *testing.T, i int) *fakePeer {
	t.Helper()
	var p *fakePeer
	eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		if len(f.peers) > i {
			p = f.peers[i]
			return true
		}
		return false
	})
	return p
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.peers)
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within 2s")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
