package endpoint

import (
	"fmt"
	"strings"

	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"
)

// PeerConnection is the slice of a WebRTC peer connection the endpoints use.
type PeerConnection interface {
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	SetRemoteDescription(desc webrtc.SessionDescription) error
	AddICECandidate(candidate webrtc.ICECandidateInit) error
	OnICECandidate(f func(candidate webrtc.ICECandidateInit))
	OnConnectionStateChange(f func(state webrtc.PeerConnectionState))
	CreateDataChannel(label string) (DataChannel, error)
	OnDataChannel(f func(dc DataChannel))
	Close() error
}

type DataChannel interface {
	Label() string
	Send(data []byte) error
	OnOpen(f func())
	OnMessage(f func(data []byte))
}

// PeerConnectionFactory creates one peer connection per link.
type PeerConnectionFactory func() (PeerConnection, error)

// ICEConfig lists the STUN/TURN servers handed to every peer connection.
type ICEConfig struct {
	STUNServers []string
	TURNServers []string
	TURNUser    string
	TURNPass    string
	// RelayOnly forces traffic through TURN.
	RelayOnly bool
}

func (c ICEConfig) servers() []webrtc.ICEServer {
	var servers []webrtc.ICEServer
	if len(c.STUNServers) > 0 {
		servers = append(servers, webrtc.ICEServer{URLs: c.STUNServers})
	}
	if len(c.TURNServers) > 0 {
		servers = append(servers, webrtc.ICEServer{
			URLs:       c.TURNServers,
			Username:   c.TURNUser,
			Credential: c.TURNPass,
		})
	}
	return servers
}

// ParseServers splits a comma separated URL list, skipping blanks.
func ParseServers(list string) []string {
	var out []string
	for _, s := range strings.Split(list, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// NewPionFactory builds peer connections with pion, logging through
// loggerFactory.
func NewPionFactory(ice ICEConfig, loggerFactory logging.LoggerFactory) PeerConnectionFactory {
	settings := webrtc.SettingEngine{}
	if loggerFactory != nil {
		settings.LoggerFactory = loggerFactory
	}
	api := webrtc.NewAPI(webrtc.WithSettingEngine(settings))

	policy := webrtc.ICETransportPolicyAll
	if ice.RelayOnly && len(ice.TURNServers) > 0 {
		policy = webrtc.ICETransportPolicyRelay
	}
	configuration := webrtc.Configuration{
		ICEServers:         ice.servers(),
		ICETransportPolicy: policy,
	}

	return func() (PeerConnection, error) {
		pc, err := api.NewPeerConnection(configuration)
		if err != nil {
			return nil, fmt.Errorf("create peer connection: %w", err)
		}
		return &pionPeer{pc: pc}, nil
	}
}

type pionPeer struct {
	pc *webrtc.PeerConnection
}

func (p *pionPeer) CreateOffer() (webrtc.SessionDescription, error) {
	return p.pc.CreateOffer(nil)
}

func (p *pionPeer) CreateAnswer() (webrtc.SessionDescription, error) {
	return p.pc.CreateAnswer(nil)
}

func (p *pionPeer) SetLocalDescription(desc webrtc.SessionDescription) error {
	return p.pc.SetLocalDescription(desc)
}

func (p *pionPeer) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return p.pc.SetRemoteDescription(desc)
}

func (p *pionPeer) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return p.pc.AddICECandidate(candidate)
}

// OnICECandidate skips the nil candidate pion uses to signal end of gathering.
func (p *pionPeer) OnICECandidate(f func(webrtc.ICECandidateInit)) {
	p.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		f(c.ToJSON())
	})
}

func (p *pionPeer) OnConnectionStateChange(f func(webrtc.PeerConnectionState)) {
	p.pc.OnConnectionStateChange(f)
}

func (p *pionPeer) CreateDataChannel(label string) (DataChannel, error) {
	ordered := true
	dc, err := p.pc.CreateDataChannel(label, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return nil, fmt.Errorf("create data channel: %w", err)
	}
	return &pionChannel{dc: dc}, nil
}

func (p *pionPeer) OnDataChannel(f func(DataChannel)) {
	p.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		f(&pionChannel{dc: dc})
	})
}

func (p *pionPeer) Close() error {
	return p.pc.Close()
}

type pionChannel struct {
	dc *webrtc.DataChannel
}

func (c *pionChannel) Label() string {
	return c.dc.Label()
}

func (c *pionChannel) Send(data []byte) error {
	return c.dc.Send(data)
}

func (c *pionChannel) OnOpen(f func()) {
	c.dc.OnOpen(f)
}

func (c *pionChannel) OnMessage(f func([]byte)) {
	c.dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		f(msg.Data)
	})
}
