package endpoint

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mossy-p/classroom-signaling/config"
	"github.com/mossy-p/classroom-signaling/internal/broker"
	"github.com/mossy-p/classroom-signaling/internal/handlers"
	"github.com/mossy-p/classroom-signaling/internal/peerlink"
	"github.com/pion/transport/v3/test"
)

func newBrokerServer(t *testing.T) (string, *broker.Broker) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{
		Environment:    "test",
		AllowedOrigins: []string{"*"},
		JWTSecret:      "test",
		Signaling: config.SignalingConfig{
			SendBuffer:     32,
			MaxMessageSize: 64 * 1024,
			PongWait:       time.Minute,
			WriteWait:      time.Second,
		},
	}
	b := broker.New(broker.Options{Logger: log})
	srv := httptest.NewServer(handlers.NewRouter(cfg, b, log))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws", b
}

func dialBroker(t *testing.T, url string) *WSSignaler {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	sig, err := Dial(ctx, url, quietLogger())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { sig.Close() })
	return sig
}

func TestSession_ThroughBroker(t *testing.T) {
	lim := test.TimeOut(20 * time.Second)
	defer lim.Stop()

	url, b := newBrokerServer(t)
	presenterPeers := &fakeFactory{gather: []string{"p-host"}}
	viewerPeers := &fakeFactory{gather: []string{"v-host"}}

	presenter, err := NewPresenter(dialBroker(t, url), Config{
		Name: "P", NewPeerConnection: presenterPeers.New, LoggerFactory: quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewPresenter() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go presenter.Run(ctx)
	eventually(t, func() bool { return presenter.ID() != "" })

	viewerSig := dialBroker(t, url)
	viewer, err := NewViewer(viewerSig, Config{
		Name: "A", NewPeerConnection: viewerPeers.New, LoggerFactory: quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewViewer() error = %v", err)
	}
	viewerCtx, stopViewer := context.WithCancel(context.Background())
	viewerDone := make(chan error, 1)
	go func() { viewerDone <- viewer.Run(viewerCtx) }()

	waitViewerState(t, viewer, peerlink.Active)
	vID := viewer.ID()
	waitLinkState(t, presenter, vID, peerlink.Active)

	// each side applied the candidate the other gathered
	eventually(t, func() bool {
		_, got, _ := viewerPeers.peer(t, 0).snapshot()
		return len(got) == 1 && got[0] == "p-host"
	})
	eventually(t, func() bool {
		_, got, _ := presenterPeers.peer(t, 0).snapshot()
		return len(got) == 1 && got[0] == "v-host"
	})

	if s := b.Summary(); !s.Presenter || s.Viewers != 1 {
		t.Errorf("Summary() = %+v, want presenter and one viewer", s)
	}

	stopViewer()
	if err := <-viewerDone; !errors.Is(err, context.Canceled) {
		t.Errorf("viewer Run() error = %v, want context.Canceled", err)
	}
	viewerSig.Close()

	eventually(t, func() bool {
		_, ok := presenter.LinkState(vID)
		return !ok
	})
	if _, _, closed := presenterPeers.peer(t, 0).snapshot(); !closed {
		t.Error("presenter kept the connection to a departed viewer")
	}
}

func TestSession_LateViewerAndPresenterSwitch(t *testing.T) {
	lim := test.TimeOut(20 * time.Second)
	defer lim.Stop()

	url, _ := newBrokerServer(t)
	viewerPeers := &fakeFactory{}

	viewer, _ := NewViewer(dialBroker(t, url), Config{
		Name: "A", NewPeerConnection: viewerPeers.New, LoggerFactory: quietLogger(),
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go viewer.Run(ctx)
	waitViewerState(t, viewer, peerlink.AwaitingOffer)

	// the presenter arrives after the viewer and offers from the roster
	first, _ := NewPresenter(dialBroker(t, url), Config{
		Name: "P1", NewPeerConnection: (&fakeFactory{}).New, LoggerFactory: quietLogger(),
	})
	firstDone := make(chan error, 1)
	go func() { firstDone <- first.Run(ctx) }()
	waitViewerState(t, viewer, peerlink.Active)

	second, _ := NewPresenter(dialBroker(t, url), Config{
		Name: "P2", NewPeerConnection: (&fakeFactory{}).New, LoggerFactory: quietLogger(),
	})
	go second.Run(ctx)

	select {
	case err := <-firstDone:
		if !errors.Is(err, ErrDisplaced) {
			t.Errorf("first presenter Run() error = %v, want ErrDisplaced", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first presenter not displaced")
	}

	eventually(t, func() bool { return viewerPeers.count() == 2 })
	waitViewerState(t, viewer, peerlink.Active)
	eventually(t, func() bool {
		s, ok := second.LinkState(viewer.ID())
		return ok && s == peerlink.Active
	})
}
