package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mossy-p/classroom-signaling/internal/discovery"
	"github.com/mossy-p/classroom-signaling/internal/endpoint"
	"github.com/mossy-p/classroom-signaling/internal/logging"
	"github.com/mossy-p/classroom-signaling/internal/models"
	"github.com/spf13/cobra"
)

var presenterCmd = &cobra.Command{
	Use:     "presenter",
	Aliases: []string{"teacher"},
	Short:   "Present to every viewer in the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSession(cmd.Context(), models.RolePresenter, os.Stdin, os.Stdout)
	},
}

var viewerCmd = &cobra.Command{
	Use:     "viewer",
	Aliases: []string{"student"},
	Short:   "Watch the current presenter",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSession(cmd.Context(), models.RoleViewer, os.Stdin, os.Stdout)
	},
}

// participant is what both endpoint roles offer the CLI.
type participant interface {
	Run(ctx context.Context) error
	ID() string
	SendChat(text string) error
}

func runSession(ctx context.Context, role models.Role, in io.Reader, out io.Writer) error {
	cfg, err := Load(flags)
	if err != nil {
		return err
	}
	ui := NewPrinter(out)

	url := cfg.URL
	if url == "" {
		stop := ui.Spin("Looking for a broker on the local network...")
		url, err = discover(ctx)
		stop()
		if err != nil {
			return err
		}
	}

	loggerFactory := logging.PionFactory(os.Stderr, cfg.LogLevel)
	stop := ui.Spin("Connecting to " + url)
	sig, err := endpoint.Dial(ctx, url, loggerFactory)
	stop()
	if err != nil {
		return err
	}
	defer sig.Close()
	ui.Success("Connected to %s as %s %q", url, role, cfg.Name)

	// the callbacks below may run before the participant is assigned
	var mu sync.Mutex
	var self participant
	selfID := func() string {
		mu.Lock()
		defer mu.Unlock()
		if self == nil {
			return ""
		}
		return self.ID()
	}

	epCfg := endpoint.Config{
		Name:              cfg.Name,
		CandidatePolicy:   cfg.Policy,
		NewPeerConnection: endpoint.NewPionFactory(cfg.ICE, loggerFactory),
		LoggerFactory:     loggerFactory,
		OnRoster: func(list []models.RosterEntry) {
			ui.Roster(list, selfID())
		},
		OnLinkState: ui.LinkState,
		OnChat: func(_ string, msg endpoint.ChatMessage) {
			ui.Chat(msg.From, msg.Text)
		},
	}

	var p participant
	if role == models.RolePresenter {
		p, err = endpoint.NewPresenter(sig, epCfg)
	} else {
		p, err = endpoint.NewViewer(sig, epCfg)
	}
	if err != nil {
		return err
	}
	mu.Lock()
	self = p
	mu.Unlock()

	go readChat(ctx, in, p.SendChat, ui)

	err = p.Run(ctx)
	switch {
	case errors.Is(err, context.Canceled):
		ui.Info("Leaving the session")
		return nil
	case errors.Is(err, endpoint.ErrSignalingClosed):
		return fmt.Errorf("broker closed the connection")
	}
	return err
}

func discover(ctx context.Context) (string, error) {
	resolver, err := discovery.NewResolver()
	if err != nil {
		return "", err
	}
	svc, err := discovery.Browse(ctx, resolver)
	if err != nil {
		return "", fmt.Errorf("%w; pass --url or set SIGNAL_URL", err)
	}
	return svc.URL(), nil
}

// readChat sends every non-empty line of in as a chat message.
func readChat(ctx context.Context, in io.Reader, send func(string) error, ui *Printer) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if err := send(text); err != nil {
			if errors.Is(err, endpoint.ErrNoChatChannel) {
				ui.Warning("No open chat channel yet")
				continue
			}
			ui.Warning("Chat failed: %v", err)
		}
	}
}
