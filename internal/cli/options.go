package cli

import (
	"fmt"
	"os"

	"github.com/mossy-p/classroom-signaling/internal/endpoint"
	"github.com/mossy-p/classroom-signaling/internal/peerlink"
)

// Default configuration values
const (
	DefaultSTUN     = "stun:stun.l.google.com:19302"
	DefaultLogLevel = "warn"
)

// Options carries CLI flag values; empty fields fall through to the
// environment and then to defaults.
type Options struct {
	URL       string
	Name      string
	STUN      string
	TURN      string
	TURNUser  string
	TURNPass  string
	Relay     bool
	ICEPolicy string
	LogLevel  string
}

type PeerConfig struct {
	// URL is empty when the broker should be found over mDNS.
	URL      string
	Name     string
	ICE      endpoint.ICEConfig
	Policy   peerlink.CandidatePolicy
	LogLevel string
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Load resolves options with flag > environment > default priority.
func Load(opts Options) (*PeerConfig, error) {
	policy, err := peerlink.ParsePolicy(firstOf(opts.ICEPolicy, os.Getenv("ICE_POLICY")))
	if err != nil {
		return nil, fmt.Errorf("ice policy: %w", err)
	}

	host, _ := os.Hostname()

	return &PeerConfig{
		URL:  firstOf(opts.URL, os.Getenv("SIGNAL_URL")),
		Name: firstOf(opts.Name, os.Getenv("PEER_NAME"), host, "anonymous"),
		ICE: endpoint.ICEConfig{
			STUNServers: endpoint.ParseServers(firstOf(opts.STUN, os.Getenv("STUN_SERVER"), DefaultSTUN)),
			TURNServers: endpoint.ParseServers(firstOf(opts.TURN, os.Getenv("TURN_SERVER"))),
			TURNUser:    firstOf(opts.TURNUser, os.Getenv("TURN_USERNAME")),
			TURNPass:    firstOf(opts.TURNPass, os.Getenv("TURN_PASSWORD")),
			RelayOnly:   opts.Relay,
		},
		Policy:   policy,
		LogLevel: firstOf(opts.LogLevel, os.Getenv("LOG_LEVEL"), DefaultLogLevel),
	}, nil
}
