// Package cli holds the cobra commands of the peer binary.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var flags Options

var rootCmd = &cobra.Command{
	Use:   "peer",
	Short: "Join a classroom session as presenter or viewer",
	Long: `peer connects to a classroom signaling broker and negotiates WebRTC
links with the other participants. Lines typed on stdin are sent as chat
messages over the data channel.

Examples:
  peer presenter --url ws://localhost:8080/ws --name Ms.Frizzle
  peer viewer --name Arnold
  peer viewer --ice-policy drop --stun stun:stun.example.org:3478`,
}

// Execute runs the root command until it returns or the process is
// interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		NewPrinter(os.Stderr).Error(err.Error())
		stop()
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.URL, "url", "", "Broker WebSocket URL (default: $SIGNAL_URL, then mDNS)")
	pf.StringVarP(&flags.Name, "name", "n", "", "Display name")
	pf.StringVarP(&flags.STUN, "stun", "s", "", "STUN servers, comma separated")
	pf.StringVarP(&flags.TURN, "turn", "t", "", "TURN servers, comma separated")
	pf.StringVarP(&flags.TURNUser, "turn-user", "u", "", "TURN username")
	pf.StringVarP(&flags.TURNPass, "turn-pass", "p", "", "TURN password")
	pf.BoolVarP(&flags.Relay, "relay", "r", false, "Force relay mode")
	pf.StringVar(&flags.ICEPolicy, "ice-policy", "", "Early ICE candidates: buffer or drop")
	pf.StringVar(&flags.LogLevel, "log-level", "", "pion log level: debug, info, warn, error")

	rootCmd.AddCommand(presenterCmd, viewerCmd)
}
