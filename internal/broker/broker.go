// Package broker routes signaling messages between one presenter and many
// viewers. All registry mutations, relays and roster broadcasts run under a
// single mutex; transports are expected to queue outbound frames without
// blocking.
package broker

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/mossy-p/classroom-signaling/internal/models"
)

var (
	ErrTransportClosed = errors.New("broker: transport closed")
	ErrSendBufferFull  = errors.New("broker: send buffer full")
)

// Transport is the outbound half of a participant connection.
// Send must not block; it either queues data or returns an error.
type Transport interface {
	Send(data []byte) error
}

// PresenceMirror observes membership changes. Implementations must return
// immediately.
type PresenceMirror interface {
	Joined(entry models.RosterEntry)
	Left(id string)
}

type nopPresence struct{}

func (nopPresence) Joined(models.RosterEntry) {}
func (nopPresence) Left(string)               {}

// Conn is the broker's handle for one attached transport.
type Conn struct {
	transport     Transport
	participantID string
}

// ParticipantID returns the id assigned by the last join on this connection.
func (c *Conn) ParticipantID() string {
	return c.participantID
}

type Options struct {
	Logger   *slog.Logger
	Presence PresenceMirror
}

type Broker struct {
	mu       sync.Mutex
	registry *Registry
	conns    map[*Conn]struct{}
	presence PresenceMirror
	log      *slog.Logger
}

func New(opts Options) *Broker {
	b := &Broker{
		registry: NewRegistry(),
		conns:    make(map[*Conn]struct{}),
		presence: opts.Presence,
		log:      opts.Logger,
	}
	if b.presence == nil {
		b.presence = nopPresence{}
	}
	if b.log == nil {
		b.log = slog.Default()
	}
	return b
}

// Attach registers an open transport. It receives roster broadcasts from now
// on, but is not a participant until it sends a join.
func (b *Broker) Attach(t Transport) *Conn {
	c := &Conn{transport: t}

	b.mu.Lock()
	b.conns[c] = struct{}{}
	b.mu.Unlock()

	return c
}

// Dispatch handles one inbound frame from c. Malformed frames are logged and
// dropped; the connection stays open.
func (b *Broker) Dispatch(c *Conn, data []byte) {
	msg, err := models.Decode(data)
	if err != nil {
		b.log.Warn("dropping malformed message", "error", err, "bytes", len(data))
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.conns[c]; !ok {
		b.log.Debug("dropping message from detached connection", "type", msg.Type)
		return
	}
	b.route(c, msg, data)
}

// Detach is called once the transport has closed. If it belonged to a live
// participant, the participant leaves.
func (b *Broker) Detach(c *Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.conns[c]; !ok {
		return
	}
	delete(b.conns, c)
	b.leave(c)
}

// Snapshot returns the current roster.
func (b *Broker) Snapshot() []models.RosterEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.registry.Snapshot()
}

func (b *Broker) Summary() models.SessionSummary {
	b.mu.Lock()
	defer b.mu.Unlock()
	return models.SessionSummary{
		Presenter: b.registry.Presenter() != nil,
		Viewers:   b.registry.ViewerCount(),
	}
}

// Connections returns the number of attached transports.
func (b *Broker) Connections() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

// sender resolves the live participant behind c. A presenter displaced by a
// newer join keeps its connection but no longer resolves.
func (b *Broker) sender(c *Conn) *Participant {
	if c.participantID == "" {
		return nil
	}
	p := b.registry.Lookup(c.participantID)
	if p == nil || p.Transport != c.transport {
		return nil
	}
	return p
}

func (b *Broker) leave(c *Conn) {
	p := b.sender(c)
	c.participantID = ""
	if p == nil {
		return
	}

	b.registry.RemoveByID(p.ID)
	b.log.Info("participant left", "id", p.ID, "role", p.Role, "name", p.DisplayName)

	if p.Role == models.RoleViewer {
		b.relayToPresenter(&models.Envelope{Type: models.TypeStudentLeft, StudentID: p.ID})
	}
	b.presence.Left(p.ID)
	b.broadcastRoster()
}
