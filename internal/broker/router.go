package broker

import (
	"github.com/mossy-p/classroom-signaling/internal/models"
)

// route dispatches msg by type and by the sender's current role. raw is the
// original frame, relayed as-is when the message needs no tagging.
func (b *Broker) route(c *Conn, msg *models.Envelope, raw []byte) {
	switch msg.Type {
	case models.TypeJoin:
		b.handleJoin(c, msg)
	case models.TypeOffer:
		b.handleOffer(c, msg, raw)
	case models.TypeAnswer:
		b.handleAnswer(c, msg)
	case models.TypeICECandidate:
		b.handleCandidate(c, msg, raw)
	default:
		b.log.Warn("unknown message type", "type", msg.Type, "from", c.participantID)
	}
}

func (b *Broker) handleJoin(c *Conn, msg *models.Envelope) {
	if !msg.Role.Valid() {
		b.log.Warn("join with invalid role", "role", msg.Role)
		return
	}

	// A second join on the same connection starts over with a fresh id.
	if c.participantID != "" {
		b.leave(c)
	}

	var p *Participant
	if msg.Role == models.RolePresenter {
		var displaced *Participant
		p, displaced = b.registry.RegisterPresenter(msg.Name, c.transport)
		if displaced != nil {
			b.log.Warn("presenter replaced; previous presenter is orphaned",
				"previous", displaced.ID, "current", p.ID)
			b.presence.Left(displaced.ID)
		}
	} else {
		p = b.registry.RegisterViewer(msg.Name, c.transport)
	}
	c.participantID = p.ID

	b.log.Info("participant joined", "id", p.ID, "role", p.Role, "name", p.DisplayName)

	b.sendTo(c.transport, &models.Envelope{Type: models.TypeJoined, Role: p.Role, ID: p.ID})
	if p.Role == models.RoleViewer {
		b.relayToPresenter(&models.Envelope{
			Type:      models.TypeStudentJoined,
			StudentID: p.ID,
			Name:      p.DisplayName,
		})
	}
	b.presence.Joined(p.entry())
	b.broadcastRoster()
}

func (b *Broker) handleOffer(c *Conn, msg *models.Envelope, raw []byte) {
	p := b.sender(c)
	if p == nil || p.Role != models.RolePresenter {
		b.log.Warn("dropping offer from non-presenter", "from", c.participantID)
		return
	}
	if msg.StudentID == "" {
		b.log.Warn("dropping offer without studentId", "from", p.ID)
		return
	}
	b.forwardToViewer(msg.StudentID, raw)
}

func (b *Broker) handleAnswer(c *Conn, msg *models.Envelope) {
	p := b.sender(c)
	if p == nil || p.Role != models.RoleViewer {
		b.log.Warn("dropping answer from unknown viewer", "from", c.participantID, "studentId", msg.StudentID)
		return
	}
	msg.StudentID = p.ID
	b.relayToPresenter(msg)
}

// handleCandidate relays ICE candidates in either direction. A missing target
// defaults to the counterpart of the sender's role.
func (b *Broker) handleCandidate(c *Conn, msg *models.Envelope, raw []byte) {
	p := b.sender(c)
	if p == nil {
		b.log.Warn("dropping ice-candidate from unjoined connection")
		return
	}

	target := msg.Target
	if target == "" {
		target = models.RolePresenter
		if p.Role == models.RolePresenter {
			target = models.RoleViewer
		}
	}

	if target == p.Role {
		b.log.Warn("dropping ice-candidate addressed to sender's own role", "role", p.Role, "from", p.ID)
		return
	}

	switch target {
	case models.RolePresenter:
		msg.StudentID = p.ID
		b.relayToPresenter(msg)
	case models.RoleViewer:
		if msg.StudentID == "" {
			b.log.Warn("dropping ice-candidate without studentId", "from", p.ID)
			return
		}
		b.forwardToViewer(msg.StudentID, raw)
	default:
		b.log.Warn("dropping ice-candidate with unknown target", "target", target, "from", p.ID)
	}
}
