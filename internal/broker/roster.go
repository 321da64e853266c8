package broker

import (
	"github.com/mossy-p/classroom-signaling/internal/models"
)

// broadcastRoster pushes the current attendants-list to every attached
// transport, joined or not. One failed recipient does not affect the others.
func (b *Broker) broadcastRoster() {
	data, err := models.EncodeRoster(b.registry.Snapshot())
	if err != nil {
		b.log.Error("failed to marshal roster", "error", err)
		return
	}

	for c := range b.conns {
		b.deliver(c.transport, data, c.participantID)
	}
}
