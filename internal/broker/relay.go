package broker

import (
	"github.com/mossy-p/classroom-signaling/internal/models"
)

// forwardToViewer delivers data to the viewer with the given id. Unknown ids
// and closed transports are a silent no-op apart from a debug log.
func (b *Broker) forwardToViewer(id string, data []byte) bool {
	v := b.registry.Viewer(id)
	if v == nil {
		b.log.Debug("forward target not found", "studentId", id)
		return false
	}
	return b.deliver(v.Transport, data, v.ID)
}

func (b *Broker) forwardToPresenter(data []byte) bool {
	p := b.registry.Presenter()
	if p == nil {
		b.log.Debug("no presenter to forward to")
		return false
	}
	return b.deliver(p.Transport, data, p.ID)
}

func (b *Broker) relayToPresenter(msg *models.Envelope) bool {
	data, err := models.Encode(msg)
	if err != nil {
		b.log.Error("failed to marshal message", "type", msg.Type, "error", err)
		return false
	}
	return b.forwardToPresenter(data)
}

func (b *Broker) sendTo(t Transport, msg *models.Envelope) bool {
	data, err := models.Encode(msg)
	if err != nil {
		b.log.Error("failed to marshal message", "type", msg.Type, "error", err)
		return false
	}
	return b.deliver(t, data, "")
}

func (b *Broker) deliver(t Transport, data []byte, id string) bool {
	if err := t.Send(data); err != nil {
		b.log.Debug("delivery failed", "to", id, "error", err)
		return false
	}
	return true
}
