package broker

import (
	"sort"

	"github.com/google/uuid"
	"github.com/mossy-p/classroom-signaling/internal/models"
)

// Participant is a joined transport.
type Participant struct {
	ID          string
	DisplayName string
	Role        models.Role
	Transport   Transport

	seq uint64
}

// Registry holds at most one presenter and any number of viewers.
// It is not safe for concurrent use; the Broker serializes access.
type Registry struct {
	presenter *Participant
	viewers   map[string]*Participant
	newID     func() string
	seq       uint64
}

func NewRegistry() *Registry {
	return &Registry{
		viewers: make(map[string]*Participant),
		newID:   func() string { return uuid.NewString() },
	}
}

// RegisterPresenter replaces whatever presenter is present. The displaced
// participant is returned so the caller can log it; its transport is left alone.
func (r *Registry) RegisterPresenter(name string, t Transport) (p *Participant, displaced *Participant) {
	p = r.newParticipant(name, models.RolePresenter, t)
	displaced = r.presenter
	r.presenter = p
	return p, displaced
}

func (r *Registry) RegisterViewer(name string, t Transport) *Participant {
	p := r.newParticipant(name, models.RoleViewer, t)
	r.viewers[p.ID] = p
	return p
}

// RemoveByID removes the participant with the given id. It returns the removed
// participant, or nil if the id is unknown.
func (r *Registry) RemoveByID(id string) *Participant {
	if r.presenter != nil && r.presenter.ID == id {
		p := r.presenter
		r.presenter = nil
		return p
	}
	if p, ok := r.viewers[id]; ok {
		delete(r.viewers, id)
		return p
	}
	return nil
}

func (r *Registry) Presenter() *Participant {
	return r.presenter
}

func (r *Registry) Viewer(id string) *Participant {
	return r.viewers[id]
}

// Lookup finds a participant of either role.
func (r *Registry) Lookup(id string) *Participant {
	if r.presenter != nil && r.presenter.ID == id {
		return r.presenter
	}
	return r.viewers[id]
}

func (r *Registry) ViewerCount() int {
	return len(r.viewers)
}

// Snapshot lists the presenter first, then viewers in join order.
func (r *Registry) Snapshot() []models.RosterEntry {
	list := make([]models.RosterEntry, 0, len(r.viewers)+1)
	if r.presenter != nil {
		list = append(list, r.presenter.entry())
	}

	viewers := make([]*Participant, 0, len(r.viewers))
	for _, v := range r.viewers {
		viewers = append(viewers, v)
	}
	sort.Slice(viewers, func(i, j int) bool { return viewers[i].seq < viewers[j].seq })
	for _, v := range viewers {
		list = append(list, v.entry())
	}
	return list
}

func (r *Registry) newParticipant(name string, role models.Role, t Transport) *Participant {
	r.seq++
	return &Participant{
		ID:          r.newID(),
		DisplayName: name,
		Role:        role,
		Transport:   t,
		seq:         r.seq,
	}
}

func (p *Participant) entry() models.RosterEntry {
	return models.RosterEntry{ID: p.ID, Name: p.DisplayName, Role: p.Role}
}
