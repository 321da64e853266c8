package models

import "encoding/json"

// MessageType is the envelope discriminator.
type MessageType string

const (
	TypeJoin           MessageType = "join"
	TypeJoined         MessageType = "joined"
	TypeOffer          MessageType = "offer"
	TypeAnswer         MessageType = "answer"
	TypeICECandidate   MessageType = "ice-candidate"
	TypeStudentJoined  MessageType = "student-joined"
	TypeStudentLeft    MessageType = "student-left"
	TypeAttendantsList MessageType = "attendants-list"
)

// Envelope is the single message shape carried in both directions.
// SDP and Candidate are relayed verbatim and never inspected by the broker.
type Envelope struct {
	Type      MessageType     `json:"type"`
	Role      Role            `json:"role,omitempty"`
	Name      string          `json:"name,omitempty"`
	ID        string          `json:"id,omitempty"`
	StudentID string          `json:"studentId,omitempty"`
	Target    Role            `json:"target,omitempty"`
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
	List      []RosterEntry   `json:"list,omitempty"`
}

// Decode parses a raw frame. Unknown types are not an error here; the
// router decides what to do with them.
func Decode(data []byte) (*Envelope, error) {
	var msg Envelope
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	msg.Role = msg.Role.Normalize()
	msg.Target = msg.Target.Normalize()
	return &msg, nil
}

// rosterFrame is the outbound attendants-list shape. Unlike Envelope, list is
// always written, so an empty roster goes out as "list":[].
type rosterFrame struct {
	Type MessageType   `json:"type"`
	List []RosterEntry `json:"list"`
}

// EncodeRoster marshals an attendants-list frame.
func EncodeRoster(list []RosterEntry) ([]byte, error) {
	if list == nil {
		list = []RosterEntry{}
	}
	return json.Marshal(rosterFrame{Type: TypeAttendantsList, List: list})
}

// Encode marshals an envelope for the wire.
func Encode(msg *Envelope) ([]byte, error) {
	return json.Marshal(msg)
}
