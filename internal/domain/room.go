package domain

import "time"

// RoomInfo is the key/value representation of a proxy-chat room. A room is
// scoped to one Request and binds exactly its client and performer.
type RoomInfo struct {
	RequestID uint
	Client    int64
	Performer int64
	Active    bool
	Joined    map[int64]struct{}

	// Message ids of the outstanding "peer is not online" notices, 0 if none.
	ClientWaitMsgID    int
	PerformerWaitMsgID int
}

// IsParticipant reports whether id is the client or the performer.
func (r *RoomInfo) IsParticipant(id int64) bool {
	return id == r.Client || id == r.Performer
}

// Peer returns the other participant. The result is only meaningful when
// IsParticipant(id) holds.
func (r *RoomInfo) Peer(id int64) int64 {
	if id == r.Client {
		return r.Performer
	}
	return r.Client
}

// HasJoined reports whether id is in the joined set.
func (r *RoomInfo) HasJoined(id int64) bool {
	_, ok := r.Joined[id]
	return ok
}

// BothJoined reports whether both participants are in the joined set.
func (r *RoomInfo) BothJoined() bool {
	return r.HasJoined(r.Client) && r.HasJoined(r.Performer)
}

// QueuedMessage is a relay payload waiting for its recipient to join. It keeps
// only a reference to the original message so it can be copied verbatim,
// attachments included.
type QueuedMessage struct {
	From      int64     `json:"from"`
	ChatID    int64     `json:"chat"`
	MessageID int       `json:"msg"`
	QueuedAt  time.Time `json:"at"`
}

// Flow names a multi-step conversation a user is currently in.
type Flow string

const (
	FlowNone           Flow = ""
	FlowPaymentProof   Flow = "payment_proof"
	FlowDefaultPayInfo Flow = "default_pay_info"
)

// Conversation is the per-user flow state. It replaces a shared session bag:
// each flow owns its fields and the state is cleared when the flow ends.
type Conversation struct {
	Flow      Flow
	RequestID uint
}

// Active reports whether a flow is in progress.
func (c Conversation) Active() bool { return c.Flow != FlowNone }
