// Package domain defines the persistence models for users, performer profiles,
// service requests and their payment metadata. These types are mapped with
// GORM and form the relational half of the relay bot's data layer; the
// key/value half (rooms, queues, schedules) is described in room.go.
package domain

import "time"

// Role is the marketplace role of a chat-platform user.
type Role string

const (
	RoleClient    Role = "CLIENT"
	RolePerformer Role = "PERFORMER"
	RoleAdmin     Role = "ADMIN"
)

// RequestStatus enumerates the lifecycle states of a Request.
type RequestStatus string

const (
	StatusNew         RequestStatus = "NEW"
	StatusNegotiation RequestStatus = "NEGOTIATION"
	StatusAccepted    RequestStatus = "ACCEPTED"
	StatusPaid        RequestStatus = "PAID"
	StatusCompleted   RequestStatus = "COMPLETED"
	StatusCanceled    RequestStatus = "CANCELED"
	StatusRejected    RequestStatus = "REJECTED"
)

// AllowsRoom reports whether an active room is consistent with s.
func (s RequestStatus) AllowsRoom() bool {
	switch s {
	case StatusAccepted, StatusNegotiation, StatusPaid:
		return true
	}
	return false
}

// OpenStatuses are the statuses listed under the "open" tab.
func OpenStatuses() []RequestStatus {
	return []RequestStatus{StatusNew, StatusNegotiation, StatusAccepted, StatusPaid}
}

// DoneStatuses are the statuses listed under the "done" tab.
func DoneStatuses() []RequestStatus {
	return []RequestStatus{StatusCompleted, StatusCanceled, StatusRejected}
}

// User is a chat-platform account known to the bot.
//
// Fields:
//   - TgID: the platform identity; every core operation addresses users by it.
//   - ActiveInChat: presence flag, true while the user has a relay room open.
//     Distinct from room membership: it is what the relay consults before
//     delivering a message immediately.
//   - LastChatRequestID: the request whose room the user joined last; inbound
//     messages are relayed into that room while ActiveInChat is set.
//   - LastSeenAt: refreshed on every inbound update.
type User struct {
	ID                uint       `json:"id"                   gorm:"primaryKey"`
	TgID              int64      `json:"tg_id"                gorm:"not null;uniqueIndex"`
	Username          string     `json:"username"             gorm:"type:varchar(64)"`
	Role              Role       `json:"role"                 gorm:"type:varchar(16);not null;default:'CLIENT'"`
	ActiveInChat      bool       `json:"active_in_chat"       gorm:"not null"`
	LastChatRequestID *uint      `json:"last_chat_request_id,omitempty"`
	LastSeenAt        *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// PerformerProfile holds performer-only settings. DefaultPayInstructions is
// copied into a request's PaymentMeta when the request is accepted.
type PerformerProfile struct {
	ID                     uint      `json:"id"            gorm:"primaryKey"`
	UserID                 uint      `json:"user_id"       gorm:"not null;uniqueIndex"`
	DisplayName            string    `json:"display_name"  gorm:"type:varchar(128)"`
	DefaultPayInstructions string    `json:"default_pay_instructions" gorm:"type:text"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`

	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for PerformerProfile.
func (PerformerProfile) TableName() string { return "performer_profiles" }

// Request is a client-to-performer service transaction.
//
// Fields:
//   - Game / DurationMin / PreferredAt: what was asked for.
//   - Status: lifecycle state; COMPLETED, CANCELED and REJECTED are final.
//   - ClientConfirmed / PerformerConfirmed: self-reported completion flags
//     used by the dual confirmation flow.
//   - Client / Performer / PaymentMeta: associations, loaded on demand.
type Request struct {
	ID                 uint          `json:"id"           gorm:"primaryKey"`
	ClientID           uint          `json:"client_id"    gorm:"not null;index:idx_requests_client"`
	PerformerID        uint          `json:"performer_id" gorm:"not null;index:idx_requests_performer"`
	Game               string        `json:"game"         gorm:"type:varchar(128);not null"`
	DurationMin        int           `json:"duration_min" gorm:"not null"`
	PreferredAt        *time.Time    `json:"preferred_at,omitempty"`
	Status             RequestStatus `json:"status"       gorm:"type:varchar(16);not null;default:'NEW';index"`
	ClientConfirmed    bool          `json:"client_confirmed"    gorm:"not null"`
	PerformerConfirmed bool          `json:"performer_confirmed" gorm:"not null"`
	CreatedAt          time.Time     `json:"created_at"   gorm:"index"`
	UpdatedAt          time.Time     `json:"updated_at"`

	Client      User         `json:"client"    gorm:"foreignKey:ClientID;references:ID"`
	Performer   User         `json:"performer" gorm:"foreignKey:PerformerID;references:ID"`
	PaymentMeta *PaymentMeta `json:"payment,omitempty" gorm:"foreignKey:RequestID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Request.
func (Request) TableName() string { return "requests" }

// FullyConfirmed reports whether both sides self-reported completion.
func (r *Request) FullyConfirmed() bool {
	return r.ClientConfirmed && r.PerformerConfirmed
}

// PaymentMeta tracks the payment side of a Request (1:1).
//
// Invariant: PerformerReceived implies ClientMarkPaid.
type PaymentMeta struct {
	ID                uint      `json:"-"                  gorm:"primaryKey"`
	RequestID         uint      `json:"request_id"         gorm:"not null;uniqueIndex"`
	Instructions      string    `json:"instructions"       gorm:"type:text"`
	ProofRefs         []string  `json:"proof_refs"         gorm:"type:text;serializer:json"`
	ClientMarkPaid    bool      `json:"client_mark_paid"   gorm:"not null"`
	PaymentPending    bool      `json:"payment_pending"    gorm:"not null"`
	PerformerReceived bool      `json:"performer_received" gorm:"not null"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TableName returns the database table name for PaymentMeta.
func (PaymentMeta) TableName() string { return "payment_meta" }
