package models

import (
	"strings"
	"time"
)

// RequestID is the opaque identifier of a swap request.
type RequestID string

func (id RequestID) String() string { return string(id) }

// Status is the lifecycle state of a swap request.
type Status string

const (
	StatusPending  Status = "Pending"
	StatusAccepted Status = "Accepted"
	StatusRejected Status = "Rejected"
)

// ParseStatus accepts any casing of a known status.
func ParseStatus(s string) (Status, bool) {
	for _, st := range []Status{StatusPending, StatusAccepted, StatusRejected} {
		if strings.EqualFold(s, string(st)) {
			return st, true
		}
	}
	return "", false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

// CanTransition reports whether a request in status from may move to to.
func CanTransition(from, to Status) bool {
	return from == StatusPending && to.Terminal()
}

// SwapRequest is a stored swap request with raw user references.
type SwapRequest struct {
	ID           RequestID
	FromUser     UserID
	ToUser       UserID
	SkillOffered string
	SkillWanted  string
	Message      string
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewSwapRequest is the input to the ledger's Create.
type NewSwapRequest struct {
	FromUser     UserID
	ToUser       UserID
	SkillOffered string
	SkillWanted  string
	Message      string
}

// ResolvedRequest is a swap request with both parties replaced by
// display-safe references.
type ResolvedRequest struct {
	ID           RequestID `json:"_id"`
	FromUser     UserRef   `json:"fromUser"`
	ToUser       UserRef   `json:"toUser"`
	SkillOffered string    `json:"skillOffered"`
	SkillWanted  string    `json:"skillWanted"`
	Message      string    `json:"message"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// CreateSwapRequest is the JSON body for POST /api/requests.
type CreateSwapRequest struct {
	ToUser       string `json:"toUser"       validate:"required"`
	SkillOffered string `json:"skillOffered" validate:"required,max=100"`
	SkillWanted  string `json:"skillWanted"  validate:"required,max=100"`
	Message      string `json:"message"      validate:"max=1000"`
}

// UpdateStatusRequest is the JSON body for PUT /api/requests/{id}/status.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// Notification is the payload pushed with request events.
type Notification struct {
	Message string           `json:"message"`
	Request *ResolvedRequest `json:"request"`
}

// Event types pushed to live channels.
const (
	EventNewRequest     = "newRequest"
	EventRequestUpdated = "requestUpdated"
)
