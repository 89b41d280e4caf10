package audit

import "time"

// Actions
const (
	ActionCreate     Action = "create"
	ActionUpdate     Action = "update"
	ActionJustify    Action = "justify"
	ActionBulkCreate Action = "bulk_create"
)

type Action string

func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionJustify, ActionBulkCreate:
		return true
	}
	return false
}

// Entry is an immutable log row recording who did what to which attendance
// record and when. Entries are never mutated or deleted.
type Entry struct {
	ID         string    `json:"id"`
	ActorID    string    `json:"actor_user_id"`
	Action     Action    `json:"action"`
	TargetID   string    `json:"target_record_id"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"` // UTC
}
