package attendance

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

// Kind bases
const (
	BaseAbsence Base = "absence"
	BaseDelay   Base = "delay"
)

// Roll call statuses
const (
	RollPresent RollStatus = "present"
	RollAbsence RollStatus = "absence"
	RollDelay   RollStatus = "delay"
)

type (
	Base       string
	RollStatus string
)

func (b Base) Valid() bool {
	return b == BaseAbsence || b == BaseDelay
}

func (s RollStatus) Valid() bool {
	return s == RollPresent || s == RollAbsence || s == RollDelay
}

// Base maps a roll call status to the record base kind it produces.
// Present produces no record.
func (s RollStatus) Base() Base {
	switch s {
	case RollAbsence:
		return BaseAbsence
	case RollDelay:
		return BaseDelay
	}
	return ""
}

// Kind is a record's tagged variant: a base kind plus a monotonic justified flag.
type Kind struct {
	Base      Base `json:"base"`
	Justified bool `json:"justified"`
}

// Justify returns the justified variant of k. There is no reverse transition.
func (k Kind) Justify() Kind {
	return Kind{Base: k.Base, Justified: true}
}

func (k Kind) String() string {
	s := string(k.Base)
	if k.Justified {
		s += "_justified"
	}
	return s
}

// Justification reclassifies an absence/delay as excused. Present iff the
// record's kind is justified.
type Justification struct {
	Text        string    `json:"text"`
	Attachment  string    `json:"attachment,omitempty"`
	ValidatedBy string    `json:"validated_by"`
	ValidatedAt time.Time `json:"validated_at"` // UTC
}

// Record is a single attendance event (absence or delay) for an enrolled student.
// ClassID is the class the student was enrolled in at the time of the event,
// not necessarily their current class.
type Record struct {
	ID              string         `json:"id"`
	StudentID       string         `json:"student_id"`
	ClassID         string         `json:"class_id"`
	Kind            Kind           `json:"kind"`
	OccurredAt      time.Time      `json:"occurred_at"` // UTC
	DurationMinutes int            `json:"duration_minutes,omitempty"` // Delay only
	Reason          string         `json:"reason,omitempty"`
	Justification   *Justification `json:"justification,omitempty"`
	CreatedAt       time.Time      `json:"created_at"` // UTC
	UpdatedAt       time.Time      `json:"updated_at"` // UTC
}

// NewRecord contains information needed to create a single attendance entry.
type NewRecord struct {
	StudentID       string    `json:"student_id" validate:"required"`
	KindBase        Base      `json:"kind_base" validate:"required,kindbase"`
	OccurredAt      time.Time `json:"occurred_at" validate:"required,notfuture"`
	DurationMinutes int       `json:"duration_minutes"`
	Reason          string    `json:"reason"`
}

func (nr *NewRecord) Clean() {
	nr.StudentID = core.CleanString(nr.StudentID)
	nr.Reason = core.CleanString(nr.Reason)
}

// EditRecord defines what may be modified on an existing record.
// The justified flag is deliberately absent: Justify is the only path that can set it.
type EditRecord struct {
	KindBase        Base      `json:"kind_base" validate:"required,kindbase"`
	OccurredAt      time.Time `json:"occurred_at" validate:"required,notfuture"`
	DurationMinutes int       `json:"duration_minutes"`
	Reason          string    `json:"reason"`
}

func (er *EditRecord) Clean() {
	er.Reason = core.CleanString(er.Reason)
}

// JustifyRecord carries the one-way Unjustified -> Justified transition input.
type JustifyRecord struct {
	Text       string `json:"justification_text" validate:"required"`
	Attachment string `json:"attachment,omitempty"`
}

func (jr *JustifyRecord) Clean() {
	jr.Text = core.CleanString(jr.Text)
	jr.Attachment = core.CleanString(jr.Attachment)
}

func (jr *JustifyRecord) Validate(validate *validator.Validate) error {
	if err := validate.Struct(jr); err != nil {
		return err
	}
	if len([]rune(jr.Text)) < justificationMinLen {
		return core.NewValidationError(ErrInvalidJustification,
			core.FieldError{Field: "justification_text", Error: CodeInvalidJustification})
	}
	return nil
}

// RollCallEntry is one student's status in a bulk roll call.
type RollCallEntry struct {
	Status          RollStatus `json:"status" validate:"required,rollstatus"`
	DurationMinutes int        `json:"duration_minutes"`
	Reason          string     `json:"reason"`
}

// RollCall is a whole-class submission for one session.
// Only non-present entries produce records; no record means "present".
type RollCall struct {
	ClassID    string                   `json:"class_id" validate:"required"`
	OccurredAt time.Time                `json:"occurred_at" validate:"required,notfuture"`
	Entries    map[string]RollCallEntry `json:"entries" validate:"required"`
}

func (rc *RollCall) Clean() {
	rc.ClassID = core.CleanString(rc.ClassID)
}

// SkippedEntry reports a roll call row that was not persisted and why.
type SkippedEntry struct {
	StudentID string `json:"student_id"`
	Reason    string `json:"reason"`
}

// RollCallResult summarises a processed roll call: rows created plus the
// per-student skips, so the caller can correct and resubmit only those.
type RollCallResult struct {
	Created int            `json:"created"`
	Skipped []SkippedEntry `json:"skipped"`
}

type QueryFilter struct {
	StudentID    string    `query:"student_id"`
	ClassID      string    `query:"class_id"`
	KindBase     Base      `query:"kind_base"`
	Justified    *bool     `query:"justified"`
	OccurredFrom time.Time `query:"occurred_from"`
	OccurredTo   time.Time `query:"occurred_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.StudentID == "" && qf.ClassID == "" && qf.KindBase == "" && qf.Justified == nil &&
		qf.OccurredFrom.IsZero() && qf.OccurredTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.StudentID = core.CleanString(qf.StudentID)
	qf.ClassID = core.CleanString(qf.ClassID)
}
