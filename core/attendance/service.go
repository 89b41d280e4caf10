package attendance

import (
	"context"
	"fmt"
	"sort"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/audit"
	"github.com/trezcool/shule/core/enrollment"
)

var (
	// errors
	ErrNotFound             = errors.New("attendance record not found")
	ErrDuplicateRecord      = errors.New("a record already exists for this student at this time")
	ErrAlreadyJustified     = errors.New("record is already justified")
	ErrInvalidJustification = errors.New("justification text is too short")

	errInvalidRecord   = errors.New("invalid attendance record")
	errInvalidRollCall = errors.New("invalid roll call")
)

type (
	Repository interface {
		CreateRecord(ctx context.Context, rec Record, exec ...core.DBExecutor) (Record, error)
		GetRecordByID(ctx context.Context, id string, exec ...core.DBExecutor) (Record, error)
		// QueryRecords applies AND operation on available QueryFilter fields.
		QueryRecords(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Record, error)
		UpdateRecord(ctx context.Context, rec Record, exec ...core.DBExecutor) (Record, error)
		// RecordExistsAt reports an exact (student, timestamp) collision.
		RecordExistsAt(ctx context.Context, studentID string, at time.Time, exec ...core.DBExecutor) (bool, error)
		// RecordExistsOn reports a (student, calendar date) collision.
		RecordExistsOn(ctx context.Context, studentID string, day time.Time, exec ...core.DBExecutor) (bool, error)
	}

	ServiceInterface interface {
		Create(ctx context.Context, actor core.Actor, nr NewRecord) (Record, error)
		Edit(ctx context.Context, actor core.Actor, id string, er EditRecord) (Record, error)
		Justify(ctx context.Context, actor core.Actor, id string, jr JustifyRecord) (Record, error)
		BulkRollCall(ctx context.Context, actor core.Actor, rc RollCall) (RollCallResult, error)
		GetByID(ctx context.Context, id string) (Record, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Record, error)
		History(ctx context.Context, id string) ([]audit.Entry, error)
		ClassRoster(ctx context.Context, classID string, date time.Time) ([]RosterStudent, error)
	}

	Service struct {
		db         core.DB
		repo       Repository
		enroll     enrollment.Lookup
		auditSvc   *audit.Service
		validate   *validator.Validate
		translator ut.Translator
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(
	db core.DB,
	repo Repository,
	enroll enrollment.Lookup,
	auditSvc *audit.Service,
	validate *validator.Validate,
	translator ut.Translator,
) *Service {
	return &Service{
		db:         db,
		repo:       repo,
		enroll:     enroll,
		auditSvc:   auditSvc,
		validate:   validate,
		translator: translator,
	}
}

// dateOf truncates a timestamp to its UTC calendar date.
func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// structFieldErrors runs struct validation and flattens every violation so
// callers get all of them at once.
func (svc *Service) structFieldErrors(data interface{}) []core.FieldError {
	var flds []core.FieldError
	if err := svc.validate.Struct(data); err != nil {
		if vErrs, ok := err.(validator.ValidationErrors); ok {
			for _, vErr := range vErrs {
				flds = append(flds, core.FieldError{Field: vErr.Field(), Error: vErr.Translate(svc.translator)})
			}
		}
	}
	return flds
}

// Create validates and persists a single attendance entry, and appends its
// "create" audit trail in the same transaction.
func (svc *Service) Create(ctx context.Context, actor core.Actor, nr NewRecord) (Record, error) {
	nr.Clean()

	year, err := svc.enroll.CurrentAcademicYear(ctx)
	if err != nil {
		return Record{}, errors.Wrap(err, "resolving academic year")
	}

	// all rules are evaluated so every violation is reported together
	flds := svc.structFieldErrors(&nr)

	var cls enrollment.Class
	if nr.StudentID != "" {
		cls, err = svc.enroll.ClassForStudent(ctx, nr.StudentID, year)
		if err != nil {
			if errors.Cause(err) == enrollment.ErrNotEnrolled {
				flds = append(flds, core.FieldError{Field: "student_id", Error: CodeUnknownStudent})
			} else {
				return Record{}, errors.Wrap(err, "resolving student class")
			}
		}
	}
	if len(flds) > 0 {
		return Record{}, core.NewValidationError(errInvalidRecord, flds...)
	}

	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, errors.Wrap(err, "starting transaction")
	}
	defer func() { _ = tx.Rollback() }()

	// the unique constraint inside the transaction is the source of truth;
	// this check only yields a friendlier error for the common case.
	exists, err := svc.repo.RecordExistsAt(ctx, nr.StudentID, nr.OccurredAt, tx)
	if err != nil {
		return Record{}, errors.Wrap(err, "checking for duplicate record")
	}
	if exists {
		return Record{}, core.NewValidationError(ErrDuplicateRecord,
			core.FieldError{Field: "occurred_at", Error: CodeDuplicateRecord})
	}

	now := nowFunc().UTC()
	rec := Record{
		StudentID:       nr.StudentID,
		ClassID:         cls.ID,
		Kind:            Kind{Base: nr.KindBase},
		OccurredAt:      nr.OccurredAt.UTC(),
		DurationMinutes: nr.DurationMinutes,
		Reason:          nr.Reason,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	rec, err = svc.repo.CreateRecord(ctx, rec, tx)
	if err != nil {
		if errors.Cause(err) == ErrDuplicateRecord {
			return Record{}, core.NewValidationError(ErrDuplicateRecord,
				core.FieldError{Field: "occurred_at", Error: CodeDuplicateRecord})
		}
		return Record{}, errors.Wrap(err, "creating record")
	}

	detail := fmt.Sprintf("%s recorded for student %s at %s", rec.Kind.Base, rec.StudentID, rec.OccurredAt.Format(time.RFC3339))
	if _, err = svc.auditSvc.Append(ctx, actor, audit.ActionCreate, rec.ID, detail, tx); err != nil {
		return Record{}, err
	}

	if err = tx.Commit(); err != nil {
		return Record{}, errors.Wrap(err, "committing transaction")
	}
	return rec, nil
}

// Edit modifies a record's non-justification fields. It can never touch the
// justified flag; Justify is the only path that sets it.
func (svc *Service) Edit(ctx context.Context, actor core.Actor, id string, er EditRecord) (Record, error) {
	er.Clean()

	if flds := svc.structFieldErrors(&er); len(flds) > 0 {
		return Record{}, core.NewValidationError(errInvalidRecord, flds...)
	}

	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, errors.Wrap(err, "starting transaction")
	}
	defer func() { _ = tx.Rollback() }()

	rec, err := svc.repo.GetRecordByID(ctx, id, tx)
	if err != nil {
		return Record{}, err
	}

	occurredAt := er.OccurredAt.UTC()
	if !occurredAt.Equal(rec.OccurredAt) {
		exists, err := svc.repo.RecordExistsAt(ctx, rec.StudentID, occurredAt, tx)
		if err != nil {
			return Record{}, errors.Wrap(err, "checking for duplicate record")
		}
		if exists {
			return Record{}, core.NewValidationError(ErrDuplicateRecord,
				core.FieldError{Field: "occurred_at", Error: CodeDuplicateRecord})
		}
	}

	detail := editDetail(rec, er)

	rec.Kind.Base = er.KindBase
	rec.OccurredAt = occurredAt
	rec.DurationMinutes = er.DurationMinutes
	rec.Reason = er.Reason
	rec.UpdatedAt = nowFunc().UTC()

	rec, err = svc.repo.UpdateRecord(ctx, rec, tx)
	if err != nil {
		if errors.Cause(err) == ErrDuplicateRecord {
			return Record{}, core.NewValidationError(ErrDuplicateRecord,
				core.FieldError{Field: "occurred_at", Error: CodeDuplicateRecord})
		}
		return Record{}, errors.Wrap(err, "updating record")
	}

	if _, err = svc.auditSvc.Append(ctx, actor, audit.ActionUpdate, rec.ID, detail, tx); err != nil {
		return Record{}, err
	}

	if err = tx.Commit(); err != nil {
		return Record{}, errors.Wrap(err, "committing transaction")
	}
	return rec, nil
}

func editDetail(old Record, er EditRecord) string {
	var changes []string
	if er.KindBase != old.Kind.Base {
		changes = append(changes, fmt.Sprintf("kind: %s -> %s", old.Kind.Base, er.KindBase))
	}
	if !er.OccurredAt.UTC().Equal(old.OccurredAt) {
		changes = append(changes, fmt.Sprintf("occurred_at: %s -> %s",
			old.OccurredAt.Format(time.RFC3339), er.OccurredAt.UTC().Format(time.RFC3339)))
	}
	if er.DurationMinutes != old.DurationMinutes {
		changes = append(changes, fmt.Sprintf("duration: %d -> %d", old.DurationMinutes, er.DurationMinutes))
	}
	if er.Reason != old.Reason {
		changes = append(changes, "reason changed")
	}
	if len(changes) == 0 {
		return "no changes"
	}
	detail := changes[0]
	for _, c := range changes[1:] {
		detail += "; " + c
	}
	return detail
}

// Justify advances a record from unjustified to justified. The transition is
// one-way: once justified, a record can never revert.
func (svc *Service) Justify(ctx context.Context, actor core.Actor, id string, jr JustifyRecord) (Record, error) {
	jr.Clean()

	if err := jr.Validate(svc.validate); err != nil {
		return Record{}, err
	}

	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, errors.Wrap(err, "starting transaction")
	}
	defer func() { _ = tx.Rollback() }()

	rec, err := svc.repo.GetRecordByID(ctx, id, tx)
	if err != nil {
		return Record{}, err
	}
	if rec.Kind.Justified {
		return Record{}, core.NewValidationError(ErrAlreadyJustified,
			core.FieldError{Field: "record", Error: CodeAlreadyJustified})
	}

	now := nowFunc().UTC()
	rec.Kind = rec.Kind.Justify()
	rec.Justification = &Justification{
		Text:        jr.Text,
		Attachment:  jr.Attachment,
		ValidatedBy: actor.ID,
		ValidatedAt: now,
	}
	rec.UpdatedAt = now

	rec, err = svc.repo.UpdateRecord(ctx, rec, tx)
	if err != nil {
		return Record{}, errors.Wrap(err, "updating record")
	}

	detail := fmt.Sprintf("%s justified by %s", rec.Kind.Base, actor.Username)
	if _, err = svc.auditSvc.Append(ctx, actor, audit.ActionJustify, rec.ID, detail, tx); err != nil {
		return Record{}, err
	}

	if err = tx.Commit(); err != nil {
		return Record{}, errors.Wrap(err, "committing transaction")
	}
	return rec, nil
}

// BulkRollCall processes a whole-class roll call in one transaction.
// Row-level validation failures are collected and skipped; only
// infrastructure failures abort the batch, rolling everything back.
func (svc *Service) BulkRollCall(ctx context.Context, actor core.Actor, rc RollCall) (RollCallResult, error) {
	rc.Clean()

	if flds := svc.structFieldErrors(&rc); len(flds) > 0 {
		return RollCallResult{}, core.NewValidationError(errInvalidRollCall, flds...)
	}

	year, err := svc.enroll.CurrentAcademicYear(ctx)
	if err != nil {
		return RollCallResult{}, errors.Wrap(err, "resolving academic year")
	}

	// batch-level check: an unknown class aborts the whole call
	exists, err := svc.enroll.ClassExists(ctx, rc.ClassID, year)
	if err != nil {
		return RollCallResult{}, errors.Wrap(err, "resolving class")
	}
	if !exists {
		return RollCallResult{}, core.NewValidationError(errInvalidRollCall,
			core.FieldError{Field: "class_id", Error: CodeUnknownClass})
	}

	// rows are independent; sort for stable reporting
	studentIDs := make([]string, 0, len(rc.Entries))
	for studentID := range rc.Entries {
		studentIDs = append(studentIDs, studentID)
	}
	sort.Strings(studentIDs)

	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return RollCallResult{}, errors.Wrap(err, "starting transaction")
	}
	defer func() { _ = tx.Rollback() }()

	occurredAt := rc.OccurredAt.UTC()
	day := dateOf(occurredAt)
	now := nowFunc().UTC()
	res := RollCallResult{Skipped: make([]SkippedEntry, 0)}

	for _, studentID := range studentIDs {
		entry := rc.Entries[studentID]
		if entry.Status == RollPresent {
			continue // present students produce no record
		}

		skip := func(reason string) {
			res.Skipped = append(res.Skipped, SkippedEntry{StudentID: studentID, Reason: reason})
		}

		if !entry.Status.Valid() {
			skip(CodeInvalidKind)
			continue
		}

		enrolled, err := svc.enroll.IsEnrolled(ctx, studentID, rc.ClassID, year)
		if err != nil {
			return RollCallResult{}, errors.Wrap(err, "checking enrollment")
		}
		if !enrolled {
			skip(CodeStudentNotInClass)
			continue
		}

		// a roll call covers one session per day: guard on the calendar date
		exists, err := svc.repo.RecordExistsOn(ctx, studentID, day, tx)
		if err != nil {
			return RollCallResult{}, errors.Wrap(err, "checking for duplicate record")
		}
		if exists {
			skip(CodeDuplicateForDate)
			continue
		}

		if flds := svc.structFieldErrors(&entry); len(flds) > 0 {
			skip(flds[0].Error)
			continue
		}

		rec := Record{
			StudentID:       studentID,
			ClassID:         rc.ClassID,
			Kind:            Kind{Base: entry.Status.Base()},
			OccurredAt:      occurredAt,
			DurationMinutes: entry.DurationMinutes,
			Reason:          core.CleanString(entry.Reason),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		rec, err = svc.repo.CreateRecord(ctx, rec, tx)
		if err != nil {
			if errors.Cause(err) == ErrDuplicateRecord {
				skip(CodeDuplicateForDate)
				continue
			}
			return RollCallResult{}, errors.Wrap(err, "creating record")
		}

		detail := fmt.Sprintf("%s recorded for student %s at %s (roll call)", rec.Kind.Base, studentID, occurredAt.Format(time.RFC3339))
		if _, err = svc.auditSvc.Append(ctx, actor, audit.ActionCreate, rec.ID, detail, tx); err != nil {
			return RollCallResult{}, err
		}
		res.Created++
	}

	// single summary entry for the batch, after all row inserts
	detail := fmt.Sprintf("roll call for class %s on %s: %d created, %d skipped",
		rc.ClassID, day.Format("2006-01-02"), res.Created, len(res.Skipped))
	if _, err = svc.auditSvc.Append(ctx, actor, audit.ActionBulkCreate, rc.ClassID, detail, tx); err != nil {
		return RollCallResult{}, err
	}

	if err = tx.Commit(); err != nil {
		return RollCallResult{}, errors.Wrap(err, "committing transaction")
	}
	return res, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Record, error) {
	return svc.repo.GetRecordByID(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Record, error) {
	return svc.repo.QueryRecords(ctx, filter, ordering)
}

// History returns a record's audit timeline, newest first.
func (svc *Service) History(ctx context.Context, id string) ([]audit.Entry, error) {
	if _, err := svc.repo.GetRecordByID(ctx, id); err != nil {
		return nil, err
	}
	return svc.auditSvc.History(ctx, id)
}

// RosterStudent is an enrolled student, optionally annotated with whether an
// attendance record already exists for the requested date.
type RosterStudent struct {
	enrollment.Student
	HasRecord *bool `json:"has_record,omitempty"`
}

// ClassRoster lists a class's enrolled students for the active academic year.
// When date is non-zero, each student is annotated with HasRecord for it.
func (svc *Service) ClassRoster(ctx context.Context, classID string, date time.Time) ([]RosterStudent, error) {
	year, err := svc.enroll.CurrentAcademicYear(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "resolving academic year")
	}

	exists, err := svc.enroll.ClassExists(ctx, classID, year)
	if err != nil {
		return nil, errors.Wrap(err, "resolving class")
	}
	if !exists {
		return nil, enrollment.ErrClassNotFound
	}

	students, err := svc.enroll.StudentsForClass(ctx, classID, year)
	if err != nil {
		return nil, errors.Wrap(err, "querying class students")
	}

	roster := make([]RosterStudent, 0, len(students))
	for _, st := range students {
		rst := RosterStudent{Student: st}
		if !date.IsZero() {
			has, err := svc.repo.RecordExistsOn(ctx, st.ID, dateOf(date))
			if err != nil {
				return nil, errors.Wrap(err, "checking for existing record")
			}
			rst.HasRecord = &has
		}
		roster = append(roster, rst)
	}
	return roster, nil
}
