package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/attendance"
)

const uniqueViolation = "23505"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var recordColumns = []string{
	"id", "student_id", "class_id", "kind_base", "justified", "occurred_at",
	"duration_minutes", "reason", "justification_text", "justification_attachment",
	"validated_by", "validated_at", "created_at", "updated_at",
}

type recordRow struct {
	ID                      string      `db:"id"`
	StudentID               string      `db:"student_id"`
	ClassID                 string      `db:"class_id"`
	KindBase                string      `db:"kind_base"`
	Justified               bool        `db:"justified"`
	OccurredAt              time.Time   `db:"occurred_at"`
	DurationMinutes         null.Int    `db:"duration_minutes"`
	Reason                  null.String `db:"reason"`
	JustificationText       null.String `db:"justification_text"`
	JustificationAttachment null.String `db:"justification_attachment"`
	ValidatedBy             null.String `db:"validated_by"`
	ValidatedAt             null.Time   `db:"validated_at"`
	CreatedAt               time.Time   `db:"created_at"`
	UpdatedAt               time.Time   `db:"updated_at"`
}

type attendanceRepository struct {
	db *sqlx.DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *sqlx.DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

// ext resolves the executor for a call: the service-provided transaction when
// there is one, the repository's DB handle otherwise.
func (repo attendanceRepository) ext(svcExec []core.DBExecutor) sqlx.ExtContext {
	if len(svcExec) > 0 {
		if e, ok := svcExec[0].(sqlx.ExtContext); ok {
			return e
		}
	}
	return repo.db
}

func (repo attendanceRepository) row(rec attendance.Record) recordRow {
	row := recordRow{
		ID:              rec.ID,
		StudentID:       rec.StudentID,
		ClassID:         rec.ClassID,
		KindBase:        string(rec.Kind.Base),
		Justified:       rec.Kind.Justified,
		OccurredAt:      rec.OccurredAt.UTC(),
		DurationMinutes: null.NewInt(rec.DurationMinutes, rec.DurationMinutes != 0),
		Reason:          null.NewString(rec.Reason, rec.Reason != ""),
		CreatedAt:       rec.CreatedAt.UTC(),
		UpdatedAt:       rec.UpdatedAt.UTC(),
	}
	if j := rec.Justification; j != nil {
		row.JustificationText = null.StringFrom(j.Text)
		row.JustificationAttachment = null.NewString(j.Attachment, j.Attachment != "")
		row.ValidatedBy = null.NewString(j.ValidatedBy, j.ValidatedBy != "")
		row.ValidatedAt = null.NewTime(j.ValidatedAt.UTC(), !j.ValidatedAt.IsZero())
	}
	return row
}

func (repo attendanceRepository) unrow(row recordRow) attendance.Record {
	rec := attendance.Record{
		ID:              row.ID,
		StudentID:       row.StudentID,
		ClassID:         row.ClassID,
		Kind:            attendance.Kind{Base: attendance.Base(row.KindBase), Justified: row.Justified},
		OccurredAt:      row.OccurredAt.UTC(),
		DurationMinutes: int(row.DurationMinutes.Int),
		Reason:          row.Reason.String,
		CreatedAt:       row.CreatedAt.UTC(),
		UpdatedAt:       row.UpdatedAt.UTC(),
	}
	if row.Justified {
		rec.Justification = &attendance.Justification{
			Text:        row.JustificationText.String,
			Attachment:  row.JustificationAttachment.String,
			ValidatedBy: row.ValidatedBy.String,
			ValidatedAt: row.ValidatedAt.Time.UTC(),
		}
	}
	return rec
}

func (repo attendanceRepository) unrowSlice(rows []recordRow) []attendance.Record {
	recs := make([]attendance.Record, 0, len(rows))
	for _, row := range rows {
		recs = append(recs, repo.unrow(row))
	}
	return recs
}

// trapErr maps psql "no rows" to attendance.ErrNotFound and unique violations
// on (student_id, occurred_at) to attendance.ErrDuplicateRecord.
func (repo attendanceRepository) trapErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return attendance.ErrNotFound
	}
	if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == uniqueViolation {
		return attendance.ErrDuplicateRecord
	}
	return errors.Wrap(err, msg)
}

func (repo attendanceRepository) CreateRecord(ctx context.Context, rec attendance.Record, exec ...core.DBExecutor) (attendance.Record, error) {
	rec.ID = uuid.New().String()
	row := repo.row(rec)

	query := `
		INSERT INTO attendance_record (
			id, student_id, class_id, kind_base, justified, occurred_at,
			duration_minutes, reason, justification_text, justification_attachment,
			validated_by, validated_at, created_at, updated_at
		) VALUES (
			:id, :student_id, :class_id, :kind_base, :justified, :occurred_at,
			:duration_minutes, :reason, :justification_text, :justification_attachment,
			:validated_by, :validated_at, :created_at, :updated_at
		)`
	if _, err := sqlx.NamedExecContext(ctx, repo.ext(exec), query, row); err != nil {
		return attendance.Record{}, repo.trapErr(err, "inserting attendance record")
	}
	return repo.unrow(row), nil
}

func (repo attendanceRepository) GetRecordByID(ctx context.Context, id string, exec ...core.DBExecutor) (attendance.Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return attendance.Record{}, attendance.ErrNotFound
	}

	query, args, err := psql.Select(recordColumns...).
		From("attendance_record").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return attendance.Record{}, errors.Wrap(err, "building query")
	}

	var row recordRow
	if err = sqlx.GetContext(ctx, repo.ext(exec), &row, query, args...); err != nil {
		return attendance.Record{}, repo.trapErr(err, "finding attendance record by ID")
	}
	return repo.unrow(row), nil
}

func (repo attendanceRepository) QueryRecords(
	ctx context.Context,
	filter *attendance.QueryFilter,
	ordering []core.DBOrdering,
	exec ...core.DBExecutor,
) ([]attendance.Record, error) {
	qb := psql.Select(recordColumns...).From("attendance_record")

	if filter != nil {
		if filter.StudentID != "" {
			if _, err := uuid.Parse(filter.StudentID); err != nil {
				return []attendance.Record{}, nil
			}
			qb = qb.Where(sq.Eq{"student_id": filter.StudentID})
		}
		if filter.ClassID != "" {
			if _, err := uuid.Parse(filter.ClassID); err != nil {
				return []attendance.Record{}, nil
			}
			qb = qb.Where(sq.Eq{"class_id": filter.ClassID})
		}
		if filter.KindBase != "" {
			qb = qb.Where(sq.Eq{"kind_base": string(filter.KindBase)})
		}
		if filter.Justified != nil {
			qb = qb.Where(sq.Eq{"justified": *filter.Justified})
		}
		if !filter.OccurredFrom.IsZero() {
			qb = qb.Where(sq.GtOrEq{"occurred_at": filter.OccurredFrom.UTC()})
		}
		if !filter.OccurredTo.IsZero() {
			qb = qb.Where(sq.LtOrEq{"occurred_at": filter.OccurredTo.UTC()})
		}
	}

	if len(ordering) > 0 {
		for _, ord := range ordering {
			qb = qb.OrderBy(ord.String())
		}
	} else {
		qb = qb.OrderBy("occurred_at DESC")
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}

	var rows []recordRow
	if err = sqlx.SelectContext(ctx, repo.ext(exec), &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying attendance records")
	}
	return repo.unrowSlice(rows), nil
}

func (repo attendanceRepository) UpdateRecord(ctx context.Context, rec attendance.Record, exec ...core.DBExecutor) (attendance.Record, error) {
	row := repo.row(rec)

	query := `
		UPDATE attendance_record SET
			kind_base = :kind_base,
			justified = :justified,
			occurred_at = :occurred_at,
			duration_minutes = :duration_minutes,
			reason = :reason,
			justification_text = :justification_text,
			justification_attachment = :justification_attachment,
			validated_by = :validated_by,
			validated_at = :validated_at,
			updated_at = :updated_at
		WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.ext(exec), query, row)
	if err != nil {
		return attendance.Record{}, repo.trapErr(err, "updating attendance record")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return attendance.Record{}, attendance.ErrNotFound
	}
	return repo.unrow(row), nil
}

func (repo attendanceRepository) RecordExistsAt(ctx context.Context, studentID string, at time.Time, exec ...core.DBExecutor) (bool, error) {
	if _, err := uuid.Parse(studentID); err != nil {
		return false, nil
	}

	query, args, err := psql.Select("COUNT(*) > 0").
		From("attendance_record").
		Where(sq.Eq{"student_id": studentID, "occurred_at": at.UTC()}).
		ToSql()
	if err != nil {
		return false, errors.Wrap(err, "building query")
	}

	var exists bool
	if err = sqlx.GetContext(ctx, repo.ext(exec), &exists, query, args...); err != nil {
		return false, errors.Wrap(err, "checking record existence")
	}
	return exists, nil
}

func (repo attendanceRepository) RecordExistsOn(ctx context.Context, studentID string, day time.Time, exec ...core.DBExecutor) (bool, error) {
	if _, err := uuid.Parse(studentID); err != nil {
		return false, nil
	}

	day = day.UTC()
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	query, args, err := psql.Select("COUNT(*) > 0").
		From("attendance_record").
		Where(sq.Eq{"student_id": studentID}).
		Where(sq.GtOrEq{"occurred_at": from}).
		Where(sq.Lt{"occurred_at": to}).
		ToSql()
	if err != nil {
		return false, errors.Wrap(err, "building query")
	}

	var exists bool
	if err = sqlx.GetContext(ctx, repo.ext(exec), &exists, query, args...); err != nil {
		return false, errors.Wrap(err, "checking record existence")
	}
	return exists, nil
}
