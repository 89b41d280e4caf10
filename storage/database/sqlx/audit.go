package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/audit"
)

type auditRow struct {
	ID         string      `db:"id"`
	ActorID    string      `db:"actor_user_id"`
	Action     string      `db:"action"`
	TargetID   string      `db:"target_record_id"`
	Detail     null.String `db:"detail"`
	OccurredAt time.Time   `db:"occurred_at"`
}

type auditRepository struct {
	db *sqlx.DB
}

var _ audit.Repository = (*auditRepository)(nil) // interface compliance check

func NewAuditRepository(db *sqlx.DB) *auditRepository {
	return &auditRepository{db: db}
}

func (repo auditRepository) ext(svcExec []core.DBExecutor) sqlx.ExtContext {
	if len(svcExec) > 0 {
		if e, ok := svcExec[0].(sqlx.ExtContext); ok {
			return e
		}
	}
	return repo.db
}

func (repo auditRepository) unrow(row auditRow) audit.Entry {
	return audit.Entry{
		ID:         row.ID,
		ActorID:    row.ActorID,
		Action:     audit.Action(row.Action),
		TargetID:   row.TargetID,
		Detail:     row.Detail.String,
		OccurredAt: row.OccurredAt.UTC(),
	}
}

func (repo auditRepository) CreateEntry(ctx context.Context, entry audit.Entry, exec ...core.DBExecutor) (audit.Entry, error) {
	entry.ID = uuid.New().String()
	row := auditRow{
		ID:         entry.ID,
		ActorID:    entry.ActorID,
		Action:     string(entry.Action),
		TargetID:   entry.TargetID,
		Detail:     null.NewString(entry.Detail, entry.Detail != ""),
		OccurredAt: entry.OccurredAt.UTC(),
	}

	query := `
		INSERT INTO audit_entry (id, actor_user_id, action, target_record_id, detail, occurred_at)
		VALUES (:id, :actor_user_id, :action, :target_record_id, :detail, :occurred_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.ext(exec), query, row); err != nil {
		return audit.Entry{}, errors.Wrap(err, "inserting audit entry")
	}
	return repo.unrow(row), nil
}

func (repo auditRepository) QueryEntriesByTarget(ctx context.Context, targetID string, exec ...core.DBExecutor) ([]audit.Entry, error) {
	query, args, err := psql.Select("id", "actor_user_id", "action", "target_record_id", "detail", "occurred_at").
		From("audit_entry").
		Where(sq.Eq{"target_record_id": targetID}).
		OrderBy("occurred_at DESC", "seq DESC"). // seq breaks same-timestamp ties
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}

	var rows []auditRow
	if err = sqlx.SelectContext(ctx, repo.ext(exec), &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying audit entries")
	}

	entries := make([]audit.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, repo.unrow(row))
	}
	return entries, nil
}
