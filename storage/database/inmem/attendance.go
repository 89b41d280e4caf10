package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/attendance"
)

type attendanceRepository struct {
	db *DB
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db *DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

func sameDay(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func (repo *attendanceRepository) CreateRecord(ctx context.Context, rec attendance.Record, exec ...core.DBExecutor) (attendance.Record, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, existing := range repo.db.records {
		if existing.StudentID == rec.StudentID && existing.OccurredAt.Equal(rec.OccurredAt) {
			return attendance.Record{}, attendance.ErrDuplicateRecord
		}
	}

	rec.ID = uuid.New().String()
	if rec.Justification != nil {
		j := *rec.Justification
		rec.Justification = &j
	}
	repo.db.records[rec.ID] = rec
	return rec, nil
}

func (repo *attendanceRepository) GetRecordByID(ctx context.Context, id string, exec ...core.DBExecutor) (attendance.Record, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if rec, ok := repo.db.records[id]; ok {
		return rec, nil
	}
	return attendance.Record{}, attendance.ErrNotFound
}

func (repo *attendanceRepository) QueryRecords(
	ctx context.Context,
	filter *attendance.QueryFilter,
	ordering []core.DBOrdering,
	exec ...core.DBExecutor,
) ([]attendance.Record, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	recs := make([]attendance.Record, 0, len(repo.db.records))
	for _, rec := range repo.db.records {
		if filter != nil {
			if filter.StudentID != "" && rec.StudentID != filter.StudentID {
				continue
			}
			if filter.ClassID != "" && rec.ClassID != filter.ClassID {
				continue
			}
			if filter.KindBase != "" && rec.Kind.Base != filter.KindBase {
				continue
			}
			if filter.Justified != nil && rec.Kind.Justified != *filter.Justified {
				continue
			}
			if !filter.OccurredFrom.IsZero() && rec.OccurredAt.Before(filter.OccurredFrom.UTC()) {
				continue
			}
			if !filter.OccurredTo.IsZero() && rec.OccurredAt.After(filter.OccurredTo.UTC()) {
				continue
			}
		}
		recs = append(recs, rec)
	}

	// only occurred_at ordering is supported here; newest first by default
	ascending := false
	for _, ord := range ordering {
		if ord.Field == "occurred_at" {
			ascending = ord.Ascending
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		if ascending {
			return recs[i].OccurredAt.Before(recs[j].OccurredAt)
		}
		return recs[i].OccurredAt.After(recs[j].OccurredAt)
	})
	return recs, nil
}

func (repo *attendanceRepository) UpdateRecord(ctx context.Context, rec attendance.Record, exec ...core.DBExecutor) (attendance.Record, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.records[rec.ID]; !ok {
		return attendance.Record{}, attendance.ErrNotFound
	}
	for _, existing := range repo.db.records {
		if existing.ID != rec.ID && existing.StudentID == rec.StudentID && existing.OccurredAt.Equal(rec.OccurredAt) {
			return attendance.Record{}, attendance.ErrDuplicateRecord
		}
	}

	if rec.Justification != nil {
		j := *rec.Justification
		rec.Justification = &j
	}
	repo.db.records[rec.ID] = rec
	return rec, nil
}

func (repo *attendanceRepository) RecordExistsAt(ctx context.Context, studentID string, at time.Time, exec ...core.DBExecutor) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, rec := range repo.db.records {
		if rec.StudentID == studentID && rec.OccurredAt.Equal(at.UTC()) {
			return true, nil
		}
	}
	return false, nil
}

func (repo *attendanceRepository) RecordExistsOn(ctx context.Context, studentID string, day time.Time, exec ...core.DBExecutor) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, rec := range repo.db.records {
		if rec.StudentID == studentID && sameDay(rec.OccurredAt, day) {
			return true, nil
		}
	}
	return false, nil
}
