package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core/attendance"
	"github.com/trezcool/shule/core/enrollment"
	inmemdb "github.com/trezcool/shule/storage/database/inmem"
)

// PrepareDB returns a clean in-memory DB, reset after the test.
func PrepareDB(t *testing.T) *inmemdb.DB {
	t.Helper()
	db := inmemdb.NewDB()
	t.Cleanup(db.Reset)
	return db
}

func CreateStudent(t *testing.T, db *inmemdb.DB, name string) enrollment.Student {
	t.Helper()
	st := enrollment.Student{
		ID:       uuid.New().String(),
		Name:     name,
		IsActive: true,
	}
	db.AddStudent(st)
	return st
}

func CreateClass(t *testing.T, db *inmemdb.DB, name, academicYear string) enrollment.Class {
	t.Helper()
	cls := enrollment.Class{
		ID:           uuid.New().String(),
		Name:         name,
		AcademicYear: academicYear,
	}
	db.AddClass(cls)
	return cls
}

func Enroll(t *testing.T, db *inmemdb.DB, st enrollment.Student, cls enrollment.Class) enrollment.Enrollment {
	t.Helper()
	enr := enrollment.Enrollment{
		StudentID:    st.ID,
		ClassID:      cls.ID,
		AcademicYear: cls.AcademicYear,
		IsActive:     true,
	}
	db.Enroll(enr)
	return enr
}

// CreateEnrolledStudent seeds a student enrolled in cls for its academic year.
func CreateEnrolledStudent(t *testing.T, db *inmemdb.DB, name string, cls enrollment.Class) enrollment.Student {
	t.Helper()
	st := CreateStudent(t, db, name)
	Enroll(t, db, st, cls)
	return st
}

func CreateRecord(
	t *testing.T,
	repo attendance.Repository,
	st enrollment.Student,
	cls enrollment.Class,
	base attendance.Base,
	occurredAt time.Time,
	durationMinutes int,
) attendance.Record {
	t.Helper()
	tstamp := time.Now().UTC()
	rec := attendance.Record{
		StudentID:       st.ID,
		ClassID:         cls.ID,
		Kind:            attendance.Kind{Base: base},
		OccurredAt:      occurredAt.UTC(),
		DurationMinutes: durationMinutes,
		CreatedAt:       tstamp,
		UpdatedAt:       tstamp,
	}
	rec, err := repo.CreateRecord(context.Background(), rec)
	if err != nil {
		t.Fatalf("CreateRecord() failed: %v", err)
	}
	return rec
}
