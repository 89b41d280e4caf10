package sqlxrepos

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/enrollment"
)

type (
	studentRow struct {
		ID       string `db:"id"`
		Name     string `db:"name"`
		IsActive bool   `db:"is_active"`
	}

	classRow struct {
		ID           string `db:"id"`
		Name         string `db:"name"`
		AcademicYear string `db:"academic_year"`
	}

	enrollmentRow struct {
		StudentID    string `db:"student_id"`
		ClassID      string `db:"class_id"`
		AcademicYear string `db:"academic_year"`
		IsActive     bool   `db:"is_active"`
	}
)

type enrollmentRepository struct {
	db *sqlx.DB
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *sqlx.DB) *enrollmentRepository {
	return &enrollmentRepository{db: db}
}

func (repo enrollmentRepository) ext(svcExec []core.DBExecutor) sqlx.ExtContext {
	if len(svcExec) > 0 {
		if e, ok := svcExec[0].(sqlx.ExtContext); ok {
			return e
		}
	}
	return repo.db
}

func (repo enrollmentRepository) GetActiveAcademicYear(ctx context.Context, exec ...core.DBExecutor) (string, error) {
	query, args, err := psql.Select("year").
		From("academic_year").
		Where(sq.Eq{"is_active": true}).
		ToSql()
	if err != nil {
		return "", errors.Wrap(err, "building query")
	}

	var year string
	if err = sqlx.GetContext(ctx, repo.ext(exec), &year, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return "", enrollment.ErrNoActiveYear
		}
		return "", errors.Wrap(err, "finding active academic year")
	}
	return year, nil
}

func (repo enrollmentRepository) GetEnrollment(ctx context.Context, studentID, academicYear string, exec ...core.DBExecutor) (enrollment.Enrollment, error) {
	if _, err := uuid.Parse(studentID); err != nil {
		return enrollment.Enrollment{}, enrollment.ErrNotEnrolled
	}

	query, args, err := psql.Select("student_id", "class_id", "academic_year", "is_active").
		From("enrollment").
		Where(sq.Eq{"student_id": studentID, "academic_year": academicYear}).
		ToSql()
	if err != nil {
		return enrollment.Enrollment{}, errors.Wrap(err, "building query")
	}

	var row enrollmentRow
	if err = sqlx.GetContext(ctx, repo.ext(exec), &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return enrollment.Enrollment{}, enrollment.ErrNotEnrolled
		}
		return enrollment.Enrollment{}, errors.Wrap(err, "finding enrollment")
	}
	return enrollment.Enrollment{
		StudentID:    row.StudentID,
		ClassID:      row.ClassID,
		AcademicYear: row.AcademicYear,
		IsActive:     row.IsActive,
	}, nil
}

func (repo enrollmentRepository) GetClass(ctx context.Context, classID, academicYear string, exec ...core.DBExecutor) (enrollment.Class, error) {
	if _, err := uuid.Parse(classID); err != nil {
		return enrollment.Class{}, enrollment.ErrClassNotFound
	}

	query, args, err := psql.Select("id", "name", "academic_year").
		From("class").
		Where(sq.Eq{"id": classID, "academic_year": academicYear}).
		ToSql()
	if err != nil {
		return enrollment.Class{}, errors.Wrap(err, "building query")
	}

	var row classRow
	if err = sqlx.GetContext(ctx, repo.ext(exec), &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return enrollment.Class{}, enrollment.ErrClassNotFound
		}
		return enrollment.Class{}, errors.Wrap(err, "finding class")
	}
	return enrollment.Class{ID: row.ID, Name: row.Name, AcademicYear: row.AcademicYear}, nil
}

func (repo enrollmentRepository) QueryClassStudents(ctx context.Context, classID, academicYear string, exec ...core.DBExecutor) ([]enrollment.Student, error) {
	if _, err := uuid.Parse(classID); err != nil {
		return []enrollment.Student{}, nil
	}

	query, args, err := psql.Select("s.id", "s.name", "s.is_active").
		From("student s").
		Join("enrollment e ON e.student_id = s.id").
		Where(sq.Eq{"e.class_id": classID, "e.academic_year": academicYear, "e.is_active": true}).
		OrderBy("s.name ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}

	var rows []studentRow
	if err = sqlx.SelectContext(ctx, repo.ext(exec), &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying class students")
	}

	students := make([]enrollment.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, enrollment.Student{ID: row.ID, Name: row.Name, IsActive: row.IsActive})
	}
	return students, nil
}
