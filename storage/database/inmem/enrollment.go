package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/enrollment"
)

type enrollmentRepository struct {
	db *DB
}

var _ enrollment.Repository = (*enrollmentRepository)(nil)

func NewEnrollmentRepository(db *DB) *enrollmentRepository {
	return &enrollmentRepository{db: db}
}

func (repo *enrollmentRepository) GetActiveAcademicYear(ctx context.Context, exec ...core.DBExecutor) (string, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if repo.db.activeYear == "" {
		return "", enrollment.ErrNoActiveYear
	}
	return repo.db.activeYear, nil
}

func (repo *enrollmentRepository) GetEnrollment(ctx context.Context, studentID, academicYear string, exec ...core.DBExecutor) (enrollment.Enrollment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, enr := range repo.db.enrollments {
		if enr.StudentID == studentID && enr.AcademicYear == academicYear {
			return enr, nil
		}
	}
	return enrollment.Enrollment{}, enrollment.ErrNotEnrolled
}

func (repo *enrollmentRepository) GetClass(ctx context.Context, classID, academicYear string, exec ...core.DBExecutor) (enrollment.Class, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if cls, ok := repo.db.classes[classID]; ok && cls.AcademicYear == academicYear {
		return cls, nil
	}
	return enrollment.Class{}, enrollment.ErrClassNotFound
}

func (repo *enrollmentRepository) QueryClassStudents(ctx context.Context, classID, academicYear string, exec ...core.DBExecutor) ([]enrollment.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	students := make([]enrollment.Student, 0)
	for _, enr := range repo.db.enrollments {
		if enr.ClassID == classID && enr.AcademicYear == academicYear && enr.IsActive {
			if st, ok := repo.db.students[enr.StudentID]; ok {
				students = append(students, st)
			}
		}
	}
	sort.Slice(students, func(i, j int) bool { return students[i].Name < students[j].Name })
	return students, nil
}
