package enrollment

import (
	"context"
	"errors"

	"github.com/trezcool/shule/core"
)

var (
	// errors
	ErrNoActiveYear  = errors.New("no active academic year")
	ErrNotEnrolled   = errors.New("student has no active enrollment")
	ErrClassNotFound = errors.New("class not found")
)

type (
	// Lookup is the enrollment contract consumed by attendance. Attendance
	// logic trusts but verifies its results.
	Lookup interface {
		CurrentAcademicYear(ctx context.Context) (string, error)
		IsEnrolled(ctx context.Context, studentID, classID, academicYear string) (bool, error)
		ClassExists(ctx context.Context, classID, academicYear string) (bool, error)
		// ClassForStudent resolves a student's current class for the academic year.
		ClassForStudent(ctx context.Context, studentID, academicYear string) (Class, error)
		StudentsForClass(ctx context.Context, classID, academicYear string) ([]Student, error)
	}

	Repository interface {
		GetActiveAcademicYear(ctx context.Context, exec ...core.DBExecutor) (string, error)
		GetEnrollment(ctx context.Context, studentID, academicYear string, exec ...core.DBExecutor) (Enrollment, error)
		GetClass(ctx context.Context, classID, academicYear string, exec ...core.DBExecutor) (Class, error)
		QueryClassStudents(ctx context.Context, classID, academicYear string, exec ...core.DBExecutor) ([]Student, error)
	}

	Service struct {
		repo Repository
	}
)

var _ Lookup = (*Service)(nil) // interface compliance check

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) CurrentAcademicYear(ctx context.Context) (string, error) {
	return svc.repo.GetActiveAcademicYear(ctx)
}

func (svc *Service) IsEnrolled(ctx context.Context, studentID, classID, academicYear string) (bool, error) {
	enr, err := svc.repo.GetEnrollment(ctx, studentID, academicYear)
	if err != nil {
		if err == ErrNotEnrolled {
			return false, nil
		}
		return false, err
	}
	return enr.IsActive && enr.ClassID == classID, nil
}

func (svc *Service) ClassExists(ctx context.Context, classID, academicYear string) (bool, error) {
	if _, err := svc.repo.GetClass(ctx, classID, academicYear); err != nil {
		if err == ErrClassNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (svc *Service) ClassForStudent(ctx context.Context, studentID, academicYear string) (Class, error) {
	enr, err := svc.repo.GetEnrollment(ctx, studentID, academicYear)
	if err != nil {
		return Class{}, err
	}
	if !enr.IsActive {
		return Class{}, ErrNotEnrolled
	}
	return svc.repo.GetClass(ctx, enr.ClassID, academicYear)
}

func (svc *Service) StudentsForClass(ctx context.Context, classID, academicYear string) ([]Student, error) {
	return svc.repo.QueryClassStudents(ctx, classID, academicYear)
}
