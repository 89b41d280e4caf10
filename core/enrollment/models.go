package enrollment

type Student struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

type Class struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	AcademicYear string `json:"academic_year"`
}

// Enrollment associates a student to a class for an academic year. It is the
// authoritative source for which class an attendance record belongs to.
type Enrollment struct {
	StudentID    string `json:"student_id"`
	ClassID      string `json:"class_id"`
	AcademicYear string `json:"academic_year"`
	IsActive     bool   `json:"is_active"`
}
