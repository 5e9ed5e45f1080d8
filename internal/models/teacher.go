package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Course is the subject a teacher is assigned to.
type Course string

const (
	CourseBiologia               Course = "BIOLOGÍA"
	CourseCivica                 Course = "CÍVICA"
	CourseFilosofia              Course = "FILOSOFÍA"
	CourseFisica                 Course = "FÍSICA"
	CourseGeografia              Course = "GEOGRAFÍA"
	CourseHistoria               Course = "HISTORIA"
	CourseIngles                 Course = "INGLES"
	CourseLenguaje               Course = "LENGUAJE"
	CourseLiteratura             Course = "LITERATURA"
	CourseMatematica             Course = "MATEMÁTICA"
	CoursePsicologia             Course = "PSICOLOGÍA"
	CourseQuimica                Course = "QUÍMICA"
	CourseRazonamientoLogico     Course = "RAZONAMIENTO LÓGICO"
	CourseRazonamientoMatematico Course = "RAZONAMIENTO MATEMÁTICO"
	CourseRazonamientoVerbal     Course = "RAZONAMIENTO VERBAL"
)

// Courses lists every accepted course.
func Courses() []Course {
	return []Course{
		CourseBiologia, CourseCivica, CourseFilosofia, CourseFisica, CourseGeografia,
		CourseHistoria, CourseIngles, CourseLenguaje, CourseLiteratura, CourseMatematica,
		CoursePsicologia, CourseQuimica, CourseRazonamientoLogico, CourseRazonamientoMatematico,
		CourseRazonamientoVerbal,
	}
}

// Valid reports whether c is one of Courses.
func (c Course) Valid() bool {
	for _, known := range Courses() {
		if c == known {
			return true
		}
	}
	return false
}

// WorkCondition describes the teacher's employment elsewhere.
type WorkCondition string

const (
	WorkConditionFullTime WorkCondition = "tiempo completo"
	WorkConditionPartTime WorkCondition = "tiempo parcial"
	WorkConditionNone     WorkCondition = "no trabaja en otra institución"
)

// Valid reports whether w is a known work condition.
func (w WorkCondition) Valid() bool {
	switch w {
	case WorkConditionFullTime, WorkConditionPartTime, WorkConditionNone:
		return true
	}
	return false
}

// ShiftHours maps a free-form shift name ("turno 1") to weekly hours.
// Stored as JSONB.
type ShiftHours map[string]int

// Total sums the hours of every shift.
func (s ShiftHours) Total() int {
	total := 0
	for _, h := range s {
		total += h
	}
	return total
}

// Names returns shift names in lexical order.
func (s ShiftHours) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Value implements driver.Valuer.
func (s ShiftHours) Value() (driver.Value, error) {
	if s == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner.
func (s *ShiftHours) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*s = ShiftHours{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan shift hours: unsupported type %T", src)
	}
	out := ShiftHours{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("scan shift hours: %w", err)
	}
	*s = out
	return nil
}

// Teacher represents an evaluated instructor.
type Teacher struct {
	ID                 string        `db:"id" json:"id"`
	DNI                string        `db:"dni" json:"dni"`
	LastNames          string        `db:"last_names" json:"last_names"`
	FirstNames         string        `db:"first_names" json:"first_names"`
	Phone              string        `db:"phone" json:"phone"`
	PersonalEmail      string        `db:"personal_email" json:"personal_email"`
	InstitutionalEmail string        `db:"institutional_email" json:"institutional_email"`
	Course             Course        `db:"course" json:"course"`
	WorkCondition      WorkCondition `db:"work_condition" json:"work_condition"`
	ShiftHours         ShiftHours    `db:"shift_hours" json:"shift_hours"`
	TotalHours         int           `db:"total_hours" json:"total_hours"`
	CreatedAt          time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time     `db:"updated_at" json:"updated_at"`
}

// FullName renders "LastNames, FirstNames".
func (t Teacher) FullName() string {
	return t.LastNames + ", " + t.FirstNames
}

// TeacherInput is the payload for creating, updating or importing a teacher.
type TeacherInput struct {
	DNI                string        `json:"dni" validate:"required,dni"`
	LastNames          string        `json:"last_names" validate:"required"`
	FirstNames         string        `json:"first_names" validate:"required"`
	Phone              string        `json:"phone" validate:"required,phone"`
	PersonalEmail      string        `json:"personal_email" validate:"required,plainemail"`
	InstitutionalEmail string        `json:"institutional_email" validate:"required,plainemail"`
	Course             Course        `json:"course" validate:"required,course"`
	WorkCondition      WorkCondition `json:"work_condition" validate:"required,workcondition"`
	ShiftHours         ShiftHours    `json:"shift_hours" validate:"required,min=1,dive,keys,required,endkeys,gte=0"`
}

// TeacherFilter captures listing filters. Shift keeps teachers with hours in that shift.
type TeacherFilter struct {
	Course   string
	Shift    string
	Search   string
	Page     int
	PageSize int
}

// TeacherPage is one slice of the filtered teacher list.
type TeacherPage struct {
	Teachers        []Teacher `json:"teachers"`
	HasNextPage     bool      `json:"has_next_page"`
	HasPreviousPage bool      `json:"has_previous_page"`
	TotalCount      int       `json:"total_count"`
	CurrentPage     int       `json:"current_page"`
}
