package service

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/teacher-eval-api/internal/models"
	"github.com/noah-isme/teacher-eval-api/internal/rubric"
	appErrors "github.com/noah-isme/teacher-eval-api/pkg/errors"
)

var (
	dniPattern        = regexp.MustCompile(`^\d{8,10}$`)
	phonePattern      = regexp.MustCompile(`^\d{9,}$`)
	plainEmailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// NewValidator returns a validator with the teacher and evaluation tags registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	mustRegister(v, "dni", matchPattern(dniPattern))
	mustRegister(v, "phone", matchPattern(phonePattern))
	mustRegister(v, "plainemail", matchPattern(plainEmailPattern))
	mustRegister(v, "course", func(fl validator.FieldLevel) bool {
		return models.Course(fl.Field().String()).Valid()
	})
	mustRegister(v, "workcondition", func(fl validator.FieldLevel) bool {
		return models.WorkCondition(fl.Field().String()).Valid()
	})
	mustRegister(v, "level", func(fl validator.FieldLevel) bool {
		return rubric.Level(fl.Field().String()).Valid()
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %s: %v", tag, err))
	}
}

func matchPattern(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}

var teacherFieldNames = map[string]string{
	"DNI":                "dni",
	"LastNames":          "apellidos",
	"FirstNames":         "nombres",
	"Phone":              "telefono",
	"PersonalEmail":      "correoPersonal",
	"InstitutionalEmail": "correoInstitucional",
	"Course":             "curso",
	"WorkCondition":      "condicionInstitucional",
	"ShiftHours":         "horasPorTurno",
}

// teacherValidationMessages turns validator output into the Spanish messages shown on forms.
func teacherValidationMessages(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, teacherFieldMessage(fe))
	}
	return out
}

func teacherFieldMessage(fe validator.FieldError) string {
	field := fe.StructField()
	if shift, ok := shiftKey(field); ok {
		if shift == "" {
			return "Los turnos deben tener nombre"
		}
		return fmt.Sprintf("Las horas para %s deben ser un número positivo", shift)
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("Falta el campo %q", teacherFieldNames[field])
	case "dni":
		return "El DNI debe tener entre 8 y 10 dígitos"
	case "phone":
		return "El teléfono debe tener al menos 9 dígitos"
	case "plainemail":
		if field == "InstitutionalEmail" {
			return "El correo institucional no es válido"
		}
		return "El correo personal no es válido"
	case "course":
		return fmt.Sprintf("El curso %v no es válido", fe.Value())
	case "workcondition":
		return fmt.Sprintf("La condición institucional %v no es válida", fe.Value())
	case "min":
		return "Debe registrar al menos un turno"
	}
	return fmt.Sprintf("El campo %s no es válido", teacherFieldNames[field])
}

func shiftKey(field string) (string, bool) {
	const prefix = "ShiftHours["
	if !strings.HasPrefix(field, prefix) || !strings.HasSuffix(field, "]") {
		return "", false
	}
	return field[len(prefix) : len(field)-1], true
}

var evaluationFieldNames = map[string]string{
	"Date":                   "la fecha de evaluación",
	"Time":                   "la hora de evaluación",
	"ReflectiveDialogueDate": "la fecha del diálogo reflexivo",
	"ReflectiveDialogueTime": "la hora del diálogo reflexivo",
}

func evaluationValidationMessages(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.StructField()
		switch {
		case field == "TeacherID":
			out = append(out, "Debe seleccionar un docente")
		case fe.Tag() == "required":
			out = append(out, "Debe ingresar "+evaluationFieldNames[field])
		case fe.Tag() == "datetime":
			out = append(out, fmt.Sprintf("El valor de %s no es válido", evaluationFieldNames[field]))
		case fe.Tag() == "level":
			out = append(out, fmt.Sprintf("El nivel %v de %s no es válido", fe.Value(), strings.ToLower(field)))
		default:
			out = append(out, fmt.Sprintf("El campo %s no es válido", field))
		}
	}
	return out
}

func validationError(messages []string) *appErrors.Error {
	return appErrors.Clone(appErrors.ErrValidation, strings.Join(messages, "; "))
}
