package academic

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/simonmuehling/educafric-app-sub019/core"
)

// Modules
const (
	ModuleClasses      = "classes"
	ModuleStudents     = "students"
	ModuleTeachers     = "teachers"
	ModuleAcademicData = "academic-data"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrUnknownModule = errors.New("unknown module")
	ErrFreemiumLimit = errors.New("freemium limit reached")
	// ErrDuplicate is returned by repositories when a client temp id was already used.
	ErrDuplicate = errors.New("record already exists")

	Modules = []string{ModuleClasses, ModuleStudents, ModuleTeachers, ModuleAcademicData}

	requiredText = core.Text{EN: "this field is required", FR: "ce champ est obligatoire"}
	numericText  = core.Text{EN: "must be a number", FR: "doit être un nombre"}

	moduleFields = map[string][]Field{
		ModuleClasses: {
			{Key: "name", Label: core.Text{EN: "Name", FR: "Nom"}, Required: true},
			{Key: "level", Label: core.Text{EN: "Level", FR: "Niveau"}, Required: true},
			{Key: "section", Label: core.Text{EN: "Section", FR: "Section"}},
			{Key: "capacity", Label: core.Text{EN: "Capacity", FR: "Capacité"}, Numeric: true},
			{Key: "teacherId", Label: core.Text{EN: "Main teacher ID", FR: "ID du professeur principal"}},
		},
		ModuleStudents: {
			{Key: "firstName", Label: core.Text{EN: "First name", FR: "Prénom"}, Required: true},
			{Key: "lastName", Label: core.Text{EN: "Last name", FR: "Nom"}, Required: true},
			{Key: "className", Label: core.Text{EN: "Class", FR: "Classe"}},
			{Key: "gender", Label: core.Text{EN: "Gender", FR: "Sexe"}},
			{Key: "dateOfBirth", Label: core.Text{EN: "Date of birth", FR: "Date de naissance"}},
			{Key: "matricule", Label: core.Text{EN: "Registration number", FR: "Matricule"}},
			{Key: "parentEmail", Label: core.Text{EN: "Parent email", FR: "Email du parent"}},
			{Key: "parentPhone", Label: core.Text{EN: "Parent phone", FR: "Téléphone du parent"}},
		},
		ModuleTeachers: {
			{Key: "firstName", Label: core.Text{EN: "First name", FR: "Prénom"}, Required: true},
			{Key: "lastName", Label: core.Text{EN: "Last name", FR: "Nom"}, Required: true},
			{Key: "email", Label: core.Text{EN: "Email", FR: "Email"}},
			{Key: "phone", Label: core.Text{EN: "Phone", FR: "Téléphone"}},
			{Key: "subjects", Label: core.Text{EN: "Subjects", FR: "Matières"}},
		},
		ModuleAcademicData: {
			{Key: "studentId", Label: core.Text{EN: "Student ID", FR: "ID de l'élève"}, Required: true},
			{Key: "subject", Label: core.Text{EN: "Subject", FR: "Matière"}, Required: true},
			{Key: "term", Label: core.Text{EN: "Term", FR: "Trimestre"}, Required: true},
			{Key: "grade", Label: core.Text{EN: "Grade", FR: "Note"}, Required: true, Numeric: true},
			{Key: "coefficient", Label: core.Text{EN: "Coefficient", FR: "Coefficient"}, Numeric: true},
		},
	}
)

// Field describes one known key of a module's record data.
type Field struct {
	Key      string
	Label    core.Text
	Required bool
	Numeric  bool
}

// Data is the free-form JSON object held by a record.
type Data map[string]interface{}

type Record struct {
	ID           string `json:"id"`
	SchoolID     string `json:"school_id"`
	Module       string `json:"module"`
	Data         Data   `json:"data"`
	ClientTempID string `json:"client_temp_id,omitempty"`
	CreatedAt    int64  `json:"created_at"` // epoch ms
	UpdatedAt    int64  `json:"updated_at"` // epoch ms
}

type QueryFilter struct {
	SchoolID string
	Module   string
	Since    int64 // updated_at > Since when not zero
}

func IsModule(module string) bool {
	_, ok := moduleFields[module]
	return ok
}

// Fields returns the known fields of module, nil for unknown modules.
func Fields(module string) []Field {
	return moduleFields[module]
}

func (d Data) String(key string) string {
	switch v := d[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return strings.TrimSpace(toString(v))
	}
}

// Float returns the numeric value of key, accepting numbers and numeric strings (with a decimal comma).
func (d Data) Float(key string) (float64, bool) {
	switch v := d[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.Replace(strings.TrimSpace(v), ",", ".", 1), 64)
		return f, err == nil
	}
	return 0, false
}

func toString(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return strings.Trim(string(b), `"`)
}

// Validate checks data against the fields of module. With partial set, missing required
// fields are accepted (patches) but present ones may not be blanked.
func (d Data) Validate(module string, partial bool) error {
	fields, ok := moduleFields[module]
	if !ok {
		return ErrUnknownModule
	}
	var errs []core.FieldError
	for _, fld := range fields {
		_, present := d[fld.Key]
		if fld.Required && (present || !partial) && d.String(fld.Key) == "" {
			errs = append(errs, core.FieldError{Field: fld.Key, Error: requiredText.EN})
			continue
		}
		if fld.Numeric && present && d.String(fld.Key) != "" {
			f, ok := d.Float(fld.Key)
			if !ok {
				errs = append(errs, core.FieldError{Field: fld.Key, Error: numericText.EN})
				continue
			}
			d[fld.Key] = f
		}
	}
	if len(errs) > 0 {
		return core.NewValidationError(nil, errs...)
	}
	return nil
}

// Merge copies every key of patch into d, a nil value removes the key.
func (d Data) Merge(patch Data) {
	for k, v := range patch {
		if v == nil {
			delete(d, k)
			continue
		}
		d[k] = v
	}
}
