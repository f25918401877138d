package bulletin

import (
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/simonmuehling/educafric-app-sub019/core"
)

type (
	SchoolInfo struct {
		Name     string `json:"name" validate:"required"`
		Type     string `json:"type" validate:"required"`
		Language string `json:"language"`
		Address  string `json:"address"`
		Phone    string `json:"phone"`
		Region   string `json:"region"`
	}

	StudentInfo struct {
		ID          string `json:"id" validate:"required"`
		Name        string `json:"name" validate:"required"`
		Matricule   string `json:"matricule"`
		ClassName   string `json:"class_name" validate:"required"`
		Series      string `json:"series"`
		Gender      string `json:"gender"`
		DateOfBirth string `json:"date_of_birth"`
	}

	Subject struct {
		Name        string  `json:"name" validate:"required"`
		Teacher     string  `json:"teacher"`
		Grade       float64 `json:"grade" validate:"gte=0"`
		Coefficient float64 `json:"coefficient" validate:"gte=0"`
		Group       string  `json:"group" validate:"omitempty,oneof=scientific literary other"`
		Competency  string  `json:"competency"`
		Comment     string  `json:"comment"`
	}

	Attendance struct {
		Absences  int `json:"absences" validate:"gte=0"`
		Justified int `json:"justified" validate:"gte=0"`
		Lates     int `json:"lates" validate:"gte=0"`
	}

	// Data is everything a bulletin shows, fully resolved by the caller.
	Data struct {
		ID               string      `json:"id" validate:"required"`
		School           SchoolInfo  `json:"school"`
		Student          StudentInfo `json:"student"`
		Term             string      `json:"term" validate:"required"`
		AcademicYear     string      `json:"academic_year" validate:"required"`
		Subjects         []Subject   `json:"subjects" validate:"required,min=1,dive"`
		ClassSize        int         `json:"class_size" validate:"gte=0"`
		Rank             int         `json:"rank" validate:"gte=0"`
		Attendance       Attendance  `json:"attendance"`
		Conduct          string      `json:"conduct"`
		CouncilDecision  string      `json:"council_decision"`
		TeacherComment   string      `json:"teacher_comment"`
		PrincipalComment string      `json:"principal_comment"`
		IssuedAt         time.Time   `json:"issued_at"`
	}

	// Summary holds the figures computed from the subjects.
	Summary struct {
		TotalCoefficients float64 `json:"total_coefficients"`
		TotalPoints       float64 `json:"total_points"`
		Average           float64 `json:"average"`
		Letter            string  `json:"letter,omitempty"`
		Appreciation      string  `json:"appreciation"`
		Passed            bool    `json:"passed"`
	}
)

func (d *Data) Validate(validate *validator.Validate) error {
	return validate.Struct(d)
}

// CheckGrades rejects the subjects graded above the scale of cfg.
func (d Data) CheckGrades(cfg Config) error {
	var errs []core.FieldError
	for i, s := range d.Subjects {
		if s.Grade > cfg.Scale {
			errs = append(errs, core.FieldError{
				Field: fmt.Sprintf("subjects[%d].grade", i),
				Error: "must be at most " + fmtNum(cfg.Scale),
			})
		}
	}
	if len(errs) > 0 {
		return core.NewValidationError(nil, errs...)
	}
	return nil
}

// Type detects the bulletin type of d from its school and student series.
func (d Data) Type() BulletinType {
	return DetectBulletinType(d.School.Type, d.School.Language, d.Student.Series)
}

func (s Subject) coefficient() float64 {
	if s.Coefficient <= 0 {
		return 1
	}
	return s.Coefficient
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// Summarize computes totals and the coefficient-weighted average of d on the scale of cfg.
func Summarize(d Data, cfg Config) Summary {
	var sum Summary
	for _, s := range d.Subjects {
		coef := s.coefficient()
		sum.TotalCoefficients += coef
		sum.TotalPoints += s.Grade * coef
	}
	if sum.TotalCoefficients > 0 {
		sum.Average = round2(sum.TotalPoints / sum.TotalCoefficients)
	}
	sum.TotalPoints = round2(sum.TotalPoints)
	sum.Appreciation = Appreciation(sum.Average, cfg.Scale, cfg.Language)
	if cfg.Flags.ShowLetterGrades {
		sum.Letter = LetterGrade(sum.Average, cfg.Scale)
	}
	sum.Passed = sum.Average >= cfg.PassMark
	return sum
}

func percent(grade, scale float64) float64 {
	if scale <= 0 {
		return 0
	}
	return grade / scale * 100
}

// LetterGrade maps a grade to the anglophone A-F letters.
func LetterGrade(grade, scale float64) string {
	p := percent(grade, scale)
	switch {
	case p >= 80:
		return "A"
	case p >= 70:
		return "B"
	case p >= 60:
		return "C"
	case p >= 50:
		return "D"
	case p >= 40:
		return "E"
	default:
		return "F"
	}
}

var appreciations = []struct {
	min    float64 // percent
	fr, en string
}{
	{90, "Excellent", "Excellent"},
	{80, "Très bien", "Very good"},
	{70, "Bien", "Good"},
	{60, "Assez bien", "Fairly good"},
	{50, "Passable", "Average"},
	{40, "Insuffisant", "Weak"},
	{0, "Faible", "Poor"},
}

// Appreciation returns the conventional remark for a grade.
func Appreciation(grade, scale float64, lang string) string {
	p := percent(grade, scale)
	for _, a := range appreciations {
		if p >= a.min {
			if lang == "en" {
				return a.en
			}
			return a.fr
		}
	}
	last := appreciations[len(appreciations)-1]
	if lang == "en" {
		return last.en
	}
	return last.fr
}

// Competency returns the acquisition level shown on primary bulletins.
func Competency(grade, scale float64, lang string) string {
	p := percent(grade, scale)
	switch {
	case p >= 75:
		if lang == "en" {
			return "Acquired"
		}
		return "Acquis"
	case p >= 50:
		if lang == "en" {
			return "Developing"
		}
		return "En cours d'acquisition"
	default:
		if lang == "en" {
			return "Not acquired"
		}
		return "Non acquis"
	}
}
