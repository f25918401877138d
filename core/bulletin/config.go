// Package bulletin selects the report card layout matching a school and renders it to PDF.
package bulletin

import (
	"github.com/pkg/errors"

	"github.com/simonmuehling/educafric-app-sub019/core"
)

type BulletinType string

const (
	TypePrimaireFR   BulletinType = "primaire-fr"
	TypePrimaireEN   BulletinType = "primaire-en"
	TypeGeneralFR    BulletinType = "general-fr"
	TypeGeneralEN    BulletinType = "general-en"
	TypeLiteraryFR   BulletinType = "literary-fr"
	TypeLiteraryEN   BulletinType = "literary-en"
	TypeScientificFR BulletinType = "scientific-fr"
	TypeScientificEN BulletinType = "scientific-en"
)

// Column keys
const (
	ColSubject      = "subject"
	ColTeacher      = "teacher"
	ColGrade        = "grade"
	ColCoefficient  = "coefficient"
	ColTotal        = "total"
	ColLetter       = "letter"
	ColCompetency   = "competency"
	ColAppreciation = "appreciation"
)

// Subject groups
const (
	GroupScientific = "scientific"
	GroupLiterary   = "literary"
	GroupOther      = "other"
)

var (
	ErrUnknownType = errors.New("unknown bulletin type")

	Types = []BulletinType{
		TypePrimaireFR, TypePrimaireEN,
		TypeGeneralFR, TypeGeneralEN,
		TypeLiteraryFR, TypeLiteraryEN,
		TypeScientificFR, TypeScientificEN,
	}
)

type Column struct {
	Key   string    `json:"key"`
	Label core.Text `json:"label"`
	Width float64   `json:"width"` // mm
}

type Flags struct {
	ShowTeacher         bool `json:"show_teacher"`
	ShowCoefficients    bool `json:"show_coefficients"`
	ShowLetterGrades    bool `json:"show_letter_grades"`
	ShowCompetencies    bool `json:"show_competencies"`
	ShowSubjectGroups   bool `json:"show_subject_groups"`
	ShowRank            bool `json:"show_rank"`
	ShowAttendance      bool `json:"show_attendance"`
	ShowConduct         bool `json:"show_conduct"`
	ShowCouncilDecision bool `json:"show_council_decision"`
	ShowParentSignature bool `json:"show_parent_signature"`
}

type Config struct {
	Type     BulletinType `json:"type"`
	Format   string       `json:"format"` // page size
	Language string       `json:"language"`
	Scale    float64      `json:"scale"`     // grades are out of Scale
	PassMark float64      `json:"pass_mark"` // average needed to pass
	Title    core.Text    `json:"title"`
	Columns  []Column     `json:"columns"`
	Flags    Flags        `json:"flags"`
	// DominantGroup is listed first when subjects are grouped.
	DominantGroup string `json:"dominant_group,omitempty"`
}

var (
	colSubject      = Column{ColSubject, core.Text{EN: "Subject", FR: "Matière"}, 50}
	colTeacher      = Column{ColTeacher, core.Text{EN: "Teacher", FR: "Enseignant"}, 35}
	colGrade20      = Column{ColGrade, core.Text{EN: "Mark/20", FR: "Note/20"}, 18}
	colGrade100     = Column{ColGrade, core.Text{EN: "Mark/100", FR: "Note/100"}, 18}
	colCoefficient  = Column{ColCoefficient, core.Text{EN: "Coef", FR: "Coef"}, 12}
	colTotal        = Column{ColTotal, core.Text{EN: "Total", FR: "Total"}, 18}
	colLetter       = Column{ColLetter, core.Text{EN: "Grade", FR: "Cote"}, 14}
	colCompetency   = Column{ColCompetency, core.Text{EN: "Competency", FR: "Compétence"}, 38}
	colAppreciation = Column{ColAppreciation, core.Text{EN: "Remark", FR: "Appréciation"}, 33}

	secondaryFlags = Flags{
		ShowTeacher:         true,
		ShowCoefficients:    true,
		ShowRank:            true,
		ShowAttendance:      true,
		ShowConduct:         true,
		ShowCouncilDecision: true,
		ShowParentSignature: true,
	}

	configs = map[BulletinType]Config{
		TypePrimaireFR: {
			Format: "A4", Language: "fr", Scale: 20, PassMark: 10,
			Title:   core.Text{EN: "PRIMARY SCHOOL REPORT CARD", FR: "BULLETIN DE NOTES - PRIMAIRE"},
			Columns: []Column{colSubject, colGrade20, colCompetency, colAppreciation},
			Flags: Flags{
				ShowCompetencies:    true,
				ShowAttendance:      true,
				ShowConduct:         true,
				ShowParentSignature: true,
			},
		},
		TypePrimaireEN: {
			Format: "A4", Language: "en", Scale: 100, PassMark: 50,
			Title:   core.Text{EN: "PRIMARY SCHOOL REPORT CARD", FR: "BULLETIN DE NOTES - PRIMAIRE"},
			Columns: []Column{colSubject, colGrade100, colLetter, colCompetency, colAppreciation},
			Flags: Flags{
				ShowLetterGrades:    true,
				ShowCompetencies:    true,
				ShowAttendance:      true,
				ShowConduct:         true,
				ShowParentSignature: true,
			},
		},
		TypeGeneralFR: {
			Format: "A4", Language: "fr", Scale: 20, PassMark: 10,
			Title:   core.Text{EN: "SECONDARY SCHOOL REPORT CARD", FR: "BULLETIN DE NOTES - ENSEIGNEMENT GÉNÉRAL"},
			Columns: []Column{colSubject, colTeacher, colGrade20, colCoefficient, colTotal, colAppreciation},
			Flags:   secondaryFlags,
		},
		TypeGeneralEN: {
			Format: "A4", Language: "en", Scale: 100, PassMark: 50,
			Title:   core.Text{EN: "SECONDARY SCHOOL REPORT CARD", FR: "BULLETIN DE NOTES - ENSEIGNEMENT GÉNÉRAL"},
			Columns: []Column{colSubject, colTeacher, colGrade100, colCoefficient, colTotal, colLetter},
			Flags:   withLetters(secondaryFlags),
		},
		TypeLiteraryFR: {
			Format: "A4", Language: "fr", Scale: 20, PassMark: 10,
			Title:         core.Text{EN: "REPORT CARD - ARTS SERIES", FR: "BULLETIN DE NOTES - SÉRIE LITTÉRAIRE"},
			Columns:       []Column{colSubject, colTeacher, colGrade20, colCoefficient, colTotal, colAppreciation},
			Flags:         withGroups(secondaryFlags),
			DominantGroup: GroupLiterary,
		},
		TypeLiteraryEN: {
			Format: "A4", Language: "en", Scale: 100, PassMark: 50,
			Title:         core.Text{EN: "REPORT CARD - ARTS SERIES", FR: "BULLETIN DE NOTES - SÉRIE LITTÉRAIRE"},
			Columns:       []Column{colSubject, colTeacher, colGrade100, colCoefficient, colTotal, colLetter},
			Flags:         withGroups(withLetters(secondaryFlags)),
			DominantGroup: GroupLiterary,
		},
		TypeScientificFR: {
			Format: "A4", Language: "fr", Scale: 20, PassMark: 10,
			Title:         core.Text{EN: "REPORT CARD - SCIENCE SERIES", FR: "BULLETIN DE NOTES - SÉRIE SCIENTIFIQUE"},
			Columns:       []Column{colSubject, colTeacher, colGrade20, colCoefficient, colTotal, colAppreciation},
			Flags:         withGroups(secondaryFlags),
			DominantGroup: GroupScientific,
		},
		TypeScientificEN: {
			Format: "A4", Language: "en", Scale: 100, PassMark: 50,
			Title:         core.Text{EN: "REPORT CARD - SCIENCE SERIES", FR: "BULLETIN DE NOTES - SÉRIE SCIENTIFIQUE"},
			Columns:       []Column{colSubject, colTeacher, colGrade100, colCoefficient, colTotal, colLetter},
			Flags:         withGroups(withLetters(secondaryFlags)),
			DominantGroup: GroupScientific,
		},
	}
)

func withLetters(f Flags) Flags {
	f.ShowLetterGrades = true
	return f
}

func withGroups(f Flags) Flags {
	f.ShowSubjectGroups = true
	return f
}

// GetBulletinConfig returns the layout of typ. The result is a copy and may be changed freely.
func GetBulletinConfig(typ BulletinType) (Config, error) {
	cfg, ok := configs[typ]
	if !ok {
		return Config{}, ErrUnknownType
	}
	cfg.Type = typ
	cfg.Columns = append([]Column(nil), cfg.Columns...)
	return cfg, nil
}

// HasColumn reports whether the layout holds the column key.
func (c Config) HasColumn(key string) bool {
	for _, col := range c.Columns {
		if col.Key == key {
			return true
		}
	}
	return false
}
