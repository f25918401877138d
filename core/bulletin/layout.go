package bulletin

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/simonmuehling/educafric-app-sub019/core"
)

type (
	Field struct {
		Label string
		Value string
	}

	// Row is a table line. Group rows carry a label and no cells.
	Row struct {
		Group string
		Cells []string
	}

	Section struct {
		Title string
		Lines []string
	}

	// Layout is a bulletin resolved to display strings, ready to be drawn.
	Layout struct {
		Type         BulletinType
		Format       string
		Title        string
		SchoolName   string
		Header       []Field
		Columns      []string
		ColumnWidths []float64
		Rows         []Row
		Summary      []Field
		Sections     []Section
		Footer       []Field
		IssuedAt     time.Time

		VerificationCode string
		VerificationURL  string
	}
)

var (
	groupLabels = map[string]core.Text{
		GroupScientific: {EN: "Science subjects", FR: "Matières scientifiques"},
		GroupLiterary:   {EN: "Arts subjects", FR: "Matières littéraires"},
		GroupOther:      {EN: "Other subjects", FR: "Autres matières"},
	}

	lblSchool       = core.Text{EN: "School", FR: "Établissement"}
	lblAddress      = core.Text{EN: "Address", FR: "Adresse"}
	lblYear         = core.Text{EN: "Academic year", FR: "Année scolaire"}
	lblTerm         = core.Text{EN: "Term", FR: "Période"}
	lblStudent      = core.Text{EN: "Student", FR: "Élève"}
	lblMatricule    = core.Text{EN: "Registration no.", FR: "Matricule"}
	lblClass        = core.Text{EN: "Class", FR: "Classe"}
	lblSeries       = core.Text{EN: "Series", FR: "Série"}
	lblTotalCoef    = core.Text{EN: "Total coefficients", FR: "Total coefficients"}
	lblTotalPoints  = core.Text{EN: "Total points", FR: "Total points"}
	lblAverage      = core.Text{EN: "Average", FR: "Moyenne"}
	lblOverallGrade = core.Text{EN: "Overall grade", FR: "Cote"}
	lblRemark       = core.Text{EN: "Remark", FR: "Appréciation"}
	lblRank         = core.Text{EN: "Rank", FR: "Rang"}
	lblResult       = core.Text{EN: "Result", FR: "Résultat"}
	lblPassed       = core.Text{EN: "Passed", FR: "Réussite"}
	lblFailed       = core.Text{EN: "Failed", FR: "Échec"}
	lblAttendance   = core.Text{EN: "Attendance", FR: "Assiduité"}
	lblAbsences     = core.Text{EN: "Absences: %d (justified: %d)", FR: "Absences : %d (justifiées : %d)"}
	lblLates        = core.Text{EN: "Lates: %d", FR: "Retards : %d"}
	lblConduct      = core.Text{EN: "Conduct", FR: "Conduite"}
	lblTeacherCom   = core.Text{EN: "Class teacher's comment", FR: "Appréciation du professeur principal"}
	lblPrincipalCom = core.Text{EN: "Principal's comment", FR: "Observation du chef d'établissement"}
	lblCouncil      = core.Text{EN: "Class council decision", FR: "Décision du conseil de classe"}
	lblSignatures   = core.Text{EN: "Signatures", FR: "Signatures"}
	lblSignPrinc    = core.Text{EN: "Principal", FR: "Le Chef d'établissement"}
	lblSignParent   = core.Text{EN: "Parent", FR: "Le Parent"}
	lblIssued       = core.Text{EN: "Issued on", FR: "Délivré le"}
)

func fmt2(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

func fmtNum(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatDate(t time.Time, lang string) string {
	if lang == "en" {
		return t.Format("2006-01-02")
	}
	return t.Format("02/01/2006")
}

// BuildLayout resolves d against cfg into display strings.
func BuildLayout(d Data, cfg Config) Layout {
	lang := cfg.Language
	l := Layout{
		Type:       cfg.Type,
		Format:     cfg.Format,
		Title:      cfg.Title.In(lang),
		SchoolName: d.School.Name,
		IssuedAt:   d.IssuedAt.UTC(),
	}

	// header
	add := func(fields *[]Field, label core.Text, value string) {
		if value != "" {
			*fields = append(*fields, Field{Label: label.In(lang), Value: value})
		}
	}
	add(&l.Header, lblSchool, d.School.Name)
	add(&l.Header, lblAddress, d.School.Address)
	add(&l.Header, lblYear, d.AcademicYear)
	add(&l.Header, lblTerm, d.Term)
	add(&l.Header, lblStudent, d.Student.Name)
	add(&l.Header, lblMatricule, d.Student.Matricule)
	add(&l.Header, lblClass, d.Student.ClassName)
	add(&l.Header, lblSeries, d.Student.Series)

	// table
	var widthSum float64
	for _, col := range cfg.Columns {
		widthSum += col.Width
	}
	for _, col := range cfg.Columns {
		l.Columns = append(l.Columns, col.Label.In(lang))
		l.ColumnWidths = append(l.ColumnWidths, col.Width*tableWidth/widthSum)
	}
	if cfg.Flags.ShowSubjectGroups {
		for _, grp := range groupOrder(cfg.DominantGroup) {
			subjects := subjectsOf(d.Subjects, grp)
			if len(subjects) == 0 {
				continue
			}
			l.Rows = append(l.Rows, Row{Group: groupLabels[grp].In(lang)})
			for _, s := range subjects {
				l.Rows = append(l.Rows, Row{Cells: subjectCells(s, cfg)})
			}
		}
	} else {
		for _, s := range d.Subjects {
			l.Rows = append(l.Rows, Row{Cells: subjectCells(s, cfg)})
		}
	}

	// summary
	sum := Summarize(d, cfg)
	if cfg.Flags.ShowCoefficients {
		add(&l.Summary, lblTotalCoef, fmtNum(sum.TotalCoefficients))
		add(&l.Summary, lblTotalPoints, fmt2(sum.TotalPoints))
	}
	add(&l.Summary, lblAverage, fmt2(sum.Average)+"/"+fmtNum(cfg.Scale))
	if cfg.Flags.ShowLetterGrades {
		add(&l.Summary, lblOverallGrade, sum.Letter)
	}
	add(&l.Summary, lblRemark, sum.Appreciation)
	if cfg.Flags.ShowRank && d.Rank > 0 {
		rank := strconv.Itoa(d.Rank)
		if d.ClassSize > 0 {
			rank += "/" + strconv.Itoa(d.ClassSize)
		}
		add(&l.Summary, lblRank, rank)
	}
	if sum.Passed {
		add(&l.Summary, lblResult, lblPassed.In(lang))
	} else {
		add(&l.Summary, lblResult, lblFailed.In(lang))
	}

	// sections
	if cfg.Flags.ShowAttendance {
		l.Sections = append(l.Sections, Section{
			Title: lblAttendance.In(lang),
			Lines: []string{
				fmt.Sprintf(lblAbsences.In(lang), d.Attendance.Absences, d.Attendance.Justified),
				fmt.Sprintf(lblLates.In(lang), d.Attendance.Lates),
			},
		})
	}
	addSection := func(show bool, title core.Text, text string) {
		if show && strings.TrimSpace(text) != "" {
			l.Sections = append(l.Sections, Section{Title: title.In(lang), Lines: []string{strings.TrimSpace(text)}})
		}
	}
	addSection(cfg.Flags.ShowConduct, lblConduct, d.Conduct)
	addSection(true, lblTeacherCom, d.TeacherComment)
	addSection(true, lblPrincipalCom, d.PrincipalComment)
	addSection(cfg.Flags.ShowCouncilDecision, lblCouncil, d.CouncilDecision)
	if cfg.Flags.ShowParentSignature {
		l.Sections = append(l.Sections, Section{
			Title: lblSignatures.In(lang),
			Lines: []string{lblSignPrinc.In(lang), lblSignParent.In(lang)},
		})
	}

	if !l.IssuedAt.IsZero() {
		add(&l.Footer, lblIssued, formatDate(l.IssuedAt, lang))
	}
	return l
}

func groupOrder(dominant string) []string {
	if dominant == GroupLiterary {
		return []string{GroupLiterary, GroupScientific, GroupOther}
	}
	return []string{GroupScientific, GroupLiterary, GroupOther}
}

func subjectsOf(subjects []Subject, group string) []Subject {
	var res []Subject
	for _, s := range subjects {
		g := s.Group
		if g == "" {
			g = GroupOther
		}
		if g == group {
			res = append(res, s)
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].coefficient() > res[j].coefficient() })
	return res
}

func subjectCells(s Subject, cfg Config) []string {
	cells := make([]string, 0, len(cfg.Columns))
	for _, col := range cfg.Columns {
		var v string
		switch col.Key {
		case ColSubject:
			v = s.Name
		case ColTeacher:
			v = s.Teacher
		case ColGrade:
			v = fmt2(s.Grade)
		case ColCoefficient:
			v = fmtNum(s.coefficient())
		case ColTotal:
			v = fmt2(s.Grade * s.coefficient())
		case ColLetter:
			v = LetterGrade(s.Grade, cfg.Scale)
		case ColCompetency:
			v = s.Competency
			if v == "" {
				v = Competency(s.Grade, cfg.Scale, cfg.Language)
			}
		case ColAppreciation:
			v = s.Comment
			if v == "" {
				v = Appreciation(s.Grade, cfg.Scale, cfg.Language)
			}
		}
		cells = append(cells, v)
	}
	return cells
}

// Text renders the layout as plain text, without its verification block.
func (l Layout) Text() string {
	var b strings.Builder
	writeFields := func(fields []Field) {
		for _, f := range fields {
			b.WriteString(f.Label + ": " + f.Value + "\n")
		}
	}

	b.WriteString(l.Title + "\n")
	b.WriteString("type: " + string(l.Type) + "\n")
	writeFields(l.Header)

	b.WriteString("\n" + strings.Join(l.Columns, " | ") + "\n")
	for _, row := range l.Rows {
		if row.Group != "" {
			b.WriteString("[" + row.Group + "]\n")
			continue
		}
		b.WriteString(strings.Join(row.Cells, " | ") + "\n")
	}

	b.WriteString("\n")
	writeFields(l.Summary)
	for _, sec := range l.Sections {
		b.WriteString("\n# " + sec.Title + "\n")
		for _, line := range sec.Lines {
			b.WriteString(line + "\n")
		}
	}
	if len(l.Footer) > 0 {
		b.WriteString("\n")
		writeFields(l.Footer)
	}
	return b.String()
}
