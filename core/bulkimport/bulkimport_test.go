package bulkimport_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/simonmuehling/educafric-app-sub019/core/academic"
	"github.com/simonmuehling/educafric-app-sub019/core/bulkimport"
	"github.com/simonmuehling/educafric-app-sub019/core/school"
	sqlxrepos "github.com/simonmuehling/educafric-app-sub019/storage/database/sqlx"
	"github.com/simonmuehling/educafric-app-sub019/testutil"
)

func TestFormatOf(t *testing.T) {
	assert.Equal(t, bulkimport.FormatCSV, bulkimport.FormatOf("eleves.CSV"))
	assert.Equal(t, bulkimport.FormatXLSX, bulkimport.FormatOf("/tmp/students.xlsx"))
	assert.Equal(t, "", bulkimport.FormatOf("students.xls"))
	assert.Equal(t, "", bulkimport.FormatOf("students"))
}

func TestTemplate(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, bulkimport.Template(&buf, academic.ModuleStudents, bulkimport.FormatCSV, "fr"))
	rows, err := bulkimport.Parse(&buf, bulkimport.FormatCSV)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Prénom *", rows[0][0])
	assert.Equal(t, "Nom *", rows[0][1])
	assert.Equal(t, "Classe", rows[0][2])

	buf.Reset()
	require.NoError(t, bulkimport.Template(&buf, academic.ModuleAcademicData, bulkimport.FormatXLSX, "en"))
	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err = f.GetRows(f.GetSheetList()[0])
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"Student ID *", "Subject *", "Term *", "Grade *", "Coefficient"}, rows[0])

	assert.Equal(t, academic.ErrUnknownModule, bulkimport.Template(&buf, "payments", bulkimport.FormatCSV, "en"))
	assert.Equal(t, bulkimport.ErrUnsupportedFormat, bulkimport.Template(&buf, academic.ModuleClasses, "ods", "en"))
}

func TestParse_csvSemicolon(t *testing.T) {
	in := "\xEF\xBB\xBFPrénom;Nom;Classe\nAwa;Diallo;6e A\n"
	rows, err := bulkimport.Parse(strings.NewReader(in), bulkimport.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Prénom", "Nom", "Classe"}, {"Awa", "Diallo", "6e A"}}, rows)
}

func TestRecords(t *testing.T) {
	rows := [][]string{
		{"First name *", "lastName", "Classe", "Nickname"},
		{"Awa", "Diallo", "6e A", ""},
		{"", "", "", ""},
		{"Jean", "", "5e B", "JJ"},
		{"Paul", "Biya", "", "PB"},
	}
	data, lines, rowErrs, err := bulkimport.Records(academic.ModuleStudents, rows)
	require.NoError(t, err)

	require.Len(t, data, 2)
	assert.Equal(t, []int{2, 5}, lines)
	assert.Equal(t, academic.Data{"firstName": "Awa", "lastName": "Diallo", "className": "6e A"}, data[0])
	assert.Equal(t, academic.Data{"firstName": "Paul", "lastName": "Biya", "Nickname": "PB"}, data[1])

	require.Len(t, rowErrs, 1)
	assert.Equal(t, 4, rowErrs[0].Row)
	assert.Contains(t, rowErrs[0].Fields, "lastName")

	_, _, _, err = bulkimport.Records(academic.ModuleStudents, rows[:1])
	assert.Equal(t, bulkimport.ErrEmptyFile, err)
	_, _, _, err = bulkimport.Records("payments", rows)
	assert.Equal(t, academic.ErrUnknownModule, err)
}

func TestRecords_numeric(t *testing.T) {
	rows := [][]string{
		{"Student ID", "Subject", "Term", "Grade"},
		{"stu-1", "Maths", "T1", "14,5"},
		{"stu-1", "Physics", "T1", "abc"},
	}
	data, _, rowErrs, err := bulkimport.Records(academic.ModuleAcademicData, rows)
	require.NoError(t, err)
	require.Len(t, data, 1)
	assert.Equal(t, 14.5, data[0]["grade"])
	require.Len(t, rowErrs, 1)
	assert.Equal(t, 3, rowErrs[0].Row)
	assert.Contains(t, rowErrs[0].Fields, "grade")
}

func TestImporter_Import(t *testing.T) {
	db := testutil.PrepareDB(t)
	conf := testutil.NewConfig() // free plan: 3 students max
	schoolRepo := sqlxrepos.NewSchoolRepository(db)
	sch := testutil.CreateSchool(t, schoolRepo, "Lycée de Bonabéri", school.TypeSecondaireGeneral, "fr", school.PlanFree)
	academicSvc := academic.NewService(sqlxrepos.NewRecordRepository(db), school.NewService(schoolRepo), conf)
	imp := bulkimport.NewImporter(academicSvc, testutil.NewLogger())

	in := strings.Join([]string{
		"Prénom,Nom,Classe",
		"Awa,Diallo,6e A",
		"Jean,,6e A",
		"Marie,Ngo,6e B",
		"Paul,Biya,6e B",
		"Eric,Mbappe,6e C",
	}, "\n")
	res, err := imp.Import(context.Background(), sch.ID, academic.ModuleStudents, bulkimport.FormatCSV, strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, 5, res.Total)
	assert.Equal(t, 3, res.Created)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, 3, res.Errors[0].Row)
	assert.Contains(t, res.Errors[0].Fields, "lastName")
	assert.Equal(t, 6, res.Errors[1].Row)
	assert.Contains(t, res.Errors[1].Fields, "plan")

	recs, err := academicSvc.List(context.Background(), sch.ID, academic.ModuleStudents, 0)
	require.NoError(t, err)
	assert.Len(t, recs, 3)
}

func TestImporter_Import_xlsx(t *testing.T) {
	db := testutil.PrepareDB(t)
	schoolRepo := sqlxrepos.NewSchoolRepository(db)
	sch := testutil.CreateSchool(t, schoolRepo, "Bright Future", school.TypePrimary, "en", school.PlanPremium)
	academicSvc := academic.NewService(sqlxrepos.NewRecordRepository(db), school.NewService(schoolRepo), testutil.NewConfig())
	imp := bulkimport.NewImporter(academicSvc, testutil.NewLogger())

	f := excelize.NewFile()
	for i, row := range [][]interface{}{
		{"Name", "Level", "Capacity"},
		{"Class 1", "1", 40},
		{"Class 2", "2", 38},
		{"Class 3", "3", 35},
	} {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	res, err := imp.Import(context.Background(), sch.ID, academic.ModuleClasses, bulkimport.FormatXLSX, &buf)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Created) // premium schools are not capped
	assert.Empty(t, res.Errors)

	recs, err := academicSvc.List(context.Background(), sch.ID, academic.ModuleClasses, 0)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	byName := make(map[string]academic.Record)
	for _, rec := range recs {
		byName[rec.Data.String("name")] = rec
	}
	require.Contains(t, byName, "Class 1")
	assert.Equal(t, 40.0, byName["Class 1"].Data["capacity"])
	assert.Equal(t, "1", byName["Class 1"].Data["level"])
}
