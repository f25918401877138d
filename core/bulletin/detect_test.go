package bulletin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectBulletinType(t *testing.T) {
	tests := []struct {
		name       string
		schoolType string
		language   string
		series     []string
		want       BulletinType
	}{
		{name: "primaire fr", schoolType: "primaire", language: "fr", want: TypePrimaireFR},
		{name: "primary en", schoolType: "primary", language: "en", want: TypePrimaireEN},
		{name: "maternelle", schoolType: "Ecole Maternelle", language: "fr", want: TypePrimaireFR},
		{name: "nursery en-GB", schoolType: "nursery", language: "en-GB", want: TypePrimaireEN},
		{name: "primary ignores series", schoolType: "primaire", language: "fr", series: []string{"C"}, want: TypePrimaireFR},
		{name: "secondary no series", schoolType: "secondaire-general", language: "fr", want: TypeGeneralFR},
		{name: "secondary empty series", schoolType: "secondary", language: "en", series: []string{"  "}, want: TypeGeneralEN},
		{name: "series C", schoolType: "secondaire-general", language: "fr", series: []string{"C"}, want: TypeScientificFR},
		{name: "series D lower case", schoolType: "secondaire-general", language: "fr", series: []string{"tle d"}, want: TypeScientificFR},
		{name: "technical F3", schoolType: "secondaire-technique", language: "fr", series: []string{"F3"}, want: TypeScientificFR},
		{name: "series TI", schoolType: "secondaire-general", language: "fr", series: []string{"TI"}, want: TypeScientificFR},
		{name: "science keyword en", schoolType: "secondary", language: "en", series: []string{"Sciences"}, want: TypeScientificEN},
		{name: "maths keyword", schoolType: "secondary", language: "en", series: []string{"Maths-Physics"}, want: TypeScientificEN},
		{name: "series A4", schoolType: "secondaire-general", language: "fr", series: []string{"A4"}, want: TypeLiteraryFR},
		{name: "series ABI", schoolType: "secondaire-general", language: "fr", series: []string{"ABI"}, want: TypeLiteraryFR},
		{name: "lettres keyword", schoolType: "secondaire-general", language: "fr", series: []string{"Lettres modernes"}, want: TypeLiteraryFR},
		{name: "arts keyword en", schoolType: "secondary", language: "en", series: []string{"Arts"}, want: TypeLiteraryEN},
		{name: "unknown series", schoolType: "secondaire-general", language: "fr", series: []string{"G2"}, want: TypeGeneralFR},
		{name: "unknown language is francophone", schoolType: "secondaire-general", language: "", want: TypeGeneralFR},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectBulletinType(tt.schoolType, tt.language, tt.series...))
		})
	}
}

func TestGetBulletinConfig(t *testing.T) {
	for _, typ := range Types {
		cfg, err := GetBulletinConfig(typ)
		require.NoError(t, err, typ)
		assert.Equal(t, typ, cfg.Type)
		assert.True(t, cfg.HasColumn(ColSubject))
		assert.True(t, cfg.HasColumn(ColGrade))
		assert.Equal(t, "A4", cfg.Format)
	}

	fr, _ := GetBulletinConfig(TypeGeneralFR)
	assert.Equal(t, 20.0, fr.Scale)
	assert.False(t, fr.Flags.ShowLetterGrades)
	en, _ := GetBulletinConfig(TypeGeneralEN)
	assert.Equal(t, 100.0, en.Scale)
	assert.True(t, en.HasColumn(ColLetter))

	prim, _ := GetBulletinConfig(TypePrimaireFR)
	assert.True(t, prim.Flags.ShowCompetencies)
	assert.False(t, prim.Flags.ShowCoefficients)

	_, err := GetBulletinConfig("college-fr")
	assert.Equal(t, ErrUnknownType, err)
}

func TestGetBulletinConfig_isACopy(t *testing.T) {
	cfg, _ := GetBulletinConfig(TypeScientificFR)
	cfg.Columns[0].Key = "changed"
	cfg.Flags.ShowRank = false

	again, _ := GetBulletinConfig(TypeScientificFR)
	assert.Equal(t, ColSubject, again.Columns[0].Key)
	assert.True(t, again.Flags.ShowRank)
}
