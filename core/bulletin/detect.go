package bulletin

import (
	"strings"
	"unicode"
)

var (
	primaryKeywords = []string{"primaire", "primary", "maternelle", "nursery"}

	scientificKeywords = []string{"SCIEN", "MATH", "PHYS", "BIO", "CHIM"}
	scientificCodes    = map[string]bool{"C": true, "D": true, "E": true, "F": true, "S": true, "TI": true}

	literaryKeywords = []string{"LITT", "LETTR", "ARTS", "PHILO", "LANG"}
	literaryCodes    = map[string]bool{"A": true, "A1": true, "A2": true, "A3": true, "A4": true, "A5": true, "L": true, "ABI": true}
)

// DetectBulletinType picks the bulletin layout of a school. series is only read for secondary schools.
//
//	DetectBulletinType("primaire", "fr")                 // primaire-fr
//	DetectBulletinType("secondaire-general", "fr", "C")  // scientific-fr
func DetectBulletinType(schoolType, language string, series ...string) BulletinType {
	en := strings.HasPrefix(strings.ToLower(strings.TrimSpace(language)), "en")
	pick := func(fr, eng BulletinType) BulletinType {
		if en {
			return eng
		}
		return fr
	}

	st := strings.ToLower(schoolType)
	for _, kw := range primaryKeywords {
		if strings.Contains(st, kw) {
			return pick(TypePrimaireFR, TypePrimaireEN)
		}
	}

	var s string
	if len(series) > 0 {
		s = strings.ToUpper(strings.TrimSpace(series[0]))
	}
	switch seriesGroup(s) {
	case GroupScientific:
		return pick(TypeScientificFR, TypeScientificEN)
	case GroupLiterary:
		return pick(TypeLiteraryFR, TypeLiteraryEN)
	default:
		return pick(TypeGeneralFR, TypeGeneralEN)
	}
}

// seriesGroup classifies an upper-cased series name. Codes ("C", "A4", "F3"...) win over keywords.
func seriesGroup(s string) string {
	if s == "" {
		return GroupOther
	}

	tokens := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		if scientificCodes[tok] || isTechnicalCode(tok) {
			return GroupScientific
		}
		if literaryCodes[tok] {
			return GroupLiterary
		}
	}

	for _, kw := range scientificKeywords {
		if strings.Contains(s, kw) {
			return GroupScientific
		}
	}
	for _, kw := range literaryKeywords {
		if strings.Contains(s, kw) {
			return GroupLiterary
		}
	}
	return GroupOther
}

// isTechnicalCode matches the technical series F1..F9.
func isTechnicalCode(tok string) bool {
	return len(tok) == 2 && tok[0] == 'F' && tok[1] >= '1' && tok[1] <= '9'
}
