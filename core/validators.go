package core

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/fr"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	fr_translations "github.com/go-playground/validator/v10/translations/fr"
)

// Languages supported by the platform. The first one is the fallback.
var Languages = []string{"en", "fr"}

// Text is a bilingual message.
type Text struct {
	EN string
	FR string
}

func (t Text) In(lang string) string {
	if strings.HasPrefix(strings.ToLower(lang), "fr") && t.FR != "" {
		return t.FR
	}
	return t.EN
}

var (
	// custom validation tags & texts
	alphaNumUnderTag   = "alphanum_"
	alphaNumUnderText  = Text{EN: "only alphanumeric characters and underscores are allowed", FR: "seuls les caractères alphanumériques et les tirets bas sont autorisés"}
	alphaNumUnderRegex = regexp.MustCompile(`^[\w\s]+$`)

	requiredTag     = "required"
	requiredWithTag = "required_with"
	requiredText    = Text{EN: "this field is required", FR: "ce champ est obligatoire"}
)

// NewUniversalTranslator returns the translator holding every supported language.
func NewUniversalTranslator() *ut.UniversalTranslator {
	_en := en.New()
	return ut.New(_en, _en, fr.New())
}

// TranslatorFor picks the translator matching an Accept-Language header value, english by default.
func TranslatorFor(uni *ut.UniversalTranslator, acceptLanguage string) ut.Translator {
	locales := make([]string, 0, 2)
	for _, part := range strings.Split(acceptLanguage, ",") {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if len(tag) >= 2 {
			locales = append(locales, strings.ToLower(tag[:2]))
		}
	}
	if trans, found := uni.FindTranslator(locales...); found {
		return trans
	}
	trans, _ := uni.GetTranslator(Languages[0])
	return trans
}

// InitValidators instantiates the validator for use.
func InitValidators(validate *validator.Validate, uni *ut.UniversalTranslator) {
	enTrans, _ := uni.GetTranslator("en")
	frTrans, _ := uni.GetTranslator("fr")
	_ = en_translations.RegisterDefaultTranslations(validate, enTrans)
	_ = fr_translations.RegisterDefaultTranslations(validate, frTrans)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("query"), ",", 2)[0]
		}
		return name
	})

	// register custom validators
	_ = validate.RegisterValidation(alphaNumUnderTag, alphaNumUnderValidation)
	RegisterCustomTranslation(validate, uni, alphaNumUnderTag, alphaNumUnderText)

	RegisterCustomTranslation(validate, uni, requiredTag, requiredText, true)
	RegisterCustomTranslation(validate, uni, requiredWithTag, requiredText, true)
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag in every language.
func RegisterCustomTranslation(validate *validator.Validate, uni *ut.UniversalTranslator, tag string, text Text, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	for _, lang := range Languages {
		translator, found := uni.GetTranslator(lang)
		if !found {
			continue
		}
		msg := text.In(lang)
		_ = validate.RegisterTranslation(
			tag, translator,
			func(t ut.Translator) error { return t.Add(tag, msg, ovrd) },
			func(t ut.Translator, fe validator.FieldError) string {
				s, _ := t.T(tag, fe.Field())
				return s
			},
		)
	}
}

// Custom Global Validators

// alphaNumUnderValidation only allows alphanumeric characters and underscores.
func alphaNumUnderValidation(fl validator.FieldLevel) bool {
	return alphaNumUnderRegex.MatchString(fl.Field().String())
}
