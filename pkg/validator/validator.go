// Package validator provides a unified validation component based on go-playground/validator.
// Field names in messages come from the mapstructure, json or form tag, so
// errors point at the configuration key or request field that failed.
package validator

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
)

// Language constants for i18n support.
const (
	LangEN = "en"
	LangZH = "zh"
)

// Validator wraps go-playground/validator with translated messages.
type Validator struct {
	validate *validator.Validate
	trans    map[string]ut.Translator
}

var (
	globalValidator *Validator
	once            sync.Once
)

// Global returns the global validator instance.
func Global() *Validator {
	once.Do(func() {
		globalValidator = New()
	})
	return globalValidator
}

// New creates a new Validator instance with default configuration.
func New() *Validator {
	v := &Validator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		trans:    make(map[string]ut.Translator),
	}

	v.validate.RegisterTagNameFunc(tagName)

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale, zh.New())

	enTrans, _ := uni.GetTranslator(LangEN)
	_ = en_translations.RegisterDefaultTranslations(v.validate, enTrans)
	v.trans[LangEN] = enTrans

	zhTrans, _ := uni.GetTranslator(LangZH)
	_ = zh_translations.RegisterDefaultTranslations(v.validate, zhTrans)
	v.trans[LangZH] = zhTrans

	return v
}

func tagName(fld reflect.StructField) string {
	for _, key := range []string{"mapstructure", "json", "form"} {
		name := strings.SplitN(fld.Tag.Get(key), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return fld.Name
}

// ValidateWithLang validates a struct and returns translated errors, or nil.
func (v *Validator) ValidateWithLang(s any, lang string) *ValidationErrors {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !asValidationErrors(err, &verrs) {
		return NewValidationError("unknown", "unknown", err.Error())
	}

	trans, ok := v.trans[lang]
	if !ok {
		trans = v.trans[LangEN]
	}

	result := NewValidationErrors()
	for _, fe := range verrs {
		result.AppendError(FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Value:   fe.Value(),
			Param:   fe.Param(),
			Message: fe.Translate(trans),
		})
	}
	return result
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if ok {
		*target = verrs
	}
	return ok
}

// Struct validates s and returns one error per failed field, each prefixed
// with prefix. It suits the []error convention of option Validate methods.
func Struct(s any, prefix string) []error {
	verrs := Global().ValidateWithLang(s, LangEN)
	if !verrs.HasErrors() {
		return nil
	}

	errs := make([]error, 0, len(verrs.Errors))
	for _, fe := range verrs.Errors {
		errs = append(errs, fmt.Errorf("%s%s: %s", prefix, fe.Field, fe.Message))
	}
	return errs
}
