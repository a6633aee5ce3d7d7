package service

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"

	"github.com/noah-isme/college-portal-api/internal/models"
	appErrors "github.com/noah-isme/college-portal-api/pkg/errors"
)

const (
	branchFilterTag     = "branch_filter"
	classFilterTag      = "class_filter"
	attendanceStatusTag = "attendance_status"
	commitModeTag       = "commit_mode"
)

var customMessages = map[string]string{
	branchFilterTag:     "{0} must be one of CS, ME, ET, EC, EE or all",
	classFilterTag:      "{0} must look like \"<CODE> <N>\" or be all",
	attendanceStatusTag: "{0} must be present or absent",
	commitModeTag:       "{0} must be atomic or partialOnError",
}

// Validator wraps go-playground/validator with the engine's custom tags and english messages
// keyed by JSON field names.
type Validator struct {
	validate *validator.Validate
	trans    ut.Translator
}

// NewValidator builds a validator with every custom tag registered.
func NewValidator() *Validator {
	validate := validator.New()
	english := en.New()
	trans, _ := ut.New(english, english).GetTranslator("en")
	_ = enTranslations.RegisterDefaultTranslations(validate, trans)

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})

	_ = validate.RegisterValidation(branchFilterTag, func(fl validator.FieldLevel) bool {
		_, err := parseBranchFilter(fl.Field().String())
		return err == nil
	})
	_ = validate.RegisterValidation(classFilterTag, func(fl validator.FieldLevel) bool {
		_, err := parseClassFilter(fl.Field().String())
		return err == nil
	})
	_ = validate.RegisterValidation(attendanceStatusTag, func(fl validator.FieldLevel) bool {
		_, ok := models.ParseAttendanceStatus(fl.Field().String())
		return ok
	})
	_ = validate.RegisterValidation(commitModeTag, func(fl validator.FieldLevel) bool {
		return models.CommitMode(fl.Field().String()).Valid()
	})

	for tag, message := range customMessages {
		tag, message := tag, message
		_ = validate.RegisterTranslation(tag, trans, func(t ut.Translator) error {
			return t.Add(tag, message, true)
		}, func(t ut.Translator, fe validator.FieldError) string {
			msg, err := t.T(tag, fe.Field())
			if err != nil {
				return fe.Error()
			}
			return msg
		})
	}

	return &Validator{validate: validate, trans: trans}
}

// Check validates s and, on failure, returns a clone of kind whose message lists every violation.
func (v *Validator) Check(s interface{}, kind *appErrors.Error) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return appErrors.Wrap(err, kind.Code, kind.Status, kind.Message)
	}
	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, fe.Translate(v.trans))
	}
	return appErrors.Wrap(err, kind.Code, kind.Status, strings.Join(messages, "; "))
}

// parseBranchFilter resolves a branch filter. Empty and "all" yield the zero branch (no filter).
func parseBranchFilter(raw string) (models.Branch, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.EqualFold(trimmed, models.FilterAll) {
		return "", nil
	}
	branch, ok := models.ParseBranch(trimmed)
	if !ok {
		return "", appErrors.Clone(appErrors.ErrInvalidFilter, "branch must be one of CS, ME, ET, EC, EE or all")
	}
	return branch, nil
}

// parseClassFilter resolves a class filter. Empty and "all" yield nil (no filter).
func parseClassFilter(raw string) (*models.ClassLabel, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.EqualFold(trimmed, models.FilterAll) {
		return nil, nil
	}
	label, ok := models.ParseClassLabel(trimmed)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidFilter, "class must look like \"<CODE> <N>\" or be all")
	}
	return &label, nil
}
