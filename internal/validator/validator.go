package validator

import (
	"reflect"
	"strings"

	apperrors "github.com/SAP-F-2025/exam-session-service/internal/errors"
	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"github.com/go-playground/validator/v10"
)

// Validator combines struct-tag validation of requests with the structural
// checks on built exam content.
type Validator struct {
	structValidator   *validator.Validate
	questionValidator *QuestionValidator
}

func New() *Validator {
	structValidator := validator.New()
	registerCustomValidators(structValidator)

	return &Validator{
		structValidator:   structValidator,
		questionValidator: NewQuestionValidator(),
	}
}

// ValidateStruct validates struct tags only.
func (v *Validator) ValidateStruct(s interface{}) error {
	return v.structValidator.Struct(s)
}

// Validate runs struct validation and converts failures to ValidationErrors.
func (v *Validator) Validate(s interface{}) error {
	if err := v.ValidateStruct(s); err != nil {
		if errs := apperrors.ToValidationErrors(err); len(errs) > 0 {
			return errs
		}
		return err
	}
	return nil
}

func (v *Validator) Question() *QuestionValidator {
	return v.questionValidator
}

// Engine exposes the underlying validator so gin's binding can share the
// custom tags.
func (v *Validator) Engine() *validator.Validate {
	return v.structValidator
}

func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("cefr_level", validateLevel)
	validate.RegisterValidation("exam_module", validateModule)
	validate.RegisterValidation("nav_action", validateNavAction)
	validate.RegisterValidation("question_type", validateQuestionType)

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func validateLevel(fl validator.FieldLevel) bool {
	_, err := models.ParseLevel(fl.Field().String())
	return err == nil
}

func validateModule(fl validator.FieldLevel) bool {
	_, err := models.ParseModule(fl.Field().String())
	return err == nil
}

func validateNavAction(fl validator.FieldLevel) bool {
	switch models.NavAction(fl.Field().String()) {
	case models.NavNext, models.NavPrevious, models.NavJump:
		return true
	}
	return false
}

func validateQuestionType(fl validator.FieldLevel) bool {
	switch models.QuestionType(fl.Field().String()) {
	case models.TypeMultipleChoice, models.TypeFreeText, models.TypeListening:
		return true
	}
	return false
}
