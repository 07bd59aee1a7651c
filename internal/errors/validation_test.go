package errors

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationErrorsMessage(t *testing.T) {
	var errs ValidationErrors
	assert.Equal(t, "validation failed", errs.Error())

	errs = append(errs, *NewValidationError("level", "is required", nil))
	assert.Equal(t, "validation failed: level is required", errs.Error())

	errs = append(errs, *NewValidationErrorWithRule("index", "must be at least 0", "min", -1))
	assert.Equal(t, "validation failed: 2 field errors", errs.Error())
	assert.Equal(t, "min", errs[1].Rule)
	assert.Equal(t, "validation error on field 'index': must be at least 0", errs[1].Error())
}

func TestToValidationErrors(t *testing.T) {
	type navigate struct {
		Action string `validate:"required,oneof=next previous jump"`
		Index  *int   `validate:"required_if=Action jump,omitempty,min=0"`
	}
	v := validator.New()

	err := v.Struct(navigate{Action: "jump"})
	require.Error(t, err)

	errs := ToValidationErrors(err)
	require.Len(t, errs, 1)
	assert.Equal(t, "Index", errs[0].Field)
	assert.Equal(t, "required_if", errs[0].Rule)
	assert.Equal(t, "is required when Action is jump", errs[0].Message)

	err = v.Struct(navigate{Action: "sideways"})
	errs = ToValidationErrors(err)
	require.Len(t, errs, 1)
	assert.Equal(t, "must be one of: next previous jump", errs[0].Message)

	assert.Empty(t, ToValidationErrors(errors.New("not a validator error")))
}
