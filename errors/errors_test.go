package errors_test

import (
	stderrors "errors"
	"testing"

	"github.com/dargueta/tinyfs/errors"
	"github.com/stretchr/testify/assert"
)

func TestDiskoErrorWithMessage(t *testing.T) {
	newErr := errors.ErrNotFound.WithMessage("/a/b/c")
	assert.Equal(t, "No such file or directory: /a/b/c", newErr.Error())
	assert.ErrorIs(t, newErr, errors.ErrNotFound)
}

func TestDiskoErrorWrap(t *testing.T) {
	originalErr := stderrors.New("short read")
	newErr := errors.ErrIOFailed.WrapError(originalErr)

	assert.Equal(t, "Input/output error: short read", newErr.Error())
	assert.ErrorIs(t, newErr, originalErr)
	assert.ErrorIs(t, newErr, errors.ErrIOFailed)
}

func TestCustomDriverErrorChaining(t *testing.T) {
	newErr := errors.ErrExists.WithMessage("/a").WithMessage("create")
	assert.Equal(t, "File exists: /a: create", newErr.Error())
	assert.ErrorIs(t, newErr, errors.ErrExists)
}
