package errors

import (
	"database/sql"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorWrapsUnknown(t *testing.T) {
	err := FromError(sql.ErrConnDone)
	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestCloneKeepsCode(t *testing.T) {
	err := Clone(ErrNotPending, "certification already verified")
	assert.Equal(t, "certification already verified", err.Message)
	assert.True(t, errors.Is(err, ErrNotPending))
	assert.False(t, errors.Is(err, ErrConflict))
	assert.Equal(t, "certification is no longer pending", ErrNotPending.Message)
}

func TestWithFieldsCopiesMap(t *testing.T) {
	fields := map[string]string{"nip": "NIP harus 18 digit"}
	err := WithFields(ErrValidation, "", fields)
	fields["nip"] = "changed"
	assert.Equal(t, "NIP harus 18 digit", err.Fields["nip"])
	assert.Nil(t, ErrValidation.Fields)
}
