package errutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConstructorsKeepCause(t *testing.T) {
	cause := errors.New("boom")
	err := NotFound("key is missing", cause)

	require.ErrorIs(t, err, cause)
	require.Equal(t, StatusNotFound, StatusOf(err))
	require.Equal(t, "[NOT_FOUND] key is missing: boom", err.Error())
}

func TestConstructorsWithoutCause(t *testing.T) {
	err := Forbidden("callback can only be called from the contract", nil)

	var be BaseError
	require.True(t, errors.As(err, &be))
	require.Nil(t, be.Err)
	require.Equal(t, http.StatusForbidden, be.Code.HTTPStatus())
}

func TestNormalize(t *testing.T) {
	wrapped := fmt.Errorf("submit: %w", BadRequest("no options", nil))
	require.Equal(t, StatusBadRequest, Normalize(wrapped).Code)

	require.Equal(t, StatusClientClosedRequest, Normalize(context.Canceled).Code)
	require.Equal(t, StatusGatewayTimeout, Normalize(context.DeadlineExceeded).Code)

	internal := Normalize(errors.New("disk on fire"))
	require.Equal(t, StatusInternal, internal.Code)
	require.Equal(t, http.StatusInternalServerError, internal.Code.HTTPStatus())
}
