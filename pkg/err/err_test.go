package errprocess

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusCode(NewNotFound("conversation not found")))
	assert.Equal(t, http.StatusTooManyRequests, StatusCode(fmt.Errorf("gate: %w", NewTooManyRequests("limit"))))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(errors.New("mongo down")))
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "limit", Message(NewTooManyRequests("limit")))
	assert.Equal(t, "internal server error", Message(errors.New("boom")))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Wrap(Internal, "store transcript", cause)

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsCode(err, Internal))
	assert.False(t, IsCode(err, NotFound))
	assert.Contains(t, err.Error(), "dial tcp")
}
