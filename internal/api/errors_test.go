package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/lumenlearn/lumen-api/internal/domain"
	"github.com/lumenlearn/lumen-api/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestMapErrorToStatusCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrValidation, http.StatusBadRequest},
		{fmt.Errorf("%w: slide count", domain.ErrValidation), http.StatusBadRequest},
		{domain.ErrInvalidID, http.StatusBadRequest},
		{store.ErrJobNotFound, http.StatusNotFound},
		{store.ErrCacheMiss, http.StatusNotFound},
		{store.ErrInvalidTransition, http.StatusConflict},
		{store.ErrQueueUnavailable, http.StatusServiceUnavailable},
		{errors.New("something else"), http.StatusInternalServerError},
		{nil, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, MapErrorToStatusCode(tc.err), "error: %v", tc.err)
	}
}

func TestGetSafeErrorMessageNeverLeaksDetails(t *testing.T) {
	err := fmt.Errorf("%w: dial tcp 10.0.0.5:5432: connection refused", store.ErrQueueUnavailable)

	msg := GetSafeErrorMessage(err)
	assert.NotContains(t, msg, "10.0.0.5")
	assert.NotContains(t, msg, "dial tcp")
	assert.Equal(t, "Generation queue is temporarily unavailable", msg)

	assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(nil))
	assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(errors.New("raw sql error")))
}
