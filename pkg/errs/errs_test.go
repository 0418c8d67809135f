package errs_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/surrealdb/tenantnote/pkg/errs"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind errs.Kind
		want int
	}{
		{errs.Internal, http.StatusInternalServerError},
		{errs.Unauthorized, http.StatusUnauthorized},
		{errs.Forbidden, http.StatusForbidden},
		{errs.NotFound, http.StatusNotFound},
		{errs.Validation, http.StatusBadRequest},
		{errs.LimitReached, http.StatusForbidden},
		{errs.Unavailable, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.HTTPStatus())
		})
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	base := errs.E("notes.get", errs.NotFound, "Note not found")
	wrapped := fmt.Errorf("handler: %w", base)

	assert.Equal(t, errs.NotFound, errs.KindOf(wrapped))
	assert.True(t, errs.Is(wrapped, errs.NotFound))
	assert.Equal(t, "Note not found", errs.Message(wrapped))
	assert.Equal(t, "notes.get", errs.Op(wrapped))

	// Internalf keeps an existing classification
	assert.Equal(t, errs.NotFound, errs.KindOf(errs.Internalf("outer", base)))
}

func TestInternalMessageIsGeneric(t *testing.T) {
	cause := errors.New("pq: connection refused")
	err := errs.Internalf("notes.list", cause)

	assert.Equal(t, errs.Internal, errs.KindOf(err))
	assert.Equal(t, "Internal server error", errs.Message(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")

	assert.Equal(t, "Internal server error", errs.Message(cause))
	assert.Equal(t, errs.Internal, errs.KindOf(cause))
	assert.Nil(t, errs.Internalf("x", nil))
	assert.Nil(t, errs.Wrap("x", errs.NotFound, "m", nil))
}

func TestErrorString(t *testing.T) {
	err := errs.Wrap("notes.create", errs.LimitReached, "Note limit reached", errors.New("note limit reached"))
	assert.Equal(t, "notes.create: Note limit reached: note limit reached", err.Error())

	assert.Equal(t, "auth.authenticate: unauthorized", errs.E("auth.authenticate", errs.Unauthorized, "").Error())
	assert.Equal(t, "Unauthorized", errs.Message(errs.E("auth.authenticate", errs.Unauthorized, "")))
}
