package tenantnote

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/surrealdb/tenantnote/pkg/errs"
)

const msgInvalidPayload = "Invalid request payload"

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error        string `json:"error"`
	LimitReached bool   `json:"limitReached,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		response = []byte(`{"error":"Internal server error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_, _ = w.Write(response)
	}
}

// respondErr writes the single error body for err. Internal errors are
// logged with their operation and cause; clients only see a generic message.
func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	kind := errs.KindOf(err)
	switch kind {
	case errs.Internal:
		hlog.FromRequest(r).Error().Str("op", errs.Op(err)).Err(err).Msg("request failed")
	case errs.Unavailable:
		hlog.FromRequest(r).Warn().Str("op", errs.Op(err)).Err(err).Msg("request rejected")
	}

	respondJSON(w, kind.HTTPStatus(), errorBody{
		Error:        errs.Message(err),
		LimitReached: kind == errs.LimitReached,
	})
}

// decodeJSON reads a JSON request body into v. A malformed body is a
// validation error.
func decodeJSON(r *http.Request, op string, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errs.Wrap(op, errs.Validation, msgInvalidPayload, err)
	}
	return nil
}
