package httpserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/noodle/internal/errs"
)

// Wire codes follow the JSON-RPC numbering tRPC clients expect.
var rpcCodes = map[errs.Kind]int{
	errs.KindNotFound:     -32004,
	errs.KindUnauthorized: -32001,
	errs.KindForbidden:    -32003,
	errs.KindValidation:   -32600,
	errs.KindConflict:     -32009,
	errs.KindRateLimited:  -32029,
	errs.KindInternal:     -32603,
}

type resultEnvelope struct {
	Result struct {
		Data any `json:"data"`
	} `json:"result"`
}

type errorData struct {
	Code         string            `json:"code"`
	HTTPStatus   int               `json:"httpStatus"`
	FieldErrors  map[string]string `json:"fieldErrors,omitempty"`
	RetryAfterMs int64             `json:"retryAfterMs,omitempty"`
}

type errorBody struct {
	Message string    `json:"message"`
	Code    int       `json:"code"`
	Data    errorData `json:"data"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeResult(w http.ResponseWriter, data any) {
	var env resultEnvelope
	env.Result.Data = data
	writeJSON(w, http.StatusOK, env)
}

// writeError renders err as a tRPC error envelope. Internal failures are logged
// with their stack and reach the client only as a generic message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var e *errs.Error
	if !errors.As(err, &e) {
		e = errs.Internal("unclassified failure", err)
	}

	msg := e.Message
	if e.Kind == errs.KindInternal {
		s.log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
			zap.Strings("stack", e.StackTrace()),
		)
		msg = "internal server error"
	}

	status := e.Kind.Status()
	body := errorBody{
		Message: msg,
		Code:    rpcCodes[e.Kind],
		Data: errorData{
			Code:        e.Kind.String(),
			HTTPStatus:  status,
			FieldErrors: e.Fields,
		},
	}
	if e.RetryAfter > 0 {
		body.Data.RetryAfterMs = e.RetryAfter.Milliseconds()
		w.Header().Set("Retry-After", strconv.FormatInt(int64((e.RetryAfter+time.Second-1)/time.Second), 10))
	}
	writeJSON(w, status, errorEnvelope{Error: body})
}

// decodeStrict decodes one JSON document into out, rejecting unknown fields.
func decodeStrict(data []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return errs.Validation(fmt.Sprintf("malformed input: %v", err), nil)
	}
	if dec.More() {
		return errs.Validation("malformed input: trailing data", nil)
	}
	return nil
}
