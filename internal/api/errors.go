package api

import (
	"encoding/json"
	"net/http"

	xerrors "ActionKit-Chain/internal/errors"
)

type errorBody struct {
	Code    string               `json:"code"`
	Message string               `json:"message"`
	Fields  []xerrors.FieldError `json:"fields,omitempty"`
}

var statusByCode = map[xerrors.Code]int{
	xerrors.CodeActionNotFound:        http.StatusNotFound,
	xerrors.CodeNotFound:              http.StatusNotFound,
	xerrors.CodeValidation:            http.StatusBadRequest,
	xerrors.CodeInvalidArgument:       http.StatusBadRequest,
	xerrors.CodeConflict:              http.StatusConflict,
	xerrors.CodeTimeout:               http.StatusGatewayTimeout,
	xerrors.CodeInitializationFailure: http.StatusServiceUnavailable,
}

func writeError(w http.ResponseWriter, err error) {
	body := errorBody{Code: string(xerrors.CodeUnknown), Message: err.Error()}
	if e, ok := xerrors.From(err); ok {
		body.Code = string(e.Code())
		body.Message = e.Message()
		body.Fields = e.Fields()
	}
	status, ok := statusByCode[xerrors.Code(body.Code)]
	if !ok {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]errorBody{"error": body})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
