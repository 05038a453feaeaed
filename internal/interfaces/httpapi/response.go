package httpapi

import (
	"context"
	"errors"
	"net/http"

	sonic "github.com/bytedance/sonic"

	"github.com/riskibarqy/apex-leaderboard/internal/usecase"
)

const (
	apiVersion  = "2.0"
	errorDomain = "apex-leaderboard"
)

// envelope follows the Google JSON style guide: exactly one of data or
// error is set.
type envelope struct {
	APIVersion string     `json:"apiVersion"`
	Data       any        `json:"data,omitempty"`
	Error      *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Status  string      `json:"status"`
	Errors  []errorItem `json:"errors,omitempty"`
}

type errorItem struct {
	Domain  string `json:"domain"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type errorRule struct {
	target     error
	httpStatus int
	reason     string
	status     string
}

var errorRules = []errorRule{
	{usecase.ErrInvalidInput, http.StatusBadRequest, "invalidInput", "INVALID_ARGUMENT"},
	{usecase.ErrNotFound, http.StatusNotFound, "notFound", "NOT_FOUND"},
	{usecase.ErrUnauthorized, http.StatusUnauthorized, "unauthorized", "UNAUTHENTICATED"},
	{usecase.ErrDependencyUnavailable, http.StatusServiceUnavailable, "dependencyUnavailable", "UNAVAILABLE"},
	{usecase.ErrUpstreamUnauthorized, http.StatusBadGateway, "upstreamUnauthorized", "UNAVAILABLE"},
}

var internalErrorRule = errorRule{nil, http.StatusInternalServerError, "internalError", "INTERNAL"}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = sonic.ConfigDefault.NewEncoder(w).Encode(payload)
}

func writeSuccess(_ context.Context, w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{APIVersion: apiVersion, Data: data})
}

// writeError maps err onto the first matching sentinel. Unmatched errors
// become a 500 whose message does not leak err.
func writeError(_ context.Context, w http.ResponseWriter, err error) {
	rule := mapError(err)
	msg := err.Error()
	if rule.target == nil {
		msg = "internal server error"
	}
	writeErrorBody(w, rule, msg)
}

func writeInternalError(_ context.Context, w http.ResponseWriter) {
	writeErrorBody(w, internalErrorRule, "internal server error")
}

func writeErrorBody(w http.ResponseWriter, rule errorRule, msg string) {
	writeJSON(w, rule.httpStatus, envelope{
		APIVersion: apiVersion,
		Error: &errorBody{
			Code:    rule.httpStatus,
			Message: msg,
			Status:  rule.status,
			Errors:  []errorItem{{Domain: errorDomain, Reason: rule.reason, Message: msg}},
		},
	})
}

func mapError(err error) errorRule {
	for _, rule := range errorRules {
		if errors.Is(err, rule.target) {
			return rule
		}
	}
	return internalErrorRule
}
