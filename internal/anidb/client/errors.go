// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package client

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// ErrNetwork reports that the server could not be reached or did not answer in time.
var ErrNetwork = errors.New("client: network error")

// networkMessage is what users see for [ErrNetwork].
const networkMessage = "Network error: please check your connection"

// APIError is a non-2xx response from the mapping API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// decodeError extracts the message from an error body. The "message" field
// wins over "detail", which wins over "error".
func decodeError(status int, body []byte) *APIError {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err == nil {
		for _, key := range []string{"message", "detail", "error"} {
			if message := textOf(fields[key]); message != "" {
				return &APIError{Status: status, Message: message}
			}
		}
	}

	return &APIError{Status: status, Message: http.StatusText(status)}
}

// textOf reads a string field. A validation list of {"msg": ...} objects is joined.
func textOf(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}

	var items []struct {
		Msg     string `json:"msg"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &items); err == nil {
		parts := make([]string, 0, len(items))
		for _, item := range items {
			if item.Msg != "" {
				parts = append(parts, item.Msg)
			} else if item.Message != "" {
				parts = append(parts, item.Message)
			}
		}
		return strings.Join(parts, "; ")
	}

	return ""
}

// Message returns the text to show a user for err.
func Message(err error) string {
	var apiErr *APIError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &apiErr):
		return apiErr.Message
	case errors.Is(err, ErrNetwork):
		return networkMessage
	default:
		return err.Error()
	}
}

// StatusOf returns the HTTP status carried by err, or 0 when there is none.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
