package httpx

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the failure payload of every API endpoint: a human
// readable detail message and an explicit zero total.
type ErrorResponse struct {
	Detail string `json:"detail"`
	Total  int    `json:"total"`
}

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	var body []byte
	var err error
	if payload != nil {
		body, err = json.Marshal(payload)
		if err != nil {
			// best-effort error response; avoid writing partial JSON
			http.Error(w, `{"detail":"encode error","total":0}`, http.StatusInternalServerError)
			return
		}
	} else {
		body = []byte("null")
	}
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		// nothing we can do at this point
		_ = err
	}
}

func JSONError(w http.ResponseWriter, status int, detail string) {
	JSON(w, status, ErrorResponse{Detail: detail, Total: 0})
}
