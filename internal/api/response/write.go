package response

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// JSON writes a JSON response
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Rows writes a REST gateway result set with its Content-Range header
func Rows[T any](w http.ResponseWriter, rows []T) {
	if rows == nil {
		rows = []T{}
	}
	if len(rows) == 0 {
		w.Header().Set("Content-Range", "*/0")
	} else {
		w.Header().Set("Content-Range", fmt.Sprintf("0-%d/*", len(rows)-1))
	}
	JSON(w, http.StatusOK, rows)
}

// NoContent writes a 204 No Content response
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
