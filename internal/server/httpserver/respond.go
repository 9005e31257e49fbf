package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/avolkov/filevault/internal/common"
)

// writeJSON writes v as a JSON body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps sentinel errors onto HTTP statuses and emits the opaque
// {"error": ...} body existing clients parse. Anything unmapped is reported
// as a 500 without internal detail.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := "internal server error"

	switch {
	case errors.Is(err, common.ErrorNotFound):
		status, msg = http.StatusNotFound, "not found"
	case errors.Is(err, common.ErrorDuplicateEmail):
		status, msg = http.StatusBadRequest, "User already exists. Please login"
	case errors.Is(err, common.ErrorInvalidCredentials):
		status, msg = http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, common.ErrorInvalidTOTPCode):
		status, msg = http.StatusUnauthorized, "Invalid 2FA token"
	case errors.Is(err, common.ErrTokenExpired):
		status, msg = http.StatusUnauthorized, "Token has expired"
	case errors.Is(err, common.ErrInvalidToken):
		status, msg = http.StatusUnauthorized, "Invalid token"
	case errors.Is(err, common.ErrorUnauthorized):
		status, msg = http.StatusForbidden, "forbidden"
	case errors.Is(err, common.ErrorMalformed):
		status, msg = http.StatusBadRequest, "malformed request"
	case errors.Is(err, common.ErrorShareLinkExpired):
		status, msg = http.StatusForbidden, "Link has expired"
	case errors.Is(err, common.ErrorQuotaExceeded):
		status, msg = http.StatusForbidden, "Download limit reached"
	case errors.Is(err, common.ErrorAuthenticationFailed):
		status, msg = http.StatusForbidden, "decryption failed"
	}

	writeJSON(w, status, map[string]string{"error": msg})
}
