package identitytoolkit

import (
	"fmt"
	"strings"

	adminauth "github.com/goliatone/go-admin-auth"
)

// APIError is an error payload returned by the REST API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" && e.Message != e.Code {
		return fmt.Sprintf("identitytoolkit: %s (%d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("identitytoolkit: %s (%d)", e.Code, e.Status)
}

// Unwrap maps the API code onto the adminauth error taxonomy.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case "INVALID_PASSWORD",
		"INVALID_LOGIN_CREDENTIALS",
		"INVALID_EMAIL",
		"USER_DISABLED",
		"MISSING_PASSWORD":
		return adminauth.ErrInvalidCredential
	case "EMAIL_NOT_FOUND":
		return adminauth.ErrNotFound
	case "TOO_MANY_ATTEMPTS_TRY_LATER", "QUOTA_EXCEEDED":
		return adminauth.ErrNetwork
	}
	if e.Status >= 500 || e.Status == 0 {
		return adminauth.ErrNetwork
	}
	return nil
}

type errorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// messages look like "TOO_MANY_ATTEMPTS_TRY_LATER : Access to this account..."
func parseErrorCode(message string) (code string, detail string) {
	code, detail, found := strings.Cut(message, ":")
	code = strings.TrimSpace(code)
	if !found {
		return code, ""
	}
	return code, strings.TrimSpace(detail)
}
