// ABOUTME: Typed sync error taxonomy shared by the API client and the engine
// ABOUTME: Classifies failures so callers can decide between retry, re-auth, and give-up

package sync

import "fmt"

// ErrorType buckets sync failures by what the caller should do about them.
type ErrorType string

const (
	// ErrorNetwork covers unreachable hosts, timeouts, and dropped connections.
	ErrorNetwork ErrorType = "network"
	// ErrorServer covers 5xx responses from the sync server.
	ErrorServer ErrorType = "server"
	// ErrorAuth covers 401/403 responses; the token is bad or expired.
	ErrorAuth ErrorType = "auth"
	// ErrorData covers 4xx responses and malformed payloads.
	ErrorData ErrorType = "data"
	// ErrorQuota covers local storage quota exhaustion.
	ErrorQuota ErrorType = "quota"
)

// SyncError is a classified sync failure. Details carries structured context
// for logging and the status view.
type SyncError struct {
	Type    ErrorType         `json:"type"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s error: %s", e.Type, e.Message)
}

// Retryable reports whether retrying the same operation can succeed.
// Auth and data failures will fail identically until something changes.
func (e *SyncError) Retryable() bool {
	return e.Type == ErrorNetwork || e.Type == ErrorServer
}

func newSyncError(t ErrorType, format string, args ...interface{}) *SyncError {
	return &SyncError{Type: t, Message: fmt.Sprintf(format, args...)}
}

// classifyStatus maps an HTTP status code to an error type.
func classifyStatus(status int) ErrorType {
	switch {
	case status == 401 || status == 403:
		return ErrorAuth
	case status >= 500:
		return ErrorServer
	default:
		return ErrorData
	}
}
