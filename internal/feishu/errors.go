package feishu

import "fmt"

// The Feishu open API reports application-level failure through a non-zero
// "code" field inside an HTTP 200 envelope. Each error type below carries the
// remote message and code; write failures additionally keep the transport
// status and raw body so a failed run can be diagnosed without re-running.

// AuthError is returned when the tenant access token exchange is rejected.
type AuthError struct {
	Code int
	Msg  string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("feishu: token exchange rejected (code %d): %s", e.Code, e.Msg)
}

// SheetResolutionError is returned when the default table for an app token
// cannot be determined, either because the describe call failed or because
// the document has no sheets.
type SheetResolutionError struct {
	AppToken string
	Code     int
	Msg      string
}

func (e *SheetResolutionError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("feishu: no sheets found in document %s", e.AppToken)
	}
	return fmt.Sprintf("feishu: resolving default table for %s failed (code %d): %s", e.AppToken, e.Code, e.Msg)
}

// RecordFetchError is returned when any page of a record search fails. No
// partial results are returned alongside it.
type RecordFetchError struct {
	AppToken string
	TableID  string
	Code     int
	Msg      string
}

func (e *RecordFetchError) Error() string {
	return fmt.Sprintf("feishu: searching records in %s/%s failed (code %d): %s", e.AppToken, e.TableID, e.Code, e.Msg)
}

// InsertError is returned when a single-record insert fails, either at the
// transport level or through a non-zero body code.
type InsertError struct {
	AppToken   string
	TableID    string
	Code       int
	Msg        string
	StatusCode int
	Body       string
}

func (e *InsertError) Error() string {
	return fmt.Sprintf("feishu: inserting record into %s/%s failed: %s (code %d, status %d), response: %s",
		e.AppToken, e.TableID, e.Msg, e.Code, e.StatusCode, e.Body)
}

// BatchInsertError is returned when a batch insert fails. The remote endpoint
// is treated as all-or-nothing; any per-record detail is only available in Body.
type BatchInsertError struct {
	AppToken   string
	TableID    string
	Code       int
	Msg        string
	StatusCode int
	Body       string
}

func (e *BatchInsertError) Error() string {
	return fmt.Sprintf("feishu: batch inserting into %s/%s failed: %s (code %d, status %d), response: %s",
		e.AppToken, e.TableID, e.Msg, e.Code, e.StatusCode, e.Body)
}
