package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/jackc/pgx/v5/pgconn"
)

// Error codes that are not HTTP statuses.
const (
	CodeUnknown        = "UNKNOWN"
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeNotImplemented = "NOT_IMPLEMENTED"
)

var (
	// ErrNotImplemented marks operations with no backing implementation.
	ErrNotImplemented = errors.New("not implemented")

	// ErrMissingAPIKey is returned by adapter constructors when a required
	// credential is absent. It is the only failure not delivered as an Envelope.
	ErrMissingAPIKey = errors.New("missing API key")
)

// Error is the normalized failure carried by an Envelope.
type Error struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (code %s)", e.Message, e.Code)
}

// ProviderError is returned by Requester when an upstream answers with a
// non-2xx status or a body that cannot be decoded.
type ProviderError struct {
	Provider   string
	StatusCode int // 0 when no HTTP status applies
	Body       []byte
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Provider, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// ErrorCode reports the HTTP status, or UNKNOWN when there is none.
func (e *ProviderError) ErrorCode() string {
	if e.StatusCode == 0 {
		return CodeUnknown
	}
	return strconv.Itoa(e.StatusCode)
}

// ErrorDetails returns the provider body verbatim.
func (e *ProviderError) ErrorDetails() any {
	return rawDetails(e.Body)
}

type codedError struct {
	code string
	err  error
}

func (e *codedError) Error() string     { return e.err.Error() }
func (e *codedError) Unwrap() error     { return e.err }
func (e *codedError) ErrorCode() string { return e.code }

// WithCode attaches an envelope error code to err.
func WithCode(err error, code string) error {
	if err == nil {
		return nil
	}
	return &codedError{code: code, err: err}
}

// InvalidRequest wraps a validation failure with CodeInvalidRequest.
func InvalidRequest(err error) error {
	return WithCode(err, CodeInvalidRequest)
}

// Normalize converts any error into the envelope Error shape.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}
	var envErr *Error
	if errors.As(err, &envErr) {
		out := *envErr
		return &out
	}
	e := &Error{Message: err.Error(), Code: CodeUnknown}
	if e.Message == "" {
		e.Message = "unknown error"
	}

	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		e.Code = strconv.Itoa(rpcErr.Code)
		e.Details = rpcErr.Data
	}

	var httpErr *jsonrpc.HTTPError
	if errors.As(err, &httpErr) {
		e.Code = strconv.Itoa(httpErr.Code)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		e.Code = pgErr.Code
		e.Details = map[string]string{
			"detail":     pgErr.Detail,
			"hint":       pgErr.Hint,
			"table":      pgErr.TableName,
			"constraint": pgErr.ConstraintName,
		}
	}

	var detailer interface{ ErrorDetails() any }
	if errors.As(err, &detailer) {
		e.Details = detailer.ErrorDetails()
	}

	var coder interface{ ErrorCode() string }
	if errors.As(err, &coder) {
		if code := coder.ErrorCode(); code != "" {
			e.Code = code
		}
	}

	if errors.Is(err, ErrNotImplemented) {
		e.Code = CodeNotImplemented
	}
	return e
}

// Redacted replaces credentials in error text.
const Redacted = "REDACTED"

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

// Redact masks every non-empty secret in err's message. The error chain is
// kept, so Normalize still finds codes underneath.
func Redact(err error, secrets ...string) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	for _, s := range secrets {
		if s != "" {
			msg = strings.ReplaceAll(msg, s, Redacted)
		}
	}
	if msg == err.Error() {
		return err
	}
	return &redactedError{msg: msg, err: err}
}

// rawDetails keeps a JSON body as raw JSON and anything else as text.
func rawDetails(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	return string(body)
}
