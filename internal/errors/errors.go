package errors

import (
	"fmt"
	"time"

	"github.com/probelabs/probe/internal/types"
)

// Error types for probe
type ErrorType string

const (
	// Indexing errors
	ErrorTypeIndexing ErrorType = "indexing"
	ErrorTypeParse    ErrorType = "parse"
	ErrorTypeSearch   ErrorType = "search"

	// File errors
	ErrorTypeFileNotFound ErrorType = "file_not_found"
	ErrorTypeFileTooLarge ErrorType = "file_too_large"
	ErrorTypePermission   ErrorType = "permission"

	// Configuration errors
	ErrorTypeConfig ErrorType = "config"

	// Internal errors
	ErrorTypeInternal ErrorType = "internal"
)

// IndexingError represents an error during the indexing process
type IndexingError struct {
	Type        ErrorType
	FileID      types.FileID
	FilePath    string
	Operation   string
	Underlying  error
	Timestamp   time.Time
	Recoverable bool
}

// NewIndexingError creates a new indexing error with context
func NewIndexingError(op string, err error) *IndexingError {
	return &IndexingError{
		Type:       ErrorTypeIndexing,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// WithFile adds file information to the error
func (e *IndexingError) WithFile(fileID types.FileID, path string) *IndexingError {
	e.FileID = fileID
	e.FilePath = path
	return e
}

// WithRecoverable marks the error as recoverable
func (e *IndexingError) WithRecoverable(recoverable bool) *IndexingError {
	e.Recoverable = recoverable
	return e
}

// Error implements the error interface
func (e *IndexingError) Error() string {
	if e.FilePath != "" {
		return fmt.Sprintf("%s %s failed for %s: %v", e.Type, e.Operation, e.FilePath, e.Underlying)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Type, e.Operation, e.Underlying)
}

// Unwrap returns the underlying error for errors.Is/As
func (e *IndexingError) Unwrap() error {
	return e.Underlying
}

// IsRecoverable checks if the error can be retried
func (e *IndexingError) IsRecoverable() bool {
	return e.Recoverable
}

// ParseError represents a parsing error
type ParseError struct {
	Type       ErrorType
	FileID     types.FileID
	FilePath   string
	Line       int
	Column     int
	Token      string
	Underlying error
	Timestamp  time.Time
}

// NewParseError creates a new parse error
func NewParseError(fileID types.FileID, path string, line, column int, token string, err error) *ParseError {
	return &ParseError{
		Type:       ErrorTypeParse,
		FileID:     fileID,
		FilePath:   path,
		Line:       line,
		Column:     column,
		Token:      token,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %s:%d:%d (near token %q): %v",
		e.FilePath, e.Line, e.Column, e.Token, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ParseError) Unwrap() error {
	return e.Underlying
}

// SearchError represents a search operation error
type SearchError struct {
	Type       ErrorType
	Pattern    string
	Underlying error
	Timestamp  time.Time
}

// NewSearchError creates a new search error
func NewSearchError(pattern string, err error) *SearchError {
	return &SearchError{
		Type:       ErrorTypeSearch,
		Pattern:    pattern,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *SearchError) Error() string {
	return fmt.Sprintf("search failed for pattern %q: %v", e.Pattern, e.Underlying)
}

// Unwrap returns the underlying error
func (e *SearchError) Unwrap() error {
	return e.Underlying
}

// FileError represents a file-related error
type FileError struct {
	Type       ErrorType
	Path       string
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewFileError creates a new file error
func NewFileError(op, path string, err error) *FileError {
	errorType := ErrorTypeFileNotFound
	if isPermissionError(err) {
		errorType = ErrorTypePermission
	}

	return &FileError{
		Type:       errorType,
		Path:       path,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// isPermissionError checks if the error is a permission error
func isPermissionError(err error) bool {
	errStr := err.Error()
	return errStr == "permission denied" || errStr == "access denied"
}

// Error implements the error interface
func (e *FileError) Error() string {
	return fmt.Sprintf("file %s failed for %s: %v", e.Operation, e.Path, e.Underlying)
}

// Unwrap returns the underlying error
func (e *FileError) Unwrap() error {
	return e.Underlying
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field      string
	Value      string
	Underlying error
	Timestamp  time.Time
}

// NewConfigError creates a new config error
func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{
		Field:      field,
		Value:      value,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for field %s (value %s): %v", e.Field, e.Value, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ConfigError) Unwrap() error {
	return e.Underlying
}

// MultiError represents multiple errors
type MultiError struct {
	Errors []error
}

// NewMultiError creates a new multi-error
func NewMultiError(errs []error) *MultiError {
	// Filter out nil errors
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

// Error implements the error interface
func (e *MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
}

// Unwrap returns all errors
func (e *MultiError) Unwrap() []error {
	return e.Errors
}

// QueryError represents a query-compilation failure: empty query, parse
// error with a span, or a strict-mode syntax violation.
type QueryError struct {
	Kind       string // "empty", "parse", "strict_syntax"
	Span       string
	Suggestion string
	Underlying error
}

// NewQueryError creates a new query compilation error.
func NewQueryError(kind, span, suggestion string, err error) *QueryError {
	return &QueryError{Kind: kind, Span: span, Suggestion: suggestion, Underlying: err}
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("query error (%s): %v (try: %s)", e.Kind, e.Underlying, e.Suggestion)
	}
	return fmt.Sprintf("query error (%s): %v", e.Kind, e.Underlying)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Underlying
}

// SyntaxProviderError represents a parse failure or a missing grammar
// for a file extension; the caller degrades to a context-fallback block
// source rather than failing the whole search.
type SyntaxProviderError struct {
	Language string
	Path     string
	Underlying error
}

// NewSyntaxProviderError creates a new syntax provider error.
func NewSyntaxProviderError(language, path string, err error) *SyntaxProviderError {
	return &SyntaxProviderError{Language: language, Path: path, Underlying: err}
}

// Error implements the error interface.
func (e *SyntaxProviderError) Error() string {
	return fmt.Sprintf("syntax provider (%s) failed for %s: %v", e.Language, e.Path, e.Underlying)
}

// Unwrap returns the underlying error.
func (e *SyntaxProviderError) Unwrap() error {
	return e.Underlying
}

// LspTimeoutError describes a daemon request that exceeded its
// per-operation timeout. Nothing in this module constructs it: the
// enrichment client handles a timed-out request by leaving the block
// without LSP info, and does not record the failure.
type LspTimeoutError struct {
	Operation string
	TimeoutMs int
}

// NewLspTimeoutError creates a new LSP timeout error.
func NewLspTimeoutError(operation string, timeoutMs int) *LspTimeoutError {
	return &LspTimeoutError{Operation: operation, TimeoutMs: timeoutMs}
}

// Error implements the error interface.
func (e *LspTimeoutError) Error() string {
	return fmt.Sprintf("lsp operation %s timed out after %dms", e.Operation, e.TimeoutMs)
}

// LspProtocolError represents a malformed or unexpected JSON-RPC
// exchange with a language server. The daemon does not construct it:
// a failed server call marks the workspace pool Failing with the raw
// call error.
type LspProtocolError struct {
	Method string
	Detail string
}

// NewLspProtocolError creates a new LSP protocol error.
func NewLspProtocolError(method, detail string) *LspProtocolError {
	return &LspProtocolError{Method: method, Detail: detail}
}

// Error implements the error interface.
func (e *LspProtocolError) Error() string {
	return fmt.Sprintf("lsp protocol error in %s: %s", e.Method, e.Detail)
}

// DaemonNotRunningError describes a daemon that is not reachable at the
// configured socket path. lspclient.Dial does not return it; it wraps
// the dial error instead, and no caller auto-starts the daemon or
// retries.
type DaemonNotRunningError struct {
	SocketPath string
}

// NewDaemonNotRunningError creates a new daemon-not-running error.
func NewDaemonNotRunningError(socketPath string) *DaemonNotRunningError {
	return &DaemonNotRunningError{SocketPath: socketPath}
}

// Error implements the error interface.
func (e *DaemonNotRunningError) Error() string {
	return fmt.Sprintf("daemon not running at %s", e.SocketPath)
}

// ProtocolVersionMismatchError signals that the daemon and client
// disagree on protocol version. Nothing constructs it: neither the
// daemon nor the client compares protocol versions.
type ProtocolVersionMismatchError struct {
	DaemonVersion string
	ClientVersion string
}

// NewProtocolVersionMismatchError creates a new version-mismatch error.
func NewProtocolVersionMismatchError(daemonVersion, clientVersion string) *ProtocolVersionMismatchError {
	return &ProtocolVersionMismatchError{DaemonVersion: daemonVersion, ClientVersion: clientVersion}
}

// Error implements the error interface.
func (e *ProtocolVersionMismatchError) Error() string {
	return fmt.Sprintf("protocol version mismatch: daemon=%s client=%s", e.DaemonVersion, e.ClientVersion)
}

// AlreadyRunningError describes a daemon start attempt that lost the
// PID-lock race to another process. The daemon does not return it;
// AcquirePidLock returns the ErrAlreadyRunning sentinel instead.
type AlreadyRunningError struct {
	PID int
}

// NewAlreadyRunningError creates a new already-running error.
func NewAlreadyRunningError(pid int) *AlreadyRunningError {
	return &AlreadyRunningError{PID: pid}
}

// Error implements the error interface.
func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("daemon already running (pid %d)", e.PID)
}
