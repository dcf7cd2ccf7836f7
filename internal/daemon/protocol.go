// Package daemon implements the LSP enrichment daemon (§4.8): process
// identity and PID-locking, framed IPC over a Unix socket, a
// per-workspace language-server pool with a Starting/Ready/Busy/Failing
// state machine, and the universal + call-graph response caches in
// front of it.
package daemon

// ProtocolVersion is this build's wire protocol version, echoed in
// Connected so a mismatched client can report it once instead of
// silently misbehaving.
const ProtocolVersion = "1.0"

// Envelope is the tagged-union wrapper every framed message is wrapped
// in: Type selects which of the Request/Response union members the
// Payload unmarshals into.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Client→Daemon request payloads.

type ConnectRequest struct {
	ClientID string `json:"client_id"`
}

type PingRequest struct {
	RequestID string `json:"request_id"`
}

type StatusRequest struct {
	RequestID string `json:"request_id"`
}

type ListLanguagesRequest struct {
	RequestID string `json:"request_id"`
}

type CallHierarchyRequest struct {
	RequestID     string `json:"request_id"`
	FilePath      string `json:"file_path"`
	Pattern       string `json:"pattern"`
	WorkspaceHint string `json:"workspace_hint,omitempty"`
	IncludeStdlib bool   `json:"include_stdlib,omitempty"`
}

type ReferencesRequest struct {
	RequestID   string `json:"request_id"`
	FilePath    string `json:"file_path"`
	Line        int    `json:"line"`
	Column      int    `json:"column"`
	IncludeDecl bool   `json:"include_decl"`
}

type DefinitionRequest struct {
	RequestID string `json:"request_id"`
	FilePath  string `json:"file_path"`
	Line      int    `json:"line"`
	Column    int    `json:"column"`
}

type HoverRequest struct {
	RequestID string `json:"request_id"`
	FilePath  string `json:"file_path"`
	Line      int    `json:"line"`
	Column    int    `json:"column"`
}

type ImplementationRequest struct {
	RequestID string `json:"request_id"`
	FilePath  string `json:"file_path"`
	Line      int    `json:"line"`
	Column    int    `json:"column"`
}

type ShutdownRequest struct {
	RequestID string `json:"request_id"`
}

type TailLogsRequest struct {
	RequestID    string `json:"request_id"`
	LastSequence uint64 `json:"last_sequence,omitempty"`
	Limit        int    `json:"limit,omitempty"`
}

// Daemon→Client response payloads.

type ConnectedResponse struct {
	DaemonVersion   string `json:"daemon_version"`
	ProtocolVersion string `json:"protocol_version"`
}

type PongResponse struct {
	RequestID string `json:"request_id"`
}

type StatusResponse struct {
	RequestID string       `json:"request_id"`
	Status    DaemonStatus `json:"status"`
}

// DaemonStatus summarizes daemon and pool health for a Status request.
type DaemonStatus struct {
	UptimeSeconds float64            `json:"uptime_seconds"`
	Workspaces    []WorkspaceStatus  `json:"workspaces"`
}

// WorkspaceStatus reports one (workspace, language) pool's lifecycle
// state and, if Failing, the reason and next retry time.
type WorkspaceStatus struct {
	WorkspaceRoot string  `json:"workspace_root"`
	Language      string  `json:"language"`
	State         string  `json:"state"`
	FailingReason string  `json:"failing_reason,omitempty"`
	NextRetryUnix int64   `json:"next_retry_unix,omitempty"`
	Attempts      int     `json:"attempts,omitempty"`
}

type ListLanguagesResponse struct {
	RequestID string   `json:"request_id"`
	Languages []string `json:"languages"`
}

type CallHierarchyResponse struct {
	RequestID string              `json:"request_id"`
	Result    CallHierarchyResult `json:"result"`
}

// CallHierarchyResult is the enrichment payload attached to a block:
// the symbols that call it and the symbols it calls, each already
// filtered per IncludeStdlib.
type CallHierarchyResult struct {
	Callers []CallHierarchyNode `json:"callers"`
	Callees []CallHierarchyNode `json:"callees"`
}

type CallHierarchyNode struct {
	Name     string `json:"name"`
	FilePath string `json:"file_path"`
	Line     int    `json:"line"`
}

type DefinitionResponse struct {
	RequestID string   `json:"request_id"`
	FilePath  string   `json:"file_path"`
	Line      int      `json:"line"`
	Column    int      `json:"column"`
}

type ErrorResponse struct {
	RequestID string `json:"request_id"`
	Error     string `json:"error"`
}

type ShutdownResponse struct {
	RequestID string `json:"request_id"`
}

type LogEntriesResponse struct {
	RequestID    string       `json:"request_id"`
	Entries      []LogEntryDTO `json:"entries"`
	LastSequence uint64       `json:"last_sequence"`
}

// LogEntryDTO mirrors dlog.Entry on the wire, kept separate so the IPC
// protocol doesn't couple to the logging package's internal layout.
type LogEntryDTO struct {
	Sequence  uint64 `json:"sequence"`
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

// Envelope type tags.
const (
	TypeConnect       = "connect"
	TypePing          = "ping"
	TypeStatus        = "status"
	TypeListLanguages = "list_languages"
	TypeCallHierarchy = "call_hierarchy"
	TypeReferences    = "references"
	TypeDefinition    = "definition"
	TypeHover         = "hover"
	TypeImplementation = "implementation"
	TypeShutdown      = "shutdown"
	TypeTailLogs      = "tail_logs"

	TypeConnected   = "connected"
	TypePong        = "pong"
	TypeError       = "error"
	TypeLogEntries  = "log_entries"
)
