// Package ipcengine implements the native IPC-backed engine variant:
// a thin request/response client over a Transport that a real native
// host (desktop shell) supplies, plus the streaming transport for
// multi-yield queries.
package ipcengine

import (
	"context"
	"encoding/json"

	"github.com/vectorsql/dbengine/internal/stream"
)

// IPC command names, forwarded to the transport unchanged
// and by convention snake_case on the backend side.
const (
	CmdCreateConnection       = "create_connection"
	CmdConnectionExecute      = "connection_execute"
	CmdConnectionClose        = "connection_close"
	CmdPrepareStatement       = "prepare_statement"
	CmdPreparedStatementExec  = "prepared_statement_execute"
	CmdPreparedStatementClose = "prepared_statement_close"
	CmdRegisterFile           = "register_file"
	CmdDropFile               = "drop_file"
	CmdListFiles              = "list_files"
	CmdGetCatalog             = "get_catalog"
	CmdGetDatabases           = "get_databases"
	CmdGetTables              = "get_tables"
	CmdGetColumns             = "get_columns"
	CmdCheckpoint             = "checkpoint"
	CmdLoadExtension          = "load_extension"
	CmdListExtensions         = "list_extensions"
)

// Transport is the IPC channel to a native host: a generic
// command/response call for every non-streaming operation, plus the
// stream.Transport surface the streaming subsystem drives directly.
type Transport interface {
	// Call issues one (command, args) -> result round trip. args is
	// forwarded unchanged. A returned error
	// carries the raw backend error string/JSON for translation by
	// internal/dberrors.ParseIPCError.
	Call(ctx context.Context, command string, args map[string]any) (json.RawMessage, error)

	stream.Transport
}
