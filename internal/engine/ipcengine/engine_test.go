package ipcengine

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vectorsql/dbengine/internal/dbconfig"
	"github.com/vectorsql/dbengine/internal/dberrors"
	"github.com/vectorsql/dbengine/internal/model"
	"github.com/vectorsql/dbengine/internal/stream"
)

// fakeTransport is a minimal Transport for exercising the IPC engine's
// request/response plumbing without a real native host. Call responses
// are pre-scripted by command name; streaming calls are not exercised
// here (internal/stream has its own fake-transport-driven suite).
type fakeTransport struct {
	mu        sync.Mutex
	responses map[string]json.RawMessage
	failures  map[string]error
	calls     []string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		responses: map[string]json.RawMessage{},
		failures:  map[string]error{},
	}
}

func (f *fakeTransport) Call(ctx context.Context, command string, args map[string]any) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, command)
	if err, ok := f.failures[command]; ok {
		return nil, err
	}
	return f.responses[command], nil
}

func (f *fakeTransport) Subscribe(ctx context.Context, streamID string) (<-chan stream.Event, func(), error) {
	ch := make(chan stream.Event)
	close(ch)
	return ch, func() {}, nil
}

func (f *fakeTransport) StreamQuery(ctx context.Context, streamID, sql string, attach []model.AttachDirective) error {
	return nil
}

func (f *fakeTransport) Acknowledge(ctx context.Context, streamID string, batchIndex int) error {
	return nil
}

func (f *fakeTransport) Cancel(ctx context.Context, streamID string) error { return nil }

func TestInitializeIsIdempotent(t *testing.T) {
	ft := newFakeTransport()
	e := New(ft)
	ctx := context.Background()
	cfg := dbconfig.EngineConfig{Kind: dbconfig.KindIPC, Persistence: dbconfig.PersistenceMemory}

	require.NoError(t, e.Initialize(ctx, cfg))
	require.True(t, e.IsReady())
	require.NoError(t, e.Initialize(ctx, cfg))
	require.True(t, e.IsReady())

	require.NoError(t, e.Shutdown(ctx))
	require.False(t, e.IsReady())
}

func TestCreateConnectionExecuteAndClose(t *testing.T) {
	ft := newFakeTransport()
	ft.responses[CmdCreateConnection] = json.RawMessage(`{"connectionId":"conn-1"}`)
	ft.responses[CmdConnectionExecute] = json.RawMessage(`{"rows":[{"id":1}],"columns":[{"name":"id","logicalType":"INTEGER","nullable":false}],"rowCount":1}`)

	e := New(ft)
	ctx := context.Background()
	require.NoError(t, e.Initialize(ctx, dbconfig.EngineConfig{Kind: dbconfig.KindIPC}))

	conn, err := e.CreateConnection(ctx)
	require.NoError(t, err)
	require.Equal(t, "conn-1", conn.ID())

	res, err := conn.Execute(ctx, "SELECT id FROM t", nil)
	require.NoError(t, err)
	require.EqualValues(t, 1, res.RowCount)
	require.Equal(t, "id", res.Columns[0].Name)

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close()) // idempotent
	require.False(t, conn.Open())
}

func TestPrepareQueryClose(t *testing.T) {
	ft := newFakeTransport()
	ft.responses[CmdCreateConnection] = json.RawMessage(`{"connectionId":"conn-1"}`)
	ft.responses[CmdPrepareStatement] = json.RawMessage(`{"statementId":"stmt-1"}`)
	ft.responses[CmdPreparedStatementExec] = json.RawMessage(`{"rows":[],"columns":[],"rowCount":0}`)

	e := New(ft)
	ctx := context.Background()
	require.NoError(t, e.Initialize(ctx, dbconfig.EngineConfig{Kind: dbconfig.KindIPC}))

	conn, err := e.CreateConnection(ctx)
	require.NoError(t, err)

	stmt, err := conn.Prepare(ctx, "SELECT 1")
	require.NoError(t, err)
	require.Equal(t, "stmt-1", stmt.ID())

	_, err = stmt.Query(ctx, nil)
	require.NoError(t, err)

	require.NoError(t, stmt.Close())
	require.NoError(t, stmt.Close()) // idempotent

	_, err = stmt.Query(ctx, nil)
	require.Error(t, err)
}

func TestExecuteErrorIsTranslatedAndCarriesQuery(t *testing.T) {
	ft := newFakeTransport()
	ft.responses[CmdCreateConnection] = json.RawMessage(`{"connectionId":"conn-1"}`)
	ft.failures[CmdConnectionExecute] = dberrorsRaw(`{"type":"QueryError","details":{"message":"Parser Error: near \"FROMM\"","sql":"SELECT 1 FROMM t"}}`)

	e := New(ft)
	ctx := context.Background()
	require.NoError(t, e.Initialize(ctx, dbconfig.EngineConfig{Kind: dbconfig.KindIPC}))

	conn, err := e.CreateConnection(ctx)
	require.NoError(t, err)

	_, err = conn.Execute(ctx, "SELECT 1 FROMM t", nil)
	require.Error(t, err)
	dbErr, ok := err.(*dberrors.Error)
	require.True(t, ok)
	require.Equal(t, dberrors.KindQueryExecution, dbErr.Kind)
	require.Contains(t, dbErr.Message, "Parser Error")
	require.Equal(t, "SELECT 1 FROMM t", dbErr.Details.Query)
}

func TestRegisterFileRejectsNonStringHandle(t *testing.T) {
	ft := newFakeTransport()
	e := New(ft)
	ctx := context.Background()
	require.NoError(t, e.Initialize(ctx, dbconfig.EngineConfig{Kind: dbconfig.KindIPC}))

	err := e.RegisterFile(ctx, model.FileRegistration{
		Name: "data", Kind: model.FileHandle, HandleOrURLOrPath: 42,
	})
	require.Error(t, err)
	dbErr, ok := err.(*dberrors.Error)
	require.True(t, ok)
	require.Equal(t, dberrors.KindFileOperation, dbErr.Kind)
}

func TestCapabilitiesReportStreamingAndDirectFileAccess(t *testing.T) {
	e := New(newFakeTransport())
	caps := e.Capabilities()
	require.True(t, caps.Streaming)
	require.True(t, caps.DirectFileAccess)
}

// dberrorsRaw wraps a raw IPC error string the same way a Transport.Call
// failure carries one: the error's Error() text is what
// dberrors.ParseIPCError consumes.
type rawIPCError string

func (r rawIPCError) Error() string { return string(r) }

func dberrorsRaw(s string) error { return rawIPCError(s) }
