package ipcengine

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vectorsql/dbengine/internal/dbconfig"
	"github.com/vectorsql/dbengine/internal/model"
)

func TestGetCatalogCanonicalizesReservedDatabaseName(t *testing.T) {
	ft := newFakeTransport()
	ft.responses[CmdGetDatabases] = json.RawMessage(`["__ipc_persistent__"]`)
	ft.responses[CmdGetTables] = json.RawMessage(`[{"name":"widgets","kind":"table"}]`)
	ft.responses[CmdGetColumns] = json.RawMessage(`[{"name":"id","logicalType":"INTEGER","nullable":false}]`)

	e := New(ft)
	ctx := context.Background()
	require.NoError(t, e.Initialize(ctx, dbconfig.EngineConfig{Kind: dbconfig.KindIPC}))

	cat, err := e.GetCatalog(ctx)
	require.NoError(t, err)

	entry, ok := cat["main"]
	require.True(t, ok, "reserved IPC database name should canonicalize to 'main'")
	require.Len(t, entry.Schemas, 1)
	require.Len(t, entry.Schemas[0].Objects, 1)
	require.Equal(t, "widgets", entry.Schemas[0].Objects[0].Name)
	require.Equal(t, model.ObjectTable, entry.Schemas[0].Objects[0].Kind)
	require.Len(t, entry.Schemas[0].Objects[0].Columns, 1)
}

func TestGetTablesDistinguishesViews(t *testing.T) {
	ft := newFakeTransport()
	ft.responses[CmdGetTables] = json.RawMessage(`[{"name":"t","kind":"table"},{"name":"v","kind":"view"}]`)

	e := New(ft)
	ctx := context.Background()
	require.NoError(t, e.Initialize(ctx, dbconfig.EngineConfig{Kind: dbconfig.KindIPC}))

	objs, err := e.GetTables(ctx, "main")
	require.NoError(t, err)
	require.Len(t, objs, 2)
	require.Equal(t, model.ObjectTable, objs[0].Kind)
	require.Equal(t, model.ObjectView, objs[1].Kind)
}
