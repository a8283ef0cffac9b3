package ipcengine

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vectorsql/dbengine/internal/dbconfig"
	"github.com/vectorsql/dbengine/internal/model"
)

func TestListFilesForwardsToBackend(t *testing.T) {
	ft := newFakeTransport()
	ft.responses[CmdListFiles] = json.RawMessage(`[{"name":"a.csv","kind":"path","handleOrUrlOrPath":"/data/a.csv"}]`)

	e := New(ft)
	ctx := context.Background()
	require.NoError(t, e.Initialize(ctx, dbconfig.EngineConfig{Kind: dbconfig.KindIPC}))

	files, err := e.ListFiles(ctx)
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "a.csv", files[0].Name)
	require.Equal(t, model.FilePath, files[0].Kind)
}

func TestRegisterFileAcceptsPathKind(t *testing.T) {
	ft := newFakeTransport()
	e := New(ft)
	ctx := context.Background()
	require.NoError(t, e.Initialize(ctx, dbconfig.EngineConfig{Kind: dbconfig.KindIPC}))

	err := e.RegisterFile(ctx, model.FileRegistration{
		Name: "local.csv", Kind: model.FilePath, HandleOrURLOrPath: "/data/local.csv",
	})
	require.NoError(t, err)

	ft.mu.Lock()
	defer ft.mu.Unlock()
	require.Contains(t, ft.calls, CmdRegisterFile)
}
