package inprocess

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vectorsql/dbengine/internal/model"
)

func TestGetCatalogFoldsTablesAndColumns(t *testing.T) {
	e := New()
	ctx := context.Background()
	require.NoError(t, e.Initialize(ctx, memConfig()))
	defer e.Shutdown(ctx)

	conn, err := e.CreateConnection(ctx)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Execute(ctx, "CREATE TABLE widgets (id INTEGER, label TEXT)", nil)
	require.NoError(t, err)
	_, err = conn.Execute(ctx, "CREATE VIEW widget_names AS SELECT label FROM widgets", nil)
	require.NoError(t, err)

	cat, err := e.GetCatalog(ctx)
	require.NoError(t, err)

	entry, ok := cat["main"]
	require.True(t, ok, "sqlite's default schema name 'main' should be present")
	require.Len(t, entry.Schemas, 1)

	var tableFound, viewFound bool
	for _, obj := range entry.Schemas[0].Objects {
		switch obj.Name {
		case "widgets":
			tableFound = true
			require.Equal(t, model.ObjectTable, obj.Kind)
			require.Len(t, obj.Columns, 2)
		case "widget_names":
			viewFound = true
			require.Equal(t, model.ObjectView, obj.Kind)
		}
	}
	require.True(t, tableFound)
	require.True(t, viewFound)
}

func TestGetDatabasesListsMainSchema(t *testing.T) {
	e := New()
	ctx := context.Background()
	require.NoError(t, e.Initialize(ctx, memConfig()))
	defer e.Shutdown(ctx)

	names, err := e.GetDatabases(ctx)
	require.NoError(t, err)
	require.Contains(t, names, "main")
}
