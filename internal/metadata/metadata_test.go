package metadata

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vectorsql/dbengine/internal/model"
)

func TestCanonicalizeMapsReservedAliases(t *testing.T) {
	require.Equal(t, CanonicalPersistentName, Canonicalize("__ipc_persistent__"))
	require.Equal(t, CanonicalPersistentName, Canonicalize("memdb"))
	require.Equal(t, "analytics", Canonicalize("analytics"))
}

func TestCanonicalizeMapsExtraAliases(t *testing.T) {
	require.Equal(t, CanonicalPersistentName, Canonicalize("mydata.db", "mydata.db"))
	require.Equal(t, "other.db", Canonicalize("other.db", "mydata.db"))
}

func TestFoldConvergesIPCAndInProcessNamesOntoOneIdentifier(t *testing.T) {
	rows := []Row{
		{Database: "__ipc_persistent__", Schema: "main", Object: "users", Kind: model.ObjectTable,
			Column: model.Column{Name: "id", LogicalType: "INTEGER"}},
		{Database: "mydata.db", Schema: "main", Object: "orders", Kind: model.ObjectTable,
			Column: model.Column{Name: "id", LogicalType: "INTEGER"}},
	}

	canonicalize := func(name string) string { return Canonicalize(name, "mydata.db") }
	out := Fold(rows, canonicalize)

	require.Len(t, out, 1, "both the IPC and in-process names should fold onto one database entry")
	entry, ok := out[CanonicalPersistentName]
	require.True(t, ok)
	require.Len(t, entry.Schemas, 1)
	require.Len(t, entry.Schemas[0].Objects, 2)
}

func TestFoldRecordsObjectsWithNoColumns(t *testing.T) {
	rows := []Row{
		{Database: "main", Schema: "main", Object: "empty_view", Kind: model.ObjectView},
	}
	out := Fold(rows, nil)

	entry := out["main"]
	require.Len(t, entry.Schemas[0].Objects, 1)
	require.Equal(t, "empty_view", entry.Schemas[0].Objects[0].Name)
	require.Empty(t, entry.Schemas[0].Objects[0].Columns)
}
