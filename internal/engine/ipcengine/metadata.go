package ipcengine

import (
	"context"
	"encoding/json"

	"github.com/vectorsql/dbengine/internal/dberrors"
	"github.com/vectorsql/dbengine/internal/metadata"
	"github.com/vectorsql/dbengine/internal/model"
)

// canonicalize normalizes this engine's configured persistent database
// path (when any) onto metadata.CanonicalPersistentName, on top of the
// package-default reserved-name aliases.
func (e *Engine) canonicalize(name string) string {
	return metadata.Canonicalize(name, e.cfg.Path)
}

// GetDatabases issues get_databases.
func (e *Engine) GetDatabases(ctx context.Context) ([]string, error) {
	raw, err := e.call(ctx, CmdGetDatabases, nil)
	if err != nil {
		return nil, err
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil, dberrors.Wrap(dberrors.KindCatalog, err, "decode get_databases response")
	}
	for i, n := range names {
		names[i] = e.canonicalize(n)
	}
	return names, nil
}

// GetTables issues get_tables(db).
func (e *Engine) GetTables(ctx context.Context, db string) ([]model.CatalogObject, error) {
	raw, err := e.call(ctx, CmdGetTables, map[string]any{"db": db})
	if err != nil {
		return nil, err
	}
	var wire []struct {
		Name string `json:"name"`
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, dberrors.Wrap(dberrors.KindCatalog, err, "decode get_tables response")
	}
	out := make([]model.CatalogObject, len(wire))
	for i, w := range wire {
		kind := model.ObjectTable
		if w.Kind == "view" {
			kind = model.ObjectView
		}
		out[i] = model.CatalogObject{Name: w.Name, Kind: kind}
	}
	return out, nil
}

// GetColumns issues get_columns(db, table).
func (e *Engine) GetColumns(ctx context.Context, db, table string) ([]model.Column, error) {
	raw, err := e.call(ctx, CmdGetColumns, map[string]any{"db": db, "table": table})
	if err != nil {
		return nil, err
	}
	var wire []struct {
		Name        string `json:"name"`
		LogicalType string `json:"logicalType"`
		Nullable    bool   `json:"nullable"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, dberrors.Wrap(dberrors.KindCatalog, err, "decode get_columns response")
	}
	out := make([]model.Column, len(wire))
	for i, w := range wire {
		out[i] = model.Column{Name: w.Name, LogicalType: w.LogicalType, Nullable: w.Nullable}
	}
	return out, nil
}

// GetCatalog folds GetDatabases/GetTables/GetColumns through
// internal/metadata into the uniform DatabaseModel — the
// same composition the in-process engine uses, so both variants shape
// identically even though get_catalog also exists as a direct backend
// command for hosts that can answer it in one round trip (unused here
// to keep the shaping logic — and its canonicalization — in one place).
func (e *Engine) GetCatalog(ctx context.Context) (model.DatabaseModel, error) {
	dbs, err := e.GetDatabases(ctx)
	if err != nil {
		return nil, err
	}

	var rows []metadata.Row
	for _, db := range dbs {
		tables, err := e.GetTables(ctx, db)
		if err != nil {
			return nil, err
		}
		for _, t := range tables {
			cols, err := e.GetColumns(ctx, db, t.Name)
			if err != nil {
				return nil, err
			}
			if len(cols) == 0 {
				rows = append(rows, metadata.Row{Database: db, Schema: "main", Object: t.Name, Kind: t.Kind})
				continue
			}
			for _, c := range cols {
				rows = append(rows, metadata.Row{Database: db, Schema: "main", Object: t.Name, Kind: t.Kind, Column: c})
			}
		}
	}

	return metadata.Fold(rows, e.canonicalize), nil
}
