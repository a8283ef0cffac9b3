package inprocess

import (
	"context"
	"fmt"

	"github.com/vectorsql/dbengine/internal/dberrors"
	"github.com/vectorsql/dbengine/internal/metadata"
	"github.com/vectorsql/dbengine/internal/model"
)

// canonicalize normalizes this engine's user-visible persistent
// database name onto metadata.CanonicalPersistentName.
func (e *Engine) canonicalize(name string) string {
	return metadata.Canonicalize(name, e.dbBasename)
}

// GetDatabases lists every attached database.
func (e *Engine) GetDatabases(ctx context.Context) ([]string, error) {
	rows, err := e.db.QueryContext(ctx, "PRAGMA database_list")
	if err != nil {
		return nil, dberrors.Wrap(dberrors.KindCatalog, err, "list databases")
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var seq int
		var name, file string
		if err := rows.Scan(&seq, &name, &file); err != nil {
			return nil, dberrors.Wrap(dberrors.KindCatalog, err, "scan database_list")
		}
		names = append(names, e.canonicalize(name))
	}
	return names, rows.Err()
}

// GetTables lists tables and views from the main schema's
// sqlite_master. The db argument is not used: the same main-schema
// listing is returned whatever db names, and objects of "temp" or
// attached schemas are not listed.
func (e *Engine) GetTables(ctx context.Context, db string) ([]model.CatalogObject, error) {
	rows, err := e.db.QueryContext(ctx, "SELECT name, type FROM sqlite_master WHERE type IN ('table','view') AND name NOT LIKE 'sqlite_%'")
	if err != nil {
		return nil, dberrors.Wrap(dberrors.KindCatalog, err, "list tables")
	}
	defer rows.Close()

	var out []model.CatalogObject
	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			return nil, dberrors.Wrap(dberrors.KindCatalog, err, "scan sqlite_master")
		}
		kind := model.ObjectTable
		if typ == "view" {
			kind = model.ObjectView
		}
		out = append(out, model.CatalogObject{Name: name, Kind: kind})
	}
	return out, rows.Err()
}

// GetColumns lists the columns of one table/view.
func (e *Engine) GetColumns(ctx context.Context, db, table string) ([]model.Column, error) {
	rows, err := e.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return nil, dberrors.Wrap(dberrors.KindCatalog, err, "describe table")
	}
	defer rows.Close()

	var out []model.Column
	for rows.Next() {
		var cid int
		var name, colType string
		var notNull int
		var dfltValue any
		var pk int
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, dberrors.Wrap(dberrors.KindCatalog, err, "scan table_info")
		}
		out = append(out, model.Column{Name: name, LogicalType: colType, Nullable: notNull == 0})
	}
	return out, rows.Err()
}

// GetCatalog folds every database/table/column into the uniform
// DatabaseModel, issuing the bounded set of information-schema
// queries needed to enumerate databases, tables, and columns.
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
