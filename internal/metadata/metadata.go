// Package metadata folds the bounded set of information-schema queries
// each engine variant issues into the uniform model.DatabaseModel. It
// also carries the canonical-name normalization: the IPC backend
// exposes the persistent database under a reserved name while the
// in-process variant uses the user-visible name, so callers must see
// one stable identifier regardless of which engine answered.
package metadata

import "github.com/vectorsql/dbengine/internal/model"

// CanonicalPersistentName is the single identifier both engine variants
// normalize their persistent database to, regardless of what the
// backend calls it internally.
const CanonicalPersistentName = "main"

// ipcReservedNames lists the internal names the IPC backend is known to
// expose the persistent database under. A real native host may use a
// different reserved string; engines pass their own aliases to
// Canonicalize rather than relying solely on this default set.
var ipcReservedNames = map[string]bool{
	"__ipc_persistent__": true,
	"memdb":              true,
}

// Canonicalize maps a raw database name onto CanonicalPersistentName
// when it matches a known reserved alias (the package default set, plus
// any extras the caller supplies — e.g. the configured file path's
// basename for the in-process engine), and returns name unchanged
// otherwise.
func Canonicalize(name string, extraAliases ...string) string {
	if ipcReservedNames[name] {
		return CanonicalPersistentName
	}
	for _, alias := range extraAliases {
		if alias != "" && alias == name {
			return CanonicalPersistentName
		}
	}
	return name
}

// Row is one flattened information-schema observation: a single column
// of a single table/view inside a single schema of a single database.
// Tables/views with no columns (empty) should still contribute one Row
// with an empty Column name so Fold can record the object.
type Row struct {
	Database string
	Schema   string
	Object   string
	Kind     model.ObjectKind
	Column   model.Column // zero value (Name=="") means "object has no columns to report yet"
}

// Fold groups flattened Rows into the uniform DatabaseModel shape,
// applying canonicalize to every database name so both engine
// variants converge on one identifier for the persistent database.
func Fold(rows []Row, canonicalize func(string) string) model.DatabaseModel {
	if canonicalize == nil {
		canonicalize = func(s string) string { return s }
	}

	out := model.DatabaseModel{}

	type schemaKey struct{ db, schema string }
	schemaIndex := map[schemaKey]int{}
	type objectKey struct {
		schemaKey
		object string
	}
	objectIndex := map[objectKey]int{}

	for _, r := range rows {
		db := canonicalize(r.Database)

		entry, ok := out[db]
		if !ok {
			entry = model.DatabaseEntry{}
		}

		sk := schemaKey{db, r.Schema}
		si, ok := schemaIndex[sk]
		if !ok {
			entry.Schemas = append(entry.Schemas, model.CatalogSchema{Name: r.Schema})
			si = len(entry.Schemas) - 1
			schemaIndex[sk] = si
		}

		ok2 := objectKey{sk, r.Object}
		oi, ok := objectIndex[ok2]
		if !ok {
			entry.Schemas[si].Objects = append(entry.Schemas[si].Objects, model.CatalogObject{
				Name: r.Object,
				Kind: r.Kind,
			})
			oi = len(entry.Schemas[si].Objects) - 1
			objectIndex[ok2] = oi
		}

		if r.Column.Name != "" {
			entry.Schemas[si].Objects[oi].Columns = append(entry.Schemas[si].Objects[oi].Columns, r.Column)
		}

		out[db] = entry
	}

	return out
}
