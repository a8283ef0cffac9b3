package stream

import (
	"fmt"
	"strings"

	"github.com/vectorsql/dbengine/internal/model"
)

// quoteIdent double-quote-quotes a SQL identifier, escaping embedded
// double quotes by doubling them.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// quoteLiteral single-quotes a SQL string literal, escaping embedded
// single quotes by doubling them.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// SynthesizeAttachSQL turns one AttachDirective into the SQL statements
// the backend must run before a stream begins. A directive
// with a non-empty RawSQL takes precedence over synthesis — this lets
// provider-managed credentials stay inside the trusted backend process
// instead of round-tripping through the client. Otherwise it produces a
// `DETACH DATABASE IF EXISTS` followed by the corresponding `ATTACH`.
func SynthesizeAttachSQL(d model.AttachDirective) []string {
	if d.RawSQL != "" {
		return []string{d.RawSQL}
	}

	detach := fmt.Sprintf("DETACH DATABASE IF EXISTS %s", quoteIdent(d.DBName))

	attach := fmt.Sprintf("ATTACH %s AS %s", quoteLiteral(d.URL), quoteIdent(d.DBName))
	if d.ReadOnly {
		attach += " (READ_ONLY)"
	}

	return []string{detach, attach}
}

// SynthesizeAttachBatch synthesizes SQL for every directive, in order.
func SynthesizeAttachBatch(directives []model.AttachDirective) []string {
	var out []string
	for _, d := range directives {
		out = append(out, SynthesizeAttachSQL(d)...)
	}
	return out
}
