package dberrors

import (
	"encoding/json"
	"strings"
)

// ipcPayload mirrors the JSON shape an IPC host may raise:
// {"type": "...", "details": {"message": "...", "sql": "...", "path": "..."}}
type ipcPayload struct {
	Type    string `json:"type"`
	Details struct {
		Message string `json:"message"`
		SQL     string `json:"sql"`
		Path    string `json:"path"`
	} `json:"details"`
}

// typeKinds maps the IPC host's own error type tags onto our taxonomy.
var typeKinds = map[string]Kind{
	"InitError":    KindInit,
	"QueryError":   KindQueryExecution,
	"CatalogError": KindCatalog,
	"FileError":    KindFileOperation,
	"OOMError":     KindOutOfMemory,
}

// substringKinds is consulted, in order, when a raw error is a plain
// string rather than the structured JSON payload.
var substringKinds = []struct {
	substr string
	kind   Kind
}{
	{"Catalog Error", KindCatalog},
	{"Parser Error", KindQueryExecution},
	{"Binder Error", KindQueryExecution},
	{"IO Error", KindFileOperation},
	{"Out of Memory", KindOutOfMemory},
}

// ParseIPCError translates a raw error payload received over the IPC
// boundary into the taxonomy. It first attempts the structured
// {type, details} JSON form; on failure it falls back to substring
// matching against well-known engine error fragments.
func ParseIPCError(raw string) *Error {
	var p ipcPayload
	if err := json.Unmarshal([]byte(raw), &p); err == nil && p.Type != "" {
		kind, ok := typeKinds[p.Type]
		if !ok {
			kind = KindUnknown
		}
		message := p.Details.Message
		if message == "" {
			message = raw
		}
		e := New(kind, message)
		if p.Details.SQL != "" {
			e = e.WithQuery(p.Details.SQL)
		}
		return e
	}
	return ParseNativeError(raw)
}

// ParseNativeError applies substring matching directly to an engine
// error string, the same logic ParseIPCError falls back to.
func ParseNativeError(raw string) *Error {
	for _, m := range substringKinds {
		if strings.Contains(raw, m.substr) {
			return New(m.kind, raw)
		}
	}
	return New(KindUnknown, raw)
}

// Scrub redacts credentials from engine error messages before they reach
// a user-facing surface. Line by line, it replaces everything from a
// "Bearer " marker (else an "Authorization:" marker), matched
// case-insensitively, to the end of that line. Nothing else is redacted:
// API keys outside those two markers, filesystem paths and stack frames
// pass through unchanged.
func Scrub(message string) string {
	lines := strings.Split(message, "\n")
	for i, line := range lines {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "bearer ") {
			idx := strings.Index(lower, "bearer ")
			lines[i] = line[:idx] + "Bearer [redacted]"
			continue
		}
		if strings.Contains(lower, "authorization:") {
			idx := strings.Index(lower, "authorization:")
			lines[i] = line[:idx] + "Authorization: [redacted]"
		}
	}
	return strings.Join(lines, "\n")
}
