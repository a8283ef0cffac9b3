package ipcengine

import (
	"context"
	"encoding/json"

	"github.com/vectorsql/dbengine/internal/dberrors"
	"github.com/vectorsql/dbengine/internal/model"
)

// RegisterFile forwards to the backend's file registry, rejecting
// non-string handle values.
func (e *Engine) RegisterFile(ctx context.Context, reg model.FileRegistration) error {
	if reg.Kind == model.FileHandle {
		if _, ok := reg.HandleOrURLOrPath.(string); !ok {
			return dberrors.New(dberrors.KindFileOperation, "ipc engine requires a string handle value")
		}
	}

	_, err := e.call(ctx, CmdRegisterFile, map[string]any{
		"name":               reg.Name,
		"kind":               string(reg.Kind),
		"handleOrUrlOrPath":  reg.HandleOrURLOrPath,
	})
	return err
}

// DropFile forwards to the backend.
func (e *Engine) DropFile(ctx context.Context, name string) error {
	_, err := e.call(ctx, CmdDropFile, map[string]any{"name": name})
	return err
}

// ListFiles forwards to the backend.
func (e *Engine) ListFiles(ctx context.Context) ([]model.FileRegistration, error) {
	raw, err := e.call(ctx, CmdListFiles, nil)
	if err != nil {
		return nil, err
	}
	var wire []struct {
		Name               string `json:"name"`
		Kind               string `json:"kind"`
		HandleOrURLOrPath  any    `json:"handleOrUrlOrPath"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, dberrors.Wrap(dberrors.KindFileOperation, err, "decode list_files response")
	}
	out := make([]model.FileRegistration, len(wire))
	for i, w := range wire {
		out[i] = model.FileRegistration{
			Name:               w.Name,
			Kind:               model.FileRegistrationKind(w.Kind),
			HandleOrURLOrPath: w.HandleOrURLOrPath,
		}
	}
	return out, nil
}
