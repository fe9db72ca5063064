package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"go-medimage-pipeline/internal/model"
	"go-medimage-pipeline/internal/narray"
	"go-medimage-pipeline/internal/storage"
	"go-medimage-pipeline/internal/store"
)

// Key layout for run artifacts. A storage key derives deterministically
// from (run_id, role), so repeated writes to the same role overwrite
// rather than duplicate.

// ArtifactKey returns the storage key for a run's artifact role.
func ArtifactKey(runID, role string) string {
	return fmt.Sprintf("work/%s/%s.npy", runID, role)
}

// StatusKey returns the storage key for a run's status document.
func StatusKey(runID string) string {
	return fmt.Sprintf("work/%s/status.json", runID)
}

// ManifestKey returns the storage key for a processed artifact's
// transform manifest.
func ManifestKey(runID string) string {
	return fmt.Sprintf("work/%s/processed_manifest.json", runID)
}

// PreviewKey returns the storage key of one preview image for a role.
func PreviewKey(runID, role string, index int) string {
	return fmt.Sprintf("work/%s/%s_png/%04d.png", runID, role, index)
}

// PreviewPrefix returns the storage prefix under which a role's preview
// images live.
func PreviewPrefix(runID, role string) string {
	return fmt.Sprintf("work/%s/%s_png/", runID, role)
}

// NewRunID generates a fresh run identifier with a timestamp for human
// readability plus a short random suffix for uniqueness.
func NewRunID() string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:6]
	return fmt.Sprintf("run_%s_%s", time.Now().UTC().Format("20060102_150405"), suffix)
}

// RunManager owns the run_id namespace: it persists artifacts at their
// deterministic keys and keeps the per-run status document current.
// Runs are created implicitly on first write and are append-only
// afterwards; concurrent writers to the same role resolve
// last-write-wins (each Put is atomic, there is no merge).
type RunManager struct {
	gateway storage.Gateway
}

// NewRunManager returns a manager persisting through gateway.
func NewRunManager(gateway storage.Gateway) *RunManager {
	return &RunManager{gateway: gateway}
}

// BeginRun validates or generates a run id and registers it in the
// local run index. Reusing an existing id extends that run.
func (m *RunManager) BeginRun(runID string) (string, error) {
	if runID == "" {
		runID = NewRunID()
	} else if err := validateRunID(runID); err != nil {
		return "", err
	}
	store.SaveRun(runID)
	return runID, nil
}

// RecordArtifact serializes the array, writes it at the role's
// deterministic key as one atomic put, and extends the status document
// with the new output. Returns the storage key written.
func (m *RunManager) RecordArtifact(ctx context.Context, runID, role string, a *narray.Array) (string, error) {
	payload, err := narray.MarshalNPY(a)
	if err != nil {
		return "", fmt.Errorf("record %s/%s: %w", runID, role, err)
	}
	key := ArtifactKey(runID, role)
	if err := m.gateway.Put(ctx, key, payload, storage.DefaultContentType); err != nil {
		return "", err
	}
	store.SaveRunArtifact(runID, role, key)

	err = m.updateStatus(ctx, runID, func(rec *model.StatusRecord) {
		rec.Outputs[role] = key
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

// GetArtifact loads and decodes a run's artifact for a role.
func (m *RunManager) GetArtifact(ctx context.Context, runID, role string) (*narray.Array, error) {
	key := ArtifactKey(runID, role)
	payload, err := m.gateway.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	a, err := narray.DecodeNPY(payload)
	if err != nil {
		return nil, fmt.Errorf("artifact %s: %w", key, err)
	}
	return a, nil
}

// RecordOperations appends operation names to the run's status
// document, preserving everything already recorded.
func (m *RunManager) RecordOperations(ctx context.Context, runID string, ops ...string) error {
	return m.updateStatus(ctx, runID, func(rec *model.StatusRecord) {
		rec.Operations = append(rec.Operations, ops...)
	})
}

// RecordOutput registers a non-array output (preview prefix, manifest)
// in the status document.
func (m *RunManager) RecordOutput(ctx context.Context, runID, role, key string) error {
	store.SaveRunArtifact(runID, role, key)
	return m.updateStatus(ctx, runID, func(rec *model.StatusRecord) {
		rec.Outputs[role] = key
	})
}

// RecordRecipe stores the request's free-form recipe metadata.
func (m *RunManager) RecordRecipe(ctx context.Context, runID string, recipe map[string]interface{}) error {
	if len(recipe) == 0 {
		return nil
	}
	return m.updateStatus(ctx, runID, func(rec *model.StatusRecord) {
		rec.Recipe = recipe
	})
}

// Finalize writes the run's terminal state. Failed runs keep their
// previously written roles intact, so a caller can inspect the status
// document and resume from the last completed role.
func (m *RunManager) Finalize(ctx context.Context, runID string, success bool, runErr error) error {
	if success {
		store.UpdateRunStatus(runID, "completed")
	} else {
		store.UpdateRunStatus(runID, "failed")
		store.SaveRunError(runID, runErr)
	}
	return m.updateStatus(ctx, runID, func(rec *model.StatusRecord) {
		rec.Success = success
		if runErr != nil {
			rec.Error = runErr.Error()
		} else {
			rec.Error = ""
		}
	})
}

// LoadStatus fetches a run's status document.
func (m *RunManager) LoadStatus(ctx context.Context, runID string) (*model.StatusRecord, error) {
	payload, err := m.gateway.Get(ctx, StatusKey(runID))
	if err != nil {
		return nil, err
	}
	var rec model.StatusRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("status %s: %w", runID, err)
	}
	if rec.Outputs == nil {
		rec.Outputs = make(map[string]string)
	}
	return &rec, nil
}

// updateStatus read-modify-writes the status document. A run that has
// no status yet gets a fresh record; an existing record is extended,
// never recreated.
func (m *RunManager) updateStatus(ctx context.Context, runID string, mutate func(*model.StatusRecord)) error {
	rec, err := m.LoadStatus(ctx, runID)
	if errors.Is(err, storage.ErrNotFound) {
		rec = &model.StatusRecord{
			RunID:     runID,
			CreatedAt: time.Now().UTC(),
			Outputs:   make(map[string]string),
		}
	} else if err != nil {
		return err
	}

	mutate(rec)

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("status %s: %w", runID, err)
	}
	return m.gateway.Put(ctx, StatusKey(runID), payload, "application/json")
}
