package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go-medimage-pipeline/internal/config"
	"go-medimage-pipeline/internal/model"
	"go-medimage-pipeline/internal/narray"
	"go-medimage-pipeline/internal/storage"
	"go-medimage-pipeline/internal/store"
)

// Pipeline wires the resolver, preprocessing operators, synthesizer,
// preview exporter and run state manager into the two invocation
// operations the routing layer calls. One invocation is one sequential
// computation: resolve → transform → persist → preview. Invocations for
// different run ids are fully independent; invocations for the same
// run id are not mutually exclusive, and same-role writes resolve
// last-write-wins.
type Pipeline struct {
	cfg      config.Config
	gateway  storage.Gateway
	resolver *Resolver
	runs     *RunManager
}

// New builds a pipeline over the given gateway with explicit
// configuration.
func New(cfg config.Config, gateway storage.Gateway) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		gateway:  gateway,
		resolver: NewResolver(gateway, cfg.DefaultRawKey),
		runs:     NewRunManager(gateway),
	}
}

// Runs exposes the run state manager for callers that inspect status.
func (p *Pipeline) Runs() *RunManager { return p.runs }

// ------------------- Synthesis -------------------

// Synthesis resolves the request's input array and generates its
// digital twin, persisting the twin (and optional previews) under the
// run id.
func (p *Pipeline) Synthesis(ctx context.Context, req model.SynthesisRequest) (result *model.SynthesisResult, err error) {
	start := time.Now()
	runID, err := p.runs.BeginRun(req.RunID)
	if err != nil {
		return nil, err
	}
	fmt.Printf("🧬 Starting synthesis for run: %s\n", runID)
	defer p.finishRun(ctx, runID, &err)

	source, err := p.loadInput(ctx, ResolveRequest{RunID: req.RunID, SourceKey: req.SourceKey, InputKey: req.InputKey}, runID, "synthesis")
	if err != nil {
		return nil, err
	}

	seed := p.cfg.SynthesisSeed
	if req.Seed != nil {
		seed = *req.Seed
	}
	twin, err := Synthesize(source, seed)
	if err != nil {
		store.SaveRunLog(runID, "synthesis", "error", "Digital twin generation failed", map[string]interface{}{
			"shape": source.Shape,
		})
		return nil, err
	}
	store.SaveRunLog(runID, "synthesis", "info", "Digital twin generated", map[string]interface{}{
		"shape": twin.Shape,
		"dtype": string(twin.Dtype),
	})

	if err = p.runs.RecordRecipe(ctx, runID, req.Recipe); err != nil {
		return nil, err
	}
	twinKey, err := p.runs.RecordArtifact(ctx, runID, model.RoleDigitalTwin, twin)
	if err != nil {
		return nil, err
	}
	if err = p.runs.RecordOperations(ctx, runID, "synthesize"); err != nil {
		return nil, err
	}

	var previewKeys []string
	if req.ExportPNG {
		previewKeys, err = p.exportPreviews(ctx, runID, model.RoleDigitalTwin, twin)
		if err != nil {
			return nil, err
		}
	}

	fmt.Printf("🏁 Synthesis completed for run: %s in %v\n", runID, time.Since(start))
	return &model.SynthesisResult{
		RunID:          runID,
		DigitalTwinKey: twinKey,
		PreviewKeys:    previewKeys,
		Message:        fmt.Sprintf("Generated digital twin at %s", twinKey),
	}, nil
}

// ------------------- Preprocess -------------------

// Preprocess resolves the request's input array, applies the selected
// transforms in canonical order, and persists the processed artifact
// with its provenance manifest (and optional previews) under the run
// id.
func (p *Pipeline) Preprocess(ctx context.Context, req model.PreprocessRequest) (result *model.PreprocessResult, err error) {
	start := time.Now()
	runID, err := p.runs.BeginRun(req.RunID)
	if err != nil {
		return nil, err
	}
	fmt.Printf("🔄 Starting preprocessing for run: %s\n", runID)
	defer p.finishRun(ctx, runID, &err)

	source, err := p.loadInput(ctx, ResolveRequest{RunID: req.RunID, SourceKey: req.SourceKey, InputKey: req.InputKey}, runID, "preprocess")
	if err != nil {
		return nil, err
	}

	processed, manifest, err := Preprocess(source, PreprocessOps{
		Denoise:        req.Denoise,
		Normalize:      req.Normalize,
		Resample:       req.Resample,
		DenoiseKernel:  req.DenoiseKernel,
		ResampleFactor: req.ResampleFactor,
	})
	if err != nil {
		store.SaveRunLog(runID, "preprocess", "error", "Preprocessing failed", nil)
		return nil, err
	}
	store.SaveRunLog(runID, "preprocess", "info", "Preprocessing applied", map[string]interface{}{
		"operations": manifest.Ops(),
		"shape":      processed.Shape,
	})

	if err = p.runs.RecordRecipe(ctx, runID, req.Recipe); err != nil {
		return nil, err
	}
	processedKey, err := p.runs.RecordArtifact(ctx, runID, model.RoleProcessed, processed)
	if err != nil {
		return nil, err
	}
	if err = p.writeManifest(ctx, runID, manifest); err != nil {
		return nil, err
	}
	if err = p.runs.RecordOperations(ctx, runID, manifest.Ops()...); err != nil {
		return nil, err
	}

	var previewKeys []string
	if req.ExportPNG {
		previewKeys, err = p.exportPreviews(ctx, runID, model.RoleProcessed, processed)
		if err != nil {
			return nil, err
		}
	}

	fmt.Printf("🏁 Preprocessing completed for run: %s in %v\n", runID, time.Since(start))
	return &model.PreprocessResult{
		RunID:        runID,
		ProcessedKey: processedKey,
		Manifest:     manifest,
		PreviewKeys:  previewKeys,
		Message:      fmt.Sprintf("Run %s completed. Output at %s", runID, processedKey),
	}, nil
}

// ------------------- Shared stages -------------------

// loadInput resolves the request to a single storage key and decodes
// the array behind it.
func (p *Pipeline) loadInput(ctx context.Context, req ResolveRequest, runID, stage string) (*narray.Array, error) {
	key, err := p.resolver.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	fmt.Printf("➡️ Resolved input for run %s: %s\n", runID, key)

	payload, err := p.gateway.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	a, err := narray.Load(key, payload)
	if err != nil {
		store.SaveRunLog(runID, stage, "error", "Failed to decode input", map[string]interface{}{
			"key": key,
		})
		// The key was valid; the stored object is what cannot serve
		// as an input.
		return nil, fmt.Errorf("input %s: %w: %v", key, ErrInvalidParameter, err)
	}
	store.SaveRunLog(runID, stage, "info", "Input loaded", map[string]interface{}{
		"key":   key,
		"shape": a.Shape,
		"dtype": string(a.Dtype),
	})
	return a, nil
}

// exportPreviews renders and persists preview PNGs for an artifact
// role. Preview export is best-effort: an unsupported shape skips the
// preview and the run still succeeds; storage failures do fail the run.
func (p *Pipeline) exportPreviews(ctx context.Context, runID, role string, a *narray.Array) ([]string, error) {
	images, err := ExportPreview(a, p.cfg.PreviewMaxImages)
	if errors.Is(err, ErrUnsupportedShape) {
		fmt.Printf("⚠️ Skipping preview export for run %s: %v\n", runID, err)
		store.SaveRunLog(runID, "preview", "warning", "Preview export skipped", map[string]interface{}{
			"reason": err.Error(),
		})
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	keys := make([]string, len(images))
	for i, img := range images {
		keys[i] = PreviewKey(runID, role, i)
		if err := p.gateway.Put(ctx, keys[i], img, "image/png"); err != nil {
			return nil, err
		}
	}
	if err := p.runs.RecordOutput(ctx, runID, role+"_png", PreviewPrefix(runID, role)); err != nil {
		return nil, err
	}
	store.SaveRunLog(runID, "preview", "info", "Previews exported", map[string]interface{}{
		"count": len(keys),
		"role":  role,
	})
	return keys, nil
}

// writeManifest persists the transform manifest next to the processed
// artifact and records it as a run output.
func (p *Pipeline) writeManifest(ctx context.Context, runID string, manifest *model.Manifest) error {
	payload, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("manifest %s: %w", runID, err)
	}
	key := ManifestKey(runID)
	if err := p.gateway.Put(ctx, key, payload, "application/json"); err != nil {
		return err
	}
	return p.runs.RecordOutput(ctx, runID, "manifest", key)
}

// finishRun writes terminal status for the invocation. A failure leaves
// previously written roles intact and marks the status record failed
// with the triggering error; finalization runs on a detached context so
// a deadline that killed the pipeline does not also suppress the status
// write.
func (p *Pipeline) finishRun(ctx context.Context, runID string, errp *error) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if *errp != nil {
		fmt.Printf("❌ Run %s failed: %v\n", runID, *errp)
		if ferr := p.runs.Finalize(fctx, runID, false, *errp); ferr != nil {
			fmt.Printf("⚠️ Failed to record failure status for run %s: %v\n", runID, ferr)
		}
		return
	}
	if ferr := p.runs.Finalize(fctx, runID, true, nil); ferr != nil {
		*errp = ferr
	}
}
