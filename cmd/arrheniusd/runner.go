package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/ahurka/Arrhenius/config"
	"github.com/ahurka/Arrhenius/store"
)

// modelRunner invokes the external simulation engine as a subprocess.
// The engine receives the configuration as JSON on stdin and writes
// the encoded dataset to stdout. Output streams into a staged file
// that is renamed to the canonical dataset path only after the engine
// exits successfully, so a run killed mid-write can never leave a
// partial file that reads as a cache hit.
type modelRunner struct {
	layout  *store.Layout
	command string
	args    []string
	logger  *slog.Logger
}

func newModelRunner(layout *store.Layout, command string, args []string, logger *slog.Logger) *modelRunner {
	return &modelRunner{
		layout:  layout,
		command: command,
		args:    args,
		logger:  logger,
	}
}

func (m *modelRunner) Run(ctx context.Context, cfg *config.Config) error {
	runID := cfg.RunID()
	input, err := json.Marshal(cfg)
	if err != nil {
		return err
	}

	staged, err := m.layout.StageFile(m.layout.DatasetPath(runID))
	if err != nil {
		return err
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, m.command, m.args...)
	cmd.Stdin = bytes.NewReader(input)
	cmd.Stdout = staged

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		_ = staged.Discard()
		return fmt.Errorf("model run %s: %w: %s", runID, err, stderr.String())
	}
	if err := staged.Commit(); err != nil {
		return fmt.Errorf("model run %s: commit dataset: %w", runID, err)
	}
	m.logger.Info("model run finished",
		"run_id", runID, "duration", time.Since(start))
	return nil
}
