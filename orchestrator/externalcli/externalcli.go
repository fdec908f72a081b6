// Package externalcli wraps invocation of an external GraphRAG indexing CLI
// (spec §4.11 step 5: "preferring an external GraphRAG CLI when available
// and credentials present"), grounded on
// original_source/backend/scripts/run_graphrag_index.py's subprocess
// invocation (locate the console script, otherwise fall back to `python -m`
// style invocation; write stdout/stderr to a log file under the staging
// directory). Reimplemented with os/exec: no example repo in the pack wraps
// subprocess invocation in a third-party library, so this is a
// standard-library-only component (DESIGN.md records the justification).
package externalcli

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
)

// Runner invokes an external indexing pipeline for a staging directory.
type Runner interface {
	// Available reports whether the external CLI can be invoked: the
	// binary is on PATH and credentials are configured.
	Available() bool
	// Run invokes the CLI against stagingDir, optionally scoped to docIDs
	// (a "--since"-style delta filter). Output is written to
	// stagingDir/orchestrator.log, replacing any earlier content.
	Run(ctx context.Context, stagingDir string, docIDs []string) error
}

// CommandRunner shells out to a named binary via os/exec.
type CommandRunner struct {
	// BinaryName is looked up on PATH, e.g. "graphrag".
	BinaryName string
	// ConfigPath is passed as --config.
	ConfigPath string
	// CredentialEnvVar, when set and non-empty in the environment, gates
	// Available() (e.g. "OPENAI_API_KEY").
	CredentialEnvVar string
}

// Available reports whether BinaryName resolves on PATH and
// CredentialEnvVar (if set) has a non-empty value.
func (r *CommandRunner) Available() bool {
	if _, err := exec.LookPath(r.BinaryName); err != nil {
		return false
	}
	if r.CredentialEnvVar != "" && os.Getenv(r.CredentialEnvVar) == "" {
		return false
	}
	return true
}

// Run invokes "<binary> index --config <ConfigPath> --output <stagingDir>",
// appending "--since <id1,id2,...>" when docIDs is non-empty, and streams
// combined stdout/stderr to stagingDir/orchestrator.log.
func (r *CommandRunner) Run(ctx context.Context, stagingDir string, docIDs []string) error {
	args := []string{"index", "--config", r.ConfigPath, "--output", stagingDir}
	if len(docIDs) > 0 {
		args = append(args, "--since", joinCommas(docIDs))
	}

	logFile, err := os.Create(filepath.Join(stagingDir, "orchestrator.log"))
	if err != nil {
		return err
	}
	defer logFile.Close()

	cmd := exec.CommandContext(ctx, r.BinaryName, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	return cmd.Run()
}

func joinCommas(ids []string) string {
	out := ids[0]
	for _, id := range ids[1:] {
		out += "," + id
	}
	return out
}
