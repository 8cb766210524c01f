// Package backend provides command-backed implementations of the
// executor ports. Each port shells out to a user-configured command,
// writes a JSON request to its stdin, and decodes a JSON response from
// its stdout. This keeps generation and critique internals outside the
// agent: any tool that speaks the JSON contract can serve as a backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/Iron-Ham/wiggum/internal/executor"
	"github.com/Iron-Ham/wiggum/internal/logging"
	"github.com/Iron-Ham/wiggum/internal/packet"
)

// runCommand executes a shell command with the JSON-encoded request on
// stdin and decodes stdout into out. Stderr is captured for error
// context only.
func runCommand(ctx context.Context, command string, request, out any) error {
	input, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("encoding backend request: %w", err)
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Stdin = bytes.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("backend command failed: %w: %s", err, msg)
		}
		return fmt.Errorf("backend command failed: %w", err)
	}

	if err := json.Unmarshal(stdout.Bytes(), out); err != nil {
		return fmt.Errorf("decoding backend response: %w", err)
	}
	return nil
}

// Generator runs the configured generate command once per iteration.
type Generator struct {
	command string
	logger  *logging.Logger
}

// NewGenerator creates a command-backed Generator.
func NewGenerator(command string, logger *logging.Logger) *Generator {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Generator{command: command, logger: logger}
}

func (g *Generator) Generate(ctx context.Context, req executor.GenerationRequest) (*executor.GenerationResult, error) {
	if g.command == "" {
		return nil, fmt.Errorf("no generate command configured")
	}

	g.logger.Debug("invoking generate command",
		"packet_id", req.Packet.ID,
		"iteration", req.Iteration)

	var result executor.GenerationResult
	if err := runCommand(ctx, g.command, generateRequest{
		Packet:          req.Packet,
		Phase:           req.Phase.String(),
		Iteration:       req.Iteration,
		CriteriaMissing: req.CriteriaMissing,
	}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// generateRequest is the JSON shape written to the generate command.
type generateRequest struct {
	Packet          packet.WorkPacket `json:"packet"`
	Phase           string            `json:"phase"`
	Iteration       int               `json:"iteration"`
	CriteriaMissing []string          `json:"criteria_missing,omitempty"`
}

// Critic runs the configured critique command against accumulated files.
type Critic struct {
	command string
	logger  *logging.Logger
}

// NewCritic creates a command-backed Critic.
func NewCritic(command string, logger *logging.Logger) *Critic {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Critic{command: command, logger: logger}
}

func (c *Critic) Critique(ctx context.Context, files []packet.FileChange, criteria []string) (*executor.CritiqueResult, error) {
	if c.command == "" {
		return nil, fmt.Errorf("no critique command configured")
	}

	c.logger.Debug("invoking critique command",
		"files", len(files),
		"criteria", len(criteria))

	var result executor.CritiqueResult
	if err := runCommand(ctx, c.command, critiqueRequest{
		Files:    files,
		Criteria: criteria,
	}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// critiqueRequest is the JSON shape written to the critique command.
type critiqueRequest struct {
	Files    []packet.FileChange `json:"files"`
	Criteria []string            `json:"criteria"`
}

// Applier runs the configured apply command with the merged project
// changes. With no command configured it degrades to a no-op that
// reports success, so projects can run end to end before an apply
// pipeline exists.
type Applier struct {
	command string
	logger  *logging.Logger
}

// NewApplier creates a command-backed Applier.
func NewApplier(command string, logger *logging.Logger) *Applier {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Applier{command: command, logger: logger}
}

func (a *Applier) Apply(ctx context.Context, req executor.ApplyRequest) (*executor.ApplyResult, error) {
	if a.command == "" {
		a.logger.Info("no apply command configured, skipping change request",
			"branch", req.Branch,
			"files", len(req.Files))
		return &executor.ApplyResult{Success: true}, nil
	}

	a.logger.Info("invoking apply command",
		"repo", req.RepoRef,
		"branch", req.Branch,
		"files", len(req.Files))

	var result executor.ApplyResult
	if err := runCommand(ctx, a.command, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
