// Package executor drives work packets to completion. It contains the
// packet-level convergence loop (the Wiggum Loop) and the project-level
// executor that runs packets in phase order and hands the accumulated
// changes to the code applier.
//
// This file defines the contracts for the external collaborators the
// executors orchestrate: the generation backend, the critique
// evaluator, and the code applier. The executors only interpret their
// structured results; generation and critique internals live elsewhere.
package executor

import (
	"context"

	"github.com/Iron-Ham/wiggum/internal/packet"
	"github.com/Iron-Ham/wiggum/internal/phase"
)

// GenerationRequest carries one packet iteration to the generation
// backend.
type GenerationRequest struct {
	// Packet is the work packet being converged.
	Packet packet.WorkPacket `json:"packet"`

	// Phase selects generation parameters for the packet.
	Phase phase.Phase `json:"phase"`

	// Iteration is the 1-indexed convergence iteration.
	Iteration int `json:"iteration"`

	// CriteriaMissing lists the acceptance criteria the previous
	// critique found unsatisfied, empty on the first iteration.
	CriteriaMissing []string `json:"criteria_missing,omitempty"`
}

// GenerationResult is the structured output of one generation call.
type GenerationResult struct {
	// Files are the file changes produced this iteration.
	Files []packet.FileChange `json:"files"`

	// Confidence is the backend's own estimate in [0, 1]. Advisory; the
	// loop's pass decision uses critique results, not this value.
	Confidence float64 `json:"confidence"`

	// Issues are non-fatal warnings. They are recorded but never abort
	// an iteration.
	Issues []string `json:"issues,omitempty"`
}

// Generator is the generation backend contract. Implementations must
// not block indefinitely; failures are returned as errors, which the
// packet executor treats as a zero-file, zero-confidence iteration that
// still counts against the iteration budget.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error)
}

// CritiqueResult partitions the acceptance criteria of a packet into
// satisfied and unsatisfied sets.
type CritiqueResult struct {
	// CriteriaMet are the input criteria the accumulated files satisfy.
	CriteriaMet []string `json:"criteria_met"`

	// CriteriaMissing are the input criteria not yet satisfied.
	CriteriaMissing []string `json:"criteria_missing"`
}

// Critic is the critique evaluator contract. The returned lists must
// partition the input criteria; the executor defensively normalizes
// results that do not (unknown strings are dropped, unmentioned
// criteria count as missing).
type Critic interface {
	Critique(ctx context.Context, files []packet.FileChange, criteria []string) (*CritiqueResult, error)
}

// ApplyRequest asks the code applier to commit accumulated changes and
// open a change request against the project's repository.
type ApplyRequest struct {
	// RepoRef identifies the target repository.
	RepoRef string `json:"repo_ref"`

	// Files are the merged file changes for the whole project.
	Files []packet.FileChange `json:"files"`

	// Branch is the generated branch or change-set name.
	Branch string `json:"branch"`

	// Title is the change request title.
	Title string `json:"title"`

	// Description is the change request body.
	Description string `json:"description"`
}

// ApplyResult is the structured output of the code applier.
type ApplyResult struct {
	// Success is true when the changes were applied.
	Success bool `json:"success"`

	// ChangeRequestURL references the opened merge/pull request, when
	// one was created.
	ChangeRequestURL string `json:"change_request_url,omitempty"`

	// Errors are the applier's failure messages, if any.
	Errors []string `json:"errors,omitempty"`
}

// Applier is the code applier contract.
type Applier interface {
	Apply(ctx context.Context, req ApplyRequest) (*ApplyResult, error)
}
