package executor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Iron-Ham/wiggum/internal/errors"
	"github.com/Iron-Ham/wiggum/internal/logging"
	"github.com/Iron-Ham/wiggum/internal/packet"
	"github.com/Iron-Ham/wiggum/internal/phase"
)

// DefaultBranchPrefix is the prefix for generated branch names.
const DefaultBranchPrefix = "wiggum"

// ProjectConfig holds configuration for project execution.
type ProjectConfig struct {
	// Packet configures the per-packet convergence loop.
	Packet PacketConfig `json:"packet"`

	// BranchPrefix is prepended to generated branch names.
	BranchPrefix string `json:"branch_prefix"`
}

// DefaultProjectConfig returns a ProjectConfig with sensible defaults.
func DefaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Packet:       DefaultPacketConfig(),
		BranchPrefix: DefaultBranchPrefix,
	}
}

// ProjectProgressFunc receives project-level progress snapshots, one
// per packet iteration.
type ProjectProgressFunc func(packet.ExecutionProgress)

// ProjectExecutor runs every packet of a project to completion in phase
// order and assembles the project-level result. Packets always execute
// sequentially; the generation backend is a shared, rate-sensitive
// resource and is never called for two packets at once.
type ProjectExecutor struct {
	classifier phase.Classifier
	packets    *PacketExecutor
	applier    Applier
	logger     *logging.Logger
	config     ProjectConfig

	// now is replaced in tests for deterministic branch names.
	now func() time.Time
}

// NewProjectExecutor creates a ProjectExecutor. A nil classifier gets
// the default keyword classifier; a nil logger disables logging.
func NewProjectExecutor(generator Generator, critic Critic, applier Applier, classifier phase.Classifier, config ProjectConfig, logger *logging.Logger) *ProjectExecutor {
	if classifier == nil {
		classifier = phase.NewKeywordClassifier()
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	if config.BranchPrefix == "" {
		config.BranchPrefix = DefaultBranchPrefix
	}
	return &ProjectExecutor{
		classifier: classifier,
		packets:    NewPacketExecutor(generator, critic, config.Packet, logger),
		applier:    applier,
		logger:     logger,
		config:     config,
		now:        time.Now,
	}
}

// orderedPacket pairs a packet with its classification for sorting.
type orderedPacket struct {
	index int // original position, the tie-breaker
	phase phase.Phase
}

// Execute runs the project. Packet failures are isolated: a packet that
// exhausts its budget or errors is counted as failed and execution
// continues with the next packet. Only a cancellation stops the run
// early, in which case ErrInterrupted is returned alongside the partial
// result and no apply is attempted.
func (e *ProjectExecutor) Execute(ctx context.Context, project *packet.Project, onProgress ProjectProgressFunc) (*packet.ExecutionResult, error) {
	log := e.logger.WithProject(project.ID)
	started := e.now()

	result := &packet.ExecutionResult{
		ProjectID:   project.ID,
		ProjectName: project.Name,
	}

	order := e.sortPackets(project.Packets)
	log.Info("project execution started", "packets", len(order))

	stopped := false
	for i, op := range order {
		pkt := &project.Packets[op.index]

		progress := func(pp PacketProgress) {
			result.TotalIterations++
			if onProgress != nil {
				onProgress(packet.ExecutionProgress{
					ProjectID:      project.ID,
					PacketIndex:    i,
					PacketCount:    len(order),
					PacketTitle:    pkt.Title,
					Phase:          op.phase.String(),
					Iteration:      pp.Iteration,
					MaxIterations:  pp.MaxIterations,
					Confidence:     pp.Confidence,
					FilesGenerated: len(packet.MergeChanges(result.Files, pp.Files)),
					StartedAt:      started,
					UpdatedAt:      e.now(),
				})
			}
		}

		pktResult, err := e.packets.Execute(ctx, pkt, op.phase, progress)
		if err != nil {
			if errors.IsStop(err) {
				log.Info("project execution stopped", "packet", pkt.ID)
				stopped = true
				break
			}
			// Unexpected executor failure: record and move on. One bad
			// packet must not abort the project.
			msg := errors.NewExecutionError(project.ID, pkt.ID, err).Error()
			log.Error("packet execution failed", "packet", pkt.ID, "error", err.Error())
			result.Errors = append(result.Errors, msg)
			result.PacketsFailed++
			continue
		}

		result.Files = packet.MergeChanges(result.Files, pktResult.Files)

		if pktResult.Success {
			result.PacketsCompleted++
		} else {
			result.PacketsFailed++
			result.Errors = append(result.Errors,
				errors.NewMaxIterationsError(pkt.ID, pktResult.Iterations, pktResult.FinalConfidence).Error())
		}
	}

	if !stopped && len(result.Files) > 0 {
		e.apply(ctx, log, project, result)
	}

	result.Success = result.PacketsFailed == 0 && len(result.Errors) == 0
	result.Duration = e.now().Sub(started)

	log.Info("project execution finished",
		"success", result.Success,
		"completed", result.PacketsCompleted,
		"failed", result.PacketsFailed,
		"iterations", result.TotalIterations)

	if stopped {
		return result, errors.ErrInterrupted
	}
	return result, nil
}

// apply hands accumulated files to the code applier. Apply failures are
// project-level errors: they flip Success to false even when every
// packet individually converged.
func (e *ProjectExecutor) apply(ctx context.Context, log *logging.Logger, project *packet.Project, result *packet.ExecutionResult) {
	branch := e.branchName(project.Name)

	applyRes, err := e.applier.Apply(ctx, ApplyRequest{
		RepoRef:     project.RepoRef,
		Files:       result.Files,
		Branch:      branch,
		Title:       project.Name,
		Description: describeResult(project, result),
	})
	if err != nil {
		log.Error("apply failed", "branch", branch, "error", err.Error())
		result.Errors = append(result.Errors, fmt.Sprintf("apply to branch %s: %v", branch, err))
		return
	}

	result.ChangeRequestURL = applyRes.ChangeRequestURL
	if !applyRes.Success {
		log.Error("apply rejected", "branch", branch, "errors", strings.Join(applyRes.Errors, "; "))
		result.Errors = append(result.Errors, errors.NewApplyError(branch, applyRes.Errors).Error())
		return
	}

	log.Info("changes applied", "branch", branch, "url", applyRes.ChangeRequestURL)
}

// sortPackets orders packets by (phase order, original index). The
// original index tie-break keeps same-phase packets in authored order
// for determinism.
func (e *ProjectExecutor) sortPackets(packets []packet.WorkPacket) []orderedPacket {
	order := make([]orderedPacket, len(packets))
	for i, pkt := range packets {
		order[i] = orderedPacket{
			index: i,
			phase: e.classifier.Classify(pkt.Title, pkt.Description),
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return order[a].phase.Order() < order[b].phase.Order()
	})
	return order
}

// branchName derives a branch name from the project name and the
// current time, e.g. "wiggum/checkout-flow-20260301-120000".
func (e *ProjectExecutor) branchName(projectName string) string {
	return fmt.Sprintf("%s/%s-%s",
		e.config.BranchPrefix,
		slug(projectName),
		e.now().UTC().Format("20060102-150405"))
}

// slug lowercases a name and replaces runs of non-alphanumerics with a
// single hyphen.
func slug(name string) string {
	var b strings.Builder
	lastHyphen := true // suppress a leading hyphen
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteRune('-')
				lastHyphen = true
			}
		}
	}
	s := strings.TrimSuffix(b.String(), "-")
	if s == "" {
		return "project"
	}
	return s
}

// describeResult builds the change request body.
func describeResult(project *packet.Project, result *packet.ExecutionResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Automated changes for %s.\n\n", project.Name)
	fmt.Fprintf(&b, "Packets completed: %d\n", result.PacketsCompleted)
	if result.PacketsFailed > 0 {
		fmt.Fprintf(&b, "Packets failed: %d\n", result.PacketsFailed)
	}
	fmt.Fprintf(&b, "Files changed: %d\n", len(result.Files))
	return b.String()
}
