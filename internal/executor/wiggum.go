package executor

import (
	"context"

	"github.com/Iron-Ham/wiggum/internal/errors"
	"github.com/Iron-Ham/wiggum/internal/logging"
	"github.com/Iron-Ham/wiggum/internal/packet"
	"github.com/Iron-Ham/wiggum/internal/phase"
)

// PacketConfig holds configuration for the packet convergence loop.
type PacketConfig struct {
	// MaxIterations is the iteration budget per packet.
	MaxIterations int `json:"max_iterations"`

	// PassThreshold is the confidence required to accept a packet, as a
	// fraction of acceptance criteria met.
	PassThreshold float64 `json:"pass_threshold"`
}

// DefaultPacketConfig returns a PacketConfig with sensible defaults.
func DefaultPacketConfig() PacketConfig {
	return PacketConfig{
		MaxIterations: 15,
		PassThreshold: 0.75,
	}
}

// PacketProgress is emitted at every iteration boundary of the loop.
// For a given packet the sequence is finite, strictly increasing in
// Iteration, and terminates with the loop's PacketResult.
type PacketProgress struct {
	// PacketID identifies the packet being converged.
	PacketID string

	// Iteration is the iteration that just finished (1-indexed).
	Iteration int

	// MaxIterations is the packet's iteration budget.
	MaxIterations int

	// Confidence is the fraction of acceptance criteria met after this
	// iteration, in [0, 1].
	Confidence float64

	// Files are the changes accumulated so far in this packet, merged
	// last-write-wins per path.
	Files []packet.FileChange

	// CriteriaMissing lists the criteria still unsatisfied.
	CriteriaMissing []string
}

// ProgressFunc receives per-iteration progress updates. Delivery is
// synchronous from the loop goroutine.
type ProgressFunc func(PacketProgress)

// PacketResult is the terminal output of one packet's convergence loop.
type PacketResult struct {
	// Success is true when the packet met the pass threshold.
	Success bool

	// Interrupted is true when the loop was cancelled before reaching a
	// terminal state; the packet is then neither completed nor failed.
	Interrupted bool

	// Files are the accumulated changes, merged last-write-wins per path.
	Files []packet.FileChange

	// Iterations is the number of generate+critique cycles performed.
	Iterations int

	// FinalConfidence is the confidence from the last critique.
	FinalConfidence float64

	// Issues are the non-fatal warnings collected across iterations.
	Issues []string
}

// PacketExecutor converges one packet at a time through bounded
// generate→critique iteration. It is the Wiggum Loop: generate, see how
// far off the acceptance bar the result is, and go again until the
// confidence gate opens or the budget runs out.
type PacketExecutor struct {
	generator Generator
	critic    Critic
	config    PacketConfig
	logger    *logging.Logger
}

// NewPacketExecutor creates a PacketExecutor. A nil logger disables
// logging.
func NewPacketExecutor(generator Generator, critic Critic, config PacketConfig, logger *logging.Logger) *PacketExecutor {
	if config.MaxIterations <= 0 {
		config.MaxIterations = DefaultPacketConfig().MaxIterations
	}
	if config.PassThreshold <= 0 {
		config.PassThreshold = DefaultPacketConfig().PassThreshold
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &PacketExecutor{
		generator: generator,
		critic:    critic,
		config:    config,
		logger:    logger,
	}
}

// Execute runs the convergence loop for one packet. The packet's status
// is updated in place: in_progress while looping, then completed or
// failed. A cancellation observed before an iteration leaves the status
// at in_progress and returns ErrInterrupted; the caller decides what to
// do with the partial state (the agent restarts such packets from
// iteration zero on resume).
//
// Progress updates are delivered synchronously through onProgress, one
// per iteration, before the final result is returned. onProgress may be
// nil.
func (e *PacketExecutor) Execute(ctx context.Context, pkt *packet.WorkPacket, ph phase.Phase, onProgress ProgressFunc) (*PacketResult, error) {
	log := e.logger.WithPacket(pkt.ID).WithPhase(ph.String())

	pkt.Status = packet.StatusInProgress

	result := &PacketResult{}
	var missing []string

	for iteration := 1; iteration <= e.config.MaxIterations; iteration++ {
		// Cancellation is cooperative: observed only here, never
		// mid-call to a backend.
		if err := ctx.Err(); err != nil {
			log.Info("packet interrupted", "iteration", iteration-1)
			result.Interrupted = true
			return result, errors.ErrInterrupted
		}

		result.Iterations = iteration

		gen, err := e.generator.Generate(ctx, GenerationRequest{
			Packet:          *pkt,
			Phase:           ph,
			Iteration:       iteration,
			CriteriaMissing: missing,
		})
		if err != nil {
			// A backend failure is a zero-file, zero-confidence
			// iteration; it spends budget but never aborts the loop.
			log.Warn("generation failed", "iteration", iteration, "error", err.Error())
			result.Issues = append(result.Issues, err.Error())
			gen = &GenerationResult{}
		}

		result.Files = packet.MergeChanges(result.Files, gen.Files)
		result.Issues = append(result.Issues, gen.Issues...)

		confidence, critiqueMissing := e.critique(ctx, log, result.Files, pkt.AcceptanceCriteria, iteration)
		missing = critiqueMissing
		result.FinalConfidence = confidence

		log.Debug("iteration complete",
			"iteration", iteration,
			"confidence", confidence,
			"files", len(result.Files),
			"criteria_missing", len(missing))

		if onProgress != nil {
			onProgress(PacketProgress{
				PacketID:        pkt.ID,
				Iteration:       iteration,
				MaxIterations:   e.config.MaxIterations,
				Confidence:      confidence,
				Files:           result.Files,
				CriteriaMissing: missing,
			})
		}

		if confidence >= e.config.PassThreshold {
			pkt.Status = packet.StatusCompleted
			result.Success = true
			log.Info("packet converged", "iterations", iteration, "confidence", confidence)
			return result, nil
		}
	}

	pkt.Status = packet.StatusFailed
	log.Warn("packet exhausted iteration budget",
		"iterations", result.Iterations,
		"confidence", result.FinalConfidence)
	return result, nil
}

// critique evaluates accumulated files against the packet's acceptance
// criteria and returns the resulting confidence plus the criteria still
// missing. Empty criteria means full confidence. A critic error counts
// as a complete shortfall for this iteration.
func (e *PacketExecutor) critique(ctx context.Context, log *logging.Logger, files []packet.FileChange, criteria []string, iteration int) (float64, []string) {
	if len(criteria) == 0 {
		return 1.0, nil
	}

	res, err := e.critic.Critique(ctx, files, criteria)
	if err != nil {
		log.Warn("critique failed", "iteration", iteration, "error", err.Error())
		return 0, append([]string(nil), criteria...)
	}

	met, missing := normalizeCritique(res, criteria)
	return float64(len(met)) / float64(len(criteria)), missing
}

// normalizeCritique forces a critique result into a partition of the
// input criteria: strings the critic invented are dropped, and input
// criteria the critic never mentioned count as missing. Met wins when a
// criterion somehow appears in both lists.
func normalizeCritique(res *CritiqueResult, criteria []string) (met, missing []string) {
	metSet := make(map[string]bool, len(res.CriteriaMet))
	for _, c := range res.CriteriaMet {
		metSet[c] = true
	}

	for _, c := range criteria {
		if metSet[c] {
			met = append(met, c)
		} else {
			missing = append(missing, c)
		}
	}
	return met, missing
}
