package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/wiggum/internal/agent"
	"github.com/Iron-Ham/wiggum/internal/events"
	"github.com/Iron-Ham/wiggum/internal/manifest"
)

var runCmd = &cobra.Command{
	Use:   "run [manifest...]",
	Short: "Run the agent until the queue drains",
	Long: `Start the agent and serve the project queue until it drains. Manifest
files given as arguments are enqueued first. Interrupt (Ctrl-C) pauses
the agent; the active project stays at the head of the queue and is
reprocessed on the next run.`,
	RunE: runRun,
}

var runPriority int

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().IntVarP(&runPriority, "priority", "p", 0, "priority for enqueued manifests (lower runs first, 0 uses the configured default)")
}

func runRun(cmd *cobra.Command, args []string) error {
	app, err := newAppContext()
	if err != nil {
		return err
	}
	defer app.Close()

	priority := runPriority
	if priority == 0 {
		priority = app.cfg.Agent.DefaultPriority
	}

	for _, path := range args {
		project, err := manifest.Load(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		app.controller.Enqueue(*project, priority)
		fmt.Printf("Enqueued %s (%s) with %d packets at priority %d\n",
			project.Name, project.ID, len(project.Packets), priority)
	}

	// Relay controller status snapshots as typed events on the console.
	bus := events.NewBus()
	bus.SubscribeAll(printEvent)
	tracker := events.NewTracker()
	unsubscribe := app.controller.Subscribe(func(s agent.Status) {
		for _, ev := range tracker.Observe(s) {
			bus.Publish(ev)
		}
	})
	defer unsubscribe()

	if err := app.controller.Start(); err != nil {
		return err
	}

	// First interrupt pauses cooperatively; a second one kills us.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	done := make(chan struct{})
	go func() {
		app.controller.Wait()
		close(done)
	}()

	for {
		select {
		case <-sigCh:
			fmt.Println("\nStopping after the current iteration...")
			signal.Stop(sigCh)
			if err := app.controller.Stop(); err != nil {
				return err
			}
		case <-done:
			status := app.controller.Status()
			printFinalStatus(status)
			if status.LastResult != nil && !status.LastResult.Success {
				return fmt.Errorf("last project did not fully converge")
			}
			return nil
		}
	}
}

// printEvent renders one event per line for the console.
func printEvent(e events.Event) {
	switch ev := e.(type) {
	case events.AgentStateChangedEvent:
		fmt.Printf("agent: %s -> %s\n", ev.From, ev.To)
	case events.ProjectStartedEvent:
		fmt.Printf("project %s started (%d packets)\n", ev.Name, ev.Packets)
	case events.PacketIterationEvent:
		fmt.Printf("  [%s] %s: iteration %d/%d, confidence %.2f, %d files\n",
			ev.Phase, ev.PacketTitle, ev.Iteration, ev.MaxIterations, ev.Confidence, ev.Files)
	case events.ProjectFinishedEvent:
		verdict := "converged"
		if !ev.Success {
			verdict = "did not fully converge"
		}
		fmt.Printf("project %s %s: %d completed, %d failed, %d files\n",
			ev.Name, verdict, ev.PacketsCompleted, ev.PacketsFailed, ev.Files)
		if ev.ChangeRequestURL != "" {
			fmt.Printf("  change request: %s\n", ev.ChangeRequestURL)
		}
	case events.ErrorEvent:
		fmt.Fprintf(os.Stderr, "error: %s\n", ev.Message)
	}
}

// printFinalStatus summarizes the terminal state after the loop exits.
func printFinalStatus(status agent.Status) {
	switch status.State {
	case agent.StatePaused:
		fmt.Printf("Paused with %d project(s) queued; run again to resume.\n", len(status.Queue))
	case agent.StateCompleted:
		fmt.Println("Queue drained.")
	}
}
