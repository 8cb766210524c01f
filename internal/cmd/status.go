package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/wiggum/internal/agent"
	"github.com/Iron-Ham/wiggum/internal/config"
	"github.com/Iron-Ham/wiggum/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the persisted agent state and queue",
	Long: `Display the agent's persisted state: lifecycle state, queued projects,
and the last execution result. With --follow, the state file is watched
and the status is re-rendered on every change.`,
	RunE: runStatus,
}

var statusFollow bool

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVarP(&statusFollow, "follow", "f", false, "watch the state file and re-render on changes")
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	pausedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolving working directory: %w", err)
	}
	dataDir := cfg.Paths.ResolveDataDir(cwd)

	st, err := openStore(cfg, dataDir)
	if err != nil {
		return err
	}
	if closer, ok := st.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	if !statusFollow {
		return printState(st)
	}

	fs, ok := st.(*store.FileStore)
	if !ok {
		return fmt.Errorf("--follow requires the file store backend")
	}
	return followState(fs)
}

// printState loads the persisted state once and renders it.
func printState(st store.Store) error {
	state, err := st.Load()
	if err != nil {
		return fmt.Errorf("loading state: %w", err)
	}
	fmt.Print(renderState(state))
	return nil
}

// followState re-renders whenever the state file changes on disk.
func followState(fs *store.FileStore) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: the store replaces the file atomically via
	// rename, which would drop a watch on the file itself.
	if err := watcher.Add(fs.Dir()); err != nil {
		return fmt.Errorf("watching %s: %w", fs.Dir(), err)
	}

	if err := printState(fs); err != nil {
		return err
	}

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Name != fs.Path() {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			fmt.Println(mutedStyle.Render(strings.Repeat("-", 40)))
			if err := printState(fs); err != nil {
				return err
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch error: %w", err)
		}
	}
}

// renderState formats a persisted state snapshot for the terminal.
func renderState(state *store.State) string {
	if state == nil {
		return mutedStyle.Render("No agent state found") + "\n"
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Agent") + ": " + renderAgentState(state.ControllerState) + "\n")
	b.WriteString(fmt.Sprintf("%s: %d project(s)\n", titleStyle.Render("Queue"), len(state.Queue)))

	for i, qp := range state.Queue {
		b.WriteString(fmt.Sprintf("  [%d] %s %s\n", i+1, qp.Project.Name,
			mutedStyle.Render("("+qp.Project.ID+")")))
		b.WriteString(fmt.Sprintf("      priority %d, %d packet(s)\n",
			qp.Priority, len(qp.Project.Packets)))
	}

	if r := state.LastResult; r != nil {
		verdict := successStyle.Render("success")
		if !r.Success {
			verdict = errorStyle.Render("failed")
		}
		b.WriteString(titleStyle.Render("Last result") + ": " + r.ProjectName + " " + verdict + "\n")
		b.WriteString(fmt.Sprintf("      %d packet(s) completed, %d failed, %d file(s), %d iteration(s)\n",
			r.PacketsCompleted, r.PacketsFailed, len(r.Files), r.TotalIterations))
		if r.ChangeRequestURL != "" {
			b.WriteString("      " + r.ChangeRequestURL + "\n")
		}
		for _, msg := range r.Errors {
			b.WriteString("      " + errorStyle.Render(msg) + "\n")
		}
	}

	return b.String()
}

// renderAgentState colors the lifecycle state by value.
func renderAgentState(s string) string {
	switch agent.State(s) {
	case agent.StateRunning:
		return runningStyle.Render(s)
	case agent.StatePaused:
		return pausedStyle.Render(s)
	case agent.StateCompleted:
		return successStyle.Render(s)
	case agent.StateFailed:
		return errorStyle.Render(s)
	case agent.StateIdle:
		return mutedStyle.Render(s)
	default:
		if s == "" {
			return mutedStyle.Render("idle")
		}
		return s
	}
}
