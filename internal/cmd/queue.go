package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/wiggum/internal/agent"
	"github.com/Iron-Ham/wiggum/internal/errors"
	"github.com/Iron-Ham/wiggum/internal/manifest"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Manage the project queue",
}

var queueAddCmd = &cobra.Command{
	Use:   "add <manifest>...",
	Short: "Enqueue projects from manifest files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQueueAdd,
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queued projects in execution order",
	RunE:  runQueueList,
}

var queueRemoveCmd = &cobra.Command{
	Use:   "remove <project-id>...",
	Short: "Remove projects from the queue",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQueueRemove,
}

var queueReorderCmd = &cobra.Command{
	Use:   "reorder <project-id>...",
	Short: "Reorder the queue; listed projects run first, in the given order",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQueueReorder,
}

var queueAddPriority int

func init() {
	rootCmd.AddCommand(queueCmd)
	queueCmd.AddCommand(queueAddCmd)
	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueRemoveCmd)
	queueCmd.AddCommand(queueReorderCmd)

	queueAddCmd.Flags().IntVarP(&queueAddPriority, "priority", "p", 0, "queue priority (lower runs first, 0 uses the configured default)")
}

func runQueueAdd(cmd *cobra.Command, args []string) error {
	app, err := newAppContext()
	if err != nil {
		return err
	}
	defer app.Close()

	priority := queueAddPriority
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
	return nil
}

func runQueueList(cmd *cobra.Command, args []string) error {
	app, err := newAppContext()
	if err != nil {
		return err
	}
	defer app.Close()

	status := app.controller.Status()
	if len(status.Queue) == 0 {
		fmt.Println("Queue is empty")
		return nil
	}

	for i, qp := range status.Queue {
		fmt.Printf("[%d] %s (%s)\n", i+1, qp.Project.Name, qp.Project.ID)
		fmt.Printf("    Priority: %d\n", qp.Priority)
		fmt.Printf("    Packets: %d\n", len(qp.Project.Packets))
		fmt.Printf("    Added: %s\n", qp.AddedAt.Format("2006-01-02 15:04:05"))
		fmt.Println()
	}
	return nil
}

func runQueueRemove(cmd *cobra.Command, args []string) error {
	app, err := newAppContext()
	if err != nil {
		return err
	}
	defer app.Close()

	return removeProjects(app.controller, args)
}

// removeProjects dequeues each id in turn. Dequeue treats an absent id
// as a no-op; the command reports it so a typo does not pass silently.
func removeProjects(controller *agent.Controller, ids []string) error {
	queued := make(map[string]bool)
	for _, qp := range controller.Status().Queue {
		queued[qp.Project.ID] = true
	}

	for _, id := range ids {
		if !queued[id] {
			return errors.NewQueueError("remove", id, errors.ErrProjectNotFound)
		}
		if err := controller.Dequeue(id); err != nil {
			return err
		}
		fmt.Printf("Removed %s\n", id)
	}
	return nil
}

func runQueueReorder(cmd *cobra.Command, args []string) error {
	app, err := newAppContext()
	if err != nil {
		return err
	}
	defer app.Close()

	app.controller.Reorder(args)
	return runQueueList(cmd, nil)
}
