package cmd

import (
	"fmt"
	"net/url"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JuweiLin/ARProject/pkg/protocol"
)

func newTasksCmd() *cobra.Command {
	var showActions bool

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Show experiment task progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp protocol.TasksResponse
			if err := apiGet("/api/v1/tasks", &resp); err != nil {
				return err
			}

			fmt.Printf("Run:                %s\n", resp.Run)
			fmt.Printf("Experiment started: %s\n\n", resp.ExperimentStarted.Format("2006-01-02 15:04:05"))

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTASK\tSTATUS")
			for _, t := range resp.Tasks {
				fmt.Fprintf(w, "%d\t%s\t%s\n", t.ID, t.Name, t.Status)
			}
			w.Flush()

			if !showActions {
				return nil
			}
			fmt.Println()
			printActions(resp.Actions)
			return nil
		},
	}

	cmd.Flags().BoolVar(&showActions, "actions", false, "also list recorded user actions")
	cmd.AddCommand(newTasksResetCmd(), newTasksHistoryCmd())

	return cmd
}

func newTasksResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Start a new experiment run with every task pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := apiPost("/api/v1/tasks/reset", nil); err != nil {
				return err
			}
			fmt.Println("Experiment reset.")
			return nil
		},
	}
}

func newTasksHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history RUN",
		Short: "List the persisted user actions of an experiment run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp protocol.RunActionsResponse
			if err := apiGet("/api/v1/runs/"+url.PathEscape(args[0])+"/actions", &resp); err != nil {
				return err
			}
			printActions(resp.Actions)
			return nil
		},
	}
}

func printActions(actions []protocol.UserAction) {
	if len(actions) == 0 {
		fmt.Println("No user actions recorded.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tTASK\tVALUE")
	for _, a := range actions {
		fmt.Fprintf(w, "%s\t%s\t%s\n", a.Time.Format("15:04:05.000"), a.Task, a.Value)
	}
	w.Flush()
}
