package cli

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/soyeahso/enso/internal/app"
	"github.com/soyeahso/enso/internal/legacy"
	"github.com/soyeahso/enso/internal/todo"
)

func newTodoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "todo",
		Short: "Work with per-repository tasks",
	}

	cmd.AddCommand(newTodoListCmd())
	cmd.AddCommand(newTodoAddCmd())
	cmd.AddCommand(newTodoMoveCmd())
	cmd.AddCommand(newTodoImportLegacyCmd())
	return cmd
}

func newTodoListCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list [repo]",
		Short: "List tasks, for one repository or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				var repos []string
				if len(args) == 1 {
					repos = []string{repoPath(args[0])}
				} else {
					var err error
					if repos, err = a.Todos.Repos(ctx); err != nil {
						return err
					}
				}

				all := map[string][]todo.Task{}
				for _, repo := range repos {
					tasks, err := a.Todos.List(ctx, repo)
					if err != nil {
						return err
					}
					all[repo] = tasks
				}
				if asJSON {
					return printJSON(cmd, all)
				}

				if len(repos) == 0 {
					fmt.Fprintln(out(cmd), "No tasks.")
					return nil
				}
				tw := tabwriter.NewWriter(out(cmd), 0, 4, 2, ' ', 0)
				for _, repo := range repos {
					fmt.Fprintf(tw, "%s\n", repo)
					for _, t := range all[repo] {
						fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", t.ID[:min(8, len(t.ID))], t.Status, t.Priority, t.Title)
					}
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newTodoAddCmd() *cobra.Command {
	var (
		repo        string
		description string
		priority    string
		status      string
	)
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a task to the end of its column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				t, err := a.Todos.Create(ctx, todo.NewTask{
					RepoPath:    repoPath(repo),
					Title:       args[0],
					Description: description,
					Status:      todo.Status(status),
					Priority:    todo.Priority(priority),
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(out(cmd), "Added %s\n", t.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&repo, "repo", ".", "repository path")
	cmd.Flags().StringVar(&description, "description", "", "task description")
	cmd.Flags().StringVar(&priority, "priority", "", "low, medium or high")
	cmd.Flags().StringVar(&status, "status", "", "todo, in_progress, in_review or done")
	return cmd
}

func newTodoMoveCmd() *cobra.Command {
	var index int
	cmd := &cobra.Command{
		Use:   "move <id> <status>",
		Short: "Move a task to a column position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if index < 0 {
				index = math.MaxInt
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				t, err := a.Todos.Move(ctx, args[0], todo.Status(args[1]), index)
				if err != nil {
					return err
				}
				fmt.Fprintf(out(cmd), "Moved %s to %s #%d\n", t.ID, t.Status, t.Order)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&index, "index", -1, "position in the column (default: end)")
	return cmd
}

func newTodoImportLegacyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-legacy",
		Short: "Import tasks from the legacy store and remove it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				res := a.MigrateLegacyTodos(ctx)
				switch res.Status {
				case legacy.StatusSkipped:
					fmt.Fprintln(out(cmd), "Nothing to import.")
				case legacy.StatusMigrated:
					fmt.Fprintf(out(cmd), "Imported %d task(s), dropped %d.\n", res.Imported, res.Dropped)
					if res.Error != "" {
						fmt.Fprintf(out(cmd), "Warning: %s\n", res.Error)
					}
				default:
					return fmt.Errorf("legacy import failed: %s", res.Error)
				}
				return nil
			})
		},
	}
}

func repoPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
