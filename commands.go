package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"taskflow/app"
	"taskflow/domain"
	"taskflow/store"
	"taskflow/tui"
)

type env struct {
	stdout io.Writer
	stderr io.Writer
	cfg    config
}

func newRootCmd(stdout, stderr io.Writer, getenv func(string) string) *cobra.Command {
	e := &env{stdout: stdout, stderr: stderr}
	var (
		apiURL string
		debug  bool
	)

	cmd := &cobra.Command{
		Use:   "taskflow",
		Short: "Task dashboard for a remote task store",
		Long:  "taskflow shows and edits the tasks of a remote task store. Without a subcommand it opens the terminal dashboard.",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(getenv)
			if err != nil {
				return err
			}
			if apiURL != "" {
				cfg.APIURL = apiURL
			}
			if debug {
				cfg.Debug = true
			}
			e.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.runDashboard(cmd.Context())
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "task collection URL (overrides TASKS_API_URL)")
	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	cmd.AddCommand(
		newListCmd(e),
		newStatsCmd(e),
		newAddCmd(e),
		newSetCmd(e),
		newDoneCmd(e),
		newRmCmd(e),
	)
	return cmd
}

func (e *env) logger(out io.Writer, level log.Level) *log.Logger {
	logger := log.New()
	logger.SetOutput(out)
	logger.SetLevel(level)
	if e.cfg.Debug {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

// controller wires the store client, the optional Redis list cache and the
// controller. The returned func releases the Redis connection.
func (e *env) controller(logger *log.Logger) (*app.Controller, func(), error) {
	client, err := store.New(e.cfg.APIURL, store.WithTimeout(e.cfg.Timeout), store.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	var backend app.Store = client
	release := func() {}
	if e.cfg.RedisURL != "" {
		rc := redis.NewClient(redisOptions(e.cfg.RedisURL))
		backend = store.NewCache(client, rc, client.BaseURL(), e.cfg.CacheTTL, store.WithCacheLogger(logger))
		release = func() { _ = rc.Close() }
	}
	return app.NewController(backend, logger), release, nil
}

// cli builds a controller that logs warnings to stderr.
func (e *env) cli() (*app.Controller, func(), error) {
	return e.controller(e.logger(e.stderr, log.WarnLevel))
}

func (e *env) runDashboard(ctx context.Context) error {
	var out io.Writer = io.Discard
	if e.cfg.LogFile != "" {
		f, err := os.OpenFile(e.cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		out = f
	}
	ctrl, release, err := e.controller(e.logger(out, log.InfoLevel))
	if err != nil {
		return err
	}
	defer release()

	p := tea.NewProgram(tui.New(ctx, ctrl),
		tea.WithContext(ctx),
		tea.WithOutput(e.stdout),
		tea.WithAltScreen(),
	)
	_, err = p.Run()
	return err
}

func newListCmd(e *env) *cobra.Command {
	filters := domain.NewFilters()
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print tasks matching the filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFilters(filters); err != nil {
				return err
			}
			ctrl, release, err := e.cli()
			if err != nil {
				return err
			}
			defer release()

			if err := ctrl.Load(cmd.Context()); err != nil {
				return err
			}
			ctrl.SetSearch(filters.Search)
			ctrl.SetPriorityFilter(filters.Priority)
			ctrl.SetStatusFilter(filters.Status)
			ctrl.SetCategoryFilter(filters.Category)

			tasks := ctrl.Visible()
			if asJSON {
				return writeJSON(e.stdout, tasks)
			}
			if len(tasks) == 0 {
				fmt.Fprintln(e.stdout, "No tasks match.")
				return nil
			}
			fmt.Fprintln(e.stdout, taskTable(tasks, time.Now()))
			return nil
		},
	}
	cmd.Flags().StringVarP(&filters.Search, "search", "q", "", "match title or description")
	cmd.Flags().StringVar(&filters.Priority, "priority", domain.All, "High, Medium, Low or All")
	cmd.Flags().StringVar(&filters.Status, "status", domain.All, "Pending, In Progress, Completed or All")
	cmd.Flags().StringVar(&filters.Category, "category", domain.All, "General, Work, Home, Urgent or All")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newStatsCmd(e *env) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print task counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, release, err := e.cli()
			if err != nil {
				return err
			}
			defer release()

			if err := ctrl.Load(cmd.Context()); err != nil {
				return err
			}
			s := ctrl.Stats()
			if asJSON {
				return writeJSON(e.stdout, s)
			}
			fmt.Fprintf(e.stdout, "Total: %d\nPending: %d\nActive: %d\nDone: %d\n", s.Total, s.Pending, s.Progress, s.Done)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newAddCmd(e *env) *cobra.Command {
	d := domain.NewDraft()
	var priority, status, category string

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, release, err := e.cli()
			if err != nil {
				return err
			}
			defer release()

			fields := []struct {
				f domain.Field
				v string
			}{
				{domain.FieldTitle, args[0]},
				{domain.FieldDescription, d.Description},
				{domain.FieldPriority, priority},
				{domain.FieldStatus, status},
				{domain.FieldCategory, category},
				{domain.FieldDueDate, d.DueDate},
			}
			for _, fv := range fields {
				if err := ctrl.SetDraftField(fv.f, fv.v); err != nil {
					return err
				}
			}
			created, err := ctrl.Create(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(e.stdout, "Created task %d: %s\n", created.ID, created.Title)
			return nil
		},
	}
	cmd.Flags().StringVarP(&d.Description, "description", "d", "", "task description")
	cmd.Flags().StringVar(&priority, "priority", string(d.Priority), "High, Medium or Low")
	cmd.Flags().StringVar(&status, "status", string(d.Status), "Pending, In Progress or Completed")
	cmd.Flags().StringVar(&category, "category", string(d.Category), "General, Work, Home or Urgent")
	cmd.Flags().StringVar(&d.DueDate, "due", "", "due date (YYYY-MM-DD)")
	return cmd
}

func newSetCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "set <id> <field> <value>",
		Short: "Update one field of a task",
		Long:  "Update one field of a task. Fields: title, description, priority, status, due_date, category. An empty due_date clears it.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			f, err := domain.ParseField(args[1])
			if err != nil {
				return err
			}
			return e.mutate(cmd.Context(), id, func(ctx context.Context, ctrl *app.Controller) error {
				if err := ctrl.Patch(ctx, id, f, args[2]); err != nil {
					return err
				}
				t, _ := ctrl.Snapshot().Task(id)
				fmt.Fprintln(e.stdout, taskTable([]domain.Task{t}, time.Now()))
				return nil
			})
		},
	}
}

func newDoneCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "done <id>",
		Short: "Mark a task completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return e.mutate(cmd.Context(), id, func(ctx context.Context, ctrl *app.Controller) error {
				if err := ctrl.Patch(ctx, id, domain.FieldStatus, string(domain.StatusCompleted)); err != nil {
					return err
				}
				fmt.Fprintf(e.stdout, "Task %d completed\n", id)
				return nil
			})
		},
	}
}

func newRmCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return e.mutate(cmd.Context(), id, func(ctx context.Context, ctrl *app.Controller) error {
				if err := ctrl.Remove(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(e.stdout, "Task %d deleted\n", id)
				return nil
			})
		},
	}
}

// mutate loads the list so the controller knows the task, then runs fn.
func (e *env) mutate(ctx context.Context, id int64, fn func(context.Context, *app.Controller) error) error {
	ctrl, release, err := e.cli()
	if err != nil {
		return err
	}
	defer release()

	if err := ctrl.Load(ctx); err != nil {
		return err
	}
	if err := fn(ctx, ctrl); err != nil {
		if errors.Is(err, app.ErrTaskNotFound) {
			return fmt.Errorf("task %d: %w", id, err)
		}
		return err
	}
	return nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", s)
	}
	return id, nil
}

func validateFilters(f domain.Filters) error {
	check := func(name, v string, allowed []string) error {
		if v == domain.All {
			return nil
		}
		for _, a := range allowed {
			if v == a {
				return nil
			}
		}
		return fmt.Errorf("invalid %s %q", name, v)
	}
	if err := check("priority", f.Priority, enumNames(domain.Priorities)); err != nil {
		return err
	}
	if err := check("status", f.Status, enumNames(domain.Statuses)); err != nil {
		return err
	}
	return check("category", f.Category, enumNames(domain.Categories))
}

func enumNames[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

func taskTable(tasks []domain.Task, now time.Time) string {
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		due := t.DueString()
		switch {
		case due == "":
			due = "-"
		case t.Overdue(now):
			due += " (overdue)"
		}
		done := " "
		if t.Status == domain.StatusCompleted {
			done = "x"
		}
		rows = append(rows, []string{
			strconv.FormatInt(t.ID, 10), done, t.Title, string(t.Priority), string(t.Status), string(t.Category), due,
		})
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "", "TITLE", "PRIORITY", "STATUS", "TAG", "DEADLINE").
		Rows(rows...).
		Render()
}

func writeJSON(w io.Writer, v any) error {
	b, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
