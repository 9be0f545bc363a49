package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/campaignhq/campaignhq/internal/cli/output"
	"github.com/campaignhq/campaignhq/internal/cli/tui"
	"github.com/campaignhq/campaignhq/internal/monitor"
	"github.com/campaignhq/campaignhq/pkg/core"
)

// NewExecutionCommand creates the execution command tree.
func NewExecutionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "execution",
		Aliases: []string{"exec", "executions"},
		Short:   "Run and follow bulk sends",
		Long: `Run a published template against a CSV file and follow its delivery.

Progress is streamed over a WebSocket while the execution is active. Delivery
logs are fetched once it finishes.`,
	}

	cmd.AddCommand(
		newExecutionRunCommand(),
		newExecutionWatchCommand(),
		newExecutionLogsCommand(),
		newExecutionCancelCommand(),
		newExecutionListCommand(),
	)
	return cmd
}

// RunOptions holds options for the execution run command.
type RunOptions struct {
	Template        string
	Channel         string
	RecipientColumn string
	Integration     int64
	File            string
	Watch           bool
	Yes             bool
}

func newExecutionRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a bulk send of a published template",
		Example: `  campaignhq execution run --template tpl-1 --channel email \
      --recipient-column email --integration 3 --file students.csv --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !core.ChannelType(opts.Channel).Valid() {
				return fmt.Errorf("invalid channel %q: use whatsapp or email", opts.Channel)
			}
			if strings.TrimSpace(opts.RecipientColumn) == "" {
				return errors.New("recipient column cannot be empty")
			}
			if _, err := os.Stat(opts.File); err != nil {
				return fmt.Errorf("dataset file: %w", err)
			}
			return withClient(cmd, func(ctx context.Context, cc *CommandContext) error {
				return runExecution(ctx, cmd, cc, opts)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.Template, "template", "t", "", "Template logical id")
	cmd.Flags().StringVar(&opts.Channel, "channel", "", "Delivery channel (whatsapp, email)")
	cmd.Flags().StringVar(&opts.RecipientColumn, "recipient-column", "", "CSV column holding the recipient address")
	cmd.Flags().Int64Var(&opts.Integration, "integration", 0, "Integration id")
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "CSV file to send to")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Follow progress after starting")
	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "Run even when the filter matches no rows")
	for _, name := range []string{"template", "channel", "recipient-column", "integration", "file"} {
		_ = cmd.MarkFlagRequired(name)
	}
	_ = cmd.RegisterFlagCompletionFunc("channel", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{string(core.ChannelWhatsApp), string(core.ChannelEmail)}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runExecution(ctx context.Context, cmd *cobra.Command, cc *CommandContext, opts *RunOptions) error {
	channel := core.ChannelType(opts.Channel)
	if err := checkIntegration(ctx, cc, opts.Integration, channel); err != nil {
		return err
	}

	t, err := cc.Client.GetTemplate(ctx, opts.Template)
	if err != nil {
		return err
	}
	if t.Status != core.TemplatePublished {
		return fmt.Errorf("template %s is %s: publish it first", t.LogicalID, t.Status)
	}
	if err := preflight(ctx, cmd, cc, t, opts); err != nil {
		return err
	}

	res, err := cc.Client.RunExecution(ctx, &core.RunExecutionRequest{
		TemplateID:      opts.Template,
		Channel:         channel,
		RecipientColumn: opts.RecipientColumn,
		IntegrationID:   opts.Integration,
		FilePath:        opts.File,
	})
	if err != nil {
		return err
	}
	cc.Logger.Info("execution started", "execution_id", res.ExecutionID, "template", opts.Template)

	r := cc.Renderer
	if !opts.Watch {
		if r.EffectiveMode() == output.ModeJSON {
			return r.JSON(res)
		}
		r.Success(fmt.Sprintf("Started execution %d (%s)", res.ExecutionID, res.Status))
		r.Muted(fmt.Sprintf("Follow it with: campaignhq execution watch %d", res.ExecutionID))
		return nil
	}
	return watchExecution(ctx, cmd, cc, res.ExecutionID)
}

// preflight checks the CSV against the template before anything is sent:
// the recipient column and every column the template reads must exist, and
// a filter that matches no rows needs confirmation.
func preflight(ctx context.Context, cmd *cobra.Command, cc *CommandContext, t *core.Template, opts *RunOptions) error {
	preview, err := cc.Client.PreviewSchema(ctx, opts.File)
	if err != nil {
		return err
	}
	file := filepath.Base(opts.File)
	if !preview.Schema.Has(opts.RecipientColumn) {
		return fmt.Errorf("recipient column %q is not in %s (available: %s)",
			opts.RecipientColumn, file, strings.Join(preview.Schema.Names(), ", "))
	}
	if missing := missingColumns(t, preview.Schema); len(missing) > 0 {
		return fmt.Errorf("%s is missing columns the template needs: %s", file, strings.Join(missing, ", "))
	}

	matched := preview.RowCount
	if t.Filter != nil && len(t.Filter.Conditions) > 0 {
		res, err := cc.Client.TestFilter(ctx, opts.File, t.Filter)
		if err != nil {
			return err
		}
		matched = res.MatchedCount
	}
	cc.Logger.Debug("preflight passed", "template", t.LogicalID, "rows", preview.RowCount, "matched", matched)

	if matched == 0 && !opts.Yes {
		ok, err := confirm(cmd, "0 rows matched your filter. Are you sure you want to run this campaign?")
		if err != nil {
			return err
		}
		if !ok {
			return errCancelled
		}
	}
	if cc.Renderer.EffectiveMode() != output.ModeJSON {
		cc.Renderer.Muted(fmt.Sprintf("%d of %d rows match the audience", matched, preview.RowCount))
	}
	return nil
}

// missingColumns lists the template variables and filter columns absent from schema.
func missingColumns(t *core.Template, schema core.Schema) []string {
	var missing []string
	seen := map[string]bool{}
	check := func(name string) {
		key := core.NormalizeName(name)
		if key == "" || seen[key] || schema.Has(key) {
			return
		}
		seen[key] = true
		missing = append(missing, key)
	}
	for _, v := range t.Variables {
		check(v)
	}
	if t.Filter != nil {
		for _, c := range t.Filter.Conditions {
			check(c.Column)
		}
	}
	return missing
}

// checkIntegration requires an active integration for channel.
func checkIntegration(ctx context.Context, cc *CommandContext, id int64, channel core.ChannelType) error {
	integrations, err := cc.Client.ListIntegrations(ctx)
	if err != nil {
		return err
	}
	for _, in := range integrations {
		if in.ID != id {
			continue
		}
		if !in.IsActive {
			return fmt.Errorf("integration %d (%s) is inactive", id, in.ProviderName)
		}
		if in.ChannelType != channel {
			return fmt.Errorf("integration %d sends %s, not %s", id, in.ChannelType, channel)
		}
		return nil
	}
	return fmt.Errorf("integration %d not found", id)
}

func newExecutionWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <id>",
		Short: "Follow the live progress of an execution",
		Long: `Follow the live progress of an execution until it finishes.

On a terminal this opens an interactive view: press c to cancel the
execution or q to detach and leave it running. Otherwise one line is
printed per progress update.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseExecutionID(args[0])
			if err != nil {
				return err
			}
			return withClient(cmd, func(ctx context.Context, cc *CommandContext) error {
				return watchExecution(ctx, cmd, cc, id)
			})
		},
	}
}

func watchExecution(ctx context.Context, cmd *cobra.Command, cc *CommandContext, id int64) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	exec, err := cc.Client.GetExecution(ctx, id)
	if err != nil {
		return err
	}

	mon, err := monitor.Start(ctx, cc.Client, id, monitor.Options{
		PageSize:  cc.Cfg.LogsPageSize,
		Heartbeat: cc.Cfg.Heartbeat,
		Logger:    cc.Logger,
	})
	if err != nil {
		return err
	}
	defer func() { _ = mon.Close() }()

	if interactive(cmd, cc.Renderer) {
		return watchInteractive(ctx, cmd, cc, mon)
	}
	return watchPlain(ctx, cc, exec, mon)
}

// renderExecutionSummary prints what an execution is before its progress.
func renderExecutionSummary(r *output.Renderer, e *core.Execution) {
	r.Header(2, fmt.Sprintf("Execution %d", e.ID))
	r.KeyValue("Status", string(e.Status))
	r.KeyValue("Channel", orDash(string(e.ChannelType)))
	r.KeyValue("Recipients", strconv.Itoa(e.Total))
	r.KeyValue("Created", formatTime(e.CreatedAt))
}

func interactive(cmd *cobra.Command, r *output.Renderer) bool {
	if r.EffectiveMode() != output.ModeText || !r.IsTTY() {
		return false
	}
	f, ok := cmd.InOrStdin().(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func watchInteractive(ctx context.Context, cmd *cobra.Command, cc *CommandContext, mon *monitor.Monitor) error {
	model := tui.NewWatchModel(ctx, mon, cc.Renderer.Styles())
	p := tea.NewProgram(model,
		tea.WithContext(ctx),
		tea.WithInput(cmd.InOrStdin()),
		tea.WithOutput(cc.Renderer.Writer()),
	)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	if model.Detached() {
		cc.Renderer.Muted(fmt.Sprintf("Detached. Execution %d keeps running on the server.", mon.ID()))
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return mon.Err()
}

func watchPlain(ctx context.Context, cc *CommandContext, exec *core.Execution, mon *monitor.Monitor) error {
	r := cc.Renderer
	if r.EffectiveMode() != output.ModeJSON {
		renderExecutionSummary(r, exec)
	}
	updates, unsubscribe := mon.Updates()
	defer unsubscribe()

	var last core.Progress
	report := func() {
		p, ok := mon.Snapshot()
		if !ok || p == last || r.EffectiveMode() == output.ModeJSON {
			return
		}
		last = p
		r.StatusLine(string(p.Status), tui.Counters(p), p.Error)
	}

	report()
loop:
	for {
		select {
		case <-mon.Done():
			break loop
		case <-ctx.Done():
			r.Warning(fmt.Sprintf("Stopped watching. Execution %d keeps running on the server.", mon.ID()))
			return ctx.Err()
		case _, ok := <-updates:
			if !ok {
				break loop
			}
			report()
		}
	}
	report()
	return renderExecutionResult(r, exec, mon)
}

func renderExecutionResult(r *output.Renderer, exec *core.Execution, mon *monitor.Monitor) error {
	p, _ := mon.Snapshot()
	page, logsErr := mon.Logs()
	streamErr := mon.Err()

	if r.EffectiveMode() == output.ModeJSON {
		result := map[string]any{
			"execution_id": mon.ID(),
			"execution":    exec,
			"progress":     p,
			"logs":         page,
		}
		if streamErr != nil {
			result["error"] = streamErr.Error()
		}
		if err := r.JSON(result); err != nil {
			return err
		}
		return streamErr
	}

	if streamErr != nil {
		return streamErr
	}
	r.Println()
	switch p.Status {
	case core.ExecutionCompleted:
		r.Success(fmt.Sprintf("Execution %d completed: %d sent, %d failed", mon.ID(), p.Success, p.Failed))
	case core.ExecutionCancelled:
		r.Warning(fmt.Sprintf("Execution %d was cancelled after %d of %d", mon.ID(), p.Processed, p.Total))
	default:
		r.Error(fmt.Sprintf("Execution %d %s: %s", mon.ID(), p.Status, orNone(p.Error)))
	}
	if logsErr != nil {
		r.Warning("Failed to fetch delivery logs: " + logsErr.Error())
		return nil
	}
	if page != nil {
		renderLogPage(r, page)
	}
	return nil
}

// LogsOptions holds options for the execution logs command.
type LogsOptions struct {
	Page  int
	Limit int
}

func newExecutionLogsCommand() *cobra.Command {
	opts := &LogsOptions{}

	cmd := &cobra.Command{
		Use:   "logs <id>",
		Short: "Show delivery logs of an execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseExecutionID(args[0])
			if err != nil {
				return err
			}
			if opts.Page < 1 {
				return errors.New("--page must be at least 1")
			}
			return withClient(cmd, func(ctx context.Context, cc *CommandContext) error {
				limit := opts.Limit
				if !cmd.Flags().Changed("limit") {
					limit = cc.Cfg.LogsPageSize
				}
				page, err := cc.Client.ExecutionLogs(ctx, id, opts.Page, limit)
				if err != nil {
					return err
				}
				if cc.Renderer.EffectiveMode() == output.ModeJSON {
					return cc.Renderer.JSON(page)
				}
				renderLogPage(cc.Renderer, page)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&opts.Page, "page", 1, "Page number")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Entries per page (default from logs_page_size)")

	return cmd
}

func renderLogPage(r *output.Renderer, page *core.LogPage) {
	if len(page.Logs) == 0 {
		r.Muted("No delivery logs")
		return
	}
	rows := make([][]string, len(page.Logs))
	for i, e := range page.Logs {
		rows[i] = []string{e.Recipient, e.Status, strconv.Itoa(e.RetryCount), orDash(e.Error), formatTime(e.Timestamp)}
	}
	r.Table([]string{"Recipient", "Status", "Retries", "Error", "Time"}, rows)
	r.Muted(fmt.Sprintf("Page %d of %d (%d entries)", page.Page, page.TotalPages(), page.TotalLogs))
}

// CancelOptions holds options for the execution cancel command.
type CancelOptions struct {
	Yes bool
}

func newExecutionCancelCommand() *cobra.Command {
	opts := &CancelOptions{}

	cmd := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel an active execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseExecutionID(args[0])
			if err != nil {
				return err
			}
			if !opts.Yes {
				ok, err := confirm(cmd, fmt.Sprintf("Cancel execution %d?", id))
				if err != nil {
					return err
				}
				if !ok {
					return errCancelled
				}
			}
			return withClient(cmd, func(ctx context.Context, cc *CommandContext) error {
				if err := cc.Client.CancelExecution(ctx, id); err != nil {
					return err
				}
				cc.Renderer.Success(fmt.Sprintf("Cancelled execution %d", id))
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

func newExecutionListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List executions",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, func(ctx context.Context, cc *CommandContext) error {
				execs, err := cc.Client.ListExecutions(ctx)
				if err != nil {
					return err
				}
				return renderExecutionList(cc.Renderer, execs)
			})
		},
	}
}

func renderExecutionList(r *output.Renderer, execs []core.Execution) error {
	if r.EffectiveMode() == output.ModeJSON {
		if execs == nil {
			execs = []core.Execution{}
		}
		return r.JSON(execs)
	}
	if len(execs) == 0 {
		r.Muted("No executions")
		return nil
	}
	rows := make([][]string, len(execs))
	for i, e := range execs {
		rows[i] = []string{
			strconv.FormatInt(e.ID, 10),
			output.Title(string(e.Status)),
			orDash(string(e.ChannelType)),
			fmt.Sprintf("%d/%d", e.Processed, e.Total),
			strconv.Itoa(e.Success),
			strconv.Itoa(e.Failed),
			formatTime(e.CreatedAt),
		}
	}
	r.Table([]string{"ID", "Status", "Channel", "Processed", "Success", "Failed", "Created"}, rows)
	return nil
}

func parseExecutionID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid execution id %q", s)
	}
	return id, nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
