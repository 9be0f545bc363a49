package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/campaignhq/campaignhq/internal/cli/output"
	"github.com/campaignhq/campaignhq/internal/templatefile"
	"github.com/campaignhq/campaignhq/pkg/audience"
	"github.com/campaignhq/campaignhq/pkg/composer"
	"github.com/campaignhq/campaignhq/pkg/core"
)

// NewTemplateCommand creates the template command tree.
func NewTemplateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "template",
		Aliases: []string{"templates", "tpl"},
		Short:   "Manage stored campaign templates",
		Long: `Manage campaign templates stored on the backend.

Every edit creates a new draft version; only published templates can be run.`,
	}

	cmd.AddCommand(
		newTemplateListCommand(),
		newTemplateShowCommand(),
		newTemplateCreateCommand(),
		newTemplateEditCommand(),
		newTemplatePublishCommand(),
		newTemplatePreviewCommand(),
		newTemplateDeleteCommand(),
	)
	return cmd
}

// withClient runs fn with a command context holding the API client.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, cc *CommandContext) error) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()
	return fn(cmd.Context(), cc)
}

func newTemplateListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List templates",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, func(ctx context.Context, cc *CommandContext) error {
				templates, err := cc.Client.ListTemplates(ctx)
				if err != nil {
					return err
				}
				return renderTemplateList(cc.Renderer, templates)
			})
		},
	}
}

func renderTemplateList(r *output.Renderer, templates []core.Template) error {
	if r.EffectiveMode() == output.ModeJSON {
		if templates == nil {
			templates = []core.Template{}
		}
		return r.JSON(templates)
	}
	if len(templates) == 0 {
		r.Muted("No templates")
		return nil
	}
	rows := make([][]string, len(templates))
	for i, t := range templates {
		rows[i] = []string{
			t.LogicalID,
			strconv.Itoa(t.Version),
			t.Name,
			output.Title(string(t.Status)),
			strings.Join(t.Variables, ", "),
			formatTime(t.UpdatedAt),
		}
	}
	r.Table([]string{"ID", "Version", "Name", "Status", "Variables", "Updated"}, rows)
	return nil
}

func newTemplateShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, cc *CommandContext) error {
				t, err := cc.Client.GetTemplate(ctx, args[0])
				if err != nil {
					return err
				}
				return renderTemplate(cc.Renderer, t)
			})
		},
	}
}

func renderTemplate(r *output.Renderer, t *core.Template) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(t)
	}
	r.Header(1, t.Name)
	r.KeyValue("ID", t.LogicalID)
	r.KeyValue("Version", strconv.Itoa(t.Version))
	r.KeyValue("Status", output.Title(string(t.Status)))
	r.KeyValue("Description", orNone(t.Description))
	if schema := t.ColumnSchema(); len(schema) > 0 {
		r.KeyValue("Columns", schemaSummary(schema))
	}
	r.KeyValue("Updated", formatTime(t.UpdatedAt))
	r.Println()
	r.Header(2, "Message")
	r.Println(t.Body)
	if t.Filter != nil && len(t.Filter.Conditions) > 0 {
		r.Println()
		r.Header(2, "Audience")
		r.KeyValue("Logic", string(t.Filter.Logic))
		rows := make([][]string, len(t.Filter.Conditions))
		for i, c := range t.Filter.Conditions {
			rows[i] = []string{strconv.Itoa(i + 1), c.Column, string(c.Operator), composer.FormatValue(c.Value)}
		}
		r.Table([]string{"#", "Column", "Operator", "Value"}, rows)
	}
	return nil
}

// TemplateCreateOptions holds options for the template create command.
type TemplateCreateOptions struct {
	File    string
	Publish bool
}

func newTemplateCreateCommand() *cobra.Command {
	opts := &TemplateCreateOptions{}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a template from a YAML file",
		Long: `Create a template from a YAML file without going through the wizard.

The dataset CSV named in the file is uploaded first; the message and filter
are then checked against its columns.

  name: Attendance reminder
  description: Weekly nudge
  dataset: students.csv          # relative to the YAML file
  template: "{{name}} has {{attendance}}%."
  filter:
    logic: AND
    conditions:
      - {column: attendance, operator: "<", value: 75}
  publish: true`,
		Example: `  campaignhq template create --file reminder.yaml`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, func(ctx context.Context, cc *CommandContext) error {
				return runTemplateCreate(ctx, cmd, cc, opts)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "Template YAML file")
	cmd.Flags().BoolVar(&opts.Publish, "publish", false, "Publish after creating")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runTemplateCreate(ctx context.Context, cmd *cobra.Command, cc *CommandContext, opts *TemplateCreateOptions) error {
	v, err := templatefile.NewValidator()
	if err != nil {
		return err
	}
	f, err := v.Load(opts.File)
	if err != nil {
		return err
	}

	upload, err := cc.Client.UploadDataset(ctx, f.Dataset)
	if err != nil {
		return err
	}
	req, err := f.Request(upload)
	if err != nil {
		return err
	}
	res, err := cc.Client.CreateTemplate(ctx, req)
	if err != nil {
		return err
	}
	cc.Logger.Info("template created", "logical_id", res.LogicalID, "file", opts.File)

	publish := f.Publish
	if cmd.Flags().Changed("publish") {
		publish = opts.Publish
	}
	if publish {
		if err := cc.Client.PublishTemplate(ctx, res.LogicalID); err != nil {
			return fmt.Errorf("template %s created but not published: %w", res.LogicalID, err)
		}
	}

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(map[string]any{
			"logical_id": res.LogicalID,
			"version":    res.Version,
			"dataset_id": res.DatasetID,
			"published":  publish,
		})
	}
	msg := fmt.Sprintf("Created template %s (version %d)", res.LogicalID, res.Version)
	if publish {
		msg += " and published it"
	}
	r.Success(msg)
	return nil
}

// TemplateEditOptions holds options for the template edit command.
type TemplateEditOptions struct {
	Text        string
	Name        string
	Description string
	Where       []string
	Remove      []int
	Logic       string
	ClearFilter bool
}

var filterEditFlags = []string{"where", "remove-condition", "logic", "clear-filter"}

func newTemplateEditCommand() *cobra.Command {
	opts := &TemplateEditOptions{}

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Create a new draft version of a template",
		Long: `Change the message, name, description or audience filter of a template. The
server stores the result as a new draft version, which must be published
again before it can be run. Placeholders and filter columns are checked
against the template's dataset columns.

Filter edits start from the stored filter: --clear-filter drops every
condition, --remove-condition drops conditions by position (see
"template show"), --logic changes the join and --where appends a condition
written as column:operator:value.`,
		Example: `  campaignhq template edit tpl-1 --text "Hi {{name}}, attendance is {{attendance}}%."
  campaignhq template edit tpl-1 --remove-condition 1 --where "attendance:<:60"
  campaignhq template edit tpl-1 --clear-filter`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			changed := false
			for _, name := range append([]string{"text", "name", "description"}, filterEditFlags...) {
				changed = changed || cmd.Flags().Changed(name)
			}
			if !changed {
				return errors.New("nothing to change: pass --text, --name, --description or a filter flag")
			}
			return withClient(cmd, func(ctx context.Context, cc *CommandContext) error {
				return runTemplateEdit(ctx, cmd, cc, args[0], opts)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Text, "text", "", "New message body")
	cmd.Flags().StringVar(&opts.Name, "name", "", "New name")
	cmd.Flags().StringVar(&opts.Description, "description", "", "New description")
	cmd.Flags().StringArrayVar(&opts.Where, "where", nil, "Append a filter condition (column:operator:value)")
	cmd.Flags().IntSliceVar(&opts.Remove, "remove-condition", nil, "Remove filter conditions by position")
	cmd.Flags().StringVar(&opts.Logic, "logic", "", "Join filter conditions with AND or OR")
	cmd.Flags().BoolVar(&opts.ClearFilter, "clear-filter", false, "Remove every filter condition")

	return cmd
}

func runTemplateEdit(ctx context.Context, cmd *cobra.Command, cc *CommandContext, id string, opts *TemplateEditOptions) error {
	t, err := cc.Client.GetTemplate(ctx, id)
	if err != nil {
		return err
	}

	schema := t.ColumnSchema()
	doc := composer.Deserialize(t.Body, t.Variables, schema)

	req := &core.UpdateTemplateRequest{
		Name:        t.Name,
		Description: t.Description,
		Body:        t.Body,
		Filter:      t.Filter,
	}
	if cmd.Flags().Changed("name") {
		req.Name = strings.TrimSpace(opts.Name)
		if req.Name == "" {
			return errors.New("name cannot be empty")
		}
	}
	if cmd.Flags().Changed("description") {
		req.Description = strings.TrimSpace(opts.Description)
	}
	if cmd.Flags().Changed("text") {
		if strings.TrimSpace(opts.Text) == "" {
			return errors.New("message body cannot be empty")
		}
		if len(schema) > 0 {
			if err := composer.ValidateVariables(opts.Text, schema); err != nil {
				return fmt.Errorf("%w (available: %s)", err, strings.Join(schema.Names(), ", "))
			}
		}
		doc = composer.Deserialize(opts.Text, nil, doc.Schema())
		req.Body = doc.Serialize()
	}

	filterChanged := false
	for _, name := range filterEditFlags {
		filterChanged = filterChanged || cmd.Flags().Changed(name)
	}
	if filterChanged {
		if len(schema) == 0 {
			return errors.New("template has no dataset columns: its filter cannot be edited")
		}
		b, err := audience.FromPayload(schema, t.Filter)
		if err != nil {
			return fmt.Errorf("stored filter cannot be edited: %w", err)
		}
		if err := editFilter(cmd, b, opts); err != nil {
			return err
		}
		if req.Filter, err = b.Payload(); err != nil {
			return err
		}
	}

	res, err := cc.Client.UpdateTemplate(ctx, id, req)
	if err != nil {
		return err
	}
	if cc.Renderer.EffectiveMode() == output.ModeJSON {
		return cc.Renderer.JSON(res)
	}
	cc.Renderer.Success(fmt.Sprintf("Saved %s as draft version %d", res.LogicalID, res.Version))
	if vars := doc.Variables(); len(vars) > 0 {
		cc.Renderer.Muted("Variables: " + strings.Join(vars, ", "))
	}
	if filterChanged {
		cc.Renderer.Muted(describeFilter(req.Filter))
	}
	return nil
}

// editFilter applies the filter flags in a fixed order: clear, remove,
// logic, then appended conditions.
func editFilter(cmd *cobra.Command, b *audience.Builder, opts *TemplateEditOptions) error {
	if opts.ClearFilter {
		b.Clear()
	}

	conds := b.Conditions()
	ids := make([]string, 0, len(opts.Remove))
	for _, pos := range opts.Remove {
		if pos < 1 || pos > len(conds) {
			return fmt.Errorf("no condition %d (have %d)", pos, len(conds))
		}
		ids = append(ids, conds[pos-1].ID)
	}
	for _, id := range ids {
		if err := b.RemoveCondition(id); err != nil && !errors.Is(err, audience.ErrConditionNotFound) {
			return err
		}
	}

	if cmd.Flags().Changed("logic") {
		if err := b.SetLogic(core.FilterLogic(opts.Logic)); err != nil {
			return err
		}
	}

	for _, w := range opts.Where {
		column, operator, value, ok := parseWhere(w)
		if !ok {
			return fmt.Errorf("invalid --where %q: want column:operator:value", w)
		}
		c, err := b.AddCondition()
		if err != nil {
			return err
		}
		for _, step := range []struct {
			field audience.Field
			value string
		}{
			{audience.FieldColumn, column},
			{audience.FieldOperator, operator},
			{audience.FieldValue, value},
		} {
			if err := b.UpdateCondition(c.ID, step.field, step.value); err != nil {
				return fmt.Errorf("--where %q: %w", w, err)
			}
		}
	}
	return nil
}

// parseWhere splits column:operator:value. The value may contain colons.
func parseWhere(s string) (column, operator, value string, ok bool) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return "", "", "", false
	}
	column, operator = strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	if column == "" || operator == "" {
		return "", "", "", false
	}
	return column, operator, parts[2], true
}

func describeFilter(p *core.FilterPayload) string {
	if p == nil {
		return "Audience: every row"
	}
	parts := make([]string, len(p.Conditions))
	for i, c := range p.Conditions {
		parts[i] = fmt.Sprintf("%s %s %s", c.Column, c.Operator, composer.FormatValue(c.Value))
	}
	return "Audience: " + strings.Join(parts, " "+string(p.Logic)+" ")
}

func newTemplatePublishCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "publish <id>",
		Short: "Publish the latest version of a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, cc *CommandContext) error {
				if err := cc.Client.PublishTemplate(ctx, args[0]); err != nil {
					return err
				}
				cc.Renderer.Success(fmt.Sprintf("Published %s", args[0]))
				return nil
			})
		},
	}
}

// TemplatePreviewOptions holds options for the template preview command.
type TemplatePreviewOptions struct {
	Set []string
}

func newTemplatePreviewCommand() *cobra.Command {
	opts := &TemplatePreviewOptions{}

	cmd := &cobra.Command{
		Use:     "preview <id>",
		Short:   "Render a stored template on the server",
		Example: `  campaignhq template preview tpl-1 --set name=Asha --set attendance=72`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			row, err := parseRow(opts.Set)
			if err != nil {
				return err
			}
			return withClient(cmd, func(ctx context.Context, cc *CommandContext) error {
				rendered, err := cc.Client.PreviewTemplate(ctx, args[0], row)
				if err != nil {
					return err
				}
				if cc.Renderer.EffectiveMode() == output.ModeJSON {
					return cc.Renderer.JSON(map[string]string{"rendered_message": rendered})
				}
				cc.Renderer.Println(rendered)
				return nil
			})
		},
	}

	cmd.Flags().StringArrayVar(&opts.Set, "set", nil, "Sample value as column=value (repeatable)")

	return cmd
}

func parseRow(pairs []string) (core.Row, error) {
	row := make(core.Row, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --set %q: want column=value", p)
		}
		row[core.NormalizeName(k)] = v
	}
	return row, nil
}

// TemplateDeleteOptions holds options for the template delete command.
type TemplateDeleteOptions struct {
	Yes bool
}

func newTemplateDeleteCommand() *cobra.Command {
	opts := &TemplateDeleteOptions{}

	cmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete every version of a template",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !opts.Yes {
				ok, err := confirm(cmd, fmt.Sprintf("Delete template %s?", args[0]))
				if err != nil {
					return err
				}
				if !ok {
					return errCancelled
				}
			}
			return withClient(cmd, func(ctx context.Context, cc *CommandContext) error {
				if err := cc.Client.DeleteTemplate(ctx, args[0]); err != nil {
					return err
				}
				cc.Renderer.Success(fmt.Sprintf("Deleted %s", args[0]))
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

func formatTime(ts *core.Timestamp) string {
	if ts == nil || ts.IsZero() {
		return "-"
	}
	return ts.Local().Format(time.DateTime)
}
