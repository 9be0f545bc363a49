package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/campaignhq/campaignhq/internal/cli/output"
	"github.com/campaignhq/campaignhq/internal/wizard"
	"github.com/campaignhq/campaignhq/pkg/composer"
	"github.com/campaignhq/campaignhq/pkg/core"
)

// sessionFunc runs against an opened wizard session.
type sessionFunc func(ctx context.Context, cc *CommandContext, s *wizard.Session) error

// withSession opens the configured session for the duration of fn.
func withSession(cmd *cobra.Command, fn sessionFunc) error {
	ctx := cmd.Context()
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	s, err := cc.OpenSession(ctx)
	if err != nil {
		return err
	}
	return fn(ctx, cc, s)
}

// NewWizardCommand creates the wizard command tree.
func NewWizardCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wizard",
		Short: "Build a campaign template step by step",
		Long: `Build a campaign template in four steps:

  1. Upload Data        upload a CSV to get its schema and sample rows
  2. Target Audience    add filter conditions and test them
  3. Compose Message    name the template and write the body with {{column}} pills
  4. Review & Create    check the preview and create the template

Every change is saved as a draft in the local state database, so the wizard
can be resumed across invocations. Use --session to keep several drafts.`,
		Example: `  campaignhq wizard upload students.csv
  campaignhq wizard next
  campaignhq wizard filter add --column attendance --operator "<" --value 75
  campaignhq wizard filter test
  campaignhq wizard next
  campaignhq wizard name "Attendance reminder"
  campaignhq wizard compose --text "{{name}} has {{attendance}}%."
  campaignhq wizard next
  campaignhq wizard submit`,
	}

	cmd.AddCommand(
		newWizardStatusCommand(),
		newWizardUploadCommand(),
		newWizardFilterCommand(),
		newWizardNameCommand(),
		newWizardDescribeCommand(),
		newWizardComposeCommand(),
		newWizardPreviewCommand(),
		newWizardReviewCommand(),
		newWizardNextCommand(),
		newWizardBackCommand(),
		newWizardGotoCommand(),
		newWizardSubmitCommand(),
		newWizardResetCommand(),
	)
	return cmd
}

func newWizardStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current step and draft",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, func(_ context.Context, cc *CommandContext, s *wizard.Session) error {
				return renderWizardStatus(cc.Renderer, s)
			})
		},
	}
}

func newWizardUploadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file.csv>",
		Short: "Upload a CSV dataset",
		Long: `Upload a CSV to the backend and record its schema and sample rows.

Uploading a new dataset resets the audience filter and rebinds the message
to the new columns.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, cc *CommandContext, s *wizard.Session) error {
				res, err := s.Upload(ctx, args[0])
				if err != nil {
					return err
				}
				r := cc.Renderer
				if r.EffectiveMode() == output.ModeJSON {
					return r.JSON(res)
				}
				r.Success(fmt.Sprintf("Uploaded %s: %d rows, %d columns", s.Wizard().Dataset().Name, res.RowCount, len(res.Schema)))
				r.Println()
				renderRows(r, res.Schema, res.Rows())
				return nil
			})
		},
	}
}

func newWizardNameCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "name <name>",
		Short: "Set the template name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, cc *CommandContext, s *wizard.Session) error {
				if err := s.SetName(ctx, strings.Join(args, " ")); err != nil {
					return err
				}
				cc.Renderer.Success(fmt.Sprintf("Name set to %q", s.Wizard().Name()))
				return nil
			})
		},
	}
}

func newWizardDescribeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "describe <text>",
		Short: "Set the template description",
		Long:  `Set the template description. Templates created without one are described as "` + wizard.DefaultDescription + `".`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, cc *CommandContext, s *wizard.Session) error {
				if err := s.SetDescription(ctx, strings.Join(args, " ")); err != nil {
					return err
				}
				cc.Renderer.Success("Description updated")
				return nil
			})
		},
	}
}

// ComposeOptions holds options for the wizard compose command.
type ComposeOptions struct {
	Text string
	File string
	HTML string
}

func newWizardComposeCommand() *cobra.Command {
	opts := &ComposeOptions{}

	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Replace the message body",
		Long: `Replace the message body. Placeholders are written as {{column}} and
must name a column of the uploaded dataset.

--html imports markup saved by the web editor, where pills are elements with
a data-variable attribute.

For interactive editing with column completion use 'campaignhq compose'.`,
		Example: `  campaignhq wizard compose --text "Hi {{name}}, your attendance is {{attendance}}%."
  campaignhq wizard compose --file body.txt
  campaignhq wizard compose --html editor.html`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, func(ctx context.Context, cc *CommandContext, s *wizard.Session) error {
				return runWizardCompose(ctx, cc, s, opts)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Text, "text", "", "Message body")
	cmd.Flags().StringVar(&opts.File, "file", "", "Read the message body from a file")
	cmd.Flags().StringVar(&opts.HTML, "html", "", "Import editor markup from a file")
	cmd.MarkFlagsMutuallyExclusive("text", "file", "html")
	cmd.MarkFlagsOneRequired("text", "file", "html")

	return cmd
}

func runWizardCompose(ctx context.Context, cc *CommandContext, s *wizard.Session, opts *ComposeOptions) error {
	var err error
	switch {
	case opts.HTML != "":
		var markup []byte
		if markup, err = os.ReadFile(opts.HTML); err != nil {
			return fmt.Errorf("failed to read %s: %w", opts.HTML, err)
		}
		err = s.ImportHTML(ctx, string(markup))
	case opts.File != "":
		var text []byte
		if text, err = os.ReadFile(opts.File); err != nil {
			return fmt.Errorf("failed to read %s: %w", opts.File, err)
		}
		err = s.Compose(ctx, strings.TrimRight(string(text), "\n"))
	default:
		err = s.Compose(ctx, opts.Text)
	}
	if err != nil {
		return composeError(err, s.Wizard())
	}

	w := s.Wizard()
	cc.Renderer.Success(fmt.Sprintf("Message updated (%d variable(s))", len(w.Document().Variables())))
	cc.Renderer.KeyValue("Body", w.Body())
	return nil
}

// composeError adds the available columns to unknown-variable errors.
func composeError(err error, w *wizard.Wizard) error {
	var unknown *composer.UnknownTemplateVariableError
	if errors.As(err, &unknown) && len(w.Schema()) > 0 {
		return fmt.Errorf("%w (available: %s)", err, strings.Join(w.Schema().Names(), ", "))
	}
	return err
}

// PreviewOptions holds options for the wizard preview command.
type PreviewOptions struct {
	Row int
}

func newWizardPreviewCommand() *cobra.Command {
	opts := &PreviewOptions{}

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Render the message against a sample row",
		Long: `Render the message with every pill replaced by the value from a sample row.

Rows come from the last filter test, or from the upload sample when the filter
was not tested. Values the row lacks render as "` + composer.MissingVariable + `".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, func(_ context.Context, cc *CommandContext, s *wizard.Session) error {
				return runWizardPreview(cc, s.Wizard(), opts)
			})
		},
	}

	cmd.Flags().IntVar(&opts.Row, "row", 1, "Sample row to render (1-based)")

	return cmd
}

func runWizardPreview(cc *CommandContext, w *wizard.Wizard, opts *PreviewOptions) error {
	rows := previewRows(w)
	if len(rows) == 0 {
		return errors.New("no sample rows: upload a dataset first")
	}
	if opts.Row < 1 || opts.Row > len(rows) {
		return fmt.Errorf("row must be between 1 and %d", len(rows))
	}
	row := rows[opts.Row-1]

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(map[string]any{
			"row":      row,
			"template": w.Body(),
			"preview":  w.Document().RenderPreview(row),
		})
	}
	r.Println(renderPreview(r, w.Document(), row))
	return nil
}

// previewRows prefers rows matched by the tested filter.
func previewRows(w *wizard.Wizard) []core.Row {
	if res := w.Filter().Result(); res != nil && len(res.Rows()) > 0 {
		return res.Rows()
	}
	if w.Dataset() != nil {
		return w.Dataset().SampleRows
	}
	return nil
}

func newWizardReviewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "review",
		Short: "Summarize what submit would create",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, func(_ context.Context, cc *CommandContext, s *wizard.Session) error {
				return renderReview(cc.Renderer, s.Wizard())
			})
		},
	}
}

func newWizardNextCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Advance to the next step",
		Long:  `Advance to the next step. Fails with the reason when the current step is incomplete.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, func(ctx context.Context, cc *CommandContext, s *wizard.Session) error {
				if err := s.Next(ctx); err != nil {
					return err
				}
				renderStepChange(cc.Renderer, s.Wizard())
				return nil
			})
		},
	}
}

func newWizardBackCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "back",
		Short: "Return to the previous step",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, func(ctx context.Context, cc *CommandContext, s *wizard.Session) error {
				if err := s.Back(ctx); err != nil {
					return err
				}
				renderStepChange(cc.Renderer, s.Wizard())
				return nil
			})
		},
	}
}

func newWizardGotoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "goto <step>",
		Short: "Jump back to an earlier step",
		Long: `Jump back to an earlier step by number (1-4) or name
(upload, audience, compose, review). Jumping forward is not allowed.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"upload", "audience", "compose", "review"},
		RunE: func(cmd *cobra.Command, args []string) error {
			step, err := wizard.ParseStep(args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, func(ctx context.Context, cc *CommandContext, s *wizard.Session) error {
				if err := s.JumpTo(ctx, step); err != nil {
					return err
				}
				renderStepChange(cc.Renderer, s.Wizard())
				return nil
			})
		},
	}
}

// SubmitOptions holds options for the wizard submit command.
type SubmitOptions struct {
	Yes bool
}

func newWizardSubmitCommand() *cobra.Command {
	opts := &SubmitOptions{}

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Create the template from the review step",
		Long: `Create the template from the review step and clear the draft.

When the tested filter matched no rows, confirmation is required; pass --yes
to skip the prompt. Placeholders naming unknown columns send the wizard back
to the compose step.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, func(ctx context.Context, cc *CommandContext, s *wizard.Session) error {
				return runWizardSubmit(ctx, cmd, cc, s, opts)
			})
		},
	}

	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "Skip confirmation prompts")

	return cmd
}

func runWizardSubmit(ctx context.Context, cmd *cobra.Command, cc *CommandContext, s *wizard.Session, opts *SubmitOptions) error {
	w := s.Wizard()
	if w.Step() != wizard.StepReviewAndCreate {
		return wizard.ErrNotReviewing
	}

	if rv := w.Review(); rv.ZeroMatch && !opts.Yes {
		ok, err := confirm(cmd, "The filter matched 0 rows. Create the template anyway?")
		if err != nil {
			return err
		}
		if !ok {
			return errCancelled
		}
	}

	res, err := s.Submit(ctx)
	if err != nil {
		return composeError(err, w)
	}

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(res)
	}
	r.Success(fmt.Sprintf("Created template %s (version %d)", res.LogicalID, res.Version))
	r.Muted(fmt.Sprintf("Publish it with: campaignhq template publish %s", res.LogicalID))
	return nil
}

func newWizardResetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Discard the draft and start over",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, func(ctx context.Context, cc *CommandContext, s *wizard.Session) error {
				if err := s.Reset(ctx); err != nil {
					return err
				}
				cc.Renderer.Success(fmt.Sprintf("Wizard session %q reset", s.Name()))
				return nil
			})
		},
	}
}
