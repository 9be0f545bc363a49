package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/campaignhq/campaignhq/internal/cli/output"
	"github.com/campaignhq/campaignhq/internal/wizard"
	"github.com/campaignhq/campaignhq/pkg/composer"
	"github.com/campaignhq/campaignhq/pkg/core"
)

const composePrompt = "compose> "

// NewComposeCommand creates the interactive composer.
func NewComposeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "compose",
		Short: "Edit the wizard message interactively",
		Long: `Edit the wizard's message body in an interactive shell.

Typed lines are inserted at the caret; {{column}} placeholders become pills.
Dot-commands move the caret, insert pills and line breaks, and preview the
message. Every change is saved to the wizard draft.

Tab completes dot-commands and column names after .var.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, func(ctx context.Context, cc *CommandContext, s *wizard.Session) error {
				return runComposeREPL(ctx, cmd, cc, s)
			})
		},
	}
}

func runComposeREPL(ctx context.Context, cmd *cobra.Command, cc *CommandContext, s *wizard.Session) error {
	if s.Wizard().Dataset() == nil {
		return errors.New("no dataset: run 'campaignhq wizard upload <file.csv>' first")
	}

	historyFile := filepath.Join(filepath.Dir(cc.Cfg.StatePath), "compose_history")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          composePrompt,
		HistoryFile:     historyFile,
		AutoComplete:    newColumnCompleter(s.Wizard().Schema()),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdin:           io.NopCloser(cmd.InOrStdin()),
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	sh := &composeShell{session: s, r: cc.Renderer, errW: cmd.ErrOrStderr()}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "CampaignHQ composer (session: %s, dataset: %s)\n", s.Name(), s.Wizard().Dataset().Name)
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(cmd.OutOrStdout())
	sh.show()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		quit, err := sh.exec(ctx, line)
		if err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
		if quit {
			break
		}
	}
	return nil
}

// composeShell interprets composer input lines against a session.
type composeShell struct {
	session *wizard.Session
	r       *output.Renderer
	errW    io.Writer
}

// exec runs one input line and reports whether the shell should exit.
func (sh *composeShell) exec(ctx context.Context, line string) (bool, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false, nil
	}
	if !strings.HasPrefix(trimmed, ".") {
		if err := sh.edit(ctx, func(doc *composer.Document) error { return insertLine(doc, line) }); err != nil {
			return false, err
		}
		sh.show()
		return false, nil
	}

	parts := strings.Fields(trimmed)
	command := strings.ToLower(parts[0])
	args := parts[1:]

	switch command {
	case ".quit", ".exit":
		return true, nil

	case ".help":
		printComposeHelp(sh.r.Writer())
		return false, nil

	case ".show":
		sh.show()
		return false, nil

	case ".columns":
		for _, col := range sh.session.Wizard().Schema() {
			sh.r.Println(fmt.Sprintf("  %s (%s)", col.Name, col.Type))
		}
		return false, nil

	case ".preview":
		n := 1
		if len(args) > 0 {
			var err error
			if n, err = strconv.Atoi(args[0]); err != nil {
				return false, fmt.Errorf("invalid row %q", args[0])
			}
		}
		return false, runWizardPreview(&CommandContext{Renderer: sh.r}, sh.session.Wizard(), &PreviewOptions{Row: n})

	case ".var":
		if len(args) != 1 {
			return false, errors.New("usage: .var <column>")
		}
		return false, sh.editShow(ctx, func(doc *composer.Document) error { return doc.InsertVariable(args[0]) })

	case ".append":
		text := strings.TrimPrefix(trimmed[len(parts[0]):], " ")
		if strings.TrimSpace(text) == "" {
			return false, errors.New("usage: .append <text>")
		}
		return false, sh.editShow(ctx, func(doc *composer.Document) error {
			doc.Detach()
			return insertLine(doc, text)
		})

	case ".nl":
		return false, sh.editShow(ctx, func(doc *composer.Document) error {
			doc.LineBreak()
			return nil
		})

	case ".left", ".right", ".bs", ".del":
		n, err := repeatCount(args)
		if err != nil {
			return false, err
		}
		return false, sh.editShow(ctx, func(doc *composer.Document) error {
			for range n {
				switch command {
				case ".left":
					doc.MoveLeft()
				case ".right":
					doc.MoveRight()
				case ".bs":
					doc.Backspace()
				case ".del":
					doc.Delete()
				}
			}
			return nil
		})

	case ".home":
		return false, sh.editShow(ctx, func(doc *composer.Document) error {
			doc.MoveToStart()
			return nil
		})

	case ".end":
		return false, sh.editShow(ctx, func(doc *composer.Document) error {
			doc.MoveToEnd()
			return nil
		})

	case ".clear":
		return false, sh.editShow(ctx, func(doc *composer.Document) error {
			doc.Clear()
			return nil
		})

	default:
		return false, fmt.Errorf("unknown command: %s (type .help for commands)", command)
	}
}

func (sh *composeShell) edit(ctx context.Context, fn func(doc *composer.Document) error) error {
	return sh.session.Edit(ctx, fn)
}

func (sh *composeShell) editShow(ctx context.Context, fn func(doc *composer.Document) error) error {
	if err := sh.edit(ctx, fn); err != nil {
		return err
	}
	sh.show()
	return nil
}

func (sh *composeShell) show() {
	sh.r.Println(caretView(sh.session.Wizard().Document(), sh.r.Styles().Pill.Render))
}

// insertLine inserts typed text, turning {{column}} placeholders into pills.
// Nothing is inserted when a placeholder names an unknown column.
func insertLine(doc *composer.Document, line string) error {
	if unknown := composer.UnknownVariables(line, doc.Schema()); len(unknown) > 0 {
		return &composer.UnknownTemplateVariableError{Names: unknown}
	}
	for _, tok := range composer.NewLexer(line).Tokenize() {
		switch tok.Type {
		case composer.TokenText:
			doc.InsertText(tok.Value)
		case composer.TokenPlaceholder:
			if err := doc.InsertVariable(tok.Value); err != nil {
				return err
			}
		}
	}
	return nil
}

// caretView renders the document with pills as {{column}}, separators as a
// middle dot and the caret as a bar.
func caretView(doc *composer.Document, pill func(...string) string) string {
	var sb strings.Builder
	pos := 0
	caret := doc.Caret()
	if doc.Detached() {
		caret = doc.Len()
	}
	mark := func() {
		if pos == caret {
			sb.WriteByte('|')
		}
	}
	for _, seg := range doc.Segments() {
		switch seg.Kind {
		case composer.SegmentText:
			for _, r := range seg.Text {
				mark()
				sb.WriteRune(r)
				pos++
			}
		case composer.SegmentVariable:
			mark()
			sb.WriteString(pill(composer.Placeholder(seg.Column)))
			pos++
		case composer.SegmentSeparator:
			mark()
			sb.WriteString("·")
			pos++
		}
	}
	mark()
	return sb.String()
}

func repeatCount(args []string) (int, error) {
	if len(args) == 0 {
		return 1, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid count %q", args[0])
	}
	return n, nil
}

func printComposeHelp(w io.Writer) {
	help := `
Commands:
  <text>          Insert text at the caret ({{column}} inserts a pill)
  .var <column>   Insert a pill
  .append <text>  Add text at the end, wherever the caret is
  .nl             Insert a line break
  .left [n]       Move the caret left
  .right [n]      Move the caret right
  .home / .end    Move the caret to the start or end
  .bs [n]         Delete before the caret (pills go whole)
  .del [n]        Delete after the caret
  .clear          Empty the message
  .show           Show the message with the caret
  .preview [row]  Render the message against a sample row
  .columns        List dataset columns
  .quit / .exit   Exit the composer

Tips:
  - Every change is saved to the wizard draft
  - Tab completion works for commands and column names
`
	_, _ = fmt.Fprintln(w, help)
}

// newColumnCompleter creates a readline completer for dot-commands and columns.
func newColumnCompleter(schema core.Schema) *readline.PrefixCompleter {
	columns := make([]readline.PrefixCompleterInterface, 0, len(schema))
	for _, name := range schema.Names() {
		columns = append(columns, readline.PcItem(name))
	}
	return readline.NewPrefixCompleter(
		readline.PcItem(".var", columns...),
		readline.PcItem(".append"),
		readline.PcItem(".nl"),
		readline.PcItem(".left"),
		readline.PcItem(".right"),
		readline.PcItem(".home"),
		readline.PcItem(".end"),
		readline.PcItem(".bs"),
		readline.PcItem(".del"),
		readline.PcItem(".clear"),
		readline.PcItem(".show"),
		readline.PcItem(".preview"),
		readline.PcItem(".columns"),
		readline.PcItem(".help"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
}
