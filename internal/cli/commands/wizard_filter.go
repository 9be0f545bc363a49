package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/campaignhq/campaignhq/internal/cli/output"
	"github.com/campaignhq/campaignhq/internal/wizard"
	"github.com/campaignhq/campaignhq/pkg/audience"
	"github.com/campaignhq/campaignhq/pkg/core"
)

func newWizardFilterCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Edit and test the audience filter",
		Long: `Edit and test the audience filter.

Conditions are referenced by their position (1, 2, ...) or by a unique
prefix of their ID. Any change invalidates the last test; the filter must be
tested again before the wizard can move on, unless it has no conditions.`,
	}

	cmd.AddCommand(
		newFilterAddCommand(),
		newFilterUpdateCommand(),
		newFilterRemoveCommand(),
		newFilterLogicCommand(),
		newFilterTestCommand(),
		newFilterListCommand(),
		newFilterColumnsCommand(),
	)
	return cmd
}

// FilterAddOptions holds options for the filter add command.
type FilterAddOptions struct {
	Column   string
	Operator string
	Value    string
}

func newFilterAddCommand() *cobra.Command {
	opts := &FilterAddOptions{}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a condition",
		Long: `Add a condition. Without flags the condition targets the first column
with the == operator and an empty value.`,
		Example: `  campaignhq wizard filter add --column attendance --operator "<" --value 75
  campaignhq wizard filter add --column name --operator contains --value a`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, func(ctx context.Context, cc *CommandContext, s *wizard.Session) error {
				return runFilterAdd(ctx, cmd, cc, s, opts)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Column, "column", "", "Column to compare")
	cmd.Flags().StringVar(&opts.Operator, "operator", "", "Operator (==, <, >, <=, >=, contains)")
	cmd.Flags().StringVar(&opts.Value, "value", "", "Value to compare with")

	return cmd
}

func runFilterAdd(ctx context.Context, cmd *cobra.Command, cc *CommandContext, s *wizard.Session, opts *FilterAddOptions) error {
	c, err := s.AddCondition(ctx)
	if err != nil {
		return err
	}

	updates := []struct {
		flag  string
		field audience.Field
		value string
	}{
		{"column", audience.FieldColumn, opts.Column},
		{"operator", audience.FieldOperator, opts.Operator},
		{"value", audience.FieldValue, opts.Value},
	}
	for _, u := range updates {
		if !cmd.Flags().Changed(u.flag) {
			continue
		}
		if err := s.UpdateCondition(ctx, c.ID, u.field, u.value); err != nil {
			if rerr := s.RemoveCondition(ctx, c.ID); rerr != nil {
				return errors.Join(err, rerr)
			}
			return err
		}
	}

	conds := s.Wizard().Filter().Conditions()
	added := conds[len(conds)-1]
	cc.Renderer.Success(fmt.Sprintf("Added condition %d: %s %s %q", len(conds), added.Column, added.Operator, added.Value))
	return nil
}

func newFilterUpdateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "update <condition> <column|operator|value> <value>",
		Short: "Change one field of a condition",
		Long: `Change one field of a condition. Changing the column resets the operator
when the new column's type does not allow it.`,
		Example: `  campaignhq wizard filter update 1 value 80
  campaignhq wizard filter update 2 operator contains`,
		Args:      cobra.ExactArgs(3),
		ValidArgs: []string{string(audience.FieldColumn), string(audience.FieldOperator), string(audience.FieldValue)},
		RunE: func(cmd *cobra.Command, args []string) error {
			field, err := parseField(args[1])
			if err != nil {
				return err
			}
			return withSession(cmd, func(ctx context.Context, cc *CommandContext, s *wizard.Session) error {
				id, n, err := findCondition(s.Wizard().Filter().Conditions(), args[0])
				if err != nil {
					return err
				}
				if err := s.UpdateCondition(ctx, id, field, args[2]); err != nil {
					return err
				}
				c := s.Wizard().Filter().Conditions()[n-1]
				cc.Renderer.Success(fmt.Sprintf("Condition %d: %s %s %q", n, c.Column, c.Operator, c.Value))
				return nil
			})
		},
	}
}

func newFilterRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <condition>",
		Aliases: []string{"rm"},
		Short:   "Remove a condition",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, cc *CommandContext, s *wizard.Session) error {
				id, n, err := findCondition(s.Wizard().Filter().Conditions(), args[0])
				if err != nil {
					return err
				}
				if err := s.RemoveCondition(ctx, id); err != nil {
					return err
				}
				cc.Renderer.Success(fmt.Sprintf("Removed condition %d", n))
				return nil
			})
		},
	}
}

func newFilterLogicCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "logic <AND|OR>",
		Short:     "Set how conditions combine",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(core.LogicAnd), string(core.LogicOr)},
		RunE: func(cmd *cobra.Command, args []string) error {
			logic := core.FilterLogic(strings.ToUpper(args[0]))
			return withSession(cmd, func(ctx context.Context, cc *CommandContext, s *wizard.Session) error {
				if err := s.SetLogic(ctx, logic); err != nil {
					return err
				}
				cc.Renderer.Success(fmt.Sprintf("Conditions joined by %s", logic))
				return nil
			})
		},
	}
}

func newFilterTestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Evaluate the filter on the server",
		Long: `Send the dataset and filter to the server and show the matched rows.

The CSV is read again from the path recorded at upload. A successful test
satisfies the audience step.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, func(ctx context.Context, cc *CommandContext, s *wizard.Session) error {
				res, err := s.TestFilter(ctx)
				if err != nil {
					return err
				}
				r := cc.Renderer
				if r.EffectiveMode() == output.ModeJSON {
					return r.JSON(res)
				}
				if res.MatchedCount == 0 {
					r.Warning("the filter matched no rows")
				} else {
					r.Success(fmt.Sprintf("Matched %d row(s)", res.MatchedCount))
				}
				r.Println()
				renderRows(r, s.Wizard().Schema(), res.Rows())
				return nil
			})
		},
	}
}

func newFilterListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List conditions",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, func(_ context.Context, cc *CommandContext, s *wizard.Session) error {
				b := s.Wizard().Filter()
				if cc.Renderer.EffectiveMode() == output.ModeJSON {
					return cc.Renderer.JSON(b.State())
				}
				renderFilter(cc.Renderer, b)
				return nil
			})
		},
	}
}

func newFilterColumnsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "columns",
		Short: "List columns and the operators each allows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, func(_ context.Context, cc *CommandContext, s *wizard.Session) error {
				schema := s.Wizard().Schema()
				if len(schema) == 0 {
					return errors.New("no dataset: run 'campaignhq wizard upload <file.csv>' first")
				}
				rows := make([][]string, len(schema))
				for i, col := range schema {
					ops := audience.OperatorsFor(col.Type)
					names := make([]string, len(ops))
					for j, op := range ops {
						names[j] = string(op)
					}
					rows[i] = []string{col.Name, string(col.Type), strings.Join(names, " ")}
				}
				cc.Renderer.Table([]string{"Column", "Type", "Operators"}, rows)
				return nil
			})
		},
	}
}

func parseField(s string) (audience.Field, error) {
	switch f := audience.Field(strings.ToLower(s)); f {
	case audience.FieldColumn, audience.FieldOperator, audience.FieldValue:
		return f, nil
	default:
		return "", fmt.Errorf("unknown field %q (want column, operator or value)", s)
	}
}

// findCondition resolves a 1-based position or an ID prefix to a condition
// ID and its position.
func findCondition(conds []audience.Condition, ref string) (string, int, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", 0, errors.New("no condition \"\"")
	}
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(conds) {
			return "", 0, fmt.Errorf("no condition %d (have %d)", n, len(conds))
		}
		return conds[n-1].ID, n, nil
	}

	match := -1
	for i, c := range conds {
		if c.ID == ref {
			return c.ID, i + 1, nil
		}
		if strings.HasPrefix(c.ID, ref) {
			if match >= 0 {
				return "", 0, fmt.Errorf("condition %q is ambiguous", ref)
			}
			match = i
		}
	}
	if match < 0 {
		return "", 0, fmt.Errorf("no condition %q", ref)
	}
	return conds[match].ID, match + 1, nil
}
