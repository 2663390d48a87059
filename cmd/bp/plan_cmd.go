package main

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/and161185/bloomplan/internal/errs"
	"github.com/and161185/bloomplan/internal/estimator"
	"github.com/and161185/bloomplan/internal/messages"
	"github.com/and161185/bloomplan/internal/model"
	"github.com/and161185/bloomplan/internal/plandraft"
)

func newPlanCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Create and edit delivery plans",
	}
	cmd.AddCommand(
		newPlanCreateCmd(a),
		newPlanListCmd(a),
		newPlanShowCmd(a),
		newPlanDeliveriesCmd(a),
		newPlanStructureCmd(a),
		newPlanPriceCmd(a),
		newPlanMessagesCmd(a),
		newPlanRecipientCmd(a),
		newPlanActivateCmd(a),
	)
	return cmd
}

func newPlanCreateCmd(a *app) *cobra.Command {
	var sf structureFlags
	var rf recipientFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a draft plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := a.requireLogin(cmd.Context()); err != nil {
				return err
			}
			s, err := sf.apply(cmd, model.Structure{})
			if err != nil {
				return err
			}
			if err := s.Validate(); err != nil {
				return err
			}
			p, err := a.api.CreatePlan(cmd.Context(), s, rf.apply(cmd, model.Recipient{}))
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, p.ID)
			return nil
		},
	}
	sf.bind(cmd)
	rf.bind(cmd)
	for _, f := range []string{"frequency", "start", "years", "budget"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func newPlanListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your plans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := a.requireLogin(cmd.Context()); err != nil {
				return err
			}
			ps, err := a.api.ListPlans(cmd.Context())
			if err != nil {
				return err
			}
			printPlans(a.out, ps)
			return nil
		},
	}
}

func newPlanShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show PLAN_ID",
		Short: "Print a plan as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePlanID(args[0])
			if err != nil {
				return err
			}
			if _, err := a.requireLogin(cmd.Context()); err != nil {
				return err
			}
			p, err := a.api.GetPlan(cmd.Context(), id)
			if err != nil {
				return err
			}
			printPlan(a.out, *p)
			return nil
		},
	}
}

func newPlanDeliveriesCmd(a *app) *cobra.Command {
	var localOnly bool
	cmd := &cobra.Command{
		Use:   "deliveries PLAN_ID",
		Short: "List delivery dates and card messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.openPlan(cmd.Context(), args[0], plandraft.WithServerProjection(!localOnly))
			if err != nil {
				return err
			}
			defer c.Close()
			printSlots(a.out, c.Deliveries())
			return nil
		},
	}
	cmd.Flags().BoolVar(&localOnly, "local", false, "project dates locally without asking the server")
	return cmd
}

func newPlanStructureCmd(a *app) *cobra.Command {
	var sf structureFlags
	var save bool
	cmd := &cobra.Command{
		Use:   "structure PLAN_ID",
		Short: "Change frequency, start, length or budget and show the new price",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			feed := newPriceFeed()
			defer feed.stop()
			c, err := a.openPlan(ctx, args[0], plandraft.WithPriceObserver(feed.observe))
			if err != nil {
				return err
			}
			defer c.Close()

			s, err := sf.apply(cmd, c.Structure())
			if err != nil {
				return err
			}
			if err := c.EditStructure(s); err != nil {
				return err
			}
			c.FlushPrice()
			st, err := feed.wait(ctx, c.Price().Seq)
			if err != nil {
				return err
			}
			printEstimate(a.out, st)
			if st.Phase == estimator.PhaseSettled {
				printBreakdown(a.out, st.Result)
			}
			if !save {
				return nil
			}
			if err := c.SaveStructure(ctx); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "saved")
			return nil
		},
	}
	sf.bind(cmd)
	cmd.Flags().BoolVar(&save, "save", false, "persist the new structure")
	return cmd
}

func newPlanPriceCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "price PLAN_ID",
		Short: "Read structure edits from stdin and print each settled price",
		Long: "Each input line holds key=value edits, e.g. \"years=3 budget=45\". Edits typed\n" +
			"faster than the quiet period are priced once.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			feed := newPriceFeed()
			defer feed.stop()
			c, err := a.openPlan(ctx, args[0], plandraft.WithPriceObserver(feed.observe))
			if err != nil {
				return err
			}
			defer c.Close()
			if !c.PrePayment() {
				return fmt.Errorf("%w: schedule is fixed after payment", errs.ErrPlanActive)
			}
			return streamPrices(ctx, a, c, feed)
		},
	}
}

func streamPrices(ctx context.Context, a *app, c *plandraft.Controller, feed *priceFeed) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(a.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-feed.done:
				return
			}
		}
	}()

	var printed uint64
	eof := false
	for {
		if eof {
			target := c.Price().Seq
			if target == 0 || printed >= target {
				return nil
			}
		}
		select {
		case line, ok := <-lines:
			if !ok {
				eof, lines = true, nil
				c.FlushPrice()
				continue
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if err := editFromLine(c, line); err != nil {
				fmt.Fprintf(a.errOut, "skipped %q: %v\n", line, err)
			}
		case st := <-feed.ch:
			if final(st) && st.Seq >= c.Price().Seq {
				printEstimate(a.out, st)
				printed = st.Seq
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func editFromLine(c *plandraft.Controller, line string) error {
	kv, err := parseStructureLine(line)
	if err != nil {
		return err
	}
	s, err := applyStructure(c.Structure(), kv)
	if err != nil {
		return err
	}
	return c.EditStructure(s)
}

func newPlanMessagesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "messages",
		Short: "Show and edit card messages",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show PLAN_ID",
			Short: "Show the message mode and every delivery's message",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := a.openPlan(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				defer c.Close()
				fmt.Fprintf(a.out, "mode: %s\n", c.Mode())
				printSlots(a.out, c.Deliveries())
				return nil
			},
		},
		&cobra.Command{
			Use:   "single PLAN_ID TEXT",
			Short: "Use one message for every delivery",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.editMessages(cmd.Context(), args[0], func(c *plandraft.Controller) error {
					return c.SetSingleMessage(args[1])
				})
			},
		},
		&cobra.Command{
			Use:   "set PLAN_ID INDEX TEXT",
			Short: "Set the message of one delivery",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				idx, err := strconv.Atoi(args[1])
				if err != nil {
					return invalidf("bad delivery index %q", args[1])
				}
				return a.editMessages(cmd.Context(), args[0], func(c *plandraft.Controller) error {
					for _, s := range c.Deliveries() {
						if s.Index == idx {
							return c.SetMessage(s.Key, args[2])
						}
					}
					return invalidf("no delivery #%d", idx)
				})
			},
		},
		&cobra.Command{
			Use:   "mode PLAN_ID single|multiple",
			Short: "Switch the message mode and save what it resolves to",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := messages.ParseMode(args[1])
				if err != nil {
					return err
				}
				return a.editMessages(cmd.Context(), args[0], func(c *plandraft.Controller) error {
					return c.SetMode(m)
				})
			},
		},
	)
	return cmd
}

// editMessages loads the plan, applies edit and saves the messages.
func (a *app) editMessages(ctx context.Context, planID string, edit func(*plandraft.Controller) error) error {
	c, err := a.openPlan(ctx, planID)
	if err != nil {
		return err
	}
	defer c.Close()
	if err := edit(c); err != nil {
		return err
	}
	if err := c.SaveMessages(ctx); err != nil {
		return err
	}
	printSlots(a.out, c.Deliveries())
	return nil
}

func newPlanRecipientCmd(a *app) *cobra.Command {
	var rf recipientFlags
	cmd := &cobra.Command{
		Use:   "recipient PLAN_ID",
		Short: "Update who receives the deliveries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.openPlan(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer c.Close()
			p, _ := c.Plan()
			if err := c.UpdateRecipient(cmd.Context(), rf.apply(cmd, p.Recipient)); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "saved")
			return nil
		},
	}
	rf.bind(cmd)
	return cmd
}

func newPlanActivateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "activate PLAN_ID",
		Short: "Confirm payment and schedule the deliveries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePlanID(args[0])
			if err != nil {
				return err
			}
			if _, err := a.requireLogin(cmd.Context()); err != nil {
				return err
			}
			p, err := a.api.ActivatePlan(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "active: %d deliveries scheduled\n", len(p.Events))
			return nil
		},
	}
}
