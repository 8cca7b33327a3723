// SPDX-License-Identifier: GPL-3.0-or-later
package cli

import (
	"context"
	"fmt"

	"github.com/CrawX/go-mxctl/domain"
	"github.com/CrawX/go-mxctl/script"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var actions = []struct {
	kind  domain.OperationKind
	short string
}{
	{domain.MarkRead, "Mark messages as read"},
	{domain.MarkUnread, "Mark messages as unread"},
	{domain.Flag, "Flag messages"},
	{domain.Unflag, "Remove the flag from messages"},
	{domain.MarkJunk, "Mark messages as junk"},
	{domain.MarkNotJunk, "Mark messages as not junk"},
	{domain.Move, "Move messages to another mailbox"},
	{domain.Delete, "Move messages to the trash"},
}

func newActionCommands(o *options) []*cobra.Command {
	commands := []*cobra.Command{}
	for _, action := range actions {
		commands = append(commands, newActionCommand(o, action.kind, action.short))
	}
	return commands
}

func newActionCommand(o *options, kind domain.OperationKind, short string) *cobra.Command {
	var destination string

	cmd := &cobra.Command{
		Use:   string(kind) + " ID...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, len(args))
			for i, arg := range args {
				id, err := parseID(arg)
				if err != nil {
					return err
				}
				ids[i] = id
			}

			return o.run(cmd, func(ctx context.Context, a *app) error {
				account, mailbox, err := a.location(ctx)
				if err != nil {
					return err
				}
				params, err := a.params(ctx, kind, account, destination)
				if err != nil {
					return err
				}

				targets := make([]domain.MessageRef, len(ids))
				for i, id := range ids {
					targets[i] = domain.MessageRef{Account: account, Mailbox: mailbox, ID: id}
				}

				result, err := a.bridge.RunBatch(ctx, kind, targets, params)
				if err != nil {
					return err
				}
				return a.printer.Batch(result)
			})
		},
	}
	if kind == domain.Move {
		cmd.Flags().StringVar(&destination, "to", "", "destination mailbox")
		cmd.MarkFlagRequired("to")
	}
	return cmd
}

// params validates the kind specific arguments of an operation.
func (a *app) params(ctx context.Context, kind domain.OperationKind, account, destination string) (domain.OperationParams, error) {
	if kind != domain.Move {
		return domain.OperationParams{}, nil
	}
	if destination == "" {
		return domain.OperationParams{}, fmt.Errorf("move needs a destination mailbox, use --to")
	}
	if destination == a.mailbox {
		return domain.OperationParams{}, fmt.Errorf("messages are already in %s", destination)
	}
	if err := a.bridge.EnsureMailbox(ctx, account, destination); err != nil {
		return domain.OperationParams{}, err
	}
	return domain.OperationParams{Destination: destination}, nil
}

var batchActions = []struct {
	name       string
	kind       domain.OperationKind
	unreadOnly bool
	short      string
}{
	{"batch-read", domain.MarkRead, true, "Mark all unread messages from a sender as read"},
	{"batch-flag", domain.Flag, false, "Flag all messages from a sender"},
	{"batch-move", domain.Move, false, "Move all messages from a sender to another mailbox"},
	{"batch-delete", domain.Delete, false, "Move all messages from a sender to the trash"},
}

func newBatchCommands(o *options) []*cobra.Command {
	commands := []*cobra.Command{}
	for _, b := range batchActions {
		commands = append(commands, newBatchCommand(o, b.name, b.kind, b.unreadOnly, b.short))
	}
	return commands
}

type dryRun struct {
	DryRun  bool                 `json:"dryRun"`
	Kind    domain.OperationKind `json:"kind"`
	Sender  string               `json:"sender"`
	Matches int                  `json:"matches"`
	// Total counts every matching message, Capped is set when Matches is less.
	Total   int                  `json:"total"`
	Capped  bool                 `json:"capped"`
	Targets []domain.MessageRef  `json:"targets"`
}

// selectionSize is how many of total matches a batch takes. Without an
// explicit limit all of them are taken, up to the scan cap and batch size.
func (a *app) selectionSize(limit int, explicit bool, total int) int {
	if !explicit {
		limit = total
	}
	n := a.bridge.ClampLimit(limit)
	if most := a.bridge.MaxBatchSize(); n > most {
		n = most
	}
	return n
}

func newBatchCommand(o *options, name string, kind domain.OperationKind, unreadOnly bool, short string) *cobra.Command {
	var (
		sender      string
		limit       int
		destination string
		dry         bool
	)

	cmd := &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			explicit := cmd.Flags().Changed("limit")
			return o.run(cmd, func(ctx context.Context, a *app) error {
				account, mailbox, err := a.location(ctx)
				if err != nil {
					return err
				}
				params, err := a.params(ctx, kind, account, destination)
				if err != nil {
					return err
				}

				filter := script.Params{
					"account":    account,
					"mailbox":    mailbox,
					"unreadOnly": unreadOnly,
					"sender":     sender,
				}
				counted, err := a.bridge.Query(ctx, script.CountMessages, filter)
				if err != nil {
					return err
				}
				total := 0
				if len(counted) == 1 {
					total = int(counted[0].Int("total"))
				}
				if total == 0 {
					return a.printer.Message(fmt.Sprintf("No messages from %s in %s", sender, mailbox))
				}

				filter["limit"] = a.selectionSize(limit, explicit, total)
				records, err := a.bridge.Query(ctx, script.ListMessages, filter)
				if err != nil {
					return err
				}

				targets := make([]domain.MessageRef, len(records))
				for i, r := range records {
					targets[i] = domain.MessageRef{Account: account, Mailbox: mailbox, ID: r.Int("id")}
				}
				capped := len(targets) < total

				a.l.WithFields(logrus.Fields{"kind": kind, "sender": sender, "matches": len(targets), "total": total, "dryrun": dry}).Debug("Selected messages")

				if len(targets) == 0 {
					return a.printer.Message(fmt.Sprintf("No messages from %s in %s", sender, mailbox))
				}
				if dry {
					if a.printer.JSON() {
						return a.printer.PrintJSON(dryRun{DryRun: true, Kind: kind, Sender: sender, Matches: len(targets), Total: total, Capped: capped, Targets: targets})
					}
					a.printer.Info(fmt.Sprintf("Dry run: %s would apply to %d of %d messages from %s", kind, len(targets), total, sender))
					return printMessages(a.printer, records)
				}

				result, err := a.bridge.RunBatch(ctx, kind, targets, params)
				if err != nil {
					return err
				}
				if err := a.printer.Batch(result); err != nil {
					return err
				}
				if capped && !a.printer.JSON() {
					a.printer.Info(fmt.Sprintf("Selected %d of %d matching messages, run again for the rest", len(targets), total))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&sender, "from-sender", "", "select messages whose sender contains this text")
	cmd.MarkFlagRequired("from-sender")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of messages (default: all matches)")
	cmd.Flags().BoolVar(&dry, "dry-run", false, "only show what would be changed")
	if kind == domain.Move {
		cmd.Flags().StringVar(&destination, "to", "", "destination mailbox")
		cmd.MarkFlagRequired("to")
	}
	return cmd
}

func newUndoCommand(o *options) *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "undo [BATCH_ID]",
		Short: "Revert the most recent batch, or the given one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, func(ctx context.Context, a *app) error {
				if list {
					summaries, err := a.bridge.ListBatches(ctx)
					if err != nil {
						return err
					}
					return a.printer.Batches(summaries)
				}

				batchID := ""
				if len(args) == 1 {
					batchID = args[0]
				}
				result, err := a.bridge.Undo(ctx, batchID)
				if err != nil {
					return err
				}
				return a.printer.Undo(result)
			})
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "list the batches that can be undone")
	return cmd
}
