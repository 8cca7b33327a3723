// SPDX-License-Identifier: GPL-3.0-or-later
package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/CrawX/go-mxctl/bridge"
	"github.com/CrawX/go-mxctl/decode"
	"github.com/CrawX/go-mxctl/mail"
	"github.com/CrawX/go-mxctl/output"
	"github.com/CrawX/go-mxctl/script"

	"github.com/spf13/cobra"
)

const defaultLimit = 25

func newAccountsCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List mail accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, func(ctx context.Context, a *app) error {
				records, err := a.bridge.Query(ctx, script.ListAccounts, script.Params{})
				if err != nil {
					return err
				}
				return a.printer.Records(records, "name", "enabled", "email")
			})
		},
	}
}

func newMailboxesCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "mailboxes",
		Short: "List the mailboxes of an account with their unread counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, func(ctx context.Context, a *app) error {
				account, err := a.resolveAccount(ctx)
				if err != nil {
					return err
				}
				records, err := a.bridge.Query(ctx, script.ListMailboxes, script.Params{"account": account})
				if err != nil {
					return err
				}
				return a.printer.Records(records, "name", "unread")
			})
		},
	}
}

func newListCommand(o *options) *cobra.Command {
	var (
		unread bool
		sender string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List messages of a mailbox",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, func(ctx context.Context, a *app) error {
				account, mailbox, err := a.location(ctx)
				if err != nil {
					return err
				}
				records, err := a.bridge.Query(ctx, script.ListMessages, script.Params{
					"account":    account,
					"mailbox":    mailbox,
					"limit":      a.bridge.ClampLimit(limit),
					"unreadOnly": unread,
					"sender":     sender,
				})
				if err != nil {
					return err
				}
				return printMessages(a.printer, records)
			})
		},
	}
	cmd.Flags().BoolVar(&unread, "unread", false, "only unread messages")
	cmd.Flags().StringVar(&sender, "from-sender", "", "only messages whose sender contains this text")
	cmd.Flags().IntVar(&limit, "limit", defaultLimit, "maximum number of messages")
	return cmd
}

func printMessages(p *output.Printer, records []*decode.Record) error {
	if p.JSON() || len(records) == 0 {
		return p.Records(records)
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		state := ""
		if !r.Bool("read") {
			state += "U"
		}
		if r.Bool("flagged") {
			state += "F"
		}
		rows = append(rows, []string{
			strconv.FormatInt(r.Int("id"), 10),
			state,
			r.Time("date").Local().Format("2006-01-02 15:04"),
			mail.ExtractEmail(r.String("sender")),
			mail.ShortSubject(mail.NormalizeSubject(r.String("subject"))),
		})
	}
	p.Table([]string{"id", "", "date", "from", "subject"}, rows)
	return nil
}

type accountMessages struct {
	Account  string                   `json:"account"`
	Messages []map[string]interface{} `json:"messages"`
	Error    string                   `json:"error,omitempty"`
}

func newInboxCommand(o *options) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "Show unread messages in the inbox of every enabled account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, func(ctx context.Context, a *app) error {
				accounts, err := a.enabledAccounts(ctx)
				if err != nil {
					return err
				}

				requests := make([]bridge.Request, len(accounts))
				for i, account := range accounts {
					requests[i] = bridge.Request{
						Template: script.ListMessages,
						Params: script.Params{
							"account":    account,
							"mailbox":    "INBOX",
							"limit":      a.bridge.ClampLimit(limit),
							"unreadOnly": true,
						},
					}
				}
				results := a.bridge.QueryAll(ctx, requests)

				if a.printer.JSON() {
					out := make([]accountMessages, len(accounts))
					for i, r := range results {
						out[i] = accountMessages{Account: accounts[i], Messages: []map[string]interface{}{}}
						if r.Err != nil {
							out[i].Error = r.Err.Error()
							continue
						}
						for _, record := range r.Records {
							out[i].Messages = append(out[i].Messages, record.Map())
						}
					}
					return a.printer.PrintJSON(out)
				}

				for i, r := range results {
					if r.Err != nil {
						a.printer.Error(fmt.Errorf("%s: %w", accounts[i], r.Err))
						continue
					}
					a.printer.Success(fmt.Sprintf("%s: %d unread", accounts[i], len(r.Records)))
					if len(r.Records) > 0 {
						if err := printMessages(a.printer, r.Records); err != nil {
							return err
						}
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", defaultLimit, "maximum number of messages per account")
	return cmd
}

func newCountCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Count total and unread messages of a mailbox",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, func(ctx context.Context, a *app) error {
				account, mailbox, err := a.location(ctx)
				if err != nil {
					return err
				}
				records, err := a.bridge.Query(ctx, script.MailboxStats, script.Params{"account": account, "mailbox": mailbox})
				if err != nil {
					return err
				}
				return a.printer.Records(records, "total", "unread")
			})
		},
	}
}

func newHeadersCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "headers ID",
		Short: "Show the raw headers of a message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return o.run(cmd, func(ctx context.Context, a *app) error {
				account, mailbox, err := a.location(ctx)
				if err != nil {
					return err
				}
				records, err := a.bridge.Query(ctx, script.MessageHeaders, script.Params{"account": account, "mailbox": mailbox, "id": id})
				if err != nil {
					return err
				}
				if len(records) == 0 {
					return fmt.Errorf("message %d returned no headers", id)
				}

				headers, err := mail.ParseHeaders(records[0].String("headers"))
				if err != nil {
					return err
				}
				if a.printer.JSON() {
					return a.printer.PrintJSON(headers)
				}
				rows := make([][]string, len(headers))
				for i, h := range headers {
					rows[i] = []string{h.Key, h.Value}
				}
				a.printer.Table([]string{"header", "value"}, rows)
				return nil
			})
		},
	}
}

func newAttachmentsCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "attachments ID",
		Short: "List the attachments of a message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return o.run(cmd, func(ctx context.Context, a *app) error {
				account, mailbox, err := a.location(ctx)
				if err != nil {
					return err
				}
				records, err := a.bridge.Query(ctx, script.ListAttachments, script.Params{"account": account, "mailbox": mailbox, "id": id})
				if err != nil {
					return err
				}
				return a.printer.Records(records, "name", "mimeType", "size", "downloaded")
			})
		},
	}
}

func newSaveAttachmentCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "save-attachment ID NAME DIR",
		Short: "Save one attachment of a message into a directory",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			dir, err := filepath.Abs(args[2])
			if err != nil {
				return fmt.Errorf("invalid directory %s: %w", args[2], err)
			}
			path := filepath.Join(dir, filepath.Base(args[1]))

			return o.run(cmd, func(ctx context.Context, a *app) error {
				account, mailbox, err := a.location(ctx)
				if err != nil {
					return err
				}
				records, err := a.bridge.Query(ctx, script.SaveAttachment, script.Params{
					"account": account,
					"mailbox": mailbox,
					"id":      id,
					"name":    args[1],
					"path":    path,
				})
				if err != nil {
					return err
				}
				if a.printer.JSON() {
					return a.printer.Records(records)
				}
				a.printer.Success("Saved " + path)
				return nil
			})
		},
	}
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid message id %q, expected a positive number", arg)
	}
	return id, nil
}
