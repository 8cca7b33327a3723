// SPDX-License-Identifier: GPL-3.0-or-later
package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/CrawX/go-mxctl/domain"
	"github.com/CrawX/go-mxctl/log"
	"github.com/CrawX/go-mxctl/output"

	"github.com/spf13/cobra"
)

type options struct {
	configPath string
	json       bool
	account    string
	mailbox    string
	logLevel   string

	out io.Writer
	// executor replaces osascript when set.
	executor domain.Executor
}

// run opens the app for one command and closes it afterwards.
func (o *options) run(cmd *cobra.Command, f func(ctx context.Context, a *app) error) error {
	a, err := o.newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	return f(cmd.Context(), a)
}

func newRootCommand(o *options) *cobra.Command {
	root := &cobra.Command{
		Use:   "mxctl",
		Short: "Drive Apple Mail from the command line",
		Long: `mxctl reads and changes mail in Apple Mail through AppleScript.

Every change is journaled so the most recent batches can be undone.

Examples:
  mxctl inbox
  mxctl list -a Work --unread --limit 10
  mxctl batch-move --from-sender news@example.com --to Archive
  mxctl undo`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&o.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/mxctl/config.toml)")
	flags.BoolVar(&o.json, "json", false, "print results as JSON")
	flags.StringVarP(&o.account, "account", "a", "", "account to work on (default from config)")
	flags.StringVarP(&o.mailbox, "mailbox", "m", "", "mailbox to work on (default from config)")
	flags.StringVar(&o.logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		newAccountsCommand(o),
		newMailboxesCommand(o),
		newListCommand(o),
		newInboxCommand(o),
		newCountCommand(o),
		newHeadersCommand(o),
		newAttachmentsCommand(o),
		newSaveAttachmentCommand(o),
	)
	root.AddCommand(newActionCommands(o)...)
	root.AddCommand(newBatchCommands(o)...)
	root.AddCommand(newUndoCommand(o))

	return root
}

// Execute runs mxctl with the process arguments and returns the exit code.
func Execute() int {
	log.InitLogging("info")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	o := &options{out: os.Stdout}
	return execute(ctx, o, newRootCommand(o), os.Stderr)
}

func execute(ctx context.Context, o *options, root *cobra.Command, stderr io.Writer) int {
	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	if o.json {
		output.NewPrinter(o.out, true).Error(err)
	} else {
		output.NewPrinter(stderr, false).Error(err)
	}
	return 1
}
