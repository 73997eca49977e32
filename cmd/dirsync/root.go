package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "dirsync",
		Short:         "Run a one-shot directory sync for an integration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config file (defaults to CONFIG_PATH env or assets/local.yaml)")

	cmd.AddCommand(newSyncCmd(opts, "employees", "Sync directory users into employees"))
	cmd.AddCommand(newSyncCmd(opts, "departments", "Sync directory org units into departments"))
	cmd.AddCommand(newTestConnectionCmd(opts))
	return cmd
}

// Execute はルートコマンドを実行し、失敗時は終了コード 1 で終了します。
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
