package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	root := &cobra.Command{
		Use:           "provisioner",
		Short:         "Provision client groups on the messaging backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "config.json", "config file (json or yaml), empty for environment only")
	root.AddCommand(newServeCmd(&cfgFile), newGroupsCmd(&cfgFile))
	return root
}
