package cmd

import (
	"github.com/easel-cloud/easel/cmd/start"
	"github.com/easel-cloud/easel/cmd/worker"
	"github.com/spf13/cobra"
)

var cmds = []*cobra.Command{
	start.Cmd,
	worker.Cmd,
}

// Execute builds the command tree and executes commands.
func Execute() error {
	command := &cobra.Command{
		Use: "easel",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Usage()
		},
	}

	for _, c := range cmds {
		command.AddCommand(c)
	}

	return command.Execute()
}
