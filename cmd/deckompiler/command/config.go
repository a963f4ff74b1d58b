package command

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config sub-command",
		Short: "sub-commands for the configuration file",
	}
	cmd.AddCommand(showConfigCommand())
	cmd.AddCommand(initConfigCommand())
	return cmd
}

func showConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "print the effective configuration",
		Run: func(cmd *cobra.Command, args []string) {
			e := mustGetEnv(cmd)
			if IsFormatJSON(cmd) {
				printJSON(cmd, e.Config)
				return
			}
			data, err := e.Config.Marshal()
			if err != nil {
				cmdFailedf(cmd, "show config failed: %s", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), string(data))
		},
	}
	return cmd
}

func initConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init PATH",
		Short: "write the effective configuration to PATH",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				cmdFailedWithHelpNotice(cmd, "config init needs a path")
			}
			if err := mustGetEnv(cmd).Config.Save(args[0]); err != nil {
				cmdFailedf(cmd, "write config failed: %s", err)
			}
			color.Green("config written to %s", args[0])
		},
	}
	return cmd
}
