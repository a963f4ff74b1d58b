// deckompiler converts compiled tickflow binaries into BTKS containers and
// inspects C00 archives for patched records.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rhmodding/deckompiler/cmd/deckompiler/command"
)

const (
	cliName        = "deckompiler"
	cliDescription = "convert tickflow binaries to BTKS and inspect C00 archives"
)

var (
	globalFlags = &command.GlobalFlags{}

	rootCmd = &cobra.Command{
		Use:           cliName,
		Short:         cliDescription,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return command.Init(globalFlags)
		},
	}
)

func init() {
	cobra.EnablePrefixMatching = true

	command.AddGlobalFlags(rootCmd, globalFlags)
	rootCmd.AddCommand(
		command.NewBtksCommand(),
		command.NewUnpackCommand(),
		command.NewInspectCommand(),
		command.NewConfigCommand(),
		newVersionCommand(),
	)
}

func main() {
	MustStart()
}

func Start() error {
	return rootCmd.Execute()
}

func MustStart() {
	if err := Start(); err != nil {
		fmt.Fprintf(os.Stderr, "deckompiler error: %s\n", err)
		os.Exit(-1)
	}
}
