package command

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/rhmodding/deckompiler/pkg/convert"
)

func NewBtksCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "btks IN OUT [TEMPO...]",
		Short: "convert a compiled tickflow .bin into a BTKS container",
		Long: "convert a compiled tickflow .bin into a BTKS container. Tempo files are " +
			"accepted for compatibility but not embedded yet.",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) < 2 {
				cmdFailedWithHelpNotice(cmd, "btks needs an input and an output path")
			}
			res, err := runBtks(mustGetEnv(cmd), args[0], args[1], args[2:])
			if err != nil {
				cmdFailedf(cmd, "convert failed: %s", err)
			}
			printConvertResult(cmd, res)
		},
	}
	return cmd
}

func runBtks(e *Env, in, out string, tempo []string) (*convert.Result, error) {
	c := convert.NewConverterFromConfig(e.Config, e.Logger)
	return c.ConvertFile(in, out, tempo)
}

func printConvertResult(cmd *cobra.Command, res *convert.Result) {
	if IsFormatJSON(cmd) {
		printJSON(cmd, res)
		return
	}

	t := newTable(cmd)
	t.AppendRow(table.Row{"Input", res.Input})
	t.AppendRow(table.Row{"Output", res.Output})
	if res.Codec != "none" {
		t.AppendRow(table.Row{"Compression", res.Codec})
	}
	t.AppendRow(table.Row{"Index", hex32(res.Index)})
	t.AppendRow(table.Row{"Start", hex32(res.Start)})
	t.AppendRow(table.Row{"Instructions", res.Instructions})
	t.AppendRow(table.Row{"String refs", res.StringRefs})
	t.AppendRow(table.Row{"Stream pointers", res.StreamPtrs})
	if res.Dangling > 0 {
		t.AppendRow(table.Row{"Dangling strings", res.Dangling})
	}
	t.AppendRow(table.Row{"FLOW bytes", res.FlowSize})
	t.AppendRow(table.Row{"STRD bytes", res.StringSize})
	t.AppendRow(table.Row{"Size", res.Size})
	t.AppendRow(table.Row{"Digest", fmt.Sprintf("%016x", res.Digest)})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 2, Align: text.AlignLeft},
	})
	t.Render()
}
