package command

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/rhmodding/deckompiler/pkg/btks"
	"github.com/rhmodding/deckompiler/pkg/fileio"
)

type sectionEntry struct {
	Magic  string `json:"magic"`
	Offset uint32 `json:"offset"`
	Size   uint32 `json:"size"`
}

type pointerEntry struct {
	Offset uint32 `json:"offset"`
	Kind   string `json:"kind"`
	Value  uint32 `json:"value"`
}

type inspectReport struct {
	File     string         `json:"file"`
	Size     uint32         `json:"size"`
	Version  uint32         `json:"version"`
	Start    uint32         `json:"start"`
	Digest   string         `json:"digest"`
	Sections []sectionEntry `json:"sections"`
	Pointers []pointerEntry `json:"pointers"`
}

func NewInspectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "show the sections and pointer table of a BTKS container",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				cmdFailedWithHelpNotice(cmd, "inspect needs exactly one file")
			}
			report, err := runInspect(args[0])
			if err != nil {
				cmdFailedf(cmd, "inspect failed: %s", err)
			}
			printInspectReport(cmd, report)
		},
	}
	return cmd
}

func runInspect(path string) (*inspectReport, error) {
	data, _, err := fileio.ReadInput(path)
	if err != nil {
		return nil, err
	}

	c, err := btks.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	digest, err := c.Digest()
	if err != nil {
		return nil, err
	}

	h := c.Header()
	report := &inspectReport{
		File:    path,
		Size:    h.Size,
		Version: h.Version,
		Start:   c.Flow.Start,
		Digest:  fmt.Sprintf("%016x", digest),
	}
	for _, s := range c.Layout() {
		report.Sections = append(report.Sections, sectionEntry(s))
	}
	for _, p := range c.Pointers.Pointers {
		report.Pointers = append(report.Pointers, pointerEntry{
			Offset: p.Offset,
			Kind:   p.Kind.String(),
			Value:  c.Flow.Word(p.Offset),
		})
	}
	return report, nil
}

func printInspectReport(cmd *cobra.Command, report *inspectReport) {
	if IsFormatJSON(cmd) {
		printJSON(cmd, report)
		return
	}

	t := newTable(cmd)
	t.SetTitle("%s (%d bytes, version %d, start %s, xxhash %s)",
		report.File, report.Size, report.Version, hex32(report.Start), report.Digest)
	t.AppendHeader(table.Row{"Section", "Offset", "Size"})
	for _, s := range report.Sections {
		t.AppendRow(table.Row{s.Magic, hex32(s.Offset), s.Size})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignCenter, AlignHeader: text.AlignCenter},
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignCenter},
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignCenter},
	})
	t.Render()

	if len(report.Pointers) == 0 {
		return
	}
	pt := newTable(cmd)
	pt.AppendHeader(table.Row{"Offset", "Kind", "Value"})
	for _, p := range report.Pointers {
		pt.AppendRow(table.Row{hex32(p.Offset), p.Kind, hex32(p.Value)})
	}
	pt.AppendFooter(table.Row{"", "Total", len(report.Pointers)})
	pt.Render()
}
