package command

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/rhmodding/deckompiler/pkg/c00"
	"github.com/rhmodding/deckompiler/pkg/fileio"
	"github.com/rhmodding/deckompiler/pkg/names"
)

// CandidatesFile is written to the output directory of unpack
const CandidatesFile = "candidates.json"

type unpackOptions struct {
	base      uint32
	baseSet   bool
	variant   string
	namesFile string
}

type gameEntry struct {
	Table  string `json:"table"`
	Index  int    `json:"index"`
	Tagged int    `json:"tagged_index"`
	Name   string `json:"name"`
	File   string `json:"file"`
	Start  uint32 `json:"start"`
	Assets uint32 `json:"assets"`
}

type tempoEntry struct {
	Index    int    `json:"index"`
	ID1      uint32 `json:"id1"`
	ID2      uint32 `json:"id2"`
	Position uint32 `json:"position"`
	Padding  uint32 `json:"padding"`
}

type unpackReport struct {
	Archive string       `json:"archive"`
	OutDir  string       `json:"outdir"`
	Base    uint32       `json:"base"`
	Games   []gameEntry  `json:"games"`
	Tempos  []tempoEntry `json:"tempos"`
}

func NewUnpackCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unpack C00 OUTDIR",
		Short: "list the patched game, gate and tempo records of a C00 archive",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 2 {
				cmdFailedWithHelpNotice(cmd, "unpack needs an archive and an output directory")
			}
			base, baseSet := baseOffset.Get()
			report, err := runUnpack(mustGetEnv(cmd), args[0], args[1], unpackOptions{
				base:      base,
				baseSet:   baseSet,
				variant:   variant,
				namesFile: namesFile,
			})
			if err != nil {
				cmdFailedf(cmd, "unpack failed: %s", err)
			}
			printUnpackReport(cmd, report)
		},
	}
	cmd.Flags().VarP(&baseOffset, "base", "b", "the base offset, overrides --variant (defaults to the variant's base)")
	cmd.Flags().StringVar(&variant, "variant", "", "archive variant: rhmpatch, saltwater-us, saltwater-eu, saltwater-jp or saltwater-kr")
	cmd.Flags().StringVar(&namesFile, "names", "", "JSON name table used to label candidates")
	return cmd
}

// resolveBase picks the threshold: --base, then --variant, then the config
func resolveBase(e *Env, opts unpackOptions) (uint32, error) {
	if opts.baseSet {
		return opts.base, nil
	}
	if opts.variant != "" {
		v, err := c00.ParseVariant(opts.variant)
		if err != nil {
			return 0, err
		}
		return v.BaseOffset(), nil
	}
	return e.Config.BaseOffset()
}

func runUnpack(e *Env, archive, outdir string, opts unpackOptions) (*unpackReport, error) {
	base, err := resolveBase(e, opts)
	if err != nil {
		return nil, err
	}

	path := opts.namesFile
	if path == "" {
		path = e.Config.Archive.NamesFile
	}
	var nameTable *names.Table
	if path != "" {
		if nameTable, err = names.Load(path); err != nil {
			return nil, err
		}
	}

	input, err := fileio.OpenInput(archive)
	if err != nil {
		return nil, err
	}
	defer input.Close()

	scanner := c00.NewScanner(c00.DefaultLayout(), c00.WithLogger(e.Logger))
	found, err := scanner.Scan(input, base)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", archive, err)
	}

	if err := os.MkdirAll(outdir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	report := &unpackReport{
		Archive: archive,
		OutDir:  outdir,
		Base:    base,
		Games:   make([]gameEntry, 0, len(found.Games)),
		Tempos:  make([]tempoEntry, 0, len(found.Tempos)),
	}
	for _, c := range found.Games {
		report.Games = append(report.Games, gameEntry{
			Table:  c.Table.String(),
			Index:  c.Index,
			Tagged: c.TaggedIndex(),
			Name:   nameTable.Name(c),
			File:   nameTable.FileName(c),
			Start:  c.Start,
			Assets: c.Assets,
		})
	}
	for _, t := range found.Tempos {
		report.Tempos = append(report.Tempos, tempoEntry(t))
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	out := filepath.Join(outdir, CandidatesFile)
	if err := fileio.WriteBytesAtomic(out, append(data, '\n'), e.Config.SyncOutput()); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", out, err)
	}

	e.Logger.Info("Found %d game/gate and %d tempo candidates above %s in %s",
		len(report.Games), len(report.Tempos), hex32(base), archive)

	return report, nil
}

func printUnpackReport(cmd *cobra.Command, report *unpackReport) {
	if IsFormatJSON(cmd) {
		printJSON(cmd, report)
		return
	}

	t := newTable(cmd)
	t.SetTitle("%s (base %s)", report.Archive, hex32(report.Base))
	t.AppendHeader(table.Row{"Table", "Index", "Name", "Start", "Assets"})
	for _, g := range report.Games {
		t.AppendRow(table.Row{g.Table, fmt.Sprintf("0x%03X", g.Tagged), g.Name, hex32(g.Start), hex32(g.Assets)})
	}
	for _, tempo := range report.Tempos {
		t.AppendRow(table.Row{"tempo", fmt.Sprintf("0x%03X", tempo.Index),
			fmt.Sprintf("%08X/%08X", tempo.ID1, tempo.ID2), hex32(tempo.Position), ""})
	}
	t.AppendFooter(table.Row{"", "", "Total", len(report.Games) + len(report.Tempos), ""})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignCenter, AlignHeader: text.AlignCenter},
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignCenter},
		{Number: 3, AlignHeader: text.AlignCenter},
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignCenter},
		{Number: 5, Align: text.AlignRight, AlignHeader: text.AlignCenter},
	})
	t.Render()
}
