package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/praetorian-inc/atomsel/pkg/atoms"
	"github.com/praetorian-inc/atomsel/pkg/types"
	"github.com/spf13/cobra"
)

var qualityText bool

var qualityCmd = &cobra.Command{
	Use:   "quality <atom>...",
	Short: "Score atoms",
	Long: `Print the quality score of each atom and of the sequence they form.

Atoms are hex bytes where '?' masks a nibble, e.g. "4D 5A ?? 0?". With --text
each argument is taken as literal bytes instead.`,
	Example: `  atomsel quality "4D 5A 90 00" "00 00 00 00"
  atomsel quality --text AKIA ghp_`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuality,
}

func init() {
	qualityCmd.Flags().BoolVar(&qualityText, "text", false, "Treat arguments as literal text")
}

func runQuality(cmd *cobra.Command, args []string) error {
	as := make([]atoms.Atom, 0, len(args))
	for _, arg := range args {
		if qualityText {
			as = append(as, atoms.NewExactAtom(types.Latin1Bytes(arg)))
			continue
		}
		a, err := atoms.ParseAtom(arg)
		if err != nil {
			return fmt.Errorf("parsing atom %q: %w", arg, err)
		}
		as = append(as, a)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Atom\tHex\tLen\tQuality\n")
	fmt.Fprintf(w, "----\t---\t---\t-------\n")
	for _, a := range as {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", formatAtom(a), a.String(), a.Len(), a.Quality())
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nsequence: %s\n", atoms.SeqQualityOf(as))
	return nil
}
