// cmd/keys.go
package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rjlutz/CCSCGoertzel/internal/keypad"
)

func newKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "Print the keypad layout with row and column frequencies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)

			fmt.Fprint(w, "Hz")
			for _, col := range keypad.ColumnFrequencies() {
				fmt.Fprintf(w, "\t%.0f", col)
			}
			fmt.Fprintln(w)

			for r, row := range keypad.RowFrequencies() {
				fmt.Fprintf(w, "%.0f", row)
				for c := 0; c < keypad.Columns; c++ {
					k, _ := keypad.At(r, c)
					fmt.Fprintf(w, "\t%s", k)
				}
				fmt.Fprintln(w)
			}
			return w.Flush()
		},
	}
}
