package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"strinks/internal/textutil"
)

func newLookupCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <beer-id>",
		Short: "Fetch one beer from the catalog by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()
			if err := rt.openCatalog(); err != nil {
				return err
			}

			beer, err := rt.infoProvider().BeerInfo(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("lookup beer %s: %w", args[0], err)
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, beer)
			}

			rows := [][]string{
				{"ID", beer.ID},
				{"Name", beer.Name},
				{"Brewery", textutil.Cell(beer.Brewery)},
				{"Style", textutil.Cell(beer.Style)},
				{"ABV", strconv.FormatFloat(beer.ABV, 'f', 1, 64) + "%"},
				{"IBU", strconv.FormatFloat(beer.IBU, 'f', 0, 64)},
				{"Rating", textutil.RatingCell(beer.Rating)},
				{"Backend", beer.Backend},
			}
			if beer.ImageURL != "" {
				rows = append(rows, []string{"Label", beer.ImageURL})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, nil))
			return nil
		},
	}
}
