package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jlindqvist/chorogram/pkg/atlas"
)

// datasetsCommand creates the datasets listing command.
func (c *CLI) datasetsCommand() *cobra.Command {
	var pick bool

	cmd := &cobra.Command{
		Use:   "datasets",
		Short: "List the known datasets and granularities",
		RunE: func(cmd *cobra.Command, args []string) error {
			if pick {
				src, err := pickSource(c.Logger)
				if err != nil {
					return err
				}
				if src == nil {
					printInfo("No dataset selected")
					return nil
				}
				printSuccess("Selected %s/%s", src.Dataset, src.Granularity)
				printDetail("Render it: %s render -d %s -g %s", appName, src.Dataset, src.Granularity)
				return nil
			}

			registry := atlas.NewRegistry()
			for _, dataset := range registry.Datasets() {
				granularities := registry.Granularities(dataset)
				fmt.Println(StyleTitle.Render(dataset))
				printDetail("%s", strings.Join(granularities, ", "))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&pick, "pick", false, "pick a dataset interactively")
	return cmd
}
