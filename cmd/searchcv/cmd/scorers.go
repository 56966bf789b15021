package cmd

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/searchcv/core/model"
	ms "github.com/YuminosukeSato/searchcv/sklearn/model_selection"
)

func newScorersCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "scorers",
		Short: "List scoring names, aliases and registered estimators",
		RunE: func(cmd *cobra.Command, _ []string) error {
			resolver := ms.NewScoringResolver()
			aliases := resolver.Aliases()
			out := cmd.OutOrStdout()

			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]interface{}{
					"scorers":    resolver.Names(),
					"aliases":    aliases,
					"estimators": model.Registered(),
				})
			}

			fmt.Fprintln(out, "scorers:")
			for _, name := range resolver.Names() {
				fmt.Fprintf(out, "  %s\n", name)
			}
			keys := make([]string, 0, len(aliases))
			for k := range aliases {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintln(out, "aliases:")
			for _, k := range keys {
				fmt.Fprintf(out, "  %s -> %s\n", k, aliases[k])
			}
			fmt.Fprintln(out, "estimators:")
			for _, name := range model.Registered() {
				fmt.Fprintf(out, "  %s\n", name)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
