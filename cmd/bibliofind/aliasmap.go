package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raro-catalog/bibliofind/pkg/aliasmap"
)

var (
	aliasField         string
	aliasMinConfidence float64
)

var buildAliasMapCmd = &cobra.Command{
	Use:   "build-alias-map",
	Short: "Build the place/publisher/agent alias map for the indexed corpus",
	Long:  `Runs the one-time, offline oracle-assisted alias decision pass over every distinct raw value for --field, and caches the resulting KEEP/MAP/AMBIGUOUS decisions (spec.md §4.2). Run ingest first so the corpus has values to scan.`,
	RunE:  runBuildAliasMap,
}

func init() {
	buildAliasMapCmd.Flags().StringVar(&aliasField, "field", "place", "Field to build an alias map for: place, publisher, or agent")
	buildAliasMapCmd.Flags().Float64Var(&aliasMinConfidence, "min-confidence", defaultAliasMinConfidence, "Minimum confidence for an alias-map entry to be kept")
}

func runBuildAliasMap(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	aliasCache, err := a.aliasCacheFor(aliasField)
	if err != nil {
		return fmt.Errorf("build-alias-map: %w", err)
	}

	freq, err := rawValueFrequencies(a, aliasField)
	if err != nil {
		return fmt.Errorf("build-alias-map: %w", err)
	}
	if len(freq) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no distinct values found; run ingest first")
		return nil
	}

	// The compiled Dictionary itself isn't persisted; every process start
	// recompiles it from the cache via aliasmap.LoadDictionary, so only the
	// decisions need to survive this run.
	if _, err := aliasmap.Generate(rootCtx, a.oracle, aliasCache, freq, aliasmap.GenerateOptions{
		MinConfidence: aliasMinConfidence,
		FieldLabel:    aliasField,
	}); err != nil {
		return fmt.Errorf("build-alias-map: generate: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "built alias map for %q over %d distinct value(s)\n", aliasField, len(freq))
	return nil
}

// rawValueFrequencies counts distinct raw values for field across the
// indexed corpus, the input Generate needs to build its oracle prompts
// (spec.md §4.2); Generate visits the values in sorted order.
func rawValueFrequencies(a *app, field string) (map[string]int, error) {
	var query string
	switch field {
	case "place":
		query = `SELECT place_raw, COUNT(*) FROM imprints WHERE place_raw IS NOT NULL AND place_raw != '' GROUP BY place_raw`
	case "publisher":
		query = `SELECT publisher_raw, COUNT(*) FROM imprints WHERE publisher_raw IS NOT NULL AND publisher_raw != '' GROUP BY publisher_raw`
	case "agent":
		query = `SELECT value, COUNT(*) FROM agents WHERE value != '' GROUP BY value`
	default:
		return nil, fmt.Errorf("unknown field %q (want place, publisher, or agent)", field)
	}

	rows, err := a.bibliostore.DB().Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	freq := make(map[string]int)
	for rows.Next() {
		var val string
		var count int
		if err := rows.Scan(&val, &count); err != nil {
			return nil, err
		}
		freq[val] = count
	}
	return freq, rows.Err()
}
