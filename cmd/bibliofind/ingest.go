package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/raro-catalog/bibliofind/pkg/aliasmap"
	"github.com/raro-catalog/bibliofind/pkg/ingestpool"
	"github.com/raro-catalog/bibliofind/pkg/marc"
	"github.com/raro-catalog/bibliofind/pkg/normalize"
)

const defaultAliasMinConfidence = 0.85

// ingestBatchSize bounds how many raw records are parsed+normalized
// together before their writes are serialized through the store
// (spec.md §5: bounded worker pool for bulk offline indexing).
const ingestBatchSize = 200

var ingestWorkers int

var ingestCmd = &cobra.Command{
	Use:   "ingest [marc-file ...]",
	Short: "Parse, normalize, and index a MARC21 corpus",
	Long:  `Reads one or more ISO 2709 MARC files, parses and normalizes records in parallel, and upserts them into the bibliographic store (spec.md §4.1/§4.2/§4.3/§5).`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().IntVar(&ingestWorkers, "workers", 4, "Number of concurrent parse+normalize workers")
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	aliases, err := loadAliases(a)
	if err != nil {
		return err
	}

	var total, failed int
	for _, path := range args {
		n, f, err := ingestFile(cmd, a, aliases, path)
		if err != nil {
			return fmt.Errorf("ingest %s: %w", path, err)
		}
		total += n
		failed += f
	}

	fmt.Fprintf(cmd.OutOrStdout(), "ingested %d record(s), %d failed\n", total, failed)
	return nil
}

// loadAliases recompiles the place/publisher/agent alias dictionaries
// from their independent caches, so the Normalizer benefits from any
// alias map already built by build-alias-map (spec.md §4.2). Each field
// gets its own Dictionary: their raw vocabularies are unrelated, and a
// cleaned value that collides across fields (e.g. a place name that is
// also a surname) must not have one field's decision applied to another.
func loadAliases(a *app) (normalize.Aliases, error) {
	place, err := aliasmap.LoadDictionary(a.placeAliasCache, "place", defaultAliasMinConfidence)
	if err != nil {
		return normalize.Aliases{}, err
	}
	publisher, err := aliasmap.LoadDictionary(a.publisherAliasCache, "publisher", defaultAliasMinConfidence)
	if err != nil {
		return normalize.Aliases{}, err
	}
	agent, err := aliasmap.LoadDictionary(a.agentAliasCache, "agent", defaultAliasMinConfidence)
	if err != nil {
		return normalize.Aliases{}, err
	}
	return normalize.Aliases{Place: place, Publisher: publisher, Agent: agent}, nil
}

func ingestFile(cmd *cobra.Command, a *app, aliases normalize.Aliases, path string) (ingested, failed int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	pool := ingestpool.New(ingestWorkers)
	rd := marc.NewReader(f)

	for {
		if rootCtx.Err() != nil {
			return ingested, failed, rootCtx.Err()
		}

		batch, readErr := readBatch(rd, ingestBatchSize)

		n, nFailed := parseNormalizeIndex(cmd, a, pool, aliases, path, batch)
		ingested += n
		failed += nFailed

		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return ingested, failed, readErr
		}
	}
	return ingested, failed, nil
}

// readBatch reads up to n raw records from rd, stopping early (with
// io.EOF or another read error) if the stream ends first.
func readBatch(rd *marc.Reader, n int) ([]*marc.RawRecord, error) {
	batch := make([]*marc.RawRecord, 0, n)
	for i := 0; i < n; i++ {
		raw, err := rd.Next()
		if err != nil {
			return batch, err
		}
		batch = append(batch, raw)
	}
	return batch, nil
}

// parseNormalizeIndex fans batch out across the worker pool for
// parsing+normalization, then serializes every successful result's
// write through the bibliographic store (SQLite's single-writer
// semantics mean this stage gains nothing from parallelism; spec.md §5).
func parseNormalizeIndex(cmd *cobra.Command, a *app, pool *ingestpool.Pool, aliases normalize.Aliases, path string, batch []*marc.RawRecord) (ingested, failed int) {
	if len(batch) == 0 {
		return 0, 0
	}

	results := ingestpool.Run(rootCtx, pool, batch, func(ctx context.Context, raw *marc.RawRecord) (*marc.CanonicalRecord, error) {
		rec, err := marc.Parse(raw)
		if err != nil {
			return nil, err
		}
		normalize.Record(rec, aliases)
		return rec, nil
	})

	for r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "parse error in %s: %v\n", path, r.Err)
			continue
		}

		if err := a.bibliostore.IndexRecord(r.Value); err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "index error for %s: %v\n", r.Value.RecordID, err)
			continue
		}
		ingested++
	}
	return ingested, failed
}
