package aliasmap

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/raro-catalog/bibliofind/internal/cache"
	"github.com/raro-catalog/bibliofind/pkg/normalize"
	"github.com/raro-catalog/bibliofind/pkg/oracle"
)

// Decision is the oracle's per-entry verdict (spec.md §4.2).
type Decision string

const (
	DecisionKeep      Decision = "KEEP"
	DecisionMap       Decision = "MAP"
	DecisionAmbiguous Decision = "AMBIGUOUS"
)

// oracleDecision mirrors the oracle's JSON response shape for one
// frequency-table entry.
type oracleDecision struct {
	Decision   Decision `json:"decision"`
	Canonical  string   `json:"canonical"`
	Confidence float64  `json:"confidence"`
	Reason     string   `json:"reason"`
}

// GenerateOptions configures an offline alias-map build.
type GenerateOptions struct {
	// MinConfidence gates inclusion in the production map (default 0.85).
	MinConfidence float64
	// FieldLabel names the field the frequency table was drawn from
	// (e.g. "place", "publisher", "agent"), used in the prompt and as the
	// cache-key qualifier (see fieldCacheKey).
	FieldLabel string
}

func (o GenerateOptions) withDefaults() GenerateOptions {
	if o.MinConfidence <= 0 {
		o.MinConfidence = 0.85
	}
	if o.FieldLabel == "" {
		o.FieldLabel = "value"
	}
	return o
}

// Generate runs the offline, one-time-per-corpus alias-map construction
// (spec.md §4.2): for each distinct raw value in freqTable, ask the
// oracle for a KEEP/MAP/AMBIGUOUS decision, validate the response,
// retry once on validation failure, mark AMBIGUOUS on a second failure,
// cache every decision keyed by (field, cleaned input text), and compile
// the entries whose confidence clears MinConfidence, plus every AMBIGUOUS
// entry, into a Dictionary.
// The field qualifier in the cache key keeps two unrelated fields whose
// raw values happen to clean to the same text (e.g. a surname that is
// also a place name) from sharing a cached decision.
func Generate(ctx context.Context, o oracle.Oracle, store *cache.Store, freqTable map[string]int, opts GenerateOptions) (*Dictionary, error) {
	opts = opts.withDefaults()

	keys := make([]string, 0, len(freqTable))
	for k := range freqTable {
		keys = append(keys, k)
	}
	sort.Strings(keys) // deterministic prompt/cache ordering

	var entries []Entry
	for _, rawValue := range keys {
		cleaned := normalize.BaseClean(rawValue)
		if cleaned == "" {
			continue
		}
		cacheKey := fieldCacheKey(opts.FieldLabel, cleaned)

		var cached oracleDecision
		if hit, err := store.Get(cacheKey, &cached); err != nil {
			return nil, err
		} else if hit {
			entries = append(entries, toEntry(cleaned, cached))
			continue
		}

		decision, err := resolveDecision(ctx, o, opts.FieldLabel, rawValue, cleaned, freqTable[rawValue])
		if err != nil {
			return nil, err
		}
		if err := store.Put(cacheKey, decision); err != nil {
			return nil, err
		}
		entries = append(entries, toEntry(cleaned, decision))
	}

	return Compile(entries, opts.MinConfidence)
}

// fieldCacheKey qualifies a cleaned raw value by the field it was decided
// under, so Generate/LoadDictionary never conflate decisions across
// place/publisher/agent vocabularies even if callers share one cache file.
func fieldCacheKey(field, cleaned string) string {
	return field + "\x00" + cleaned
}

// LoadDictionary rebuilds a compiled Dictionary from every decision
// already recorded in store for field, without calling the oracle. Used
// at process startup (cmd/bibliofind) to reuse a corpus's alias map
// across runs: Generate is a one-time, offline batch job, but the
// decisions it cached need recompiling into a Dictionary each time the
// process starts.
func LoadDictionary(store *cache.Store, field string, minConfidence float64) (*Dictionary, error) {
	prefix := field + "\x00"
	var entries []Entry
	err := store.All(
		func() interface{} { return &oracleDecision{} },
		func(key string, value interface{}) error {
			cleaned, ok := strings.CutPrefix(key, prefix)
			if !ok {
				return nil
			}
			d, ok := value.(*oracleDecision)
			if !ok {
				return nil
			}
			entries = append(entries, toEntry(cleaned, *d))
			return nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("aliasmap: load dictionary: %w", err)
	}
	return Compile(entries, minConfidence)
}

func toEntry(cleaned string, d oracleDecision) Entry {
	canonical := d.Canonical
	if d.Decision == DecisionAmbiguous {
		canonical = normalize.AmbiguousSentinel
	}
	if d.Decision == DecisionKeep {
		canonical = cleaned
	}
	return Entry{RawKey: cleaned, Canonical: canonical, Confidence: d.Confidence}
}

// resolveDecision calls the oracle once, validates the response, and on
// a validation failure retries once with a repair hint; a second
// failure downgrades the entry to AMBIGUOUS rather than failing the
// whole build (spec.md §4.2: "Failed validations retried once, then
// marked AMBIGUOUS"). cleaned is the BaseClean'd form of rawValue, used
// to validate the "KEEP implies identity" rule.
func resolveDecision(ctx context.Context, o oracle.Oracle, fieldLabel, rawValue, cleaned string, frequency int) (oracleDecision, error) {
	prompt := decisionPrompt(fieldLabel, rawValue, frequency, "")
	raw, err := o.Complete(ctx, prompt)
	if err != nil {
		return oracleDecision{}, fmt.Errorf("aliasmap: oracle call failed: %w", err)
	}

	decision, verr := parseDecision(raw, cleaned)
	if verr == nil {
		return decision, nil
	}

	repairPrompt := decisionPrompt(fieldLabel, rawValue, frequency, verr.Error())
	raw, err = o.Complete(ctx, repairPrompt)
	if err != nil {
		return oracleDecision{}, fmt.Errorf("aliasmap: oracle repair call failed: %w", err)
	}

	decision, verr = parseDecision(raw, cleaned)
	if verr != nil {
		return oracleDecision{Decision: DecisionAmbiguous, Canonical: normalize.AmbiguousSentinel, Confidence: 0.0, Reason: "validation failed twice: " + verr.Error()}, nil
	}
	return decision, nil
}

// parseDecision validates the oracle's raw response against cleaned, the
// BaseClean'd form of the value under decision. cleaned enforces spec.md
// §4.2's "KEEP implies identity" rule: a KEEP decision asserts the raw
// value is already canonical, so any non-empty canonical it carries must
// equal cleaned exactly, not some other string.
func parseDecision(raw string, cleaned string) (oracleDecision, error) {
	var d oracleDecision
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &d); err != nil {
		return oracleDecision{}, fmt.Errorf("response is not valid JSON: %w", err)
	}

	switch d.Decision {
	case DecisionKeep, DecisionMap, DecisionAmbiguous:
	default:
		return oracleDecision{}, fmt.Errorf("decision %q is not one of KEEP, MAP, AMBIGUOUS", d.Decision)
	}

	if d.Canonical != strings.ToLower(d.Canonical) {
		return oracleDecision{}, fmt.Errorf("canonical %q must be lowercase ASCII", d.Canonical)
	}
	for _, r := range d.Canonical {
		if r > 127 {
			return oracleDecision{}, fmt.Errorf("canonical %q must be lowercase ASCII", d.Canonical)
		}
	}

	if d.Decision == DecisionAmbiguous && d.Canonical != "" && d.Canonical != normalize.AmbiguousSentinel {
		return oracleDecision{}, fmt.Errorf("AMBIGUOUS decision must carry the ambiguous sentinel canonical")
	}

	if d.Decision == DecisionKeep && d.Canonical != "" && d.Canonical != cleaned {
		return oracleDecision{}, fmt.Errorf("KEEP decision's canonical %q must equal the cleaned input %q (KEEP implies identity)", d.Canonical, cleaned)
	}

	if d.Confidence < 0 || d.Confidence > 1 {
		return oracleDecision{}, fmt.Errorf("confidence %v out of [0,1]", d.Confidence)
	}

	return d, nil
}

func decisionPrompt(fieldLabel, rawValue string, frequency int, repairHint string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are building an alias map for a rare-book catalog's %s field.\n", fieldLabel)
	fmt.Fprintf(&b, "Raw value: %q (seen %d times in the corpus).\n", rawValue, frequency)
	b.WriteString("Decide one of KEEP (value is already canonical), MAP (value should be replaced by a canonical form), or AMBIGUOUS (cannot be resolved safely).\n")
	b.WriteString("Respond with exactly one JSON object: {\"decision\": \"KEEP|MAP|AMBIGUOUS\", \"canonical\": \"lowercase ascii or empty\", \"confidence\": 0.0-1.0, \"reason\": \"short\"}.\n")
	if repairHint != "" {
		fmt.Fprintf(&b, "Your previous response failed validation: %s. Return only the corrected JSON object.\n", repairHint)
	}
	return b.String()
}
