package execengine

import (
	"context"
	"fmt"
	"strings"

	"github.com/raro-catalog/bibliofind/internal/store"
)

// Overview is the phase-2 aggregation result over an active subgroup
// (spec.md §4.6 "Aggregations"): count plus top-K groupings and a
// short statistical summary, computed over the subgroup's record_ids.
type Overview struct {
	Count             int            `json:"count"`
	ByCentury         map[string]int `json:"by_century"`
	TopPlaces         []CountedValue `json:"top_places"`
	TopPublishers     []CountedValue `json:"top_publishers"`
	TopSubjects       []CountedValue `json:"top_subjects"`
	EarliestYear      *int           `json:"earliest_year,omitempty"`
	LatestYear        *int           `json:"latest_year,omitempty"`
}

// CountedValue pairs a display value with its frequency within the subgroup.
type CountedValue struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

const topK = 10

// BuildOverview computes the phase-2 statistical summary over recordIDs
// (the active subgroup), used by the controller's "overview" intent
// (spec.md §4.8 dispatch table).
func BuildOverview(ctx context.Context, st *store.Store, recordIDs []string) (Overview, error) {
	ov := Overview{Count: len(recordIDs), ByCentury: map[string]int{}}
	if len(recordIDs) == 0 {
		return ov, nil
	}

	placeholders := placeholderList(len(recordIDs))
	args := toArgs(recordIDs)

	rows, err := st.DB().QueryContext(ctx,
		fmt.Sprintf(`SELECT date_start, date_end, place_display, publisher_display FROM imprints WHERE record_id IN (%s)`, placeholders),
		args...,
	)
	if err != nil {
		return Overview{}, err
	}
	defer func() { _ = rows.Close() }()

	placeCounts := map[string]int{}
	publisherCounts := map[string]int{}
	for rows.Next() {
		var start, end *int
		var place, publisher *string
		if err := rows.Scan(&start, &end, &place, &publisher); err != nil {
			return Overview{}, err
		}
		if start != nil {
			century := (*start/100)*100 + 1
			ov.ByCentury[fmt.Sprintf("%ds", century)]++
			if ov.EarliestYear == nil || *start < *ov.EarliestYear {
				ov.EarliestYear = start
			}
		}
		if end != nil && (ov.LatestYear == nil || *end > *ov.LatestYear) {
			ov.LatestYear = end
		}
		if place != nil && *place != "" {
			placeCounts[*place]++
		}
		if publisher != nil && *publisher != "" {
			publisherCounts[*publisher]++
		}
	}
	if err := rows.Err(); err != nil {
		return Overview{}, err
	}

	subjectRows, err := st.DB().QueryContext(ctx,
		fmt.Sprintf(`SELECT value FROM subjects WHERE record_id IN (%s)`, placeholders),
		args...,
	)
	if err != nil {
		return Overview{}, err
	}
	defer func() { _ = subjectRows.Close() }()

	subjectCounts := map[string]int{}
	for subjectRows.Next() {
		var value string
		if err := subjectRows.Scan(&value); err != nil {
			return Overview{}, err
		}
		subjectCounts[value]++
	}
	if err := subjectRows.Err(); err != nil {
		return Overview{}, err
	}

	ov.TopPlaces = topCounted(placeCounts, topK)
	ov.TopPublishers = topCounted(publisherCounts, topK)
	ov.TopSubjects = topCounted(subjectCounts, topK)
	return ov, nil
}

func topCounted(counts map[string]int, k int) []CountedValue {
	out := make([]CountedValue, 0, len(counts))
	for v, c := range counts {
		out = append(out, CountedValue{Value: v, Count: c})
	}
	// simple insertion sort: subgroup sizes in this domain are small
	// enough that an O(n^2) sort keeps the code straightforward.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && less(out[j], out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	if len(out) > k {
		out = out[:k]
	}
	return out
}

func less(a, b CountedValue) bool {
	if a.Count != b.Count {
		return a.Count > b.Count
	}
	return a.Value < b.Value
}

func placeholderList(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "?"
	}
	return strings.Join(parts, ", ")
}

func toArgs(ids []string) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
