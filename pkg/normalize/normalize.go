// Package normalize attaches normalized dates, places, publishers,
// agents, and roles to parsed records (spec.md §4.2). Every attachment
// carries a confidence score and a method tag; raw values are never
// overwritten. The pipeline is read-only and streams lazily over its
// input sequence, mirroring the Parser's iterator shape.
package normalize

import "github.com/raro-catalog/bibliofind/pkg/marc"

// Aliases groups the alias lookups the Normalizer consults. A corpus
// with no alias map yet (before the offline build has run) can pass
// Aliases{} and every field falls back to base_clean.
type Aliases struct {
	Place     AliasLookup
	Publisher AliasLookup
	Agent     AliasLookup
}

func (a Aliases) placeLookup() AliasLookup {
	if a.Place != nil {
		return a.Place
	}
	return NoAliasLookup
}

func (a Aliases) publisherLookup() AliasLookup {
	if a.Publisher != nil {
		return a.Publisher
	}
	return NoAliasLookup
}

func (a Aliases) agentLookup() AliasLookup {
	if a.Agent != nil {
		return a.Agent
	}
	return NoAliasLookup
}

// Record attaches normalization results to every imprint and agent on
// rec in place. rec.Warnings accumulates a note for any ambiguous hit
// so the debug channel surfaces it without failing the record.
func Record(rec *marc.CanonicalRecord, aliases Aliases) {
	for i := range rec.Imprints {
		normalizeImprint(&rec.Imprints[i], aliases, rec)
	}
	for i := range rec.Agents {
		normalizeAgent(&rec.Agents[i], aliases, rec)
	}
}

func normalizeImprint(imp *marc.Imprint, aliases Aliases, rec *marc.CanonicalRecord) {
	date := NormalizeDate(imp.DateRaw)
	place := NormalizeKeyed(imp.PlaceRaw, aliases.placeLookup())
	publisher := NormalizeKeyed(imp.PublisherRaw, aliases.publisherLookup())

	if place.Ambiguous {
		warn(rec, "normalize", "imprint place normalized to ambiguous: "+imp.PlaceRaw)
	}
	if publisher.Ambiguous {
		warn(rec, "normalize", "imprint publisher normalized to ambiguous: "+imp.PublisherRaw)
	}

	imp.Norm = &marc.ImprintNorm{
		DateStart:        date.Start,
		DateEnd:          date.End,
		DateLabel:        date.Label,
		DateConfidence:   date.Confidence,
		DateMethod:       date.Method,
		PlaceNorm:        place.Norm,
		PlaceDisplay:     place.Display,
		PlaceConfidence:  place.Confidence,
		PlaceMethod:      place.Method,
		PublisherNorm:    publisher.Norm,
		PublisherDisplay: publisher.Display,
		PubConfidence:    publisher.Confidence,
		PubMethod:        publisher.Method,
		CountryName:      CountryName(imp.CountryCode),
	}
}

func normalizeAgent(ag *marc.Agent, aliases Aliases, rec *marc.CanonicalRecord) {
	agentKey := NormalizeKeyed(ag.Value, aliases.agentLookup())
	role := NormalizeRole(ag.RoleRaw, string(ag.RoleSource))

	notes := ""
	if agentKey.Ambiguous {
		notes = "agent value ambiguous in alias map"
		warn(rec, "normalize", "agent normalized to ambiguous: "+ag.Value)
	}

	ag.Norm = &marc.AgentNorm{
		AgentNorm:   agentKey.Norm,
		AgentConf:   agentKey.Confidence,
		AgentMethod: agentKey.Method,
		AgentNotes:  notes,
		RoleNorm:    string(role.Role),
		RoleConf:    role.Confidence,
		RoleMethod:  role.Method,
	}
}

func warn(rec *marc.CanonicalRecord, stage, msg string) {
	rec.Warnings = append(rec.Warnings, marc.Warning{Stage: stage, Message: msg})
}
