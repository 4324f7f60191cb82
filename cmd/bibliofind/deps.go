package main

import (
	"fmt"
	"time"

	"github.com/raro-catalog/bibliofind/internal/cache"
	bfconfig "github.com/raro-catalog/bibliofind/internal/config"
	"github.com/raro-catalog/bibliofind/internal/store"
	"github.com/raro-catalog/bibliofind/pkg/controller"
	"github.com/raro-catalog/bibliofind/pkg/oracle"
	"github.com/raro-catalog/bibliofind/pkg/planner"
	"github.com/raro-catalog/bibliofind/pkg/session"
)

// app bundles every long-lived collaborator the serve and build-alias-map
// commands need, closed over one config load. Grounded on the teacher's
// practice (cmd/bd/main.go) of wiring storage/daemon state once in
// PersistentPreRun and reusing it across commands; here each subcommand
// builds its own app since bibliofind has no daemon/long-lived process to
// share state through.
type app struct {
	bibliostore         *store.Store
	sessions            *session.Store
	planCache           *cache.Store
	intentCache         *cache.Store
	placeAliasCache     *cache.Store
	publisherAliasCache *cache.Store
	agentAliasCache     *cache.Store
	oracle              oracle.Oracle
	compiler            *planner.Compiler
	controller          *controller.Controller
}

func (a *app) Close() {
	if a.bibliostore != nil {
		_ = a.bibliostore.Close()
	}
	if a.sessions != nil {
		_ = a.sessions.Close()
	}
	if a.planCache != nil {
		_ = a.planCache.Close()
	}
	if a.intentCache != nil {
		_ = a.intentCache.Close()
	}
	if a.placeAliasCache != nil {
		_ = a.placeAliasCache.Close()
	}
	if a.publisherAliasCache != nil {
		_ = a.publisherAliasCache.Close()
	}
	if a.agentAliasCache != nil {
		_ = a.agentAliasCache.Close()
	}
}

// aliasCacheFor returns the per-field cache the build-alias-map/ingest
// commands should use for field ("place", "publisher", or "agent").
func (a *app) aliasCacheFor(field string) (*cache.Store, error) {
	switch field {
	case "place":
		return a.placeAliasCache, nil
	case "publisher":
		return a.publisherAliasCache, nil
	case "agent":
		return a.agentAliasCache, nil
	}
	return nil, fmt.Errorf("unknown alias field %q (want place, publisher, or agent)", field)
}

// buildApp wires the full dependency graph from loaded config: the
// bibliographic store, the session store, the three append-only oracle
// caches, the shared oracle client, the plan compiler, and finally the
// conversation controller (spec.md §4.2/§4.4/§4.7/§4.8).
func buildApp(cfg *bfconfig.Config) (*app, error) {
	a := &app{}

	bib, err := store.NewStore(cfg.Storage.BibliostoreDSN)
	if err != nil {
		return nil, fmt.Errorf("open bibliostore: %w", err)
	}
	a.bibliostore = bib

	sessions, err := session.NewStore(cfg.Storage.SessionDSN)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open session store: %w", err)
	}
	a.sessions = sessions

	planCache, err := cache.Open(cfg.Storage.PlanCachePath)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open plan cache: %w", err)
	}
	a.planCache = planCache

	intentCache, err := cache.Open(cfg.Storage.IntentCachePath)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open intent cache: %w", err)
	}
	a.intentCache = intentCache

	placeAliasCache, err := cache.Open(cfg.Storage.PlaceAliasCachePath)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open place alias cache: %w", err)
	}
	a.placeAliasCache = placeAliasCache

	publisherAliasCache, err := cache.Open(cfg.Storage.PublisherAliasCachePath)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open publisher alias cache: %w", err)
	}
	a.publisherAliasCache = publisherAliasCache

	agentAliasCache, err := cache.Open(cfg.Storage.AgentAliasCachePath)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open agent alias cache: %w", err)
	}
	a.agentAliasCache = agentAliasCache

	backoffDur, err := time.ParseDuration(cfg.Oracle.InitialBackoff)
	if err != nil {
		backoffDur = time.Second
	}
	o, err := oracle.New(oracle.Config{
		APIKey:         cfg.Oracle.APIKey,
		Model:          cfg.Oracle.Model,
		MaxRetries:     cfg.Oracle.MaxRetries,
		InitialBackoff: backoffDur,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init oracle: %w", err)
	}
	a.oracle = o

	a.compiler = planner.New(a.oracle, a.planCache)
	a.controller = controller.New(a.sessions, a.bibliostore, a.compiler, a.intentCache, a.oracle)

	return a, nil
}
