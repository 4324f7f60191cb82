package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"

	"github.com/raro-catalog/bibliofind/pkg/marc"
	"github.com/raro-catalog/bibliofind/pkg/normalize"
)

// Store is the Indexer (spec.md §4.3): a mutex-guarded SQLite handle
// that upserts canonical+normalized records by record_id. On re-index
// of an existing record_id, every dependent row is deleted and
// re-inserted from the new record rather than diffed in place, which
// keeps the dependent tables always a faithful mirror of the most
// recent parse+normalize pass. Grounded on the teacher's
// internal/store/sqlite_store.go SQLiteStore wrapper, with its
// temporal-versioning scheme (version/valid_from/valid_to) dropped:
// the bibliographic corpus is re-ingested wholesale, not edited
// field-by-field, so a simple cascade-delete-and-reinsert is sufficient.
type Store struct {
	mu sync.RWMutex
	db *sql.DB
}

// NewStore opens (or creates) a SQLite database at dsn and applies the schema.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", dsn, err)
	}
	db.SetMaxOpenConns(1) // go-sqlite3 is not safe for concurrent writers across connections

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// IndexRecord upserts rec into the relational store (spec.md §4.3):
// the records row is upserted by primary key, and every dependent table
// (titles, imprints, agents, subjects, languages, notes,
// physical_descriptions) is cleared for record_id and re-inserted from
// rec's current contents. The whole operation runs in one transaction
// so a partial failure never leaves the store half-updated.
func (s *Store) IndexRecord(rec *marc.CanonicalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	mainTitle := ""
	if t, ok := rec.MainTitle(); ok {
		mainTitle = t.Value
	}

	now := time.Now().Unix()
	if _, err := tx.Exec(
		`INSERT INTO records(record_id, main_title, created_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(record_id) DO UPDATE SET main_title = excluded.main_title, updated_at = excluded.updated_at`,
		rec.RecordID, mainTitle, now, now,
	); err != nil {
		return fmt.Errorf("store: upsert records: %w", err)
	}

	if err := deleteDependents(tx, rec.RecordID); err != nil {
		return err
	}

	if err := insertTitles(tx, rec); err != nil {
		return err
	}
	if err := insertImprints(tx, rec); err != nil {
		return err
	}
	if err := insertAgents(tx, rec); err != nil {
		return err
	}
	if err := insertSubjects(tx, rec); err != nil {
		return err
	}
	if err := insertLanguages(tx, rec); err != nil {
		return err
	}
	if err := insertNotes(tx, rec); err != nil {
		return err
	}
	if err := insertPhysical(tx, rec); err != nil {
		return err
	}

	return tx.Commit()
}

func deleteDependents(tx *sql.Tx, recordID string) error {
	tables := []string{"titles", "imprints", "agents", "subjects", "languages", "notes", "physical_descriptions"}
	for _, table := range tables {
		if _, err := tx.Exec(`DELETE FROM `+table+` WHERE record_id = ?`, recordID); err != nil {
			return fmt.Errorf("store: clear %s: %w", table, err)
		}
	}
	return nil
}

func insertTitles(tx *sql.Tx, rec *marc.CanonicalRecord) error {
	for _, t := range rec.Titles {
		prov, err := json.Marshal(t.Sources)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			`INSERT INTO titles(record_id, type, value, value_norm, provenance) VALUES (?, ?, ?, ?, ?)`,
			rec.RecordID, string(t.Type), t.Value, normalize.BaseClean(t.Value), string(prov),
		); err != nil {
			return fmt.Errorf("store: insert title: %w", err)
		}
	}
	return nil
}

func insertImprints(tx *sql.Tx, rec *marc.CanonicalRecord) error {
	for _, imp := range rec.Imprints {
		prov, err := json.Marshal(imp.SourceTags)
		if err != nil {
			return err
		}

		var n marc.ImprintNorm
		if imp.Norm != nil {
			n = *imp.Norm
		}

		if _, err := tx.Exec(
			`INSERT INTO imprints(
				record_id, occurrence, date_raw, place_raw, publisher_raw, manufacturer_raw,
				country_code, country_name,
				date_start, date_end, date_label, date_confidence, date_method,
				place_norm, place_display, place_confidence, place_method,
				publisher_norm, publisher_display, publisher_confidence, publisher_method,
				provenance
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.RecordID, imp.Occurrence, imp.DateRaw, imp.PlaceRaw, imp.PublisherRaw, imp.ManufacturerRaw,
			nullString(imp.CountryCode), nullString(n.CountryName),
			nullInt(n.DateStart), nullInt(n.DateEnd), nullString(n.DateLabel), n.DateConfidence, nullString(n.DateMethod),
			nullString(n.PlaceNorm), nullString(n.PlaceDisplay), n.PlaceConfidence, nullString(n.PlaceMethod),
			nullString(n.PublisherNorm), nullString(n.PublisherDisplay), n.PubConfidence, nullString(n.PubMethod),
			string(prov),
		); err != nil {
			return fmt.Errorf("store: insert imprint: %w", err)
		}
	}
	return nil
}

func insertAgents(tx *sql.Tx, rec *marc.CanonicalRecord) error {
	for _, ag := range rec.Agents {
		prov, err := json.Marshal(ag.Sources)
		if err != nil {
			return err
		}

		var n marc.AgentNorm
		if ag.Norm != nil {
			n = *ag.Norm
		}

		if _, err := tx.Exec(
			`INSERT INTO agents(
				record_id, agent_index, agent_type, value, role_raw, role_source, authority_uri,
				agent_norm, agent_confidence, agent_method,
				role_norm, role_confidence, role_method,
				provenance
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.RecordID, ag.AgentIndex, string(ag.AgentType), ag.Value, nullString(ag.RoleRaw), string(ag.RoleSource), nullString(ag.AuthorityURI),
			nullString(n.AgentNorm), n.AgentConf, nullString(n.AgentMethod),
			nullString(n.RoleNorm), n.RoleConf, nullString(n.RoleMethod),
			string(prov),
		); err != nil {
			return fmt.Errorf("store: insert agent: %w", err)
		}
	}
	return nil
}

func insertSubjects(tx *sql.Tx, rec *marc.CanonicalRecord) error {
	for _, sub := range rec.Subjects {
		prov, err := json.Marshal(sub.Sources)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			`INSERT INTO subjects(record_id, value, value_norm, source_tag, scheme, heading_lang, authority_uri, provenance)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.RecordID, sub.Value, normalize.BaseClean(sub.Value), sub.SourceTag, nullString(sub.Scheme), nullString(sub.HeadingLang), nullString(sub.AuthorityURI), string(prov),
		); err != nil {
			return fmt.Errorf("store: insert subject: %w", err)
		}
	}
	return nil
}

func insertLanguages(tx *sql.Tx, rec *marc.CanonicalRecord) error {
	for _, lang := range rec.Languages {
		prov, err := json.Marshal(lang.Source)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			`INSERT INTO languages(record_id, code, provenance) VALUES (?, ?, ?)`,
			rec.RecordID, lang.Code, string(prov),
		); err != nil {
			return fmt.Errorf("store: insert language: %w", err)
		}
	}
	return nil
}

func insertNotes(tx *sql.Tx, rec *marc.CanonicalRecord) error {
	for _, n := range rec.Notes {
		prov, err := json.Marshal(n.Source)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			`INSERT INTO notes(record_id, value, provenance) VALUES (?, ?, ?)`,
			rec.RecordID, n.Value, string(prov),
		); err != nil {
			return fmt.Errorf("store: insert note: %w", err)
		}
	}
	return nil
}

func insertPhysical(tx *sql.Tx, rec *marc.CanonicalRecord) error {
	for _, p := range rec.Physical {
		prov, err := json.Marshal(p.Source)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			`INSERT INTO physical_descriptions(record_id, value, provenance) VALUES (?, ?, ?)`,
			rec.RecordID, p.Value, string(prov),
		); err != nil {
			return fmt.Errorf("store: insert physical description: %w", err)
		}
	}
	return nil
}

// DeleteRecord removes a record_id and all of its dependent rows.
func (s *Store) DeleteRecord(recordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := deleteDependents(tx, recordID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM records WHERE record_id = ?`, recordID); err != nil {
		return fmt.Errorf("store: delete record: %w", err)
	}
	return tx.Commit()
}

// RecordCount returns the number of indexed records.
func (s *Store) RecordCount() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM records`).Scan(&n)
	return n, err
}

// DB exposes the underlying handle for read-only query packages
// (pkg/exec) that build their own SQL against the schema above.
func (s *Store) DB() *sql.DB {
	return s.db
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
