// Package store is the Indexer: it writes canonical+normalized records
// into a relational SQLite store with FTS shadow tables for titles and
// subjects (spec.md §4.3). The driver and upsert-by-id pattern are
// grounded on the teacher's internal/store/sqlite_store.go SQLiteStore.
package store

// schema defines the relational tables plus their FTS5 shadows and sync
// triggers (spec.md §4.3). Confidence columns are constrained to [0,1];
// agent_type is constrained to the enumerated set.
const schema = `
CREATE TABLE IF NOT EXISTS records (
	record_id TEXT PRIMARY KEY,
	main_title TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS titles (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	record_id TEXT NOT NULL REFERENCES records(record_id),
	type TEXT NOT NULL CHECK (type IN ('main','uniform','variant')),
	value TEXT NOT NULL,
	value_norm TEXT NOT NULL,
	provenance TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_titles_record ON titles(record_id);
CREATE INDEX IF NOT EXISTS idx_titles_value ON titles(value_norm);

CREATE VIRTUAL TABLE IF NOT EXISTS titles_fts USING fts5(
	value, content='titles', content_rowid='id'
);
CREATE TRIGGER IF NOT EXISTS titles_ai AFTER INSERT ON titles BEGIN
	INSERT INTO titles_fts(rowid, value) VALUES (new.id, new.value);
END;
CREATE TRIGGER IF NOT EXISTS titles_ad AFTER DELETE ON titles BEGIN
	INSERT INTO titles_fts(titles_fts, rowid, value) VALUES ('delete', old.id, old.value);
END;
CREATE TRIGGER IF NOT EXISTS titles_au AFTER UPDATE ON titles BEGIN
	INSERT INTO titles_fts(titles_fts, rowid, value) VALUES ('delete', old.id, old.value);
	INSERT INTO titles_fts(rowid, value) VALUES (new.id, new.value);
END;

CREATE TABLE IF NOT EXISTS imprints (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	record_id TEXT NOT NULL REFERENCES records(record_id),
	occurrence INTEGER NOT NULL,
	date_raw TEXT, place_raw TEXT, publisher_raw TEXT, manufacturer_raw TEXT,
	country_code TEXT, country_name TEXT,
	date_start INTEGER, date_end INTEGER, date_label TEXT,
	date_confidence REAL CHECK (date_confidence BETWEEN 0 AND 1), date_method TEXT,
	place_norm TEXT, place_display TEXT,
	place_confidence REAL CHECK (place_confidence BETWEEN 0 AND 1), place_method TEXT,
	publisher_norm TEXT, publisher_display TEXT,
	publisher_confidence REAL CHECK (publisher_confidence BETWEEN 0 AND 1), publisher_method TEXT,
	provenance TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_imprints_record ON imprints(record_id);
CREATE INDEX IF NOT EXISTS idx_imprints_place ON imprints(place_norm);
CREATE INDEX IF NOT EXISTS idx_imprints_publisher ON imprints(publisher_norm);
CREATE INDEX IF NOT EXISTS idx_imprints_dates ON imprints(date_start, date_end);
CREATE INDEX IF NOT EXISTS idx_imprints_country ON imprints(country_code, country_name);

CREATE TABLE IF NOT EXISTS agents (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	record_id TEXT NOT NULL REFERENCES records(record_id),
	agent_index INTEGER NOT NULL,
	agent_type TEXT NOT NULL CHECK (agent_type IN ('personal','corporate','meeting')),
	value TEXT NOT NULL,
	role_raw TEXT, role_source TEXT,
	authority_uri TEXT,
	agent_norm TEXT,
	agent_confidence REAL CHECK (agent_confidence BETWEEN 0 AND 1), agent_method TEXT,
	role_norm TEXT,
	role_confidence REAL CHECK (role_confidence BETWEEN 0 AND 1), role_method TEXT,
	provenance TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_agents_record ON agents(record_id);
CREATE INDEX IF NOT EXISTS idx_agents_norm_role ON agents(agent_norm, role_norm);
CREATE INDEX IF NOT EXISTS idx_agents_type ON agents(agent_type);

CREATE TABLE IF NOT EXISTS subjects (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	record_id TEXT NOT NULL REFERENCES records(record_id),
	value TEXT NOT NULL,
	value_norm TEXT NOT NULL,
	source_tag TEXT, scheme TEXT, heading_lang TEXT, authority_uri TEXT,
	provenance TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_subjects_record ON subjects(record_id);
CREATE INDEX IF NOT EXISTS idx_subjects_value ON subjects(value_norm);

CREATE VIRTUAL TABLE IF NOT EXISTS subjects_fts USING fts5(
	value, content='subjects', content_rowid='id'
);
CREATE TRIGGER IF NOT EXISTS subjects_ai AFTER INSERT ON subjects BEGIN
	INSERT INTO subjects_fts(rowid, value) VALUES (new.id, new.value);
END;
CREATE TRIGGER IF NOT EXISTS subjects_ad AFTER DELETE ON subjects BEGIN
	INSERT INTO subjects_fts(subjects_fts, rowid, value) VALUES ('delete', old.id, old.value);
END;
CREATE TRIGGER IF NOT EXISTS subjects_au AFTER UPDATE ON subjects BEGIN
	INSERT INTO subjects_fts(subjects_fts, rowid, value) VALUES ('delete', old.id, old.value);
	INSERT INTO subjects_fts(rowid, value) VALUES (new.id, new.value);
END;

CREATE TABLE IF NOT EXISTS languages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	record_id TEXT NOT NULL REFERENCES records(record_id),
	code TEXT NOT NULL,
	provenance TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_languages_record ON languages(record_id);
CREATE INDEX IF NOT EXISTS idx_languages_code ON languages(code);

CREATE TABLE IF NOT EXISTS notes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	record_id TEXT NOT NULL REFERENCES records(record_id),
	value TEXT NOT NULL,
	provenance TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notes_record ON notes(record_id);

CREATE TABLE IF NOT EXISTS physical_descriptions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	record_id TEXT NOT NULL REFERENCES records(record_id),
	value TEXT NOT NULL,
	provenance TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_physical_record ON physical_descriptions(record_id);
`
