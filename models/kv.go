package models

import (
	"database/sql"
	"encoding/json"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// ============================================================================
// Durable Key-Value Store
//
// One DuckDB table maps a string key to a JSON-encoded value. The list and
// the two per-item records all live here, so a single file survives process
// restarts and the engine never needs a second persistence mechanism.
//
// Values can optionally be encrypted at rest (see cipher.go). The cipher is
// transparent to callers — Get and Put always speak plain Go values.
// ============================================================================

// Store is the durable key→JSON mapping the engine persists through.
// KV is the DuckDB-backed implementation; tests may substitute their own.
type Store interface {
	// Get unmarshals the value at key into out. Returns false when the key
	// is absent, which is a normal condition, not an error.
	Get(key string, out any) (bool, error)
	// Put stores the JSON encoding of v at key, replacing any prior value.
	Put(key string, v any) error
	// Delete removes key. Deleting an absent key is a no-op.
	Delete(key string) error
}

// KV is a DuckDB-backed Store. An empty path opens an in-memory database,
// which is how tests get a real store without touching disk.
type KV struct {
	db     *sql.DB
	cipher *valueCipher // nil when at-rest encryption is off
}

const ddlCreateKVTable = `
CREATE TABLE IF NOT EXISTS kv (
    key   VARCHAR PRIMARY KEY,
    value VARCHAR NOT NULL
);
`

// OpenKV opens (or creates) the store at path. When passphrase is non-empty,
// values are encrypted at rest with a key derived from it; the derivation
// salt is persisted in the same table so the store stays self-contained.
func OpenKV(path, passphrase string) (*KV, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, serr.Wrap(err, "failed to open store database")
	}

	if _, err = db.Exec(ddlCreateKVTable); err != nil {
		db.Close()
		return nil, serr.Wrap(err, "failed to create kv table")
	}

	kv := &KV{db: db}

	if passphrase != "" {
		cipher, err := newValueCipher(db, passphrase)
		if err != nil {
			db.Close()
			return nil, serr.Wrap(err, "failed to initialize store cipher")
		}
		kv.cipher = cipher
		logger.Info("Store encryption enabled")
	}

	return kv, nil
}

// Close releases the underlying database.
func (kv *KV) Close() error {
	return kv.db.Close()
}

// Get implements Store.
func (kv *KV) Get(key string, out any) (bool, error) {
	var raw string
	err := kv.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, serr.Wrap(err, "failed to read key "+key)
	}

	if kv.cipher != nil {
		raw, err = kv.cipher.decrypt(raw)
		if err != nil {
			return false, serr.Wrap(err, "failed to decrypt value for key "+key)
		}
	}

	if err = json.Unmarshal([]byte(raw), out); err != nil {
		return false, serr.Wrap(err, "failed to decode value for key "+key)
	}
	return true, nil
}

// Put implements Store.
func (kv *KV) Put(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return serr.Wrap(err, "failed to encode value for key "+key)
	}

	value := string(raw)
	if kv.cipher != nil {
		value, err = kv.cipher.encrypt(value)
		if err != nil {
			return serr.Wrap(err, "failed to encrypt value for key "+key)
		}
	}

	_, err = kv.db.Exec(`INSERT OR REPLACE INTO kv (key, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return serr.Wrap(err, "failed to write key "+key)
	}
	return nil
}

// Delete implements Store.
func (kv *KV) Delete(key string) error {
	if _, err := kv.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return serr.Wrap(err, "failed to delete key "+key)
	}
	return nil
}
