package models_test

import (
	"os"
	"testing"

	"notesync/models"
)

// openTestKV opens an in-memory store for tests that don't need restarts.
func openTestKV(t *testing.T) *models.KV {
	t.Helper()
	kv, err := models.OpenKV("", "")
	if err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}
	t.Cleanup(func() { kv.Close() })
	return kv
}

func TestKVRoundTrip(t *testing.T) {
	kv := openTestKV(t)

	val := "hello"
	rec := models.LocalRecord{BaseVersion: 1, Version: 2, Value: &val}
	if err := kv.Put("k1", &rec); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	var got models.LocalRecord
	found, err := kv.Get("k1", &got)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !found {
		t.Fatal("expected key k1 to exist")
	}
	if got.BaseVersion != 1 || got.Version != 2 || got.Value == nil || *got.Value != "hello" {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestKVGetAbsent(t *testing.T) {
	kv := openTestKV(t)

	var out models.LocalRecord
	found, err := kv.Get("missing", &out)
	if err != nil {
		t.Fatalf("get of absent key errored: %v", err)
	}
	if found {
		t.Error("expected absent key to report not found")
	}
}

func TestKVDelete(t *testing.T) {
	kv := openTestKV(t)

	if err := kv.Put("k", []string{"a"}); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := kv.Delete("k"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	var out []string
	found, _ := kv.Get("k", &out)
	if found {
		t.Error("expected deleted key to be gone")
	}

	// Deleting an absent key is a no-op
	if err := kv.Delete("k"); err != nil {
		t.Errorf("delete of absent key errored: %v", err)
	}
}

func TestKVSurvivesReopen(t *testing.T) {
	path := "./test_kv_reopen.ddb"
	os.Remove(path)
	os.Remove(path + ".wal")
	defer os.Remove(path)
	defer os.Remove(path + ".wal")

	kv, err := models.OpenKV(path, "")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	if err := kv.Put("list", []string{"a", "b"}); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	kv.Close()

	kv2, err := models.OpenKV(path, "")
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer kv2.Close()

	var ids []string
	found, err := kv2.Get("list", &ids)
	if err != nil || !found {
		t.Fatalf("expected list to survive reopen (found=%v err=%v)", found, err)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("list mismatch after reopen: %v", ids)
	}
}

func TestKVEncryptedRoundTrip(t *testing.T) {
	path := "./test_kv_enc.ddb"
	os.Remove(path)
	os.Remove(path + ".wal")
	defer os.Remove(path)
	defer os.Remove(path + ".wal")

	kv, err := models.OpenKV(path, "correct horse battery staple")
	if err != nil {
		t.Fatalf("failed to open encrypted store: %v", err)
	}
	if err := kv.Put("secret", "plans"); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	kv.Close()

	// Same passphrase decrypts after reopen: the salt persisted with the file
	kv2, err := models.OpenKV(path, "correct horse battery staple")
	if err != nil {
		t.Fatalf("failed to reopen encrypted store: %v", err)
	}
	defer kv2.Close()

	var got string
	found, err := kv2.Get("secret", &got)
	if err != nil || !found {
		t.Fatalf("expected encrypted value to survive reopen (found=%v err=%v)", found, err)
	}
	if got != "plans" {
		t.Errorf("decrypted value mismatch: %q", got)
	}
}

func TestKVWrongPassphrase(t *testing.T) {
	path := "./test_kv_wrongpass.ddb"
	os.Remove(path)
	os.Remove(path + ".wal")
	defer os.Remove(path)
	defer os.Remove(path + ".wal")

	kv, err := models.OpenKV(path, "right")
	if err != nil {
		t.Fatalf("failed to open encrypted store: %v", err)
	}
	if err := kv.Put("secret", "plans"); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	kv.Close()

	kv2, err := models.OpenKV(path, "wrong")
	if err != nil {
		t.Fatalf("open with wrong passphrase should not fail at open time: %v", err)
	}
	defer kv2.Close()

	var got string
	if _, err := kv2.Get("secret", &got); err == nil {
		t.Error("expected decryption failure with wrong passphrase")
	}
}
