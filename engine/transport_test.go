package engine_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"notesync/engine"
	"notesync/models"
)

func TestExchangeRequestShape(t *testing.T) {
	var gotMethod, gotPath, gotAuth, gotType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	tr := engine.NewHTTPTransport(srv.URL, 5*time.Second, false)
	records, err := tr.Exchange(context.Background(), "tok123", nil)
	if err != nil {
		t.Fatalf("exchange failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected empty record set, got %v", records)
	}

	if gotMethod != http.MethodPost || gotPath != "/item/sync" {
		t.Errorf("request shape: %s %s", gotMethod, gotPath)
	}
	if gotAuth != "Bearer tok123" {
		t.Errorf("authorization header: %q", gotAuth)
	}
	if gotType != "application/json" {
		t.Errorf("content type: %q", gotType)
	}
	// A nil batch still ships as a JSON array, never null
	if gotBody != "[]" {
		t.Errorf("empty batch body: %q", gotBody)
	}
}

func TestExchangeBatchEncoding(t *testing.T) {
	var got []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`[{"id":"R1","ver":5,"val":"merged"}]`))
	}))
	defer srv.Close()

	tr := engine.NewHTTPTransport(srv.URL, 5*time.Second, false)
	batch := []models.SyncPayload{{ID: "R1", Ref: 3, Version: 5, Value: strPtr("mine")}}
	records, err := tr.Exchange(context.Background(), "tok", batch)
	if err != nil {
		t.Fatalf("exchange failed: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("server saw %d payloads", len(got))
	}
	p := got[0]
	if p["id"] != "R1" || p["ref"] != float64(3) || p["ver"] != float64(5) || p["val"] != "mine" {
		t.Errorf("wire payload mismatch: %v", p)
	}

	if len(records) != 1 || records[0].ID != "R1" || records[0].Version != 5 {
		t.Fatalf("parsed records mismatch: %+v", records)
	}
	if records[0].Value == nil || *records[0].Value != "merged" {
		t.Errorf("record value mismatch: %+v", records[0])
	}
}

func TestExchangeStatusClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		check  func(error) bool
	}{
		{"auth invalid", http.StatusNotFound, func(err error) bool { return errors.Is(err, engine.ErrAuthInvalid) }},
		{"rate limited", http.StatusTooManyRequests, func(err error) bool { return errors.Is(err, engine.ErrRateLimited) }},
		{"server error", http.StatusInternalServerError, func(err error) bool {
			return err != nil && !errors.Is(err, engine.ErrAuthInvalid) && !errors.Is(err, engine.ErrRateLimited)
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			tr := engine.NewHTTPTransport(srv.URL, 5*time.Second, false)
			_, err := tr.Exchange(context.Background(), "tok", nil)
			if !tc.check(err) {
				t.Errorf("status %d misclassified: %v", tc.status, err)
			}
		})
	}
}

func TestExchangeMsgpackNegotiation(t *testing.T) {
	encoded, err := models.EncodeMsgpackValue(strPtr("dense"))
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	var gotEncoding string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEncoding = r.Header.Get("X-Body-Encoding")
		json.NewEncoder(w).Encode([]models.SyncRecord{{ID: "R1", Version: 1, ValEncoded: encoded}})
	}))
	defer srv.Close()

	tr := engine.NewHTTPTransport(srv.URL, 5*time.Second, true)
	records, err := tr.Exchange(context.Background(), "tok", nil)
	if err != nil {
		t.Fatalf("exchange failed: %v", err)
	}
	if gotEncoding != "msgpack" {
		t.Errorf("encoding header: %q", gotEncoding)
	}

	// Normalize resolves the encoded value into the plain one
	if err := records[0].Normalize(); err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if records[0].Value == nil || *records[0].Value != "dense" {
		t.Errorf("decoded value mismatch: %+v", records[0])
	}
}
