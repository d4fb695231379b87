package encoding

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

type volume struct {
	Volume int  `json:"volume"`
	Muted  bool `json:"muted"`
}

func TestNegotiateContentType(t *testing.T) {
	tests := []struct {
		name         string
		acceptHeader string
		expectedType string
	}{
		{name: "empty accept defaults to json", acceptHeader: "", expectedType: ContentTypeJSON},
		{name: "explicit msgpack", acceptHeader: "application/msgpack", expectedType: ContentTypeMsgpack},
		{name: "explicit json", acceptHeader: "application/json", expectedType: ContentTypeJSON},
		{name: "wildcard", acceptHeader: "*/*", expectedType: ContentTypeJSON},
		{name: "msgpack among others", acceptHeader: "application/json;q=0.9, application/msgpack", expectedType: ContentTypeMsgpack},
		{name: "unknown type", acceptHeader: "application/xml", expectedType: ContentTypeJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/status", nil)
			if tt.acceptHeader != "" {
				req.Header.Set("Accept", tt.acceptHeader)
			}
			if got := NegotiateContentType(req); got != tt.expectedType {
				t.Errorf("expected content type %s, got %s", tt.expectedType, got)
			}
		})
	}
}

func TestWrite_UsesJSONTagsForMsgpack(t *testing.T) {
	req := httptest.NewRequest("GET", "/status", nil)
	req.Header.Set("Accept", ContentTypeMsgpack)
	w := httptest.NewRecorder()

	if err := Write(w, req, http.StatusAccepted, volume{Volume: 40, Muted: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.Code != http.StatusAccepted {
		t.Errorf("expected status 202, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != ContentTypeMsgpack {
		t.Errorf("expected Content-Type %s, got %s", ContentTypeMsgpack, ct)
	}

	var out map[string]any
	if err := msgpack.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if _, ok := out["volume"]; !ok {
		t.Errorf("expected json tag names in msgpack body, got %v", out)
	}
}

func TestWrite_DefaultsToJSON(t *testing.T) {
	req := httptest.NewRequest("GET", "/status", nil)
	w := httptest.NewRecorder()

	if err := Write(w, req, http.StatusOK, volume{Volume: 10}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ct := w.Header().Get("Content-Type"); ct != ContentTypeJSON {
		t.Errorf("expected Content-Type %s, got %s", ContentTypeJSON, ct)
	}
	if !strings.Contains(w.Body.String(), `"volume":10`) {
		t.Errorf("unexpected body %s", w.Body.String())
	}
}

func TestRead(t *testing.T) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(volume{Volume: 55, Muted: true}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name        string
		contentType string
		body        []byte
	}{
		{name: "msgpack", contentType: ContentTypeMsgpack, body: buf.Bytes()},
		{name: "json", contentType: "application/json; charset=utf-8", body: []byte(`{"volume":55,"muted":true}`)},
		{name: "no content type", contentType: "", body: []byte(`{"volume":55,"muted":true}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/v1/volume", bytes.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			var out volume
			if err := Read(req, &out); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if out.Volume != 55 || !out.Muted {
				t.Errorf("unexpected value %+v", out)
			}
		})
	}
}

func TestRead_Malformed(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/v1/volume", strings.NewReader("{"))
	var out volume
	if err := Read(req, &out); err == nil {
		t.Error("expected error for truncated json")
	}
}
