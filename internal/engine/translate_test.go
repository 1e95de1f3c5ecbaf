package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestTranslator(url string) *GoogleTranslator {
	g := NewGoogleTranslator(url, &http.Client{Timeout: 5 * time.Second})
	g.InitialInterval = time.Millisecond
	return g
}

func TestGoogleTranslator(t *testing.T) {
	var gotTL, gotQ, gotClient string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		gotTL = r.URL.Query().Get("tl")
		gotClient = r.URL.Query().Get("client")
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		gotQ = r.PostForm.Get("q")
		w.Write([]byte(`[[["Paris is the capital. ","पेरिस राजधानी है।",null,null,10],["It is in France.","यह फ्रांस में है।",null,null,10]],null,"hi"]`))
	}))
	defer srv.Close()

	out, err := newTestTranslator(srv.URL).Translate(context.Background(), "पेरिस राजधानी है। यह फ्रांस में है।", "en")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if out != "Paris is the capital. It is in France." {
		t.Errorf("out = %q", out)
	}
	if gotTL != "en" || gotClient != "gtx" {
		t.Errorf("query tl=%q client=%q", gotTL, gotClient)
	}
	if gotQ != "पेरिस राजधानी है। यह फ्रांस में है।" {
		t.Errorf("q = %q", gotQ)
	}
}

func TestGoogleTranslatorRetriesTransient(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[[["hello","hola"]],null,"es"]`))
	}))
	defer srv.Close()

	out, err := newTestTranslator(srv.URL).Translate(context.Background(), "hola", "en")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if out != "hello" {
		t.Errorf("out = %q", out)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestGoogleTranslatorPermanentFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestTranslator(srv.URL).Translate(context.Background(), "hola", "en")
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestGoogleTranslatorSplitsLongText(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`[[["ok","x"]],null,"en"]`))
	}))
	defer srv.Close()

	text := strings.Repeat("palabra ", 700)
	out, err := newTestTranslator(srv.URL).Translate(context.Background(), text, "en")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if calls.Load() != 2 || out != "ok ok" {
		t.Errorf("calls = %d out = %q", calls.Load(), out)
	}
}

func TestParseGTXResponse(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{"segments", `[[["a","x"],["b","y"]],null,"fr"]`, "ab", false},
		{"skips odd segments", `[[null,["b","y"],[]],null,"fr"]`, "b", false},
		{"empty", `[]`, "", true},
		{"no segments", `[[],null,"fr"]`, "", true},
		{"not json", `<html>`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseGTXResponse([]byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSplitAtWords(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
		want  []string
	}{
		{"fits", "one two", 10, []string{"one two"}},
		{"word boundary", "one two three", 8, []string{"one two", "three"}},
		{"hard cut", "abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"multibyte", "नमस्ते दुनिया", 7, []string{"नमस्ते", "दुनिया"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitAtWords(tt.text, tt.limit)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("splitAtWords(%q, %d) = %q, want %q", tt.text, tt.limit, got, tt.want)
			}
		})
	}
}
