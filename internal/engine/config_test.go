package engine

import (
	"strings"
	"testing"
)

func TestParseLanguages(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    string
		wantErr bool
	}{
		{"default pair", []string{"en", "hi"}, "en,hi", false},
		{"canonical case", []string{"EN", "en-us", "pt-br"}, "en,en-US,pt-BR", false},
		{"duplicates and blanks", []string{"en", " ", "EN", "hi"}, "en,hi", false},
		{"invalid", []string{"en", "not a language"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLanguages(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if s := strings.Join(got, ","); s != tt.want {
				t.Errorf("ParseLanguages(%v) = %q, want %q", tt.in, s, tt.want)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	valid := Config{
		LLMAPIKey:        "k",
		EmbeddingDim:     768,
		CaptionLanguages: []string{"en"},
		TargetLanguage:   "en",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid config: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no key", func(c *Config) { c.LLMAPIKey = "" }},
		{"zero dim", func(c *Config) { c.EmbeddingDim = 0 }},
		{"no languages", func(c *Config) { c.CaptionLanguages = nil }},
		{"no target", func(c *Config) { c.TargetLanguage = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			if err := c.Validate(); err == nil {
				t.Error("expected error")
			}
		})
	}
}
