package translator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/text/language"

	"github.com/lehigh-university-libraries/panelator/internal/models"
)

func TestToken(t *testing.T) {
	tests := []struct {
		text     string
		expected string
	}{
		{"", "557215.963819"},
		{"hello", "670448.790148"},
		{"你好", "964583.557971"},
		{"Hello, world!", "881330.739014"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := token(tt.text); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestParseGoogleResponse(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected string
		wantErr  bool
	}{
		{
			name:     "single segment",
			body:     `[[["Hello","你好",null,null,10]],null,"zh-CN"]`,
			expected: "Hello",
		},
		{
			name:     "multiple segments",
			body:     `[[["Hello. ","你好。",null,null,10],["Bye","再见",null,null,10]],null,"zh-CN"]`,
			expected: "Hello. Bye",
		},
		{name: "empty", body: `[]`, wantErr: true},
		{name: "garbage", body: `<html>`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseGoogleResponse([]byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error %v, got %v", tt.wantErr, err)
			}
			if got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestGoogleTranslate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("tl") != "en" || q.Get("client") != "gtx" {
			t.Errorf("Unexpected query %s", r.URL.RawQuery)
		}
		if q.Get("tk") != token(q.Get("q")) {
			t.Errorf("Token does not match text")
		}
		if q.Get("q") == "坏" {
			_, _ = w.Write([]byte(`not json`))
			return
		}
		_, _ = w.Write([]byte(`[[["Hi","你好",null,null,10]]]`))
	}))
	defer server.Close()

	g := NewGoogle(language.English, nil)
	g.endpoint = server.URL
	pages := models.DocumentResult{"001.jpg": page("你好", "坏")}
	if err := g.Translate(context.Background(), pages); err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	blocks := pages["001.jpg"].Blocks
	if blocks[0].Translation != "Hi" {
		t.Errorf("Expected Hi, got %q", blocks[0].Translation)
	}
	if blocks[1].Translation != "" {
		t.Errorf("Expected empty translation for unreadable response, got %q", blocks[1].Translation)
	}
}

func TestGoogleTranslateHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	g := NewGoogle(language.English, nil)
	g.endpoint = server.URL
	err := g.Translate(context.Background(), models.DocumentResult{"001.jpg": page("你好")})
	if err == nil {
		t.Errorf("Expected error on non-200 response")
	}
}
