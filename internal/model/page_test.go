package model

import (
	"io"
	"net/http"
	"testing"
)

// TestPageComputeHash tests the ComputeHash method.
func TestPageComputeHash(t *testing.T) {
	t.Parallel()

	t.Run("computes SHA256 hash of raw content", func(t *testing.T) {
		t.Parallel()

		page := &Page{
			Raw: []byte("Hello, World!"),
		}
		page.ComputeHash()

		expected := "dffd6021bb2bd5b0af676290809ec3a53191dd81c7f70a4b28688a362182986f"
		if page.Hash != expected {
			t.Errorf("got %q, expected %q", page.Hash, expected)
		}
	})

	t.Run("empty content produces empty hash", func(t *testing.T) {
		t.Parallel()

		page := &Page{Raw: []byte{}}
		page.ComputeHash()

		if page.Hash != "" {
			t.Errorf("expected empty hash, got %q", page.Hash)
		}
	})
}

// TestNewPage tests page construction from a response.
func TestNewPage(t *testing.T) {
	t.Parallel()

	headers := http.Header{}
	headers.Set("Content-Type", "text/html; charset=utf-8")

	page := NewPage("http://example.gov/a.html", http.StatusOK, headers, []byte("<html></html>"))

	if page.ContentType != "text/html; charset=utf-8" {
		t.Errorf("unexpected content type %q", page.ContentType)
	}
	if page.Hash == "" {
		t.Error("expected hash to be computed")
	}
	if page.GetHeader("content-type") != "text/html; charset=utf-8" {
		t.Error("expected header lookup to be case-insensitive")
	}

	body, err := io.ReadAll(page.Body())
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	if string(body) != "<html></html>" {
		t.Errorf("unexpected body %q", body)
	}
}

// TestPageIsHTML tests content type detection.
func TestPageIsHTML(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		contentType string
		want        bool
	}{
		{"html", "text/html", true},
		{"html with charset", "text/html; charset=ISO-8859-1", true},
		{"xhtml", "application/xhtml+xml", true},
		{"missing content type", "", true},
		{"json", "application/json", false},
		{"pdf", "application/pdf", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			page := &Page{ContentType: tt.contentType}
			if got := page.IsHTML(); got != tt.want {
				t.Errorf("IsHTML() = %v, want %v", got, tt.want)
			}
		})
	}
}
