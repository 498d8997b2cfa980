package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestFetchExtractsArticleParagraphs(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`
		<html>
		  <head><script>var tracking = true;</script></head>
		  <body>
		    <nav>Home | World | Tech</nav>
		    <article>
		      <p>The central bank held rates steady.</p>
		      <p>Inflation   slowed to 2.1% in July.</p>
		    </article>
		    <footer>All rights reserved.</footer>
		  </body>
		</html>`))
	}))
	defer server.Close()

	e := New(server.Client())
	text, err := e.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}

	want := "The central bank held rates steady.\nInflation slowed to 2.1% in July."
	if text != want {
		t.Fatalf("unexpected text:\n%q\nwant:\n%q", text, want)
	}
	if strings.Contains(text, "tracking") || strings.Contains(text, "Home |") {
		t.Fatalf("boilerplate leaked into text: %q", text)
	}
}

func TestFetchFallsBackToBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><div>Plain text without paragraph tags.</div></body></html>`))
	}))
	defer server.Close()

	e := New(server.Client())
	text, err := e.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if !strings.Contains(text, "Plain text without paragraph tags.") {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestFetchSkipsNonHTML(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4"))
	}))
	defer server.Close()

	e := New(server.Client())
	text, err := e.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if text != "" {
		t.Fatalf("expected empty text for non-html, got %q", text)
	}
}

func TestFetchErrorsOnBadStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	e := New(server.Client())
	if _, err := e.Fetch(context.Background(), server.URL); err == nil {
		t.Fatal("expected error for 403 response")
	}
}
