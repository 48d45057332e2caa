package demosite

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func get(t *testing.T, srv *httptest.Server, path string) (*http.Response, string) {
	t.Helper()
	resp, err := srv.Client().Get(srv.URL + path)
	if err != nil {
		t.Fatal(err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	return resp, string(body)
}

func TestPagesServeHTML(t *testing.T) {
	srv := httptest.NewServer(Router())
	t.Cleanup(srv.Close)

	for _, path := range []string{"/", "/about", "/team", "/docs/", "/docs/intro", "/profile"} {
		resp, body := get(t, srv, path)
		if resp.StatusCode != 200 {
			t.Fatalf("%s: status %d", path, resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Fatalf("%s: content type %q", path, ct)
		}
		if !strings.Contains(body, "<title>") {
			t.Fatalf("%s: no title in %q", path, body)
		}
	}
}

func TestAssetIsNotHTML(t *testing.T) {
	srv := httptest.NewServer(Router())
	t.Cleanup(srv.Close)

	resp, _ := get(t, srv, "/report.pdf")
	if ct := resp.Header.Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("content type: %q", ct)
	}
}

func TestMovedRedirects(t *testing.T) {
	srv := httptest.NewServer(Router())
	t.Cleanup(srv.Close)

	resp, body := get(t, srv, "/moved")
	if resp.StatusCode != 200 {
		t.Fatalf("status after redirect: %d", resp.StatusCode)
	}
	if !strings.Contains(body, "About") {
		t.Fatalf("redirect target: %q", body)
	}
}

func TestHomeExercisesEveryPolicyPath(t *testing.T) {
	srv := httptest.NewServer(Router())
	t.Cleanup(srv.Close)

	_, body := get(t, srv, "/")
	for _, want := range []string{
		`data-softnav="false"`,
		`data-softnav-action="replace"`,
		`href="/report.pdf"`,
		`https://external.example`,
		`<form action="/search"`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("home page missing %q", want)
		}
	}
}
