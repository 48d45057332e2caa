package location

import "testing"

func TestParseRejectsRelative(t *testing.T) {
	if _, err := Parse("/about"); err == nil {
		t.Fatal("expected error for relative URL")
	}
}

func TestResolve(t *testing.T) {
	base := MustParse("https://example.com/docs/intro")

	loc, err := Resolve(base, "/about")
	if err != nil {
		t.Fatal(err)
	}
	if got := loc.String(); got != "https://example.com/about" {
		t.Fatalf("resolve absolute path: got %q", got)
	}

	loc, err = Resolve(base, "chapter-2")
	if err != nil {
		t.Fatal(err)
	}
	if got := loc.String(); got != "https://example.com/docs/chapter-2" {
		t.Fatalf("resolve relative: got %q", got)
	}

	loc, err = Resolve(base, "https://other.example/x")
	if err != nil {
		t.Fatal(err)
	}
	if got := loc.String(); got != "https://other.example/x" {
		t.Fatalf("resolve absolute: got %q", got)
	}
}

func TestEqualIgnoresAnchor(t *testing.T) {
	a := MustParse("https://example.com/page#section-3")
	b := MustParse("https://example.com/page")

	if !a.Equal(b) {
		t.Fatal("locations differing only by anchor should be equal")
	}
	if a.Anchor() != "section-3" {
		t.Fatalf("anchor: got %q", a.Anchor())
	}
	if a.RequestURL() != "https://example.com/page" {
		t.Fatalf("request URL: got %q", a.RequestURL())
	}
}

func TestIsHTML(t *testing.T) {
	cases := []struct {
		url  string
		want bool
	}{
		{"https://example.com", true},
		{"https://example.com/", true},
		{"https://example.com/docs/", true},
		{"https://example.com/page", true},
		{"https://example.com/page.html", true},
		{"https://example.com/page.htm", true},
		{"https://example.com/report.pdf", false},
		{"https://example.com/data.json", false},
		{"https://example.com/archive.tar.gz", false},
	}
	for _, c := range cases {
		if got := MustParse(c.url).IsHTML(); got != c.want {
			t.Errorf("IsHTML(%q): got %v, want %v", c.url, got, c.want)
		}
	}
}

func TestIsPrefixedBy(t *testing.T) {
	root := MustParse("https://example.com/app/")

	cases := []struct {
		url  string
		want bool
	}{
		{"https://example.com/app", true},
		{"https://example.com/app/settings", true},
		{"https://example.com/application", false},
		{"https://example.com/other", false},
		{"https://evil.example/app/settings", false},
		{"http://example.com/app/settings", false},
	}
	for _, c := range cases {
		if got := MustParse(c.url).IsPrefixedBy(root); got != c.want {
			t.Errorf("IsPrefixedBy(%q): got %v, want %v", c.url, got, c.want)
		}
	}

	slashRoot := MustParse("https://example.com/")
	if !MustParse("https://example.com/anything").IsPrefixedBy(slashRoot) {
		t.Fatal("every same-origin path should be under /")
	}
}
