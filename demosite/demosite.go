// Package demosite serves a small in-memory multi-page site used by the
// driver tests and the softnav demo command. The pages exercise every
// interception path: plain links, a replace-action link, an opted-out
// navigation block, a form, a non-HTML asset, an external link, and a
// redirecting route.
package demosite

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type page struct {
	title string
	body  string
}

var pages = map[string]page{
	"/": {
		title: "Home",
		body: `<h1>Home</h1>
<nav data-softnav="false">
  <a href="/legacy">legacy app</a>
</nav>
<a href="/about">about</a>
<a href="/docs/">docs</a>
<a href="/profile" data-softnav-action="replace">profile</a>
<a href="/report.pdf">annual report</a>
<a href="https://external.example/elsewhere">elsewhere</a>
<form action="/search" method="get"><input name="q"><button>search</button></form>`,
	},
	"/about": {
		title: "About",
		body:  `<h1>About</h1><a href="/">home</a><a href="/team">team</a>`,
	},
	"/team": {
		title: "Team",
		body:  `<h1>Team</h1><a href="/about">back</a>`,
	},
	"/docs/": {
		title: "Docs",
		body:  `<h1>Docs</h1><a href="/docs/intro">intro</a><a href="/">home</a>`,
	},
	"/docs/intro": {
		title: "Docs: Intro",
		body:  `<h1>Intro</h1><a href="/docs/">up</a>`,
	},
	"/profile": {
		title: "Profile",
		body:  `<h1>Profile</h1><a href="/">home</a>`,
	},
	"/legacy": {
		title: "Legacy",
		body:  `<h1>Legacy</h1><p>Served without interception.</p>`,
	},
	"/search": {
		title: "Search",
		body:  `<h1>Search results</h1><a href="/">home</a>`,
	},
}

// Router builds the demo site handler.
func Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	for path, p := range pages {
		r.Get(path, servePage(p))
	}

	// A route that redirects, to exercise replace-on-redirect.
	r.Get("/moved", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, "/about", http.StatusFound)
	})

	// A non-HTML asset; soft navigation must never intercept it.
	r.Get("/report.pdf", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4 stub"))
	})

	return r
}

func servePage(p page) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>%s</title></head>
<body>
%s
</body>
</html>`, p.title, p.body)
	}
}
