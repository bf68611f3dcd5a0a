// Package web holds the page templates and static assets compiled into the
// jizhang binary.
package web

import "embed"

// TemplatesFS holds index.html and the overview partial.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds app.js and style.css, served under /static/.
//
//go:embed static/*
var StaticFS embed.FS
