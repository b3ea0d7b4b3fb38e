// Package web holds the page templates and static assets compiled into the
// server binary.
package web

import (
	"embed"
	"html/template"
	"io/fs"
)

//go:embed templates/*.html
var TemplatesFS embed.FS

//go:embed static/*
var StaticFS embed.FS

// ParseTemplates parses every page template. index.html defines the "view"
// block that /ui/view renders on its own.
func ParseTemplates() (*template.Template, error) {
	return template.ParseFS(TemplatesFS, "templates/*.html")
}

// Static returns the asset tree rooted at static/.
func Static() (fs.FS, error) {
	return fs.Sub(StaticFS, "static")
}
