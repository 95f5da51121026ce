// Package concierge holds the assets compiled into the concierge binary.
package concierge

import "embed"

// TemplateFS contains the embedded HTML templates used for rendering the landing page. These templates
// are organized in a directory structure that separates layouts, pages, and partial views.
//
//go:embed templates/*
var TemplateFS embed.FS

// StaticFS contains the embedded static assets such as JavaScript and CSS files required for the landing
// page's functionality and styling.
//
//go:embed static/*
var StaticFS embed.FS

// DefaultPersona is the system instruction of the waitlist concierge.
//
//go:embed persona.md
var DefaultPersona string
