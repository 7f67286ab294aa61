package web

import (
	"embed"
)

// staticFiles holds the status monitor page.
//
//go:embed static/*
var staticFiles embed.FS
