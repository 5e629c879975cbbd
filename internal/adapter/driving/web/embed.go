package web

import "embed"

// StaticFS holds the embedded stylesheet and status script.
//
//go:embed static/*
var StaticFS embed.FS
