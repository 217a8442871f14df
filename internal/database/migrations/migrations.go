// Package migrations embeds the versioned postgres schema.
package migrations

import "embed"

// Migrations holds the goose SQL files.
//
//go:embed *.sql
var Migrations embed.FS
