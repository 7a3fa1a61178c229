// Package migrations holds the schema scripts of the sqlite store. Scripts
// are named NNNN_description.sql and applied in order of NNNN.
package migrations

import "embed"

//go:embed *.sql
var AllUp embed.FS
