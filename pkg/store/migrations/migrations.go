// Package migrations embeds the versioned SQL migration set applied by
// 'ggnetd migrate' against a PostgreSQL production deployment, the
// alternative to GORM's AutoMigrate that store.New uses for SQLite and
// single-node PostgreSQL setups (see pkg/store/gorm.go).
package migrations

import "embed"

// FS holds the embedded *.up.sql / *.down.sql files, read by golang-migrate's
// iofs source driver.
//
//go:embed sql/*.sql
var FS embed.FS
