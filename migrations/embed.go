// Package migrations embeds the SQL schema files into the binary so the
// service migrates itself without shipping loose files.
package migrations

import (
	"embed"

	"github.com/nerrad567/device-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "." // files sit at the embedded root
}
