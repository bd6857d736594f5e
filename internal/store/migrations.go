package store

import (
	"database/sql"
	"log"
	"path"

	assets "github.com/haatos/simple-cd"
	"github.com/pressly/goose/v3"
)

// RunMigrations applies the embedded goose migrations for the dialect the
// DSN selects. Each dialect carries its own DDL because the auto-increment
// primary key syntax differs between sqlite and postgres.
func RunMigrations(db *sql.DB, dir string) {
	goose.SetBaseFS(assets.MigrationsFS)
	dialect := "sqlite"
	if IsPostgres() {
		dialect = "postgres"
	}
	if err := goose.SetDialect(dialect); err != nil {
		log.Fatal(err)
	}
	if err := goose.Up(db, migrationsDir(dir)); err != nil {
		log.Fatal(err)
	}
}

func migrationsDir(base string) string {
	if IsPostgres() {
		return path.Join(base, "postgres")
	}
	return path.Join(base, "sqlite")
}
