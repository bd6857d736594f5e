package store

import (
	"database/sql"
	"log"
	"runtime"
	"strings"

	"github.com/haatos/simple-cd/internal/settings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func InitDatabase(readonly bool) *sql.DB {
	if IsPostgres() {
		db, err := sql.Open("pgx", settings.Settings.SQLiteDatabase)
		if err != nil {
			log.Fatal("fatal error opening postgres database:", err)
		}
		return db
	}

	db, err := sql.Open("sqlite", settings.Settings.SQLiteDbString(readonly))
	if err != nil {
		log.Fatal("fatal error opening sqlite database:", err)
	}

	if readonly {
		db.SetMaxOpenConns(max(4, runtime.NumCPU()))
	} else {
		if _, err := db.Exec("PRAGMA temp_store=memory"); err != nil {
			log.Fatal(err)
		}
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			log.Fatal(err)
		}
		db.SetMaxOpenConns(1)
	}

	return db
}

func IsPostgres() bool {
	return settings.Settings != nil &&
		strings.HasPrefix(settings.Settings.SQLiteDatabase, "postgres://")
}
