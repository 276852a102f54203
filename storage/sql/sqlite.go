package sql

import (
	"database/sql"

	"github.com/mattn/go-sqlite3"
	"golang.org/x/text/cases"
)

const (
	sqliteDriver = "sqlite3_rubix"
	sqliteFold   = "rubix_fold"
)

// SQLite's LOWER only folds ASCII, so searches go through a registered Unicode fold.
func init() {
	sql.Register(sqliteDriver, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc(sqliteFold, foldText, true)
		},
	})
}

func foldText(s string) string {
	return cases.Fold().String(s)
}
