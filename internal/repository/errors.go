// Package repository implements the MySQL-backed stores.  These sentinel
// values allow higher layers such as services to distinguish between
// different failure scenarios without inspecting driver errors.  For
// example, ErrConflict signals a uniqueness violation (duplicate email or
// slug) while ErrInvalidReference signals a foreign key that points nowhere
// (an unknown category).
package repository

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup or targeted update matches no row.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write violates a unique key.  Services
// translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrInvalidReference is returned when a write references a missing parent
// row.
var ErrInvalidReference = errors.New("invalid reference")

const (
	mysqlDuplicateEntry  = 1062
	mysqlNoReferencedRow = 1452
)

// classify maps driver errors onto the sentinels above and leaves anything
// else untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlDuplicateEntry:
			return ErrConflict
		case mysqlNoReferencedRow:
			return ErrInvalidReference
		}
	}
	return err
}
