package model

import "github.com/google/uuid"

// assignID fills a missing primary key before insert. Postgres could default
// the column, but the same models also run on SQLite in tests.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
