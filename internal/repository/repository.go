// Package repository holds the gorm-backed data access for the relations of
// the managed backend.
package repository

import (
	"errors"
	"strings"

	"alumninexus/server/internal/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrPairExists is returned when a direct conversation for the pair was
// created concurrently.
var ErrPairExists = errors.New("direct conversation already exists for pair")

const (
	uniqueViolation           = "23505"
	invalidTextRepresentation = "22P02"
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func isInvalidText(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == invalidTextRepresentation
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) || isInvalidText(err) {
		return apperr.NotFound(what)
	}
	return err
}

// validID reports whether id fits the uuid key columns. Anything else cannot
// name a row, so lookups answer without a round trip.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func validIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if validID(id) {
			out = append(out, id)
		}
	}
	return out
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds an ILIKE pattern matching term as a literal substring.
func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}
