package persistence

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iota-uz/orgsync/modules/organization/domain/aggregates/orgunit"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"

	constraintTOOIUnique = "organization_units_tooi_identifier_key"
	constraintParentFK   = "organization_units_parent_id_fkey"
)

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

func pgNullableUUID(id *uuid.UUID) pgtype.UUID {
	if id == nil || *id == uuid.Nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: *id, Valid: true}
}

func nullableUUID(v pgtype.UUID) *uuid.UUID {
	if !v.Valid {
		return nil
	}
	u := uuid.UUID(v.Bytes)
	return &u
}

// pgNullableText stores empty strings as NULL so unique indexes ignore them.
func pgNullableText(v string) pgtype.Text {
	if v == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: v, Valid: true}
}

func nullableTime(v pgtype.Timestamptz) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

// mapPgError translates constraint violations into domain errors.
func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return orgunit.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		if pgErr.ConstraintName == constraintTOOIUnique {
			return errors.Join(orgunit.ErrDuplicateTOOI, err)
		}
		return err
	case pgForeignKeyViolation:
		if pgErr.ConstraintName == constraintParentFK {
			return errors.Join(orgunit.ErrParentNotFound, err)
		}
		return err
	case pgCheckViolation:
		if pgErr.ConstraintName == "organization_units_not_own_parent" {
			return errors.Join(orgunit.ErrCircularReference, err)
		}
		if pgErr.ConstraintName == "organization_units_not_own_successor" {
			return errors.Join(orgunit.ErrCircularSuccession, err)
		}
		return err
	default:
		return err
	}
}
