package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iota-uz/orgsync/modules/organization/domain/aggregates/orgunit"
	"github.com/iota-uz/orgsync/pkg/composables"
)

// ancestorMaxDepth bounds the recursive walk in case a cycle slipped into the table.
const ancestorMaxDepth = 64

const unitColumns = `
	u.id,
	u.name,
	u.label,
	u.abbreviations,
	u.organization_type,
	u.tooi_identifier,
	u.oin_number,
	u.system_id,
	u.source_url,
	u.related_ministry_tooi,
	u.parent_id,
	u.successor_id,
	u.is_active,
	u.previous_names,
	u.deleted_at,
	u.created_at,
	u.updated_at`

type OrgUnitRepository struct{}

func NewOrgUnitRepository() orgunit.Repository {
	return &OrgUnitRepository{}
}

func (r *OrgUnitRepository) GetByID(ctx context.Context, id uuid.UUID) (*orgunit.Unit, error) {
	return r.getOne(ctx, `WHERE u.id = $1 AND u.deleted_at IS NULL`, pgUUID(id))
}

func (r *OrgUnitRepository) GetByIDWithDeleted(ctx context.Context, id uuid.UUID) (*orgunit.Unit, error) {
	return r.getOne(ctx, `WHERE u.id = $1`, pgUUID(id))
}

func (r *OrgUnitRepository) FindByTOOI(ctx context.Context, tooi string) (*orgunit.Unit, error) {
	if tooi == "" {
		return nil, orgunit.ErrNotFound
	}
	return r.getOne(ctx, `WHERE u.tooi_identifier = $1`, tooi)
}

func (r *OrgUnitRepository) FindByNameAndParent(ctx context.Context, name string, parentID *uuid.UUID) (*orgunit.Unit, error) {
	return r.getOne(ctx, `
WHERE u.parent_id IS NOT DISTINCT FROM $1
  AND u.name = $2
  AND u.deleted_at IS NULL
ORDER BY u.tooi_identifier IS NOT NULL, u.created_at, u.id
LIMIT 1`, pgNullableUUID(parentID), name)
}

func (r *OrgUnitRepository) List(ctx context.Context, params *orgunit.FindParams) ([]*orgunit.Unit, error) {
	if params == nil {
		params = &orgunit.FindParams{}
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	where, args := buildWhere(params)
	sql := `SELECT ` + unitColumns + ` FROM organization_units u`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, ` AND `)
	}
	sql += ` ORDER BY u.name, u.id`

	rows, err := tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list organization units")
	}
	units, err := collectUnits(rows)
	if err != nil {
		return nil, err
	}
	if err := r.attachClassifications(ctx, units); err != nil {
		return nil, err
	}
	return units, nil
}

func buildWhere(p *orgunit.FindParams) ([]string, []any) {
	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !p.IncludeDeleted {
		where = append(where, `u.deleted_at IS NULL`)
	}
	if p.ActiveOnly {
		where = append(where, `u.is_active`)
	}
	if p.RootsOnly {
		where = append(where, `u.parent_id IS NULL`)
	}
	if len(p.ParentIDs) > 0 {
		where = append(where, `u.parent_id = ANY(`+arg(p.ParentIDs)+`::uuid[])`)
	}
	if p.SuccessorID != nil {
		where = append(where, `u.successor_id = `+arg(pgUUID(*p.SuccessorID)))
	}
	if len(p.Types) > 0 {
		types := make([]string, 0, len(p.Types))
		for _, t := range p.Types {
			types = append(types, string(t))
		}
		where = append(where, `u.organization_type = ANY(`+arg(types)+`::text[])`)
	}
	return where, args
}

func (r *OrgUnitRepository) Ancestors(ctx context.Context, id uuid.UUID) ([]*orgunit.Unit, error) {
	if _, err := r.GetByIDWithDeleted(ctx, id); err != nil {
		return nil, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
WITH RECURSIVE chain AS (
	SELECT parent_id, 1 AS depth
	FROM organization_units
	WHERE id = $1
	UNION ALL
	SELECT p.parent_id, c.depth + 1
	FROM chain c
	JOIN organization_units p ON p.id = c.parent_id
	WHERE c.depth < $2
)
SELECT `+unitColumns+`
FROM chain c
JOIN organization_units u ON u.id = c.parent_id
ORDER BY c.depth`, pgUUID(id), ancestorMaxDepth)
	if err != nil {
		return nil, errors.Wrap(err, "query ancestors")
	}
	units, err := collectUnits(rows)
	if err != nil {
		return nil, err
	}
	if err := r.attachClassifications(ctx, units); err != nil {
		return nil, err
	}
	return units, nil
}

func (r *OrgUnitRepository) Create(ctx context.Context, u *orgunit.Unit) (*orgunit.Unit, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	previousNames, err := marshalPreviousNames(u.PreviousNames)
	if err != nil {
		return nil, err
	}

	var id pgtype.UUID
	var createdAt, updatedAt time.Time
	var idArg pgtype.UUID
	if u.ID != uuid.Nil {
		idArg = pgUUID(u.ID)
	}
	if err := tx.QueryRow(ctx, `
INSERT INTO organization_units (
	id,
	name,
	label,
	abbreviations,
	organization_type,
	tooi_identifier,
	oin_number,
	system_id,
	source_url,
	related_ministry_tooi,
	parent_id,
	successor_id,
	is_active,
	previous_names
)
VALUES (COALESCE($1, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14::jsonb)
RETURNING id, created_at, updated_at
`,
		idArg,
		u.Name,
		u.Label,
		nonNilStrings(u.Abbreviations),
		string(u.Type),
		pgNullableText(u.TOOI),
		pgNullableText(u.OIN),
		u.SystemID,
		u.SourceURL,
		u.RelatedMinistryTOOI,
		pgNullableUUID(u.ParentID),
		pgNullableUUID(u.SuccessorID),
		u.IsActive,
		previousNames,
	).Scan(&id, &createdAt, &updatedAt); err != nil {
		return nil, mapPgError(err)
	}

	out := u.Clone()
	out.ID = uuid.UUID(id.Bytes)
	out.CreatedAt = createdAt
	out.UpdatedAt = updatedAt
	if err := r.replaceClassifications(ctx, out.ID, out.Classifications); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *OrgUnitRepository) Update(ctx context.Context, u *orgunit.Unit) (*orgunit.Unit, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	previousNames, err := marshalPreviousNames(u.PreviousNames)
	if err != nil {
		return nil, err
	}

	var updatedAt time.Time
	if err := tx.QueryRow(ctx, `
UPDATE organization_units
SET name = $2,
	label = $3,
	abbreviations = $4,
	organization_type = $5,
	tooi_identifier = $6,
	oin_number = $7,
	system_id = $8,
	source_url = $9,
	related_ministry_tooi = $10,
	parent_id = $11,
	successor_id = $12,
	is_active = $13,
	previous_names = $14::jsonb,
	updated_at = now()
WHERE id = $1
RETURNING updated_at
`,
		pgUUID(u.ID),
		u.Name,
		u.Label,
		nonNilStrings(u.Abbreviations),
		string(u.Type),
		pgNullableText(u.TOOI),
		pgNullableText(u.OIN),
		u.SystemID,
		u.SourceURL,
		u.RelatedMinistryTOOI,
		pgNullableUUID(u.ParentID),
		pgNullableUUID(u.SuccessorID),
		u.IsActive,
		previousNames,
	).Scan(&updatedAt); err != nil {
		return nil, mapPgError(err)
	}

	out := u.Clone()
	out.UpdatedAt = updatedAt
	if err := r.replaceClassifications(ctx, out.ID, out.Classifications); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *OrgUnitRepository) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.execOne(ctx, `
UPDATE organization_units
SET deleted_at = $2, updated_at = now()
WHERE id = $1 AND deleted_at IS NULL`, pgUUID(id), at)
}

func (r *OrgUnitRepository) Restore(ctx context.Context, id uuid.UUID) error {
	return r.execOne(ctx, `
UPDATE organization_units
SET deleted_at = NULL, updated_at = now()
WHERE id = $1`, pgUUID(id))
}

func (r *OrgUnitRepository) HardDelete(ctx context.Context, id uuid.UUID) error {
	err := r.execOne(ctx, `DELETE FROM organization_units WHERE id = $1`, pgUUID(id))
	if errors.Is(err, orgunit.ErrParentNotFound) {
		return orgunit.ErrHasChildren
	}
	return err
}

func (r *OrgUnitRepository) EnsureClassifications(ctx context.Context, names []string) ([]orgunit.Classification, error) {
	names = orgunit.NormalizeNames(names)
	if len(names) == 0 {
		return nil, nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO organization_types (name)
SELECT unnest($1::text[])
ON CONFLICT (name) DO NOTHING`, names); err != nil {
		return nil, errors.Wrap(err, "insert organization types")
	}

	rows, err := tx.Query(ctx, `
SELECT id, name
FROM organization_types
WHERE name = ANY($1::text[])
ORDER BY name`, names)
	if err != nil {
		return nil, errors.Wrap(err, "select organization types")
	}
	defer rows.Close()

	out := make([]orgunit.Classification, 0, len(names))
	for rows.Next() {
		var c orgunit.Classification
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *OrgUnitRepository) getOne(ctx context.Context, clause string, args ...any) (*orgunit.Unit, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `SELECT `+unitColumns+` FROM organization_units u `+clause, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query organization unit")
	}
	units, err := collectUnits(rows)
	if err != nil {
		return nil, err
	}
	if len(units) == 0 {
		return nil, orgunit.ErrNotFound
	}
	if err := r.attachClassifications(ctx, units[:1]); err != nil {
		return nil, err
	}
	return units[0], nil
}

func (r *OrgUnitRepository) execOne(ctx context.Context, sql string, args ...any) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, sql, args...)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return orgunit.ErrNotFound
	}
	return nil
}

func (r *OrgUnitRepository) attachClassifications(ctx context.Context, units []*orgunit.Unit) error {
	if len(units) == 0 {
		return nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	ids := make([]uuid.UUID, 0, len(units))
	byID := make(map[uuid.UUID]*orgunit.Unit, len(units))
	for _, u := range units {
		ids = append(ids, u.ID)
		byID[u.ID] = u
	}

	rows, err := tx.Query(ctx, `
SELECT ut.unit_id, t.id, t.name
FROM organization_unit_types ut
JOIN organization_types t ON t.id = ut.type_id
WHERE ut.unit_id = ANY($1::uuid[])
ORDER BY t.name`, ids)
	if err != nil {
		return errors.Wrap(err, "query classifications")
	}
	defer rows.Close()

	for rows.Next() {
		var unitID uuid.UUID
		var c orgunit.Classification
		if err := rows.Scan(&unitID, &c.ID, &c.Name); err != nil {
			return err
		}
		if u, ok := byID[unitID]; ok {
			u.Classifications = append(u.Classifications, c)
		}
	}
	return rows.Err()
}

func (r *OrgUnitRepository) replaceClassifications(ctx context.Context, unitID uuid.UUID, cs []orgunit.Classification) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM organization_unit_types WHERE unit_id = $1`, pgUUID(unitID)); err != nil {
		return errors.Wrap(err, "clear classifications")
	}
	if len(cs) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(cs))
	for _, c := range cs {
		ids = append(ids, c.ID)
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO organization_unit_types (unit_id, type_id)
SELECT $1, unnest($2::uuid[])
ON CONFLICT DO NOTHING`, pgUUID(unitID), ids); err != nil {
		return errors.Wrap(err, "link classifications")
	}
	return nil
}

func collectUnits(rows pgx.Rows) ([]*orgunit.Unit, error) {
	defer rows.Close()
	var out []*orgunit.Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate organization units")
	}
	return out, nil
}

func scanUnit(row pgx.Row) (*orgunit.Unit, error) {
	var (
		u             orgunit.Unit
		typ           string
		tooi          pgtype.Text
		oin           pgtype.Text
		parentID      pgtype.UUID
		successorID   pgtype.UUID
		previousNames []byte
		deletedAt     pgtype.Timestamptz
	)
	if err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Label,
		&u.Abbreviations,
		&typ,
		&tooi,
		&oin,
		&u.SystemID,
		&u.SourceURL,
		&u.RelatedMinistryTOOI,
		&parentID,
		&successorID,
		&u.IsActive,
		&previousNames,
		&deletedAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, errors.Wrap(err, "scan organization unit")
	}
	u.Type = orgunit.Type(typ)
	u.TOOI = tooi.String
	u.OIN = oin.String
	u.ParentID = nullableUUID(parentID)
	u.SuccessorID = nullableUUID(successorID)
	u.DeletedAt = nullableTime(deletedAt)
	if len(previousNames) > 0 {
		if err := json.Unmarshal(previousNames, &u.PreviousNames); err != nil {
			return nil, errors.Wrap(err, "decode previous names")
		}
	}
	return &u, nil
}

func marshalPreviousNames(names []orgunit.PreviousName) (string, error) {
	if len(names) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(names)
	if err != nil {
		return "", errors.Wrap(err, "encode previous names")
	}
	return string(b), nil
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
