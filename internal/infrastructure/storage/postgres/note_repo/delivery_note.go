// Package note_repo provides the PostgreSQL implementation of the
// delivery note repository.
package note_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"albaran/internal/core/apperror"
	"albaran/internal/core/id"
	"albaran/internal/domain/deliverynote"
	"albaran/internal/infrastructure/storage/postgres"
)

const (
	notesTable = "delivery_notes"
	itemsTable = "delivery_note_items"
)

// pgUniqueViolation is the SQLSTATE for unique constraint violations.
const pgUniqueViolation = "23505"

// DeliveryNoteRepo implements deliverynote.Repository.
//
// Owner-scoped reads filter by owner_id in the query itself, so a foreign
// note and a missing note are indistinguishable to the caller.
type DeliveryNoteRepo struct {
	txm        *postgres.TxManager
	selectCols []string
}

var _ deliverynote.Repository = (*DeliveryNoteRepo)(nil)

// NewDeliveryNoteRepo creates a new delivery note repository.
func NewDeliveryNoteRepo(txm *postgres.TxManager) *DeliveryNoteRepo {
	return &DeliveryNoteRepo{
		txm:        txm,
		selectCols: postgres.ExtractDBColumns[deliverynote.DeliveryNote](),
	}
}

func (r *DeliveryNoteRepo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *DeliveryNoteRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder().Select(r.selectCols...).From(notesTable)
}

// Create inserts the note and its items.
func (r *DeliveryNoteRepo) Create(ctx context.Context, note *deliverynote.DeliveryNote) error {
	data := postgres.StructToMap(note)
	if len(data) == 0 {
		return fmt.Errorf("no db tags found in entity")
	}

	filtered := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if val, ok := data[col]; ok {
			filtered[col] = val
		}
	}

	sql, args, err := r.builder().Insert(notesTable).SetMap(filtered).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return r.mapWriteError(err, note.Number)
	}

	return r.saveItems(ctx, note.ID, note.Items)
}

// GetByID loads a note regardless of owner. Reserved for the download
// path, where company guests may be authorized.
func (r *DeliveryNoteRepo) GetByID(ctx context.Context, noteID id.ID) (*deliverynote.DeliveryNote, error) {
	return r.getOne(ctx, noteID, r.baseSelect().Where(squirrel.Eq{"id": noteID}))
}

// GetOwned loads a note only if owned by ownerID.
func (r *DeliveryNoteRepo) GetOwned(ctx context.Context, noteID, ownerID id.ID) (*deliverynote.DeliveryNote, error) {
	return r.getOne(ctx, noteID, r.baseSelect().Where(squirrel.Eq{"id": noteID, "owner_id": ownerID}))
}

// GetOwnedForUpdate is GetOwned with a row lock. Concurrent sign, update
// and delete attempts on the same note serialize here.
func (r *DeliveryNoteRepo) GetOwnedForUpdate(ctx context.Context, noteID, ownerID id.ID) (*deliverynote.DeliveryNote, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"id": noteID, "owner_id": ownerID}).
		Suffix("FOR UPDATE")
	return r.getOne(ctx, noteID, q)
}

func (r *DeliveryNoteRepo) getOne(ctx context.Context, noteID id.ID, q squirrel.SelectBuilder) (*deliverynote.DeliveryNote, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	note := &deliverynote.DeliveryNote{}
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, note, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("delivery note", noteID.String())
		}
		return nil, fmt.Errorf("get delivery note: %w", err)
	}

	items, err := r.loadItems(ctx, note.ID)
	if err != nil {
		return nil, err
	}
	note.Items = items
	return note, nil
}

// Update persists the note with optimistic locking and replaces its items.
func (r *DeliveryNoteRepo) Update(ctx context.Context, note *deliverynote.DeliveryNote) error {
	data := postgres.StructToMap(note)

	filtered := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		// id, owner and audit timestamps are immutable; version and
		// updated_at are managed here.
		switch col {
		case "id", "owner_id", "created_at", "version", "updated_at":
			continue
		}
		if val, ok := data[col]; ok {
			filtered[col] = val
		}
	}

	q := r.builder().
		Update(notesTable).
		SetMap(filtered).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": note.ID, "version": note.Version})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return r.mapWriteError(err, note.Number)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("delivery note", note.ID)
	}

	note.SetVersion(note.Version + 1)
	return r.saveItems(ctx, note.ID, note.Items)
}

// Delete removes the note and its items permanently. Items go first via
// the FK cascade; the explicit delete keeps the behavior independent of
// schema options.
func (r *DeliveryNoteRepo) Delete(ctx context.Context, noteID, ownerID id.ID) error {
	querier := r.txm.GetQuerier(ctx)

	if _, err := querier.Exec(ctx, "DELETE FROM "+itemsTable+" WHERE note_id = $1", noteID); err != nil {
		return fmt.Errorf("delete items: %w", err)
	}

	sql, args, err := r.builder().
		Delete(notesTable).
		Where(squirrel.Eq{"id": noteID, "owner_id": ownerID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete delivery note: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("delivery note", noteID.String())
	}
	return nil
}

// List returns the owner's notes, date descending, with items loaded.
func (r *DeliveryNoteRepo) List(ctx context.Context, ownerID id.ID, filter deliverynote.ListFilter) ([]*deliverynote.DeliveryNote, error) {
	q := r.baseSelect().Where(squirrel.Eq{"owner_id": ownerID})

	if filter.ProjectID != nil {
		q = q.Where(squirrel.Eq{"project_id": *filter.ProjectID})
	}
	if filter.ClientID != nil {
		q = q.Where(squirrel.Eq{"client_id": *filter.ClientID})
	}
	if filter.Signed != nil {
		q = q.Where(squirrel.Eq{"signed": *filter.Signed})
	}
	if filter.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"date": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"date": *filter.DateTo})
	}

	q = q.OrderBy("date DESC", "created_at DESC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var notes []*deliverynote.DeliveryNote
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &notes, sql, args...); err != nil {
		return nil, fmt.Errorf("list delivery notes: %w", err)
	}

	for _, note := range notes {
		items, err := r.loadItems(ctx, note.ID)
		if err != nil {
			return nil, err
		}
		note.Items = items
	}
	return notes, nil
}

// NumberExists reports whether the owner already uses the note number.
func (r *DeliveryNoteRepo) NumberExists(ctx context.Context, ownerID id.ID, number string, excludeID *id.ID) (bool, error) {
	q := r.builder().
		Select("1").
		From(notesTable).
		Where(squirrel.Eq{"owner_id": ownerID, "number": number})
	if excludeID != nil {
		q = q.Where(squirrel.NotEq{"id": *excludeID})
	}

	innerSQL, innerArgs, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var exists bool
	querier := r.txm.GetQuerier(ctx)
	err = querier.QueryRow(ctx, "SELECT EXISTS("+innerSQL+")", innerArgs...).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check number: %w", err)
	}
	return exists, nil
}

func (r *DeliveryNoteRepo) loadItems(ctx context.Context, noteID id.ID) ([]deliverynote.Item, error) {
	q := r.builder().
		Select("line_no", "description", "quantity", "unit_price", "person").
		From(itemsTable).
		Where(squirrel.Eq{"note_id": noteID}).
		OrderBy("line_no")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	items := make([]deliverynote.Item, 0)
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &items, sql, args...); err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	return items, nil
}

// saveItems replaces the table part: delete existing, insert new.
func (r *DeliveryNoteRepo) saveItems(ctx context.Context, noteID id.ID, items []deliverynote.Item) error {
	querier := r.txm.GetQuerier(ctx)

	if _, err := querier.Exec(ctx, "DELETE FROM "+itemsTable+" WHERE note_id = $1", noteID); err != nil {
		return fmt.Errorf("delete existing items: %w", err)
	}

	if len(items) == 0 {
		return nil
	}

	q := r.builder().
		Insert(itemsTable).
		Columns("note_id", "line_no", "description", "quantity", "unit_price", "person")
	for _, item := range items {
		q = q.Values(noteID, item.LineNo, item.Description, item.Quantity, item.UnitPrice, item.Person)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert items: %w", err)
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert items: %w", err)
	}
	return nil
}

// mapWriteError translates the unique index violation on (owner_id, number)
// into the duplicate error the pre-check would have produced.
func (r *DeliveryNoteRepo) mapWriteError(err error, number string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return apperror.NewDuplicate("delivery note", "number", number)
	}
	return fmt.Errorf("write delivery note: %w", err)
}
