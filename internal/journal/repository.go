package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/store"
)

// Repository provides CRUD over the entries table. It holds no connection
// state of its own: every call borrows the live handle from the store.
type Repository struct {
	store  *store.Store
	logger *slog.Logger
}

// NewRepository creates an entry repository over the given store.
func NewRepository(st *store.Store, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{store: st, logger: logger}
}

// Create inserts a new entry and returns the freshly read-back row. A date
// collision surfaces as a duplicate-entry domain error, not a raw driver error.
func (r *Repository) Create(ctx context.Context, in CreateInput) (*Entry, error) {
	if err := in.Validate(); err != nil {
		return nil, apperr.Query("the entry is not valid: "+err.Error(), err)
	}
	conn, err := r.store.Handle()
	if err != nil {
		return nil, err
	}

	id := newEntryID()
	now := time.Now().UTC()
	_, err = conn.ExecContext(ctx, `
		INSERT INTO entries (id, date, photo, mood, weather, good_thing, bad_thing, memo, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, in.Date, nullIfEmpty(in.Photo), in.Mood, in.Weather,
		nullIfEmpty(in.GoodThing), nullIfEmpty(in.BadThing), in.Memo, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			r.logger.Warn("entry date collision", slog.String("date", in.Date))
			return nil, apperr.Duplicate("an entry for this date already exists", err)
		}
		r.logger.Error("create entry failed", slog.String("date", in.Date), slog.String("error", err.Error()))
		return nil, apperr.Query("could not save the entry", err)
	}

	entry, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, apperr.Query("could not save the entry", fmt.Errorf("journal: read-back of %s returned no row", id))
	}
	return entry, nil
}

// FindByID returns the entry with the given id, or nil when absent.
func (r *Repository) FindByID(ctx context.Context, id string) (*Entry, error) {
	return r.findOne(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = ?`, id)
}

// FindByDate returns the entry for a YYYY-MM-DD date, or nil when absent.
func (r *Repository) FindByDate(ctx context.Context, date string) (*Entry, error) {
	return r.findOne(ctx, `SELECT `+entryColumns+` FROM entries WHERE date = ?`, date)
}

// FindAll returns entries ordered by date descending. A limit of 0 returns
// everything; offset is honored only when a limit is given.
func (r *Repository) FindAll(ctx context.Context, limit, offset int) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries ORDER BY date DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
		if offset > 0 {
			query += ` OFFSET ?`
			args = append(args, offset)
		}
	}
	return r.findMany(ctx, query, args...)
}

// FindByDateRange returns entries with start <= date <= end, date descending.
func (r *Repository) FindByDateRange(ctx context.Context, start, end string) ([]Entry, error) {
	return r.findMany(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE date BETWEEN ? AND ? ORDER BY date DESC`,
		start, end)
}

// Update rewrites exactly the fields supplied in the input and always bumps
// updated_at. The updated row is read back; a missing row is a not-found error.
func (r *Repository) Update(ctx context.Context, in UpdateInput) (*Entry, error) {
	if err := in.Validate(); err != nil {
		return nil, apperr.Query("the entry update is not valid: "+err.Error(), err)
	}
	conn, err := r.store.Handle()
	if err != nil {
		return nil, err
	}

	var sets []string
	var args []any
	addSet := func(column string, v *string, nullable bool) {
		if v == nil {
			return
		}
		sets = append(sets, column+" = ?")
		if nullable {
			args = append(args, nullIfEmpty(*v))
		} else {
			args = append(args, *v)
		}
	}
	addSet("photo", in.Photo, true)
	addSet("mood", in.Mood, false)
	addSet("weather", in.Weather, false)
	addSet("good_thing", in.GoodThing, true)
	addSet("bad_thing", in.BadThing, true)
	addSet("memo", in.Memo, false)

	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), in.ID)

	if _, err := conn.ExecContext(ctx,
		`UPDATE entries SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
		r.logger.Error("update entry failed", slog.String("id", in.ID), slog.String("error", err.Error()))
		return nil, apperr.Query("could not update the entry", err)
	}

	entry, err := r.FindByID(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, apperr.NotFound("the entry no longer exists", nil)
	}
	return entry, nil
}

// Delete removes an entry by id; a zero-row delete is a not-found error.
func (r *Repository) Delete(ctx context.Context, id string) error {
	conn, err := r.store.Handle()
	if err != nil {
		return err
	}
	res, err := conn.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("delete entry failed", slog.String("id", id), slog.String("error", err.Error()))
		return apperr.Query("could not delete the entry", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return apperr.Query("could not delete the entry", err)
	}
	if affected == 0 {
		return apperr.NotFound("the entry does not exist", nil)
	}
	return nil
}

// Count returns the total number of entries.
func (r *Repository) Count(ctx context.Context) (int, error) {
	conn, err := r.store.Handle()
	if err != nil {
		return 0, err
	}
	var n int
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		r.logger.Error("count entries failed", slog.String("error", err.Error()))
		return 0, apperr.Query("could not count the entries", err)
	}
	return n, nil
}

// UsedPhotoPaths returns every non-empty photo reference, for orphan cleanup.
func (r *Repository) UsedPhotoPaths(ctx context.Context) (map[string]struct{}, error) {
	conn, err := r.store.Handle()
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, `SELECT photo FROM entries WHERE photo IS NOT NULL AND photo != ''`)
	if err != nil {
		return nil, apperr.Query("could not list photo references", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, apperr.Query("could not list photo references", err)
		}
		out[p] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Query("could not list photo references", err)
	}
	return out, nil
}

const entryColumns = `id, date, photo, mood, weather, good_thing, bad_thing, memo, created_at, updated_at`

func (r *Repository) findOne(ctx context.Context, query string, args ...any) (*Entry, error) {
	conn, err := r.store.Handle()
	if err != nil {
		return nil, err
	}
	entry, err := scanEntry(conn.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("find entry failed", slog.String("error", err.Error()))
		return nil, apperr.Query("could not read the entry", err)
	}
	return entry, nil
}

func (r *Repository) findMany(ctx context.Context, query string, args ...any) ([]Entry, error) {
	conn, err := r.store.Handle()
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("list entries failed", slog.String("error", err.Error()))
		return nil, apperr.Query("could not list the entries", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, apperr.Query("could not list the entries", err)
		}
		out = append(out, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Query("could not list the entries", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var e Entry
	var photo, good, bad sql.NullString
	if err := row.Scan(&e.ID, &e.Date, &photo, &e.Mood, &e.Weather, &good, &bad, &e.Memo, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.Photo = photo.String
	e.GoodThing = good.String
	e.BadThing = bad.String
	return &e, nil
}

// newEntryID generates an opaque id of the form entry_<unixmilli>_<random>.
func newEntryID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("entry_%d_%s", time.Now().UnixMilli(), suffix)
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
