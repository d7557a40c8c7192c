package settings

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strconv"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/store"
)

// Repository reads and writes the settings table. Like the entry repository it
// borrows the store handle per call and holds no state of its own.
type Repository struct {
	store  *store.Store
	logger *slog.Logger
}

// NewRepository creates a settings repository over the given store.
func NewRepository(st *store.Store, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{store: st, logger: logger}
}

// Get reads all rows and builds a fully typed Settings value. Missing keys
// fall back to their documented default per field; Get never returns partial
// data.
func (r *Repository) Get(ctx context.Context) (Settings, error) {
	conn, err := r.store.Handle()
	if err != nil {
		return Settings{}, err
	}
	rows, err := conn.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		r.logger.Error("read settings failed", slog.String("error", err.Error()))
		return Settings{}, apperr.Query("could not read the settings", err)
	}
	defer rows.Close()

	raw := make(map[string]string, len(Keys))
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return Settings{}, apperr.Query("could not read the settings", err)
		}
		raw[k] = v
	}
	if err := rows.Err(); err != nil {
		return Settings{}, apperr.Query("could not read the settings", err)
	}

	def := Defaults()
	return Settings{
		Theme:                stringOr(raw, KeyTheme, def.Theme),
		NotificationTime:     stringOr(raw, KeyNotificationTime, def.NotificationTime),
		NotificationEnabled:  boolOr(raw, KeyNotificationEnabled, def.NotificationEnabled),
		AppLockEnabled:       boolOr(raw, KeyAppLockEnabled, def.AppLockEnabled),
		AppLockType:          stringOr(raw, KeyAppLockType, def.AppLockType),
		IsPremium:            boolOr(raw, KeyIsPremium, def.IsPremium),
		SeasonalThemeEnabled: boolOr(raw, KeySeasonalThemeEnabled, def.SeasonalThemeEnabled),
	}, nil
}

// Apply upserts every field supplied in the partial update, then returns the
// refreshed full settings.
func (r *Repository) Apply(ctx context.Context, u Update) (Settings, error) {
	set := func(key string, val *string) error {
		if val == nil {
			return nil
		}
		return r.SetSetting(ctx, key, *val)
	}
	setBool := func(key string, val *bool) error {
		if val == nil {
			return nil
		}
		return r.SetSetting(ctx, key, strconv.FormatBool(*val))
	}

	if err := set(KeyTheme, u.Theme); err != nil {
		return Settings{}, err
	}
	if err := set(KeyNotificationTime, u.NotificationTime); err != nil {
		return Settings{}, err
	}
	if err := setBool(KeyNotificationEnabled, u.NotificationEnabled); err != nil {
		return Settings{}, err
	}
	if err := setBool(KeyAppLockEnabled, u.AppLockEnabled); err != nil {
		return Settings{}, err
	}
	if err := set(KeyAppLockType, u.AppLockType); err != nil {
		return Settings{}, err
	}
	if err := setBool(KeyIsPremium, u.IsPremium); err != nil {
		return Settings{}, err
	}
	if err := setBool(KeySeasonalThemeEnabled, u.SeasonalThemeEnabled); err != nil {
		return Settings{}, err
	}

	return r.Get(ctx)
}

// GetSetting returns the raw value for a single key, bypassing the typed
// mapping. A missing key returns ("", false, nil).
func (r *Repository) GetSetting(ctx context.Context, key string) (string, bool, error) {
	conn, err := r.store.Handle()
	if err != nil {
		return "", false, err
	}
	var v string
	err = conn.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		r.logger.Error("read setting failed", slog.String("key", key), slog.String("error", err.Error()))
		return "", false, apperr.Query("could not read the setting", err)
	}
	return v, true, nil
}

// SetSetting upserts a single raw key/value pair.
func (r *Repository) SetSetting(ctx context.Context, key, value string) error {
	conn, err := r.store.Handle()
	if err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)`, key, value); err != nil {
		r.logger.Error("write setting failed", slog.String("key", key), slog.String("error", err.Error()))
		return apperr.Query("could not save the setting", err)
	}
	return nil
}

// Reset deletes every row and reinserts the canonical defaults verbatim.
func (r *Repository) Reset(ctx context.Context) error {
	conn, err := r.store.Handle()
	if err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, `DELETE FROM settings`); err != nil {
		r.logger.Error("reset settings failed", slog.String("error", err.Error()))
		return apperr.Query("could not reset the settings", err)
	}
	for _, def := range store.DefaultSettings {
		if _, err := conn.ExecContext(ctx,
			`INSERT INTO settings (key, value) VALUES (?, ?)`, def.Key, def.Value); err != nil {
			r.logger.Error("reset settings failed", slog.String("key", def.Key), slog.String("error", err.Error()))
			return apperr.Query("could not reset the settings", err)
		}
	}
	return nil
}

// MissingKeys reports which of the seven expected keys have no row. Used by
// the startup service for an advisory validation pass.
func (r *Repository) MissingKeys(ctx context.Context) ([]string, error) {
	conn, err := r.store.Handle()
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, `SELECT key FROM settings`)
	if err != nil {
		return nil, apperr.Query("could not read the settings", err)
	}
	defer rows.Close()

	present := make(map[string]struct{}, len(Keys))
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, apperr.Query("could not read the settings", err)
		}
		present[k] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Query("could not read the settings", err)
	}

	var missing []string
	for _, k := range Keys {
		if _, ok := present[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing, nil
}

func stringOr(raw map[string]string, key, def string) string {
	if v, ok := raw[key]; ok && v != "" {
		return v
	}
	return def
}

func boolOr(raw map[string]string, key string, def bool) bool {
	if v, ok := raw[key]; ok {
		return v == "true"
	}
	return def
}
