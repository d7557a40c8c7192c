// Package settings implements the key/value settings repository. The row set
// is seeded at store initialization; Get always returns a fully populated
// Settings value, substituting the documented default for any missing key.
package settings

// Theme values.
const (
	ThemeLight    = "light"
	ThemeDark     = "dark"
	ThemeSeasonal = "seasonal"
)

// App lock types.
const (
	LockTypePIN       = "pin"
	LockTypeBiometric = "biometric"
)

// Keys of the seven canonical settings.
const (
	KeyTheme                = "theme"
	KeyNotificationTime     = "notificationTime"
	KeyNotificationEnabled  = "notificationEnabled"
	KeyAppLockEnabled       = "appLockEnabled"
	KeyAppLockType          = "appLockType"
	KeyIsPremium            = "isPremium"
	KeySeasonalThemeEnabled = "seasonalThemeEnabled"
)

// Keys lists every expected settings key.
var Keys = []string{
	KeyTheme,
	KeyNotificationTime,
	KeyNotificationEnabled,
	KeyAppLockEnabled,
	KeyAppLockType,
	KeyIsPremium,
	KeySeasonalThemeEnabled,
}

// Settings is the typed view over the settings table.
type Settings struct {
	Theme                string `json:"theme"`
	NotificationTime     string `json:"notification_time"`
	NotificationEnabled  bool   `json:"notification_enabled"`
	AppLockEnabled       bool   `json:"app_lock_enabled"`
	AppLockType          string `json:"app_lock_type"`
	IsPremium            bool   `json:"is_premium"`
	SeasonalThemeEnabled bool   `json:"seasonal_theme_enabled"`
}

// Defaults returns the documented default for every key.
func Defaults() Settings {
	return Settings{
		Theme:                ThemeSeasonal,
		NotificationTime:     "20:00",
		NotificationEnabled:  true,
		AppLockEnabled:       false,
		AppLockType:          LockTypePIN,
		IsPremium:            false,
		SeasonalThemeEnabled: true,
	}
}

// Update is a partial settings update: only non-nil fields are written.
type Update struct {
	Theme                *string `json:"theme,omitempty"`
	NotificationTime     *string `json:"notification_time,omitempty"`
	NotificationEnabled  *bool   `json:"notification_enabled,omitempty"`
	AppLockEnabled       *bool   `json:"app_lock_enabled,omitempty"`
	AppLockType          *string `json:"app_lock_type,omitempty"`
	IsPremium            *bool   `json:"is_premium,omitempty"`
	SeasonalThemeEnabled *bool   `json:"seasonal_theme_enabled,omitempty"`
}
