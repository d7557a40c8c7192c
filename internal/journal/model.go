// Package journal implements the entry repository: one journal record per
// calendar date, stored in SQLite.
package journal

import (
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Mood values.
const (
	MoodHappy  = "happy"
	MoodGood   = "good"
	MoodNormal = "normal"
	MoodSad    = "sad"
	MoodAngry  = "angry"
)

// Weather values.
const (
	WeatherSunny  = "sunny"
	WeatherCloudy = "cloudy"
	WeatherRainy  = "rainy"
	WeatherSnowy  = "snowy"
)

var dateFormat = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Entry is one journal record for a single calendar date.
type Entry struct {
	ID        string    `json:"id"`
	Date      string    `json:"date"`
	Photo     string    `json:"photo,omitempty"`
	Mood      string    `json:"mood"`
	Weather   string    `json:"weather"`
	GoodThing string    `json:"good_thing,omitempty"`
	BadThing  string    `json:"bad_thing,omitempty"`
	Memo      string    `json:"memo"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateInput holds the fields for a new entry. Photo, GoodThing and BadThing
// are optional; Memo is required but may be empty.
type CreateInput struct {
	Date      string `json:"date"`
	Photo     string `json:"photo,omitempty"`
	Mood      string `json:"mood"`
	Weather   string `json:"weather"`
	GoodThing string `json:"good_thing,omitempty"`
	BadThing  string `json:"bad_thing,omitempty"`
	Memo      string `json:"memo"`
}

// Validate checks the input against the entry contract.
func (in CreateInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Date, validation.Required, validation.Match(dateFormat)),
		validation.Field(&in.Mood, validation.Required,
			validation.In(MoodHappy, MoodGood, MoodNormal, MoodSad, MoodAngry)),
		validation.Field(&in.Weather, validation.Required,
			validation.In(WeatherSunny, WeatherCloudy, WeatherRainy, WeatherSnowy)),
	)
}

// UpdateInput is a partial update: only non-nil fields are rewritten. The date
// itself is immutable.
type UpdateInput struct {
	ID        string  `json:"id"`
	Photo     *string `json:"photo,omitempty"`
	Mood      *string `json:"mood,omitempty"`
	Weather   *string `json:"weather,omitempty"`
	GoodThing *string `json:"good_thing,omitempty"`
	BadThing  *string `json:"bad_thing,omitempty"`
	Memo      *string `json:"memo,omitempty"`
}

// Validate checks the supplied fields; nil fields are skipped.
func (in UpdateInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.ID, validation.Required),
		validation.Field(&in.Mood,
			validation.In(MoodHappy, MoodGood, MoodNormal, MoodSad, MoodAngry)),
		validation.Field(&in.Weather,
			validation.In(WeatherSunny, WeatherCloudy, WeatherRainy, WeatherSnowy)),
	)
}
