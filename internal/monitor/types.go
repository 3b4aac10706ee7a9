// Package monitor defines the core types, interfaces, and matching rules of
// the earthquake monitoring pipeline. Implementations live in subpackages so
// the pipeline can be tested against fakes.
package monitor

import "time"

// Bulletin is a raw snapshot of the most recent earthquake row on the
// PHIVOLCS page. All fields are unparsed text captured at fetch time.
type Bulletin struct {
	DateTime   string `json:"date_time"`
	Latitude   string `json:"latitude"`
	Longitude  string `json:"longitude"`
	Depth      string `json:"depth"`
	Magnitude  string `json:"magnitude"`
	Location   string `json:"location"`
	DetailLink string `json:"detail_link,omitempty"`
}

// Identifier derives the deduplication key for the bulletin.
func (b Bulletin) Identifier() string {
	return b.DateTime + "_" + b.Location
}

// Event is a deduplicated, numerically parsed projection of a Bulletin.
// Identifier is unique; Processed flips to true exactly once, after
// notification fan-out completes.
type Event struct {
	ID         int64     `db:"id"`
	Identifier string    `db:"identifier"`
	Magnitude  float64   `db:"magnitude"`
	Location   string    `db:"location"`
	Lat        *float64  `db:"lat"`
	Lon        *float64  `db:"lon"`
	DepthKm    float64   `db:"depth"`
	OccurredAt time.Time `db:"occurred_at"`
	Processed  bool      `db:"processed"`
	RecordedAt time.Time `db:"recorded_at"`
}

// User is a registered account. Active gates notification eligibility.
type User struct {
	ID           int64     `db:"id" json:"id"`
	FullName     string    `db:"full_name" json:"full_name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Province     string    `db:"province" json:"province"`
	City         string    `db:"city" json:"city"`
	RegisteredAt time.Time `db:"registered_at" json:"registered_at"`
	Active       bool      `db:"is_active" json:"is_active"`
}

// Monitoring modes for Settings.LocationType.
const (
	LocationNearMe = "near_me"
	LocationCustom = "custom"
)

// Settings holds a user's notification preferences, one row per user.
type Settings struct {
	ID                 int64     `db:"id" json:"id"`
	UserID             int64     `db:"user_id" json:"user_id"`
	MagnitudeThreshold float64   `db:"magnitude_threshold" json:"magnitude_threshold"`
	LocationType       string    `db:"location_type" json:"location_type"`
	AltProvince        string    `db:"alt_province" json:"alt_province"`
	AltCity            string    `db:"alt_city" json:"alt_city"`
	SafetyTips         bool      `db:"safety_tips" json:"safety_tips"`
	RangeKm            float64   `db:"range_km" json:"range_km"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	ModifiedAt         time.Time `db:"modified_at" json:"modified_at"`
}

// DefaultSettings returns the preferences assigned at registration.
func DefaultSettings(userID int64) Settings {
	return Settings{
		UserID:             userID,
		MagnitudeThreshold: 3.0,
		LocationType:       LocationNearMe,
		SafetyTips:         true,
		RangeKm:            100,
	}
}
