package models

import (
	"strings"
	"time"
)

// User is the authenticated account identity returned by the auth endpoints.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// WeatherSnapshot is the cached weather reading attached to a zone after a
// successful refresh. CachedAt is the server-side capture time.
type WeatherSnapshot struct {
	TemperatureC  float64   `json:"temperature_c"`
	Humidity      int       `json:"humidity"`
	Conditions    string    `json:"conditions"`
	WindSpeedKmh  float64   `json:"wind_speed_kmh"`
	CachedAt      time.Time `json:"cached_at"`
}

// Zone is a user-owned saved city. Weather is nil until the first successful
// refresh.
type Zone struct {
	ID          int64            `json:"id"`
	UserID      int64            `json:"user_id"`
	Name        string           `json:"name"`
	CityName    string           `json:"city_name"`
	CountryCode string           `json:"country_code"`
	Latitude    *float64         `json:"latitude"`
	Longitude   *float64         `json:"longitude"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	Weather     *WeatherSnapshot `json:"weather,omitempty"`
}

// ZoneList is the server's paginated zone listing. Total counts all zones
// owned by the user, not just the returned page.
type ZoneList struct {
	Items []Zone `json:"items"`
	Total int    `json:"total"`
}

// CitySearchItem is a single city search result.
type CitySearchItem struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	Region  string  `json:"region"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// LoginRequest authenticates by username or email.
type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// RegisterRequest creates a new account.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by login and register.
type AuthResponse struct {
	User        User   `json:"user"`
	AccessToken string `json:"access_token"`
}

// CreateZoneRequest creates a zone. Latitude/Longitude are optional.
type CreateZoneRequest struct {
	Name        string   `json:"name"`
	CityName    string   `json:"city_name"`
	CountryCode string   `json:"country_code"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
}

// UpdateZoneRequest renames a zone. Nil fields are left unchanged.
type UpdateZoneRequest struct {
	Name *string `json:"name,omitempty"`
}

// ZoneFromCity builds a create request from a search result, the way the
// add-city flow does: the city name doubles as the zone name, and the
// country is reduced to a code (kept as-is when already two letters,
// otherwise uppercased and truncated).
func ZoneFromCity(city CitySearchItem) CreateZoneRequest {
	code := city.Country
	if len(code) != 2 {
		code = strings.ToUpper(code)
		if len(code) > maxCountryCodeLen {
			code = code[:maxCountryCodeLen]
		}
	}
	lat := city.Lat
	lon := city.Lon
	return CreateZoneRequest{
		Name:        city.Name,
		CityName:    city.Name,
		CountryCode: code,
		Latitude:    &lat,
		Longitude:   &lon,
	}
}
