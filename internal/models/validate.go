package models

import (
	"errors"
	"strings"
)

const (
	maxNameLen        = 120
	maxCountryCodeLen = 10
)

// ErrNameEmpty is returned when a zone or city name is empty after trim.
var ErrNameEmpty = errors.New("name is required")

// ErrNameTooLong is returned when a zone or city name exceeds the maximum.
var ErrNameTooLong = errors.New("name too long")

// ErrCountryCodeEmpty is returned when the country code is missing.
var ErrCountryCodeEmpty = errors.New("country code is required")

// ErrCountryCodeTooLong is returned when the country code exceeds 10 characters.
var ErrCountryCodeTooLong = errors.New("country code too long")

// ErrLatitudeOutOfRange is returned when latitude is outside [-90, 90].
var ErrLatitudeOutOfRange = errors.New("latitude out of range")

// ErrLongitudeOutOfRange is returned when longitude is outside [-180, 180].
var ErrLongitudeOutOfRange = errors.New("longitude out of range")

// Validate trims and normalizes the request in place (country code is
// uppercased) and reports the first constraint violation. Suitable for
// rejecting input before it reaches the network.
func (r *CreateZoneRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.CityName = strings.TrimSpace(r.CityName)
	r.CountryCode = strings.ToUpper(strings.TrimSpace(r.CountryCode))

	if err := validateName(r.Name); err != nil {
		return err
	}
	if err := validateName(r.CityName); err != nil {
		return err
	}
	if r.CountryCode == "" {
		return ErrCountryCodeEmpty
	}
	if len(r.CountryCode) > maxCountryCodeLen {
		return ErrCountryCodeTooLong
	}
	if r.Latitude != nil && (*r.Latitude < -90 || *r.Latitude > 90) {
		return ErrLatitudeOutOfRange
	}
	if r.Longitude != nil && (*r.Longitude < -180 || *r.Longitude > 180) {
		return ErrLongitudeOutOfRange
	}
	return nil
}

// Validate checks the rename request. A nil name means "no change" and is valid.
func (r *UpdateZoneRequest) Validate() error {
	if r.Name == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*r.Name)
	r.Name = &trimmed
	return validateName(trimmed)
}

func validateName(s string) error {
	n := len([]rune(s))
	if n == 0 {
		return ErrNameEmpty
	}
	if n > maxNameLen {
		return ErrNameTooLong
	}
	return nil
}
