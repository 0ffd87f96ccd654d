// Package domain holds the typed identifiers and small value primitives shared
// across modules. Parsing happens at trust boundaries so services only ever
// see valid values.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "supernomad/pkg/domain-errors"
)

// CountryID identifies a tracked country record.
type CountryID uuid.UUID

// SampleID identifies a single location sample.
type SampleID uuid.UUID

// NewCountryID returns a fresh random CountryID.
func NewCountryID() CountryID { return CountryID(uuid.New()) }

// NewSampleID returns a fresh random SampleID.
func NewSampleID() SampleID { return SampleID(uuid.New()) }

// ParseCountryID parses s and rejects empty, malformed, and nil UUIDs.
func ParseCountryID(s string) (CountryID, error) {
	u, err := parseUUID(s, "country_id")
	return CountryID(u), err
}

// ParseSampleID parses s and rejects empty, malformed, and nil UUIDs.
func ParseSampleID(s string) (SampleID, error) {
	u, err := parseUUID(s, "sample_id")
	return SampleID(u), err
}

func parseUUID(s, field string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+field)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" cannot be nil")
	}
	return u, nil
}

func (id CountryID) String() string { return uuid.UUID(id).String() }
func (id CountryID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id CountryID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *CountryID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id SampleID) String() string { return uuid.UUID(id).String() }
func (id SampleID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id SampleID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *SampleID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

// CountryCode is an upper-case ISO 3166-1 alpha-2 code.
type CountryCode string

// ParseCountryCode trims and upper-cases s, then requires exactly two ASCII letters.
func ParseCountryCode(s string) (CountryCode, error) {
	code := strings.ToUpper(strings.TrimSpace(s))
	if code == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "country code is required")
	}
	if len(code) != 2 || !isASCIIUpper(code[0]) || !isASCIIUpper(code[1]) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "country code must be two letters")
	}
	return CountryCode(code), nil
}

// NormalizeCountryCode upper-cases and trims s without validating it.
// Use it for data that came from a trusted resolver.
func NormalizeCountryCode(s string) CountryCode {
	return CountryCode(strings.ToUpper(strings.TrimSpace(s)))
}

func (c CountryCode) String() string { return string(c) }
func (c CountryCode) IsNil() bool    { return c == "" }

func isASCIIUpper(b byte) bool { return b >= 'A' && b <= 'Z' }
