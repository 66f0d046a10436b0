package semver

import (
	"fmt"
	"strings"

	mm "github.com/Masterminds/semver/v3"
	"github.com/ppiankov/compatspectre/internal/models"
)

// DefaultServiceVersion is substituted when a registered version cannot be parsed
var DefaultServiceVersion = models.ServiceVersion{Major: 1, Minor: 0, Patch: 0}

// Version is a semantic version.
//
// This is a thin wrapper around github.com/Masterminds/semver/v3.
type Version struct {
	v *mm.Version
}

// Constraint is a semantic version constraint.
//
// Examples:
// - ">=1.2.0 <2.0.0"
// - "^1.0.0"
// - "~1.4"
type Constraint struct {
	c *mm.Constraints
}

func ParseVersion(raw string) (Version, error) {
	v, err := mm.NewVersion(strings.TrimSpace(raw))
	if err != nil {
		return Version{}, fmt.Errorf("semver: parse version %q: %w", raw, err)
	}
	return Version{v: v}, nil
}

func ParseConstraint(raw string) (Constraint, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = "*"
	}
	c, err := mm.NewConstraint(trimmed)
	if err != nil {
		return Constraint{}, fmt.Errorf("semver: parse constraint %q: %w", raw, err)
	}
	return Constraint{c: c}, nil
}

func Satisfies(v Version, c Constraint) bool {
	if v.v == nil || c.c == nil {
		return false
	}
	return c.c.Check(v.v)
}

// ServiceVersion converts to the model triple
func (v Version) ServiceVersion() models.ServiceVersion {
	if v.v == nil {
		return DefaultServiceVersion
	}
	return models.ServiceVersion{Major: v.v.Major(), Minor: v.v.Minor(), Patch: v.v.Patch()}
}

// ParseServiceVersion parses a registry version string into a model triple.
// Prefixed ("v1.2.3") and partial ("1.2") versions are accepted.
func ParseServiceVersion(raw string) (models.ServiceVersion, error) {
	v, err := ParseVersion(raw)
	if err != nil {
		return DefaultServiceVersion, err
	}
	return v.ServiceVersion(), nil
}

// FromServiceVersion converts a model triple back into a comparable Version
func FromServiceVersion(sv models.ServiceVersion) Version {
	return Version{v: mm.New(sv.Major, sv.Minor, sv.Patch, "", "")}
}

// Compare compares a and b, returning:
// -1 if a < b
//
//	0 if a == b
//	1 if a > b
func Compare(a, b Version) int {
	if a.v == nil && b.v == nil {
		return 0
	}
	if a.v == nil {
		return -1
	}
	if b.v == nil {
		return 1
	}
	return a.v.Compare(b.v)
}
