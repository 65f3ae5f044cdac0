package utils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// versionPrefix extracts the leading dotted version from strings such as
// "18.1.8", "v17", "clang version 18.1.3 (Ubuntu)" or "14.0.0git".
var versionPrefix = regexp.MustCompile(`v?\d+(\.\d+){0,2}(-[0-9A-Za-z.-]+)?`)

func IsSemver(value string) bool {
	if value == "" {
		return false
	}
	_, err := semver.NewVersion(value)
	return err == nil
}

// ParseVersion parses a version leniently: exact semver first, otherwise the first
// version-looking token in the string.
func ParseVersion(value string) (*semver.Version, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("empty version")
	}
	if v, err := semver.NewVersion(value); err == nil {
		return v, nil
	}
	match := versionPrefix.FindString(value)
	if match == "" {
		return nil, fmt.Errorf("invalid version %q", value)
	}
	v, err := semver.NewVersion(match)
	if err != nil {
		return nil, fmt.Errorf("invalid version %q: %w", value, err)
	}
	return v, nil
}

// CompareVersions returns -1, 0 or 1 as a is older than, equal to or newer than b.
func CompareVersions(a, b string) (int, error) {
	va, err := ParseVersion(a)
	if err != nil {
		return 0, err
	}
	vb, err := ParseVersion(b)
	if err != nil {
		return 0, err
	}
	return va.Compare(vb), nil
}
