package validator

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/exp/constraints"
	"golang.org/x/exp/slices"
)

var RgxPhoneNumber = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

func NotBlank(value string) bool {
	return strings.TrimSpace(value) != ""
}

func MinRunes(value string, n int) bool {
	return utf8.RuneCountInString(value) >= n
}

func MaxRunes(value string, n int) bool {
	return utf8.RuneCountInString(value) <= n
}

func Between[T constraints.Ordered](value, min, max T) bool {
	return value >= min && value <= max
}

func Matches(value string, rx *regexp.Regexp) bool {
	return rx.MatchString(value)
}

func In[T comparable](value T, safelist ...T) bool {
	return slices.Contains(safelist, value)
}

func AllIn[T comparable](values []T, safelist ...T) bool {
	for _, value := range values {
		if !In(value, safelist...) {
			return false
		}
	}
	return true
}

func NoDuplicates[T comparable](values []T) bool {
	uniqueValues := make(map[T]bool)

	for _, value := range values {
		uniqueValues[value] = true
	}

	return len(values) == len(uniqueValues)
}

func IsEmail(value string) bool {
	if len(value) > 254 {
		return false
	}

	_, err := mail.ParseAddress(value)
	return err == nil
}

// IsLatitude and IsLongitude bound raw coordinate input before it reaches
// the geo helpers, which assume well-formed fixes.
func IsLatitude(value float64) bool {
	return value >= -90 && value <= 90
}

func IsLongitude(value float64) bool {
	return value >= -180 && value <= 180
}
