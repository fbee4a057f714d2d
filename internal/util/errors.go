package util

import (
	"errors"
	"reflect"
)

// ErrorTypesMatch returns whether err matches target via errors.Is, or whether err's concrete type is the same as
// target's concrete type. The latter lets tests compare a zero-value error struct (e.g. ExceededError{}) against an
// instance carrying field values, without caring about the field values themselves.
func ErrorTypesMatch(err, target error) bool {
	if errors.Is(err, target) {
		return true
	}
	return reflect.TypeOf(err) == reflect.TypeOf(target)
}
