// Package validate collects field-level validation failures as stable error
// codes. Handlers translate the codes into localized messages on the client
// side, so nothing here depends on a message catalog.
package validate

import (
	"regexp"
	"time"
	"unicode/utf8"
)

// Errors maps a field name to the codes of its failed rules.
type Errors map[string][]string

func (e Errors) Add(field, code string) {
	e[field] = append(e[field], code)
}

func (e Errors) Empty() bool {
	return len(e) == 0
}

// Rule is a single named check against a value already captured by a closure.
type Rule struct {
	Field string
	Code  string
	OK    func() bool
}

// Check runs the rules in order and collects every failure.
func Check(rules ...Rule) Errors {
	errs := Errors{}
	for _, r := range rules {
		if !r.OK() {
			errs.Add(r.Field, r.Code)
		}
	}
	return errs
}

func Required(field, value string) Rule {
	return Rule{Field: field, Code: "required", OK: func() bool { return value != "" }}
}

func RequiredInt64(field string, value int64) Rule {
	return Rule{Field: field, Code: "required", OK: func() bool { return value != 0 }}
}

func MaxLen(field, value string, max int) Rule {
	return Rule{Field: field, Code: "tooLong", OK: func() bool {
		return utf8.RuneCountInString(value) <= max
	}}
}

// RangeFloat passes when value is nil or within [min, max].
func RangeFloat(field string, value *float64, min, max float64) Rule {
	return Rule{Field: field, Code: "outOfRange", OK: func() bool {
		return value == nil || (*value >= min && *value <= max)
	}}
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Email passes on empty values; pair with Required when the field is mandatory.
func Email(field, value string) Rule {
	return Rule{Field: field, Code: "invalidEmail", OK: func() bool {
		return value == "" || emailPattern.MatchString(value)
	}}
}

// DateAfter passes when either date is nil or after is strictly later.
func DateAfter(field string, after, before *time.Time) Rule {
	return Rule{Field: field, Code: "dateOrder", OK: func() bool {
		return after == nil || before == nil || after.After(*before)
	}}
}

// OneOf passes on empty values or members of allowed.
func OneOf(field, value string, allowed map[string]bool) Rule {
	return Rule{Field: field, Code: "invalidValue", OK: func() bool {
		return value == "" || allowed[value]
	}}
}
