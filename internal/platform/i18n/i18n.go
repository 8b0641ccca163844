// Package i18n holds the locale set and the merge rules for multilingual
// text fields stored as JSONB locale maps.
package i18n

// SupportedLocales is the fixed set of UI locales.
var SupportedLocales = []string{"en", "sr-Latn", "ru"}

// DefaultLocale is the fallback when a record has no source locale.
const DefaultLocale = "en"

func IsSupported(locale string) bool {
	for _, l := range SupportedLocales {
		if l == locale {
			return true
		}
	}
	return false
}

// TargetLocales returns every supported locale except source.
func TargetLocales(source string) []string {
	out := make([]string, 0, len(SupportedLocales)-1)
	for _, l := range SupportedLocales {
		if l != source {
			out = append(out, l)
		}
	}
	return out
}

// Text is a locale → content map persisted as JSONB.
type Text map[string]string

// Get returns the text for locale, falling back to the source locale and
// then to any populated entry.
func (t Text) Get(locale, sourceLocale string) string {
	if t == nil {
		return ""
	}
	if v, ok := t[locale]; ok && v != "" {
		return v
	}
	if v, ok := t[sourceLocale]; ok {
		return v
	}
	for _, l := range SupportedLocales {
		if v, ok := t[l]; ok && v != "" {
			return v
		}
	}
	return ""
}

// Clone returns a shallow copy, never nil.
func (t Text) Clone() Text {
	out := make(Text, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Merge applies an edit made in editingLocale to a field whose translations
// are owned by sourceLocale. Edits made outside the source locale never
// touch the stored map; an edit in the source locale replaces only the
// source entry and leaves machine translations for other locales intact.
// The second result reports whether the stored source text actually changed.
func Merge(existing Text, sourceLocale, editingLocale, newValue string) (Text, bool) {
	if editingLocale != sourceLocale {
		if existing == nil {
			return Text{}, false
		}
		return existing, false
	}

	out := existing.Clone()
	old := out[sourceLocale]
	if newValue == "" {
		delete(out, sourceLocale)
	} else {
		out[sourceLocale] = newValue
	}
	return out, old != newValue
}

// NewText seeds a map for a freshly created record, written entirely in the
// author's locale.
func NewText(sourceLocale, value string) Text {
	if value == "" {
		return Text{}
	}
	return Text{sourceLocale: value}
}
