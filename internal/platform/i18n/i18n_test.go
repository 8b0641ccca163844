package i18n

import (
	"reflect"
	"testing"
)

func TestTargetLocales(t *testing.T) {
	got := TargetLocales("sr-Latn")
	want := []string{"en", "ru"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TargetLocales(sr-Latn) = %v, want %v", got, want)
	}

	if len(TargetLocales("en")) != 2 {
		t.Error("expected two targets for en")
	}
}

func TestMerge_SourceLocaleEdit(t *testing.T) {
	existing := Text{"en": "Diabetes", "ru": "Диабет"}

	merged, changed := Merge(existing, "en", "en", "Diabetes type 2")
	if !changed {
		t.Error("expected change to be reported")
	}
	if merged["en"] != "Diabetes type 2" {
		t.Errorf("source entry not replaced: %v", merged)
	}
	if merged["ru"] != "Диабет" {
		t.Errorf("machine translation must survive a source edit: %v", merged)
	}
	if existing["en"] != "Diabetes" {
		t.Error("input map was mutated")
	}
}

func TestMerge_NonSourceLocaleEditIsIgnored(t *testing.T) {
	existing := Text{"en": "Diabetes", "ru": "Диабет"}

	merged, changed := Merge(existing, "en", "ru", "Сахарный диабет")
	if changed {
		t.Error("edit outside the source locale must not report a change")
	}
	if !reflect.DeepEqual(merged, existing) {
		t.Errorf("edit outside the source locale must not alter the map: %v", merged)
	}
}

func TestMerge_SameValueNoChange(t *testing.T) {
	existing := Text{"en": "Diabetes"}
	_, changed := Merge(existing, "en", "en", "Diabetes")
	if changed {
		t.Error("identical value must not report a change")
	}
}

func TestMerge_EmptyValueClearsSourceEntry(t *testing.T) {
	existing := Text{"en": "Diabetes", "ru": "Диабет"}
	merged, changed := Merge(existing, "en", "en", "")
	if !changed {
		t.Error("clearing non-empty text is a change")
	}
	if _, ok := merged["en"]; ok {
		t.Error("source entry should be removed")
	}
	if merged["ru"] != "Диабет" {
		t.Error("other locales must survive")
	}
}

func TestMerge_NilExisting(t *testing.T) {
	merged, changed := Merge(nil, "en", "en", "New title")
	if !changed || merged["en"] != "New title" {
		t.Errorf("merge into nil map failed: %v changed=%v", merged, changed)
	}

	merged, changed = Merge(nil, "en", "ru", "whatever")
	if changed || merged == nil {
		t.Errorf("non-source edit into nil should return empty map, got %v changed=%v", merged, changed)
	}
}

func TestGet_Fallback(t *testing.T) {
	txt := Text{"en": "Heart", "ru": ""}
	if got := txt.Get("ru", "en"); got != "Heart" {
		t.Errorf("expected fallback to source, got %q", got)
	}
	if got := txt.Get("en", "en"); got != "Heart" {
		t.Errorf("expected direct hit, got %q", got)
	}
	if got := (Text)(nil).Get("en", "en"); got != "" {
		t.Errorf("nil map should read as empty, got %q", got)
	}
}

func TestTranslationStatus_Valid(t *testing.T) {
	for _, s := range []TranslationStatus{StatusIdle, StatusInProgress, StatusFailed} {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if TranslationStatus("done").Valid() {
		t.Error("unknown status should be invalid")
	}
}

func TestIsSupported(t *testing.T) {
	if !IsSupported("sr-Latn") {
		t.Error("sr-Latn should be supported")
	}
	if IsSupported("de") {
		t.Error("de should not be supported")
	}
}
