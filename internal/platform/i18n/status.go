package i18n

// TranslationStatus tracks the machine-translation lifecycle of a record's
// localized fields. There is no automatic path out of StatusFailed; the next
// successful source-locale edit re-enters StatusInProgress.
type TranslationStatus string

const (
	StatusIdle       TranslationStatus = "idle"
	StatusInProgress TranslationStatus = "in_progress"
	StatusFailed     TranslationStatus = "failed"
)

func (s TranslationStatus) Valid() bool {
	switch s {
	case StatusIdle, StatusInProgress, StatusFailed:
		return true
	}
	return false
}
