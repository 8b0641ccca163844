package translate

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/clinicore/clinicore/internal/platform/i18n"
)

// TableSpec whitelists a table for the worker: only these tables and fields
// can be touched by job rows, whatever the queue contains.
type TableSpec struct {
	Fields       map[string]bool
	StatusColumn string
}

// DefaultTables covers every table carrying localized content.
func DefaultTables() map[string]TableSpec {
	return map[string]TableSpec{
		"patient_notes":              {Fields: map[string]bool{"note": true}, StatusColumn: "ai_translation_status"},
		"medical_history_events":     {Fields: map[string]bool{"title": true, "notes": true}, StatusColumn: "ai_translation_status"},
		"medical_history_documents":  {Fields: map[string]bool{"notes": true}, StatusColumn: "ai_translation_status"},
		"examination_types":          {Fields: map[string]bool{"name": true}, StatusColumn: "ai_translation_status"},
		"document_types":             {Fields: map[string]bool{"name": true}, StatusColumn: "ai_translation_status"},
		"medical_document_types":     {Fields: map[string]bool{"name": true}, StatusColumn: "ai_translation_status"},
		"insurance_providers":        {Fields: map[string]bool{"name": true}, StatusColumn: "ai_translation_status"},
		"insurance_plans":            {Fields: map[string]bool{"name": true, "description": true}, StatusColumn: "ai_translation_status"},
	}
}

// Worker polls the outbox and translates claimed jobs.
type Worker struct {
	outbox     Outbox
	translator Translator
	pool       *pgxpool.Pool
	tables     map[string]TableSpec
	interval   time.Duration
	batchSize  int
	log        zerolog.Logger
}

func NewWorker(outbox Outbox, translator Translator, pool *pgxpool.Pool, tables map[string]TableSpec, interval time.Duration, log zerolog.Logger) *Worker {
	return &Worker{
		outbox:     outbox,
		translator: translator,
		pool:       pool,
		tables:     tables,
		interval:   interval,
		batchSize:  10,
		log:        log,
	}
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info().Dur("interval", w.interval).Msg("translation worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("translation worker stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce claims and processes a single batch.
func (w *Worker) RunOnce(ctx context.Context) {
	jobs, err := w.outbox.ClaimPending(ctx, w.batchSize)
	if err != nil {
		w.log.Error().Err(err).Msg("claim translation jobs")
		return
	}

	for _, job := range jobs {
		if err := w.process(ctx, job); err != nil {
			w.log.Error().Err(err).
				Int64("job_id", job.ID).
				Str("table", job.TableName).
				Int64("record_id", job.RecordID).
				Msg("translation job failed")

			if markErr := w.outbox.MarkFailed(ctx, job.ID, err.Error()); markErr != nil {
				w.log.Error().Err(markErr).Int64("job_id", job.ID).Msg("mark job failed")
			}
			w.setStatus(ctx, job, i18n.StatusFailed)
			continue
		}

		if err := w.outbox.MarkDone(ctx, job.ID); err != nil {
			w.log.Error().Err(err).Int64("job_id", job.ID).Msg("mark job done")
		}
		w.setStatus(ctx, job, i18n.StatusIdle)
	}
}

func (w *Worker) process(ctx context.Context, job *Job) error {
	spec, ok := w.tables[job.TableName]
	if !ok {
		return fmt.Errorf("table %q is not whitelisted for translation", job.TableName)
	}

	targets := i18n.TargetLocales(job.SourceLocale)

	for _, field := range job.Fields {
		if !spec.Fields[field] {
			return fmt.Errorf("field %q is not translatable on %q", field, job.TableName)
		}

		var current i18n.Text
		selectSQL := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, field, job.TableName)
		if err := w.pool.QueryRow(ctx, selectSQL, job.RecordID).Scan(&current); err != nil {
			return fmt.Errorf("read %s.%s: %w", job.TableName, field, err)
		}

		sourceText := current[job.SourceLocale]
		if sourceText == "" {
			continue
		}

		translations, err := w.translator.Translate(ctx, sourceText, job.SourceLocale, targets)
		if err != nil {
			return fmt.Errorf("translate %s.%s: %w", job.TableName, field, err)
		}

		merged := current.Clone()
		for locale, text := range translations {
			merged[locale] = text
		}
		// The source entry stays authoritative whatever the provider returned.
		merged[job.SourceLocale] = sourceText

		updateSQL := fmt.Sprintf(`UPDATE %s SET %s = $1, updated_at = NOW() WHERE id = $2`, job.TableName, field)
		if _, err := w.pool.Exec(ctx, updateSQL, merged, job.RecordID); err != nil {
			return fmt.Errorf("write %s.%s: %w", job.TableName, field, err)
		}
	}

	return nil
}

func (w *Worker) setStatus(ctx context.Context, job *Job, status i18n.TranslationStatus) {
	spec, ok := w.tables[job.TableName]
	if !ok || spec.StatusColumn == "" {
		return
	}

	sql := fmt.Sprintf(`UPDATE %s SET %s = $1 WHERE id = $2`, job.TableName, spec.StatusColumn)
	if _, err := w.pool.Exec(ctx, sql, string(status), job.RecordID); err != nil {
		w.log.Error().Err(err).
			Str("table", job.TableName).
			Int64("record_id", job.RecordID).
			Msg("update translation status")
	}
}
