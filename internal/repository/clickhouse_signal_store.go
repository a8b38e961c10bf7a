package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"MealSignal/internal/domain/models"
	pkgch "MealSignal/pkg/clickhouse"
	applogger "MealSignal/pkg/logger"
	"MealSignal/pkg/util"
)

const insertChunkSize = 2000

// CHSignalStore keeps ingested biosignals in ClickHouse and serves them back
// as a SignalSource.
type CHSignalStore struct {
	ch    *pkgch.Client
	table string
	l     *applogger.Logger
}

func NewCHSignalStore(ch *pkgch.Client) *CHSignalStore {
	return &CHSignalStore{ch: ch, table: signalTable(ch.Database()), l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *CHSignalStore) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l
	}
}

func signalTable(db string) string {
	return db + ".biosignals"
}

func signalSchemaDDL(db string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            participant_id String,
            kind LowCardinality(String),
            ts DateTime64(3, 'UTC'),
            value Float64
        ) ENGINE = ReplacingMergeTree
        ORDER BY (participant_id, kind, ts)`, signalTable(db)),
	}
}

// Init creates the database and table if missing.
func (s *CHSignalStore) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, signalSchemaDDL(s.ch.Database()))
}

func (s *CHSignalStore) LoadSignal(ctx context.Context, participantID string, kind models.SignalKind) ([]models.SignalSample, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT ts, value
        FROM %s
        WHERE participant_id = ? AND kind = ?
        ORDER BY ts ASC
    `, s.table)

	rows, err := s.ch.DB().QueryContext(ctx, q, util.UnpadID(participantID), string(kind))
	if err != nil {
		s.l.Error("clickhouse load_signal query error",
			applogger.String("participant", participantID),
			applogger.String("kind", string(kind)),
			applogger.Error(err),
		)
		return nil, &models.DataUnavailableError{ParticipantID: participantID, Source: s.table, Err: err}
	}
	defer rows.Close()

	out, err := collectSamples(rows)
	if err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, &models.DataUnavailableError{ParticipantID: participantID, Source: s.table, Err: err}
	}

	s.l.Debug("clickhouse load_signal ok",
		applogger.String("participant", participantID),
		applogger.String("kind", string(kind)),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

type sampleRows interface {
	Next() bool
	Scan(dest ...any) error
}

// collectSamples reads (ts, value) rows. No rows is an empty series, not a
// missing source, the same as a CSV file with only a header.
func collectSamples(rows sampleRows) ([]models.SignalSample, error) {
	out := make([]models.SignalSample, 0, 1024)
	for rows.Next() {
		var smp models.SignalSample
		if err := rows.Scan(&smp.Timestamp, &smp.Value); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		smp.Timestamp = smp.Timestamp.UTC()
		out = append(out, smp)
	}
	return out, nil
}

// StoreBatch inserts samples in blocks of insertChunkSize rows. Samples with
// no participant or an unknown kind are skipped.
func (s *CHSignalStore) StoreBatch(ctx context.Context, samples []models.StoredSample) error {
	if len(samples) == 0 {
		return nil
	}
	q := fmt.Sprintf("INSERT INTO %s (participant_id, kind, ts, value)", s.table)

	for _, chunk := range chunkSamples(samples, insertChunkSize) {
		err := s.ch.InTx(ctx, func(tx *sql.Tx) error {
			stmt, err := tx.PrepareContext(ctx, q)
			if err != nil {
				return fmt.Errorf("prepare insert: %w", err)
			}
			defer stmt.Close()
			for _, smp := range chunk {
				if _, err := stmt.ExecContext(ctx, smp.ParticipantID, string(smp.Kind), smp.Timestamp.UTC(), smp.Value); err != nil {
					return fmt.Errorf("append row: %w", err)
				}
			}
			return nil
		})
		if err != nil {
			s.l.Error("clickhouse store_batch error", applogger.Int("rows", len(chunk)), applogger.Error(err))
			return err
		}
	}
	return nil
}

func (s *CHSignalStore) Health(ctx context.Context) error {
	return s.ch.Health(ctx)
}

// chunkSamples drops invalid samples and splits the rest into chunks of at most size.
func chunkSamples(samples []models.StoredSample, size int) [][]models.StoredSample {
	valid := make([]models.StoredSample, 0, len(samples))
	for _, smp := range samples {
		if smp.ParticipantID == "" || !smp.Kind.Valid() || smp.Timestamp.IsZero() {
			continue
		}
		valid = append(valid, smp)
	}

	var out [][]models.StoredSample
	for start := 0; start < len(valid); start += size {
		end := start + size
		if end > len(valid) {
			end = len(valid)
		}
		out = append(out, valid[start:end])
	}
	return out
}
