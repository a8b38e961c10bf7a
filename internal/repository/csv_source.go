package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"MealSignal/internal/domain/models"
	domrepo "MealSignal/internal/domain/repository"
	applogger "MealSignal/pkg/logger"
	"MealSignal/pkg/util"
)

// CSVSource reads participant logs from CSV files behind an Opener.
type CSVSource struct {
	opener  Opener
	l       *applogger.Logger
	metrics domrepo.Metrics
}

func NewCSVSource(opener Opener, metrics domrepo.Metrics) *CSVSource {
	if metrics == nil {
		metrics = domrepo.NopMetrics{}
	}
	return &CSVSource{opener: opener, l: applogger.Nop(), metrics: metrics}
}

// SetLogger injects a structured logger.
func (s *CSVSource) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l
	}
}

// LoadMeals reads the raw or the aggregated food log of one participant.
// Rows without a parsable timestamp are skipped; unparsable nutrients are 0.
func (s *CSVSource) LoadMeals(ctx context.Context, participantID string, mode models.MealMode) ([]models.MealRecord, error) {
	start := time.Now()
	name, timeCol := aggregatedLogPath(participantID), colDatetime
	var positional map[string]int
	if mode == models.MealModeRaw {
		name, timeCol, positional = rawLogPath(participantID), colTimeBegin, headerlessRawLog
	}

	var out []models.MealRecord
	dropped, err := s.readTable(ctx, participantID, name, []string{timeCol}, positional, func(row csvRow) bool {
		ts, ok := util.ParseCSVTime(row.get(timeCol))
		if !ok {
			return false
		}
		out = append(out, models.MealRecord{
			ParticipantID: participantID,
			Timestamp:     ts,
			LoggedFood:    strings.TrimSpace(row.get(colLoggedFood)),
			Amount:        strings.TrimSpace(row.get(colAmount)),
			Unit:          strings.TrimSpace(row.get(colUnit)),
			Calorie:       nutrient(row.get(colCalorie)),
			Sugar:         nutrient(row.get(colSugar)),
			Protein:       nutrient(row.get(colProtein)),
			TotalCarb:     nutrient(row.get(colTotalCarb)),
			DietaryFiber:  nutrient(row.get(colDietaryFiber)),
			TotalFat:      nutrient(row.get(colTotalFat)),
		})
		return true
	})
	if err != nil {
		return nil, err
	}

	s.reportDropped(name, dropped)
	s.metrics.RecordLatency("load_meals", time.Since(start))
	s.l.Debug("meals loaded",
		applogger.String("participant", participantID),
		applogger.String("mode", string(mode)),
		applogger.Int("rows", len(out)),
		applogger.Int("dropped", dropped),
	)
	return out, nil
}

// LoadFoods returns the quiz options from a participant's raw food log.
// Rows without a food name are skipped; timestamps are not required.
func (s *CSVSource) LoadFoods(ctx context.Context, participantID string) ([]models.FoodItem, error) {
	name := rawLogPath(participantID)

	var out []models.FoodItem
	dropped, err := s.readTable(ctx, participantID, name, []string{colLoggedFood}, headerlessRawLog, func(row csvRow) bool {
		food := strings.TrimSpace(row.get(colLoggedFood))
		if food == "" {
			return false
		}
		out = append(out, models.FoodItem{
			Name:    food,
			Calorie: nutrient(row.get(colCalorie)),
			Sugar:   nutrient(row.get(colSugar)),
			Protein: nutrient(row.get(colProtein)),
		})
		return true
	})
	if err != nil {
		return nil, err
	}
	s.reportDropped(name, dropped)
	return out, nil
}

// LoadSignal reads one kind for one participant, ascending by time. Rows
// with an unparsable timestamp or value are skipped.
func (s *CSVSource) LoadSignal(ctx context.Context, participantID string, kind models.SignalKind) ([]models.SignalSample, error) {
	start := time.Now()
	name, schema, err := signalPath(participantID, kind)
	if err != nil {
		return nil, err
	}

	out := make([]models.SignalSample, 0, 1024)
	dropped, err := s.readTable(ctx, participantID, name, []string{schema.timeColumn, schema.valueColumn}, nil, func(row csvRow) bool {
		ts, ok := util.ParseCSVTime(row.get(schema.timeColumn))
		if !ok {
			return false
		}
		v, ok := parseValue(row.get(schema.valueColumn))
		if !ok {
			return false
		}
		out = append(out, models.SignalSample{Timestamp: ts, Value: v})
		return true
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })

	s.reportDropped(name, dropped)
	s.metrics.RecordLatency("load_"+string(kind), time.Since(start))
	s.l.Debug("signal loaded",
		applogger.String("participant", participantID),
		applogger.String("kind", string(kind)),
		applogger.Int("rows", len(out)),
		applogger.Int("dropped", dropped),
	)
	return out, nil
}

func (s *CSVSource) reportDropped(name string, n int) {
	if n == 0 {
		return
	}
	s.metrics.RecordRowsDropped(name, n)
	s.l.Debug("rows dropped", applogger.String("source", name), applogger.Int("rows", n))
}

// csvRow gives access to one record by trimmed header name.
type csvRow struct {
	index  map[string]int
	record []string
}

func (r csvRow) get(col string) string {
	i, ok := r.index[col]
	if !ok || i >= len(r.record) {
		return ""
	}
	return r.record[i]
}

// readTable streams name through fn, one call per data row. fn returns false
// for a dropped row. Missing files, unreadable headers and missing required
// columns are reported as DataUnavailableError. When positional is set and
// the first row is data rather than a header, columns are read by position.
func (s *CSVSource) readTable(ctx context.Context, participantID, name string, required []string, positional map[string]int, fn func(csvRow) bool) (int, error) {
	unavailable := func(err error) error {
		return &models.DataUnavailableError{ParticipantID: participantID, Source: name, Err: err}
	}

	rc, err := s.opener.Open(ctx, name)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, unavailable(err)
	}
	defer rc.Close()

	r := csv.NewReader(rc)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, unavailable(errors.New("empty file"))
		}
		return 0, unavailable(fmt.Errorf("read header: %w", err))
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}
	headerless := false
	for _, col := range required {
		if _, ok := index[col]; ok {
			continue
		}
		if !isDataRow(header, positional) {
			return 0, unavailable(fmt.Errorf("missing column %q", col))
		}
		index, headerless = positional, true
		break
	}

	dropped := 0
	if headerless && !fn(csvRow{index: index, record: header}) {
		dropped++
	}
	for line := 0; ; line++ {
		if line%4096 == 0 && ctx.Err() != nil {
			return 0, ctx.Err()
		}
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				dropped++
				continue
			}
			return 0, unavailable(fmt.Errorf("read rows: %w", err))
		}
		if !fn(csvRow{index: index, record: record}) {
			dropped++
		}
	}
	return dropped, nil
}

// isDataRow reports whether a first row missing the named columns is a
// record of the positional layout: its timestamp cell parses.
func isDataRow(record []string, positional map[string]int) bool {
	i, ok := positional[colTimeBegin]
	if !ok || i >= len(record) {
		return false
	}
	_, ok = util.ParseCSVTime(record[i])
	return ok
}

// nutrient reads an amount; negative and non-finite cells count as 0.
func nutrient(s string) float64 {
	v := util.ParseFloatDefault(s, 0)
	if v < 0 || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func parseValue(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
