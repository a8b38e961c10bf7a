package usecase

import (
	"context"
	"errors"

	"MealSignal/internal/domain/models"
	domrepo "MealSignal/internal/domain/repository"
	"MealSignal/internal/services/matching"
	applogger "MealSignal/pkg/logger"

	"github.com/google/uuid"
)

// Session event types.
const (
	EventRecommendation = "recommendation"
	EventExhausted      = "exhausted"
	EventError          = "error"
)

// ErrNoActiveMatch is reported when next arrives before any recommendation.
var ErrNoActiveMatch = errors.New("no active recommendation")

// SessionEvent is one message for the client.
type SessionEvent struct {
	Type           string
	Recommendation *models.Recommendation
	Err            error
}

type sessionCmd struct {
	next   bool
	query  Query
	notice *SessionEvent
}

type sessionResult struct {
	ticket uint64
	set    *matching.RankedMatchSet // nil for next
	query  Query
	rec    *models.Recommendation
	err    error
}

// Session serves one client. Every recommend, and every next that moves the
// cursor, starts a new ticket and cancels the work of the previous one; a
// result whose ticket is no longer current is dropped. The match set, cursor and ticket belong to the Run
// goroutine.
type Session struct {
	ID string

	rec     *Recommender
	metrics domrepo.Metrics
	l       *applogger.Logger

	cmds    chan sessionCmd
	results chan sessionResult
	events  chan SessionEvent
	done    chan struct{}
}

func NewSession(rec *Recommender, metrics domrepo.Metrics, l *applogger.Logger) *Session {
	if metrics == nil {
		metrics = domrepo.NopMetrics{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	id := uuid.NewString()
	return &Session{
		ID:      id,
		rec:     rec,
		metrics: metrics,
		l:       l.With(applogger.String("session", id)),
		cmds:    make(chan sessionCmd, 8),
		results: make(chan sessionResult),
		events:  make(chan SessionEvent, 8),
		done:    make(chan struct{}),
	}
}

// Events delivers results in order. It is closed when Run returns.
func (s *Session) Events() <-chan SessionEvent {
	return s.events
}

// Recommend starts a new ranking for q.
func (s *Session) Recommend(q Query) bool {
	return s.send(sessionCmd{query: q})
}

// Next moves to the following match.
func (s *Session) Next() bool {
	return s.send(sessionCmd{next: true})
}

// Deliver queues ev for the client behind the events already emitted. It does
// not affect the running operation.
func (s *Session) Deliver(ev SessionEvent) bool {
	return s.send(sessionCmd{notice: &ev})
}

func (s *Session) send(cmd sessionCmd) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.cmds <- cmd:
		return true
	case <-s.done:
		return false
	}
}

// operation is the in-flight recommend or next. Starting one cancels the
// previous one and moves the ticket forward.
type operation struct {
	ticket uint64
	cancel context.CancelFunc
}

func (o *operation) start(parent context.Context) (context.Context, uint64) {
	o.stop()
	o.ticket++
	ctx, cancel := context.WithCancel(parent)
	o.cancel = cancel
	return ctx, o.ticket
}

func (o *operation) stop() {
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
}

// Run processes commands until ctx is done. A next that cannot move (no
// match set yet, or already on the last match) only emits a notice and
// leaves the in-flight operation alone.
func (s *Session) Run(ctx context.Context) {
	defer close(s.events)
	defer close(s.done)

	var (
		set     *matching.RankedMatchSet
		current Query
		op      operation
		emit    = func(ev SessionEvent) bool {
			select {
			case s.events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}
	)
	defer op.stop()

	s.l.Debug("session started")
	for {
		select {
		case <-ctx.Done():
			s.l.Debug("session closed")
			return

		case cmd := <-s.cmds:
			var ev *SessionEvent
			switch {
			case cmd.notice != nil:
				ev = cmd.notice
			case !cmd.next:
				opCtx, ticket := op.start(ctx)
				go s.recommend(opCtx, ticket, cmd.query)
			case set == nil:
				ev = &SessionEvent{Type: EventError, Err: ErrNoActiveMatch}
			case !set.HasNext():
				ev = &SessionEvent{Type: EventExhausted}
			default:
				meal, _ := set.Advance()
				opCtx, ticket := op.start(ctx)
				go s.present(opCtx, ticket, current, meal, set.Index(), set.Len(), !set.HasNext())
			}
			if ev != nil && !emit(*ev) {
				return
			}

		case res := <-s.results:
			if res.ticket != op.ticket {
				s.metrics.RecordStale()
				s.l.Debug("stale result dropped")
				continue
			}
			if res.err != nil {
				if !emit(SessionEvent{Type: EventError, Err: res.err}) {
					return
				}
				continue
			}
			if res.set != nil {
				set, current = res.set, res.query
			}
			go s.rec.PublishServed(ctx, res.query.Target, res.rec)
			if !emit(SessionEvent{Type: EventRecommendation, Recommendation: res.rec}) {
				return
			}
		}
	}
}

func (s *Session) recommend(ctx context.Context, ticket uint64, q Query) {
	q = s.rec.Normalize(q)
	res := sessionResult{ticket: ticket, query: q}

	set, err := s.rec.Rank(ctx, q)
	if err == nil {
		var meal models.ScoredMeal
		meal, err = set.Current()
		if err != nil {
			err = models.ErrEmptyCandidateSet
		} else {
			res.set = set
			res.rec, err = s.rec.Present(ctx, uuid.NewString(), meal, set.Index(), set.Len(), !set.HasNext(), q.WindowHours)
		}
	}
	res.err = err
	s.deliver(res)
}

func (s *Session) present(ctx context.Context, ticket uint64, q Query, meal models.ScoredMeal, rank, total int, exhausted bool) {
	rec, err := s.rec.Present(ctx, uuid.NewString(), meal, rank, total, exhausted, q.WindowHours)
	s.deliver(sessionResult{ticket: ticket, query: q, rec: rec, err: err})
}

// deliver hands res to Run. A cancelled operation still delivers so that Run
// can count it as stale; it gives up only when the session is gone.
func (s *Session) deliver(res sessionResult) {
	select {
	case s.results <- res:
	case <-s.done:
	}
}
