package api

import (
	"context"
	"net/http"
	"time"

	"MealSignal/internal/domain/models"
	domrepo "MealSignal/internal/domain/repository"
	"MealSignal/internal/service/ratelimit"
	"MealSignal/internal/usecase"
	xhttp "MealSignal/pkg/http"
	xlogger "MealSignal/pkg/logger"
	"MealSignal/pkg/util"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsReadLimit    = 4096
)

// clientMessage is what the browser sends: {"type":"recommend", ...} or {"type":"next"}.
type clientMessage struct {
	Type string `json:"type"`
	models.RecommendRequest
	Window *float64 `json:"window"`
}

type serverMessage struct {
	Type           string                  `json:"type"`
	SessionID      string                  `json:"session_id"`
	Recommendation *models.Recommendation  `json:"recommendation,omitempty"`
	Code           string                  `json:"code,omitempty"`
	Message        string                  `json:"message,omitempty"`
	Errors         []xhttp.ValidationError `json:"errors,omitempty"`
}

// SessionHandler upgrades /ws to a recommendation session.
type SessionHandler struct {
	logger   *xlogger.Logger
	rec      *usecase.Recommender
	metrics  domrepo.Metrics
	rl       *ratelimit.Limiter
	upgrader websocket.Upgrader
}

func NewSessionHandler(logger *xlogger.Logger, rec *usecase.Recommender, metrics domrepo.Metrics, rl *ratelimit.Limiter) *SessionHandler {
	return &SessionHandler{
		logger:  logger,
		rec:     rec,
		metrics: metrics,
		rl:      rl,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *SessionHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", h.Serve)
}

func (h *SessionHandler) Serve(c echo.Context) error {
	client := xhttp.ClientKey(c)
	if h.rl != nil && !h.rl.Allow(client) {
		return xhttp.TooManyRequestsResponse(c)
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already answered the client.
		h.logger.Warn("websocket upgrade failed", xlogger.Error(err))
		return nil
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	session := usecase.NewSession(h.rec, h.metrics, h.logger)
	l := h.logger.With(xlogger.String("session", session.ID), xlogger.String("client", client))
	l.Info("websocket session opened")

	go session.Run(ctx)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for ev := range session.Events() {
			if err := h.write(conn, toServerMessage(session.ID, ev)); err != nil {
				l.Debug("websocket write failed", xlogger.Error(err))
				cancel()
				_ = conn.Close()
				return
			}
		}
	}()

	conn.SetReadLimit(wsReadLimit)
	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				l.Debug("websocket read ended", xlogger.Error(err))
			}
			break
		}
		if h.rl != nil && !h.rl.Allow(client) {
			session.Deliver(usecase.SessionEvent{Type: usecase.EventError, Err: xhttp.TooManyRequestsError()})
			continue
		}
		h.dispatch(ctx, session, msg)
	}

	cancel()
	<-writerDone
	l.Info("websocket session closed")
	return nil
}

func (h *SessionHandler) dispatch(ctx context.Context, s *usecase.Session, msg clientMessage) {
	switch msg.Type {
	case "recommend":
		if verr := xhttp.ValidateStruct(ctx, &msg.RecommendRequest); verr != nil {
			s.Deliver(usecase.SessionEvent{Type: usecase.EventError, Err: xhttp.ValidationFailedError(verr)})
			return
		}
		q := usecase.Query{
			Target:       msg.Target(),
			WindowHours:  h.rec.DefaultWindowHours(),
			Participants: util.SplitCSV(msg.Participants),
			Mode:         domrepo.ParseMealMode(msg.Mode, ""),
		}
		if msg.Window != nil {
			q.WindowHours = *msg.Window
		}
		s.Recommend(q)
	case "next":
		s.Next()
	default:
		s.Deliver(usecase.SessionEvent{Type: usecase.EventError, Err: xhttp.BadRequestErrorf("unknown message type %q", msg.Type)})
	}
}

func (h *SessionHandler) write(conn *websocket.Conn, msg serverMessage) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}

func toServerMessage(sessionID string, ev usecase.SessionEvent) serverMessage {
	msg := serverMessage{Type: ev.Type, SessionID: sessionID, Recommendation: ev.Recommendation}
	if ev.Err == nil {
		return msg
	}

	appErr := toAppError(ev.Err)
	msg.Code, msg.Message = appErr.Code, appErr.Message
	if len(appErr.Details) > 0 {
		msg.Errors = appErr.Details
	}
	return msg
}
