package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
)

// EventSink is the lifecycle surface the webhook dispatcher drives.
type EventSink interface {
	HandleEvent(ctx context.Context, event, matchID string) error
	RefreshLiveScore(ctx context.Context, matchID string) error
}

// WebhookServer terminates the FACEIT webhook and the manual refresh
// endpoint. Every request is answered 200: the sender retries on non-2xx
// and business-level no-ops (duplicates, unknown matches, malformed bodies)
// must not trigger redelivery.
type WebhookServer struct {
	sink   EventSink
	logger zerolog.Logger
}

func NewWebhookServer(sink EventSink, logger zerolog.Logger) *WebhookServer {
	return &WebhookServer{sink: sink, logger: logger}
}

func (s *WebhookServer) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhook", s.handleWebhook)
	mux.HandleFunc("POST /updatelivescores", s.handleUpdateLiveScores)
}

type webhookBody struct {
	Event   string `json:"event"`
	Payload struct {
		ID string `json:"id"`
	} `json:"payload"`
}

func (s *WebhookServer) handleWebhook(w http.ResponseWriter, r *http.Request) {
	defer w.WriteHeader(http.StatusOK)

	var body webhookBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.logger.Warn().Err(err).Msg("malformed webhook body, ignoring")
		return
	}
	if body.Event == "" || body.Payload.ID == "" {
		s.logger.Warn().Str("event", body.Event).Msg("webhook missing event or match id, ignoring")
		return
	}

	if err := s.sink.HandleEvent(r.Context(), body.Event, body.Payload.ID); err != nil {
		s.logger.Error().Err(err).
			Str("event", body.Event).
			Str("match_id", body.Payload.ID).
			Msg("event handling failed")
	}
}

type refreshBody struct {
	MatchID string `json:"matchId"`
}

func (s *WebhookServer) handleUpdateLiveScores(w http.ResponseWriter, r *http.Request) {
	defer w.WriteHeader(http.StatusOK)

	var body refreshBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.logger.Warn().Err(err).Msg("malformed refresh body, ignoring")
		return
	}
	if body.MatchID == "" {
		return
	}

	if err := s.sink.RefreshLiveScore(r.Context(), body.MatchID); err != nil {
		s.logger.Warn().Err(err).Str("match_id", body.MatchID).Msg("manual live score refresh failed")
	}
}
