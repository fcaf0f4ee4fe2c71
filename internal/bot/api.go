package bot

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// Handler serves the status API: a health probe backed by the store and a
// per-guild moderation report.
func (b *Bot) Handler() http.Handler {
	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.Recoverer)

	mux.Get("/health", b.handleHealth)
	mux.Get("/guilds/{guildID}/report", b.handleReport)
	return mux
}

func (b *Bot) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := b.store.Ping(ctx); err != nil {
		b.logger.Warn("health check failed", zap.Error(err))
		b.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
		return
	}
	b.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (b *Bot) handleReport(w http.ResponseWriter, r *http.Request) {
	window := 24 * time.Hour
	switch r.URL.Query().Get("period") {
	case "", "day":
	case "week":
		window = 7 * 24 * time.Hour
	default:
		b.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "period must be day or week"})
		return
	}

	report, err := b.analytics.Report(r.Context(), chi.URLParam(r, "guildID"), b.clock.Now().Add(-window))
	if err != nil {
		b.logger.Error("report failed", zap.Error(err))
		b.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "report unavailable"})
		return
	}
	b.writeJSON(w, http.StatusOK, report)
}

func (b *Bot) writeJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		b.logger.Error("response encoding failed", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
