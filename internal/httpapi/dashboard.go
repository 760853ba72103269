package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tmorst/signalboard/internal/client"
	"github.com/tmorst/signalboard/internal/laneview"
)

// DashboardRoutes exposes the derived view model to the rendering layer.
// The rendering layer polls or re-fetches on its own cadence; derivation
// is cheap and happens fresh per request, so there is nothing to go stale.
func DashboardRoutes(fc *client.Client, laneIDs []int, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/api/lanes", LaneViews(fc, laneIDs))
	return r
}

// LanesResponse is the dashboard API payload: connection status, global
// banner state, and one record per configured lane.
type LanesResponse struct {
	ConnectionStatus client.Status       `json:"connectionStatus"`
	Banner           laneview.Banner     `json:"banner"`
	Lanes            []laneview.LaneView `json:"lanes"`
}

func LaneViews(fc *client.Client, laneIDs []int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view := fc.State()
		writeJSON(w, http.StatusOK, LanesResponse{
			ConnectionStatus: view.Status,
			Banner:           laneview.BannerFor(view.Snapshot),
			Lanes:            laneview.Derive(view.Snapshot, laneIDs),
		})
	}
}
