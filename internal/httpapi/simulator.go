package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tmorst/signalboard/internal/controller"
	"github.com/tmorst/signalboard/internal/hub"
	"github.com/tmorst/signalboard/internal/media"
	"github.com/tmorst/signalboard/internal/ws"
)

// SimulatorRoutes builds the upstream controller server's surface: the
// push feed plus the fire-and-forget command endpoints the dashboard UI
// calls.
func SimulatorRoutes(ctrl *controller.Controller, h *hub.Hub, store *media.Store, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/ws/emergency", ws.Handler(h, log))
	r.Post("/signal/{laneID}/force", ForceSignal(ctrl))
	r.Post("/signal/{laneID}/simulate_emergency", SimulateEmergency(ctrl))
	r.Post("/upload/{laneID}", UploadVideo(store))
	r.Get("/video/{laneID}", ServeVideo(store))
	r.Delete("/video/{laneID}", ClearVideo(store))
	r.Delete("/videos", ClearAllVideos(store))
	r.Get("/status", MediaStatus(store))
	return r
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func laneParam(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "laneID"))
	return id, err == nil && id > 0
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type statusBody struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func ForceSignal(ctrl *controller.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		laneID, ok := laneParam(r)
		if !ok {
			http.Error(w, "invalid lane id", http.StatusBadRequest)
			return
		}
		ctrl.Inbox() <- controller.ForceGreen{LaneID: laneID}
		writeJSON(w, http.StatusOK, statusBody{Status: "success", Message: "Lane " + chi.URLParam(r, "laneID") + " forced to Green"})
	}
}

func SimulateEmergency(ctrl *controller.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		laneID, ok := laneParam(r)
		if !ok {
			http.Error(w, "invalid lane id", http.StatusBadRequest)
			return
		}
		active, err := strconv.ParseBool(r.URL.Query().Get("active"))
		if err != nil {
			http.Error(w, "missing or invalid active flag", http.StatusBadRequest)
			return
		}
		ctrl.Inbox() <- controller.SetEmergency{LaneID: laneID, Active: active}
		writeJSON(w, http.StatusOK, struct {
			Status    string `json:"status"`
			Emergency bool   `json:"emergency"`
		}{Status: "success", Emergency: active})
	}
}

func UploadVideo(store *media.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		laneID, ok := laneParam(r)
		if !ok {
			http.Error(w, "invalid lane id", http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "missing file field", http.StatusBadRequest)
			return
		}
		defer file.Close()

		path, err := store.Save(laneID, header.Filename, file)
		if err != nil {
			http.Error(w, "failed to save upload", http.StatusInternalServerError)
			return
		}

		lanes, allReady := store.Ready()
		writeJSON(w, http.StatusOK, struct {
			Status     string `json:"status"`
			FilePath   string `json:"file_path"`
			LanesReady int    `json:"lanes_ready"`
			AllReady   bool   `json:"all_ready"`
		}{Status: "success", FilePath: path, LanesReady: len(lanes), AllReady: allReady})
	}
}

// ServeVideo hands back the stored source file; the dashboard appends a
// cache-busting query parameter, which is irrelevant server-side.
func ServeVideo(store *media.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		laneID, ok := laneParam(r)
		if !ok {
			http.Error(w, "invalid lane id", http.StatusBadRequest)
			return
		}
		path, ok := store.Path(laneID)
		if !ok {
			http.Error(w, "no video for lane", http.StatusNotFound)
			return
		}
		http.ServeFile(w, r, path)
	}
}

func ClearVideo(store *media.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		laneID, ok := laneParam(r)
		if !ok {
			http.Error(w, "invalid lane id", http.StatusBadRequest)
			return
		}
		store.Clear(laneID)
		writeJSON(w, http.StatusOK, statusBody{Status: "success", Message: "Video cleared for Lane " + chi.URLParam(r, "laneID")})
	}
}

func ClearAllVideos(store *media.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store.ClearAll()
		writeJSON(w, http.StatusOK, statusBody{Status: "success", Message: "All videos cleared"})
	}
}

func MediaStatus(store *media.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lanes, allReady := store.Ready()
		if lanes == nil {
			lanes = []int{}
		}
		writeJSON(w, http.StatusOK, struct {
			LanesReady      int   `json:"lanes_ready"`
			LanesWithVideos []int `json:"lanes_with_videos"`
			AllReady        bool  `json:"all_ready"`
		}{LanesReady: len(lanes), LanesWithVideos: lanes, AllReady: allReady})
	}
}
