package app

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/vk/phaseboard/internal/monitor"
)

// startStatusServer serves the merged graph + state view as JSON for the
// rendering layer.
func (a *App) startStatusServer(port int, mon *monitor.Monitor) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/view", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(mon.View()); err != nil {
			a.logger.Error("Failed to encode view response", "error", err)
		}
	})
	mux.HandleFunc("/health", a.healthHandler)

	addr := fmt.Sprintf(":%d", port)

	a.logger.Info("📊 Status server starting", "address", fmt.Sprintf("http://localhost%s/api/view", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		a.logger.Error("Status server failed", "error", err)
	}
}
