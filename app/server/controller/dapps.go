package controller

import (
	"net/http"
	"strconv"

	"github.com/go-jose/go-jose/v4/json"
	"go.uber.org/zap"

	"github.com/watchmon/watchmon/app/server/types"
	"github.com/watchmon/watchmon/pkg/redis"
)

const maxHistory = 100

// HandleTopDapps returns the latest top-dApps ranking. With ?history=N it
// returns up to N past rankings from Redis instead, newest first.
func (c *Controller) HandleTopDapps(w http.ResponseWriter, r *http.Request) {
	if v := r.URL.Query().Get("history"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxHistory {
			writeError(w, http.StatusBadRequest, "history must be between 1 and 100")
			return
		}
		c.topDappsHistory(w, r, int64(n))
		return
	}

	snap := c.App.Latest.Load()
	if snap == nil {
		writeError(w, http.StatusNotFound, "no ranking computed yet")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (c *Controller) topDappsHistory(w http.ResponseWriter, r *http.Request, n int64) {
	if c.App.RedisClient == nil {
		writeError(w, http.StatusServiceUnavailable, "history not available (Redis disabled)")
		return
	}

	entries, err := c.App.RedisClient.Latest(r.Context(), redis.TopDappsStream, n)
	if err != nil {
		c.App.Logger.Error("Failed to read top dApps history", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read history")
		return
	}

	out := make([]types.TopSnapshot, 0, len(entries))
	for _, e := range entries {
		raw, _ := e.Values["payload"].(string)
		var snap types.TopSnapshot
		if err := json.Unmarshal([]byte(raw), &snap); err != nil {
			c.App.Logger.Warn("Skipping malformed history entry", zap.String("id", e.ID), zap.Error(err))
			continue
		}
		out = append(out, snap)
	}
	writeJSON(w, http.StatusOK, out)
}
