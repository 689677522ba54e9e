package controller

import (
	"context"
	"net/http"
	"time"
)

func (c *Controller) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	head, err := c.App.Scanner.Client.BlockNumber(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "errored", "error": "rpc connection error"})
		return
	}

	if c.App.RedisClient != nil {
		if err := c.App.RedisClient.Health(ctx); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "errored", "error": "redis connection error"})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "block_number": head})
}
