package controller

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"
)

const maxArgsBytes = 1 << 20

// HandleToolsList describes every registered tool.
func (c *Controller) HandleToolsList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, c.App.Registry.List())
}

// HandleToolCall runs the named tool with the request body as its arguments.
// Tool failures are reported as {"error": ...} with status 200.
func (c *Controller) HandleToolCall(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if _, ok := c.App.Registry.Lookup(name); !ok {
		writeError(w, http.StatusNotFound, "unknown tool: "+name)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxArgsBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "arguments too large")
		return
	}

	writeJSON(w, http.StatusOK, c.App.Registry.Invoke(r.Context(), name, json.RawMessage(body)))
}

// HandleJobs lists the long-running tool calls in flight.
func (c *Controller) HandleJobs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, c.App.Jobs.Snapshot())
}
