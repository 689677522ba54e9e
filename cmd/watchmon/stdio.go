package main

import (
	"bufio"
	"context"
	"encoding/json"
	"io"

	"github.com/watchmon/watchmon/app/server/tools"
)

type stdioRequest struct {
	ID        json.RawMessage `json:"id,omitempty"`
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

type stdioResponse struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Result any             `json:"result"`
}

// runStdio reads one JSON request per line from in and writes one response
// per line to out, in order, until in is exhausted or ctx is cancelled.
func runStdio(ctx context.Context, reg *tools.Registry, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	enc := json.NewEncoder(out)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req stdioRequest
		var resp stdioResponse
		if err := json.Unmarshal(line, &req); err != nil {
			resp.Result = tools.ErrorResult{Error: "invalid request: " + err.Error()}
		} else {
			resp.ID = req.ID
			resp.Result = reg.Invoke(ctx, req.Tool, req.Arguments)
		}

		if err := enc.Encode(resp); err != nil {
			return err
		}
	}
	return scanner.Err()
}
