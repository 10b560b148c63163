// Package sensorstatus polls the sensor host's small HTTP status endpoint
// so the bridge display can show whether the device and the feed are up.
// Purely observational; nothing here feeds back into the pipeline.
package sensorstatus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Status struct {
	Device string
	Feed   string
}

// Poll fetches the sensor status every interval and hands it to update
// until ctx is done. An empty baseURL disables polling entirely.
func Poll(ctx context.Context, baseURL string, interval time.Duration, update func(Status)) {
	if baseURL == "" || update == nil {
		return
	}
	baseURL = strings.TrimRight(baseURL, "/")
	client := &http.Client{
		Timeout: 900 * time.Millisecond,
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		update(fetch(ctx, client, baseURL+"/status"))

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func fetch(ctx context.Context, client *http.Client, endpoint string) Status {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Status{Device: "error", Feed: "error"}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Status{Device: "unreachable", Feed: "unreachable"}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		s := fmt.Sprintf("http_%d", resp.StatusCode)
		return Status{Device: s, Feed: s}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil || len(body) == 0 {
		return Status{Device: "ok", Feed: "ok"}
	}

	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return Status{Device: "ok", Feed: "ok"}
	}
	return Status{
		Device: stateOf(decoded, "device"),
		Feed:   stateOf(decoded, "feed"),
	}
}

// stateOf digs the state string for one subsystem out of the status
// payload, accepting either {"device":"running"} or
// {"device":{"state":"running"}} shapes.
func stateOf(payload map[string]any, key string) string {
	entry, ok := payload[key]
	if !ok {
		return "ok"
	}
	switch v := entry.(type) {
	case string:
		return strings.ToLower(v)
	case map[string]any:
		for _, k := range []string{"state", "status", "value"} {
			if s, ok := v[k].(string); ok {
				return strings.ToLower(s)
			}
		}
	}
	return "ok"
}
