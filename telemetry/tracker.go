package telemetry

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"
)

// Tracker ships run-scoped data to an external experiment tracker: a static
// config snapshot once at startup, then key/value series keyed by training
// step. All delivery is best effort over HTTP; a tracker outage never
// surfaces to the caller. A Tracker without a key is disabled and discards
// everything.
type Tracker struct {
	endpoint string
	key      string
	project  string
	run      string
	client   *http.Client
}

// NewTracker creates a tracker for one run. endpoint and key may be empty,
// which disables shipping.
func NewTracker(endpoint, key, project, run string) *Tracker {
	return &Tracker{
		endpoint: endpoint,
		key:      key,
		project:  project,
		run:      run,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// Enabled reports whether the tracker will actually ship anything.
func (t *Tracker) Enabled() bool {
	return t.endpoint != "" && t.key != ""
}

type trackerEvent struct {
	Project string                 `json:"project"`
	Run     string                 `json:"run"`
	Step    *int                   `json:"step,omitempty"`
	Config  map[string]interface{} `json:"config,omitempty"`
	Values  map[string]float64     `json:"values,omitempty"`
}

// LogConfig ships the static, already-redacted config snapshot.
func (t *Tracker) LogConfig(config map[string]interface{}) {
	t.post(trackerEvent{Project: t.project, Run: t.run, Config: config})
}

// LogMetrics ships one point of every series in values.
func (t *Tracker) LogMetrics(step int, values map[string]float64) {
	t.post(trackerEvent{Project: t.project, Run: t.run, Step: &step, Values: values})
}

func (t *Tracker) post(event trackerEvent) {
	if !t.Enabled() {
		return
	}
	body, err := json.Marshal(event)
	if err != nil {
		return
	}
	req, err := http.NewRequest(http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.key)

	resp, err := t.client.Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}
