package counter

import (
	"context"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const webhookTriageKey = "payouts:counters:webhook_triage"

// Recorder keeps best-effort webhook triage counters in a Redis hash. A
// Recorder without a client drops every increment.
type Recorder struct {
	client redis.UniversalClient
}

// NewRecorder returns a Recorder on client, which may be nil.
func NewRecorder(client redis.UniversalClient) *Recorder {
	return &Recorder{client: client}
}

// Enabled reports whether increments reach Redis.
func (r *Recorder) Enabled() bool {
	return r != nil && r.client != nil
}

// AddTriage increments the counter for each flag.
func (r *Recorder) AddTriage(ctx context.Context, flags ...string) error {
	if !r.Enabled() || len(flags) == 0 {
		return nil
	}
	pipe := r.client.Pipeline()
	for _, flag := range flags {
		pipe.HIncrBy(ctx, webhookTriageKey, flag, 1)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Count is one triage counter.
type Count struct {
	Flag  string `json:"flag"`
	Count int64  `json:"count"`
}

// Snapshot returns all triage counters sorted by flag.
func (r *Recorder) Snapshot(ctx context.Context) ([]Count, error) {
	if !r.Enabled() {
		return nil, nil
	}
	data, err := r.client.HGetAll(ctx, webhookTriageKey).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Count, 0, len(data))
	for flag, raw := range data {
		n, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil {
			continue
		}
		out = append(out, Count{Flag: flag, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Flag < out[j].Flag })
	return out, nil
}
