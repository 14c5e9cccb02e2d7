package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/stashq/cli/internal/api"
)

// DefaultCacheSize bounds the snapshot cache to the active view's page size.
const DefaultCacheSize = 25

// UpdateEvent is a partial, possibly stale push snapshot from a job_update
// frame. Raw preserves the full payload so fields this client does not model
// still merge into the cached document.
type UpdateEvent struct {
	JobID            string   `json:"job_id"`
	Status           string   `json:"status"`
	Progress         *float64 `json:"progress,omitempty"`
	ErrorMessage     *string  `json:"error_message,omitempty"`
	RetriesExhausted *bool    `json:"retries_exhausted,omitempty"`
	Timestamp        float64  `json:"timestamp,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// ParseUpdate decodes a job_update frame payload.
//
// Parameters:
//   - data: The frame's JSON payload
//
// Returns:
//   - *UpdateEvent: The decoded event with the raw payload attached
//   - error: Parse failure or missing job_id
func ParseUpdate(data []byte) (*UpdateEvent, error) {
	var ev UpdateEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("failed to parse job update: %w", err)
	}
	if ev.JobID == "" {
		return nil, fmt.Errorf("job update missing job_id")
	}
	ev.Raw = append(json.RawMessage(nil), data...)
	return &ev, nil
}

// Fetcher performs the authoritative pull for a job. *api.Client satisfies it.
type Fetcher interface {
	GetJob(ctx context.Context, jobID string) (*api.Job, error)
}

// pendingFetch tracks an in-flight authoritative fetch and the newest push
// buffered behind it.
type pendingFetch struct {
	// latest is the most recent push for this job by timestamp.
	latest *UpdateEvent

	// coalesced is true once a second push arrived while the fetch was in
	// flight, meaning latest must be re-applied after the fetch resolves.
	coalesced bool
}

// Router applies push updates to the local snapshot cache, reconciling them
// against authoritative fetches on status changes and terminal events.
//
// The cache is owned exclusively by the Router and mutated only behind its
// mutex. Authoritative fetches run on their own goroutines and never block
// the stream-reading loop.
type Router struct {
	mu sync.Mutex

	fetcher Fetcher

	// cache maps job ID to its snapshot; order lists cached IDs newest
	// insert first and bounds the cache to the view size.
	cache map[string]*api.Job
	order []string

	// inflight coalesces bursts of updates for the same job into one fetch.
	inflight map[string]*pendingFetch

	capacity int

	// filter is the active view predicate; fetched jobs that do not match
	// are not inserted.
	filter func(*api.Job) bool

	// onChange fires after any cache mutation, outside the lock.
	onChange func()

	// onFetchFailure records a health sample when a refetch fails for a
	// reason other than visibility.
	onFetchFailure func()
}

// RouterOptions configures a Router.
type RouterOptions struct {
	// Fetcher performs authoritative job fetches.
	Fetcher Fetcher

	// Capacity bounds the cache; DefaultCacheSize when zero or negative.
	Capacity int

	// Filter is the active view predicate. Nil admits everything.
	Filter func(*api.Job) bool

	// OnChange fires after any cache mutation.
	OnChange func()

	// OnFetchFailure fires when an authoritative fetch fails for a reason
	// other than visibility.
	OnFetchFailure func()
}

// NewRouter creates a job update router.
//
// Parameters:
//   - opts: Router configuration
//
// Returns:
//   - *Router: An empty router
func NewRouter(opts RouterOptions) *Router {
	r := &Router{
		fetcher:        opts.Fetcher,
		cache:          make(map[string]*api.Job),
		inflight:       make(map[string]*pendingFetch),
		capacity:       opts.Capacity,
		filter:         opts.Filter,
		onChange:       opts.OnChange,
		onFetchFailure: opts.OnFetchFailure,
	}
	if r.capacity <= 0 {
		r.capacity = DefaultCacheSize
	}
	if r.filter == nil {
		r.filter = func(*api.Job) bool { return true }
	}
	return r
}

// Prime seeds the cache from an authoritative listing, newest first. Existing
// entries are replaced.
//
// Parameters:
//   - jobs: The active view page, newest first
func (r *Router) Prime(jobs []api.Job) {
	r.mu.Lock()
	r.cache = make(map[string]*api.Job, len(jobs))
	r.order = r.order[:0]
	for i := range jobs {
		if len(r.order) >= r.capacity {
			break
		}
		job := jobs[i]
		if job.Raw == nil {
			// Listing rows arrive without their raw document; rebuild
			// one so later pushes have something to merge into.
			raw, err := json.Marshal(&job)
			if err != nil {
				continue
			}
			job.Raw = raw
		}
		r.cache[job.ID] = &job
		r.order = append(r.order, job.ID)
	}
	r.mu.Unlock()
	r.notifyChange()
}

// Apply routes one push update into the cache. It returns quickly; any
// authoritative fetch it decides to issue runs on its own goroutine.
//
// Parameters:
//   - ctx: Context for the fetch, if one is issued
//   - ev: The push update
func (r *Router) Apply(ctx context.Context, ev *UpdateEvent) {
	r.mu.Lock()

	// Coalesce: one fetch per job. Later field values win by timestamp
	// once the in-flight fetch resolves.
	if pf, ok := r.inflight[ev.JobID]; ok {
		if ev.Timestamp >= pf.latest.Timestamp {
			pf.latest = ev
			pf.coalesced = true
		}
		r.mu.Unlock()
		return
	}

	snap, cached := r.cache[ev.JobID]
	if cached {
		statusChanged := ev.Status != "" && ev.Status != snap.Status
		if statusChanged || IsTerminal(ev.Status) {
			r.startFetchLocked(ctx, ev)
			r.mu.Unlock()
			return
		}

		// Same non-terminal status: merge only, no network call.
		changed := r.mergeLocked(snap, ev)
		r.mu.Unlock()
		if changed {
			r.notifyChange()
		}
		return
	}

	// Untracked job: only an authoritative fetch can admit it.
	r.startFetchLocked(ctx, ev)
	r.mu.Unlock()
}

// startFetchLocked registers the in-flight marker and spawns the fetch
// goroutine. Caller holds mu.
func (r *Router) startFetchLocked(ctx context.Context, ev *UpdateEvent) {
	r.inflight[ev.JobID] = &pendingFetch{latest: ev}
	go r.fetch(ctx, ev.JobID)
}

// fetch performs the authoritative pull and resolves the pending state.
func (r *Router) fetch(ctx context.Context, jobID string) {
	job, err := r.fetcher.GetJob(ctx, jobID)

	r.mu.Lock()
	pf := r.inflight[jobID]
	delete(r.inflight, jobID)

	changed := false
	switch {
	case err == nil:
		changed = r.resolveFetchedLocked(job, pf)

	case api.IsNotVisible(err):
		// The job belongs to a different principal. Not an error:
		// drop silently and never insert.
		log.Debug("job not visible, dropping update", "job", jobID)

	default:
		log.Debug("authoritative fetch failed", "job", jobID, "err", err)
		if r.onFetchFailure != nil {
			// Record outside the lock below; flag it here.
			defer r.onFetchFailure()
		}
		// Refetch failure for a cached entry: shallow-merge the push
		// fields so the view is not stale. Untracked jobs stay out of
		// the cache; only an authoritative fetch can admit them.
		if snap, ok := r.cache[jobID]; ok && pf != nil {
			changed = r.mergeLocked(snap, pf.latest)
		}
	}
	r.mu.Unlock()

	if changed {
		r.notifyChange()
	}
}

// resolveFetchedLocked installs an authoritative snapshot and re-applies the
// newest buffered push on top of it. Caller holds mu.
func (r *Router) resolveFetchedLocked(job *api.Job, pf *pendingFetch) bool {
	if _, exists := r.cache[job.ID]; exists {
		// Replace in place, keeping the entry's position in the view.
		r.cache[job.ID] = job
	} else {
		// Race-safe insert: only if still absent and matching the
		// active view's filter.
		if !r.filter(job) {
			return false
		}
		r.insertLocked(job)
	}

	// A burst that arrived while the fetch was in flight may carry newer
	// field values than the fetched record.
	if pf != nil && pf.coalesced {
		r.mergeLocked(job, pf.latest)
	}
	return true
}

// insertLocked prepends a new entry, evicting the oldest when over capacity.
// Caller holds mu.
func (r *Router) insertLocked(job *api.Job) {
	r.cache[job.ID] = job
	r.order = append([]string{job.ID}, r.order...)
	if len(r.order) > r.capacity {
		evicted := r.order[len(r.order)-1]
		r.order = r.order[:len(r.order)-1]
		delete(r.cache, evicted)
	}
}

// mergeLocked shallow-merges push fields onto a cached snapshot document and
// reports whether the entry changed. A push that would regress a terminal
// status to a non-terminal one without authoritative confirmation is dropped.
// Caller holds mu.
func (r *Router) mergeLocked(snap *api.Job, ev *UpdateEvent) bool {
	if ev == nil || ev.Raw == nil {
		return false
	}
	if IsTerminal(snap.Status) && ev.Status != "" && !IsTerminal(ev.Status) {
		log.Debug("dropping stale non-terminal push for terminal job", "job", snap.ID, "pushed", ev.Status)
		return false
	}

	doc := snap.Raw
	var mergeErr error
	gjson.ParseBytes(ev.Raw).ForEach(func(key, value gjson.Result) bool {
		switch key.Str {
		case "job_id", "timestamp":
			// Envelope fields, not snapshot fields.
			return true
		}
		doc, mergeErr = sjson.SetRawBytes(doc, key.Str, []byte(value.Raw))
		return mergeErr == nil
	})
	if mergeErr != nil {
		log.Debug("push merge failed", "job", snap.ID, "err", mergeErr)
		return false
	}

	var merged api.Job
	if err := json.Unmarshal(doc, &merged); err != nil {
		log.Debug("merged document unparsable, keeping snapshot", "job", snap.ID, "err", err)
		return false
	}
	merged.Raw = doc
	r.cache[snap.ID] = &merged
	return true
}

// Jobs returns the cached snapshots in view order, newest insert first.
//
// Returns:
//   - []api.Job: Copies of the cached snapshots
func (r *Router) Jobs() []api.Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	jobs := make([]api.Job, 0, len(r.order))
	for _, id := range r.order {
		if snap, ok := r.cache[id]; ok {
			jobs = append(jobs, *snap)
		}
	}
	return jobs
}

// Get returns the cached snapshot for a job, if present.
//
// Parameters:
//   - jobID: The job ID
//
// Returns:
//   - *api.Job: A copy of the snapshot, or nil
//   - bool: True if the job is cached
func (r *Router) Get(jobID string) (*api.Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap, ok := r.cache[jobID]
	if !ok {
		return nil, false
	}
	job := *snap
	return &job, true
}

// notifyChange fires the change hook outside the lock.
func (r *Router) notifyChange() {
	if r.onChange != nil {
		r.onChange()
	}
}
