// internal/progress/tracker.go
package progress

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Data tracks the progress of one task execution. One goroutine writes,
// any number read.
type Data struct {
	taskID    string
	total     int64
	startTime time.Time

	current      atomic.Int64
	currentValue atomic.Uint64 // float64 bits
	finalValue   atomic.Uint64 // float64 bits
	finished     atomic.Bool
}

// Snapshot is a consistent-enough view of Data for reporting
type Snapshot struct {
	TaskID                   string    `json:"taskId"`
	Total                    int64     `json:"total"`
	Current                  int64     `json:"current"`
	Percent                  int       `json:"percent"`
	StartTime                time.Time `json:"startTime"`
	ElapsedMillis            int64     `json:"elapsedMillis"`
	EstimatedRemainingMillis int64     `json:"estimatedRemainingMillis"`
	CurrentValue             float64   `json:"currentValue"`
	FinalValue               float64   `json:"finalValue"`
	Done                     bool      `json:"done"`
}

func newData(taskID string, total int64) *Data {
	return &Data{
		taskID:    taskID,
		total:     total,
		startTime: time.Now(),
	}
}

// TaskID returns the task this progress belongs to
func (d *Data) TaskID() string { return d.taskID }

// Total returns the expected number of steps
func (d *Data) Total() int64 { return d.total }

// Current returns the number of completed steps
func (d *Data) Current() int64 { return d.current.Load() }

// SetCurrent records n completed steps. Values lower than the current one are ignored.
func (d *Data) SetCurrent(n int64) {
	for {
		cur := d.current.Load()
		if n <= cur {
			return
		}
		if d.current.CompareAndSwap(cur, n) {
			return
		}
	}
}

// Advance adds delta completed steps
func (d *Data) Advance(delta int64) {
	if delta > 0 {
		d.current.Add(delta)
	}
}

// SetCurrentValue stores the latest intermediate value
func (d *Data) SetCurrentValue(v float64) { d.currentValue.Store(math.Float64bits(v)) }

// CurrentValue returns the latest intermediate value
func (d *Data) CurrentValue() float64 { return math.Float64frombits(d.currentValue.Load()) }

// SetFinalValue stores the final value
func (d *Data) SetFinalValue(v float64) { d.finalValue.Store(math.Float64bits(v)) }

// FinalValue returns the final value
func (d *Data) FinalValue() float64 { return math.Float64frombits(d.finalValue.Load()) }

// Finish forces progress to 100%
func (d *Data) Finish() {
	d.SetCurrent(d.total)
	d.finished.Store(true)
}

// Percent returns completed steps as an integer percentage of the total
func (d *Data) Percent() int {
	if d.total <= 0 {
		if d.finished.Load() {
			return 100
		}
		return 0
	}
	p := int(float64(d.current.Load()) / float64(d.total) * 100)
	if p > 100 {
		return 100
	}
	return p
}

// Elapsed returns the time since tracking started
func (d *Data) Elapsed() time.Duration {
	return time.Since(d.startTime)
}

// EstimatedRemaining extrapolates linearly from the elapsed time.
// Returns -1 while nothing is done yet.
func (d *Data) EstimatedRemaining() time.Duration {
	p := d.Percent()
	if p == 0 {
		return -1
	}
	elapsed := d.Elapsed()
	return elapsed * time.Duration(100-p) / time.Duration(p)
}

// Snapshot captures the current state
func (d *Data) Snapshot() Snapshot {
	remaining := d.EstimatedRemaining()
	remainingMillis := int64(-1)
	if remaining >= 0 {
		remainingMillis = remaining.Milliseconds()
	}

	return Snapshot{
		TaskID:                   d.taskID,
		Total:                    d.total,
		Current:                  d.Current(),
		Percent:                  d.Percent(),
		StartTime:                d.startTime,
		ElapsedMillis:            d.Elapsed().Milliseconds(),
		EstimatedRemainingMillis: remainingMillis,
		CurrentValue:             d.CurrentValue(),
		FinalValue:               d.FinalValue(),
		Done:                     d.finished.Load(),
	}
}

// Tracker holds progress for running and finished tasks.
// Entries stay until Delete is called.
type Tracker struct {
	entries sync.Map // taskID -> *Data
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{}
}

// Start begins tracking taskID, replacing any previous entry
func (t *Tracker) Start(taskID string, total int64) *Data {
	d := newData(taskID, total)
	t.entries.Store(taskID, d)
	return d
}

// Get returns the progress of taskID
func (t *Tracker) Get(taskID string) (*Data, bool) {
	v, ok := t.entries.Load(taskID)
	if !ok {
		return nil, false
	}
	return v.(*Data), true
}

// Snapshot returns a snapshot of taskID
func (t *Tracker) Snapshot(taskID string) (Snapshot, bool) {
	d, ok := t.Get(taskID)
	if !ok {
		return Snapshot{}, false
	}
	return d.Snapshot(), true
}

// Snapshots returns snapshots of all tracked tasks ordered by start time
func (t *Tracker) Snapshots() []Snapshot {
	var out []Snapshot
	t.entries.Range(func(_, v any) bool {
		out = append(out, v.(*Data).Snapshot())
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

// Delete stops tracking taskID
func (t *Tracker) Delete(taskID string) {
	t.entries.Delete(taskID)
}
