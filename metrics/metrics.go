// Package metrics implements the pure, deterministic computations of §4.3.
// No function here performs I/O; every input is an in-memory slice of
// already-decoded payloads.
package metrics

import (
	"time"

	"github.com/gitgov-dev/gitgov-core/record"
)

// statusPoints is the weighting table for Health (§4.3).
var statusPoints = map[string]float64{
	"done":      100,
	"archived":  100,
	"active":    80,
	"review":    80,
	"ready":     80,
	"draft":     60,
	"paused":    0,
	"blocked":   0,
	"cancelled": 0,
	"discarded": 0,
}

// Health returns a weighted score in [0,100]. An empty task list scores 0
// (§8 boundary behavior), never a division by zero.
func Health(tasks []record.TaskRecord) float64 {
	if len(tasks) == 0 {
		return 0
	}
	var sum float64
	for _, tk := range tasks {
		sum += statusPoints[tk.Status]
	}
	return sum / (float64(len(tasks)) * 100) * 100
}

// BacklogDistribution maps status -> percentage of tasks in that status.
// Tasks with an unknown status are excluded entirely, both from the
// numerator and the denominator (§8 boundary behavior).
func BacklogDistribution(tasks []record.TaskRecord) map[string]float64 {
	out := map[string]float64{}
	known := 0
	counts := map[string]int{}
	for _, tk := range tasks {
		if !isKnownStatus(tk.Status) {
			continue
		}
		counts[tk.Status]++
		known++
	}
	if known == 0 {
		return out
	}
	for status, n := range counts {
		out[status] = float64(n) / float64(known) * 100
	}
	return out
}

func isKnownStatus(status string) bool {
	for _, s := range record.TaskStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// idTimestamp extracts the leading 10-digit Unix-seconds timestamp every
// record ID carries (§3 "Identifiers").
func idTimestamp(id string) (time.Time, bool) {
	if len(id) < 10 {
		return time.Time{}, false
	}
	digits := id[:10]
	var sec int64
	for _, c := range digits {
		if c < '0' || c > '9' {
			return time.Time{}, false
		}
		sec = sec*10 + int64(c-'0')
	}
	if sec <= 0 {
		return time.Time{}, false
	}
	return time.Unix(sec, 0).UTC(), true
}

// TimeInCurrentStage returns days since the latest signature timestamp on
// the task's wrapper, falling back to the timestamp embedded in the task ID
// when no signatures are present (§4.3).
func TimeInCurrentStage(w *record.Wrapper, now time.Time) float64 {
	var latest time.Time
	for _, sig := range w.Header.Signatures {
		t := time.Unix(sig.Timestamp, 0).UTC()
		if t.After(latest) {
			latest = t
		}
	}
	if latest.IsZero() {
		var task record.TaskRecord
		if err := record.Decode(w, &task); err == nil {
			if t, ok := idTimestamp(task.ID); ok {
				latest = t
			}
		}
	}
	if latest.IsZero() {
		return 0
	}
	return now.Sub(latest).Hours() / 24
}

// StalenessIndex returns days since the newest execution whose taskId
// matches one of tasks, across all executions. Tasks with no matching
// execution are ignored for the purpose of computing the newest instant.
// When tasks is empty, every execution counts; an entirely empty input set
// yields 0 (§4.3, §8).
func StalenessIndex(tasks []record.TaskRecord, executions []record.ExecutionRecord, now time.Time) float64 {
	taskIDs := map[string]bool{}
	for _, tk := range tasks {
		taskIDs[tk.ID] = true
	}

	var newest time.Time
	for _, ex := range executions {
		if len(taskIDs) > 0 && !taskIDs[ex.TaskID] {
			continue
		}
		if t, ok := idTimestamp(ex.ID); ok && t.After(newest) {
			newest = t
		}
	}
	if newest.IsZero() {
		return 0
	}
	return now.Sub(newest).Hours() / 24
}

// BlockingFeedbackAge returns the maximum age in days among open, blocking
// feedback items. Returns 0 when there are none (§4.3, §8).
func BlockingFeedbackAge(feedback []record.FeedbackRecord, now time.Time) float64 {
	var maxAge float64
	for _, fb := range feedback {
		if fb.Status != "open" || fb.Type != "blocking" {
			continue
		}
		t, ok := idTimestamp(fb.ID)
		if !ok {
			continue
		}
		age := now.Sub(t).Hours() / 24
		if age > maxAge {
			maxAge = age
		}
	}
	return maxAge
}

// Throughput counts tasks whose status is "done" and whose ID timestamp
// falls within the last 7 days relative to now (§4.3).
func Throughput(tasks []record.TaskRecord, now time.Time) int {
	cutoff := now.Add(-7 * 24 * time.Hour)
	count := 0
	for _, tk := range tasks {
		if tk.Status != "done" {
			continue
		}
		t, ok := idTimestamp(tk.ID)
		if !ok {
			continue
		}
		if !t.Before(cutoff) {
			count++
		}
	}
	return count
}

// closedStatuses are the terminal statuses whose creation-to-close span
// contributes to LeadTime/CycleTime (§4.3 "only closed tasks contribute").
var closedStatuses = map[string]bool{"done": true, "archived": true}

// avgTransitionDays averages, per wrapper, (the signature timestamp chosen
// by pick - the task ID's embedded creation timestamp) in days, negative
// spans counted as 0, over tasks whose status is closed. Returns 0 when
// none qualify (§4.3, §8).
func avgTransitionDays(wrappers map[string]*record.Wrapper, tasks []record.TaskRecord, pick func(sigTimes []time.Time, created time.Time) (time.Time, bool)) float64 {
	var total float64
	var n int
	for _, tk := range tasks {
		if !closedStatuses[tk.Status] {
			continue
		}
		created, ok := idTimestamp(tk.ID)
		if !ok {
			continue
		}
		w, ok := wrappers[tk.ID]
		if !ok || len(w.Header.Signatures) == 0 {
			continue
		}
		sigTimes := make([]time.Time, 0, len(w.Header.Signatures))
		for _, sig := range w.Header.Signatures {
			sigTimes = append(sigTimes, time.Unix(sig.Timestamp, 0).UTC())
		}
		endPoint, ok := pick(sigTimes, created)
		if !ok {
			continue
		}
		days := endPoint.Sub(created).Hours() / 24
		if days < 0 {
			days = 0
		}
		total += days
		n++
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}

// LeadTime averages (final signature timestamp - creation) across closed
// tasks: the full span from creation to last recorded transition (§4.3).
func LeadTime(wrappers map[string]*record.Wrapper, tasks []record.TaskRecord) float64 {
	return avgTransitionDays(wrappers, tasks, func(sigTimes []time.Time, _ time.Time) (time.Time, bool) {
		if len(sigTimes) == 0 {
			return time.Time{}, false
		}
		last := sigTimes[0]
		for _, t := range sigTimes[1:] {
			if t.After(last) {
				last = t
			}
		}
		return last, true
	})
}

// CycleTime averages (first signature timestamp after creation - creation)
// across closed tasks: the span until work actively started (§4.3).
func CycleTime(wrappers map[string]*record.Wrapper, tasks []record.TaskRecord) float64 {
	return avgTransitionDays(wrappers, tasks, func(sigTimes []time.Time, created time.Time) (time.Time, bool) {
		earliest := sigTimes[0]
		for _, t := range sigTimes[1:] {
			if t.Before(earliest) {
				earliest = t
			}
		}
		return earliest, true
	})
}

// ActiveAgents counts distinct agent actors with at least one execution
// whose ID embeds a timestamp within the last 24 hours (§4.3).
func ActiveAgents(actors []record.ActorRecord, executions []record.ExecutionRecord, now time.Time) int {
	agentIDs := map[string]bool{}
	for _, a := range actors {
		if a.Type == "agent" {
			agentIDs[a.ID] = true
		}
	}

	cutoff := now.Add(-24 * time.Hour)
	active := map[string]bool{}
	for _, ex := range executions {
		t, ok := idTimestamp(ex.ID)
		if !ok || t.Before(cutoff) {
			continue
		}
		if actorID, ok := executionActor(ex); ok && agentIDs[actorID] {
			active[actorID] = true
		}
	}
	return len(active)
}

// executionActor extracts the acting actor ID from an execution's metadata
// bag, if present under the conventional "actorId" key (§9 "Extensible
// execution metadata": arbitrary JSON-compatible data, no type beyond
// "object at the root").
func executionActor(ex record.ExecutionRecord) (string, bool) {
	if ex.Metadata == nil {
		return "", false
	}
	v, ok := ex.Metadata["actorId"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
