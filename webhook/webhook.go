// Package webhook implements the HTTP-agnostic push-event decision function
// (§4.6). It never touches net/http: callers own HTTP framing and pass the
// four inputs GitGov's protocol actually needs.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/gitgov-dev/gitgov-core/sync"
)

const signaturePrefix = "sha256="

// Action is the outcome a webhook decision resolves to.
type Action string

const (
	ActionSync   Action = "sync"
	ActionIgnore Action = "ignore"
	ActionError  Action = "error"
)

// Input carries the four header/body values the decision function needs,
// deliberately avoiding any *http.Request dependency.
type Input struct {
	Signature  string
	Event      string
	DeliveryID string
	RawBody    []byte
}

// Result is the outcome of Handle (§4.6).
type Result struct {
	Action     Action               `json:"action"`
	Delta      []sync.DeltaElement  `json:"delta,omitempty"`
	HeadSHA    string               `json:"headSha,omitempty"`
	Reason     string               `json:"reason"`
	DeliveryID string               `json:"deliveryId"`
}

// pushEvent is the minimal subset of a GitHub push webhook payload this
// handler needs.
type pushEvent struct {
	Ref     *string `json:"ref"`
	After   *string `json:"after"`
	Commits []struct {
		Added    []string `json:"added"`
		Modified []string `json:"modified"`
		Removed  []string `json:"removed"`
	} `json:"commits"`
}

// DeliveryTracker lets a caller avoid re-applying the same delivery ID
// twice, generalized from the teacher's `HasDeliveryBeenProcessed` /
// `MarkDeliveryProcessed` pair keyed on `X-GitHub-Delivery`.
type DeliveryTracker interface {
	Seen(ctx context.Context, deliveryID string) (bool, error)
	MarkSeen(ctx context.Context, deliveryID string) error
}

// Handler decides what a raw webhook delivery means for the state branch
// (§4.6). It never panics or returns a Go error for malformed input —
// every failure mode is surfaced as an ActionError result.
type Handler struct {
	secret      []byte
	stateBranch string
	tracker     DeliveryTracker
}

// New builds a Handler. stateBranch defaults to "gitgov-state" when empty.
func New(secret []byte, stateBranch string, tracker DeliveryTracker) *Handler {
	if stateBranch == "" {
		stateBranch = "gitgov-state"
	}
	return &Handler{secret: secret, stateBranch: stateBranch, tracker: tracker}
}

func ignore(reason, deliveryID string) *Result {
	return &Result{Action: ActionIgnore, Reason: reason, DeliveryID: deliveryID}
}

func fail(reason, deliveryID string) *Result {
	return &Result{Action: ActionError, Reason: reason, DeliveryID: deliveryID}
}

// Handle runs the §4.6 algorithm over a single webhook delivery.
func (h *Handler) Handle(ctx context.Context, in Input) *Result {
	if !verifySignature(h.secret, in.Signature, in.RawBody) {
		return fail("Invalid signature", in.DeliveryID)
	}

	if h.tracker != nil && in.DeliveryID != "" {
		seen, err := h.tracker.Seen(ctx, in.DeliveryID)
		if err == nil && seen {
			return ignore("Duplicate delivery", in.DeliveryID)
		}
	}

	switch in.Event {
	case "ping":
		h.markSeen(ctx, in.DeliveryID)
		return ignore("Ping event", in.DeliveryID)
	case "push":
		// fall through
	default:
		h.markSeen(ctx, in.DeliveryID)
		return ignore("Unsupported event", in.DeliveryID)
	}

	var payload pushEvent
	if err := json.Unmarshal(in.RawBody, &payload); err != nil {
		return fail("Invalid JSON payload", in.DeliveryID)
	}

	missing := missingPushFields(payload)
	if missing != "" {
		return fail("Malformed push event: missing "+missing, in.DeliveryID)
	}

	expectedRef := "refs/heads/" + h.stateBranch
	if *payload.Ref != expectedRef {
		h.markSeen(ctx, in.DeliveryID)
		return ignore("Not state branch", in.DeliveryID)
	}

	delta := foldCommits(payload)
	if len(delta) == 0 {
		h.markSeen(ctx, in.DeliveryID)
		return ignore("No syncable files", in.DeliveryID)
	}

	h.markSeen(ctx, in.DeliveryID)
	return &Result{
		Action:     ActionSync,
		Delta:      delta,
		HeadSHA:    *payload.After,
		Reason:     "Push to state branch",
		DeliveryID: in.DeliveryID,
	}
}

func (h *Handler) markSeen(ctx context.Context, deliveryID string) {
	if h.tracker == nil || deliveryID == "" {
		return
	}
	_ = h.tracker.MarkSeen(ctx, deliveryID)
}

func missingPushFields(p pushEvent) string {
	switch {
	case p.Ref == nil:
		return "ref"
	case p.After == nil:
		return "after"
	case p.Commits == nil:
		return "commits"
	default:
		return ""
	}
}

// foldCommits folds commits[].added|modified|removed into a per-file status
// map, last-commit-wins, applying sync.ShouldSyncFile at each step. A file
// added then removed within the same push is omitted entirely; a file added
// then modified remains DeltaAdded (§4.6 step 6).
func foldCommits(p pushEvent) []sync.DeltaElement {
	status := map[string]sync.DeltaStatus{}
	order := []string{}

	apply := func(file string, next sync.DeltaStatus) {
		rel, ok := relativeToGitgov(file)
		if !ok || !sync.ShouldSyncFile(rel) {
			return
		}
		prev, existed := status[file]
		if !existed {
			order = append(order, file)
		}
		if existed && prev == sync.DeltaAdded && next == sync.DeltaDeleted {
			delete(status, file)
			return
		}
		if existed && prev == sync.DeltaAdded && next == sync.DeltaModified {
			status[file] = sync.DeltaAdded
			return
		}
		status[file] = next
	}

	for _, commit := range p.Commits {
		for _, f := range commit.Added {
			apply(f, sync.DeltaAdded)
		}
		for _, f := range commit.Modified {
			apply(f, sync.DeltaModified)
		}
		for _, f := range commit.Removed {
			apply(f, sync.DeltaDeleted)
		}
	}

	delta := make([]sync.DeltaElement, 0, len(order))
	for _, f := range order {
		st, ok := status[f]
		if !ok {
			continue
		}
		delta = append(delta, sync.DeltaElement{File: f, Status: st})
	}
	return delta
}

func relativeToGitgov(file string) (string, bool) {
	const prefix = ".gitgov/"
	if !strings.HasPrefix(file, prefix) {
		return "", false
	}
	return strings.TrimPrefix(file, prefix), true
}

// verifySignature mirrors the teacher's verifyWebhookSignature
// (server/webhook.go): prefix check, hex decode, constant-time HMAC-SHA256
// compare.
func verifySignature(secret []byte, signature string, body []byte) bool {
	if !strings.HasPrefix(signature, signaturePrefix) {
		return false
	}
	sigBytes, err := hex.DecodeString(signature[len(signaturePrefix):])
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	expected := mac.Sum(nil)
	return hmac.Equal(sigBytes, expected)
}
