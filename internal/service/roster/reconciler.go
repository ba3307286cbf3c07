// Package roster keeps one transcription subscription per participant
// microphone and reconciles the set against roster changes.
package roster

import (
	"sort"

	"github.com/samber/lo"

	"playground-transcript-feed/internal/models"
)

// SubscribeFunc opens a subscription for a participant track. It returns the
// segments already known for the track and a cancel func.
type SubscribeFunc func(identity, trackSID string) (snapshot []models.TranscriptSegment, cancel func())

// Subscription is one live per-participant subscription.
type Subscription struct {
	Identity string
	TrackSID string
	cancel   func()
}

// Diff reports what one Reconcile call changed. Snapshots holds the initial
// segment set of every added or changed subscription.
type Diff struct {
	Added     []string
	Removed   []string
	Changed   []string
	Snapshots map[string][]models.TranscriptSegment
}

// Empty reports whether the subscription set stayed the same.
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// Reconciler is owned by a single room loop and is not safe for concurrent use.
type Reconciler struct {
	subscribe SubscribeFunc
	subs      map[string]*Subscription
}

func NewReconciler(subscribe SubscribeFunc) *Reconciler {
	return &Reconciler{
		subscribe: subscribe,
		subs:      map[string]*Subscription{},
	}
}

// Reconcile diffs the roster's microphone publications against the current
// subscriptions. New participants are subscribed, departed ones cancelled,
// and a changed microphone track is resubscribed.
func (r *Reconciler) Reconcile(participants []models.Participant) Diff {
	desired := lo.FilterMap(participants, func(p models.Participant, _ int) (lo.Tuple2[string, string], bool) {
		pub, ok := p.Microphone()
		return lo.T2(p.Identity, pub.TrackSID), ok && p.Identity != ""
	})
	wanted := lo.SliceToMap(desired, func(t lo.Tuple2[string, string]) (string, string) { return t.A, t.B })

	diff := Diff{Snapshots: map[string][]models.TranscriptSegment{}}

	removed := lo.Filter(lo.Keys(r.subs), func(identity string, _ int) bool {
		_, ok := wanted[identity]
		return !ok
	})
	sort.Strings(removed)
	for _, identity := range removed {
		r.subs[identity].cancel()
		delete(r.subs, identity)
		diff.Removed = append(diff.Removed, identity)
	}

	for _, t := range lo.UniqBy(desired, func(t lo.Tuple2[string, string]) string { return t.A }) {
		// A duplicated identity resolves to its last roster entry.
		identity, trackSID := t.A, wanted[t.A]

		cur, ok := r.subs[identity]
		switch {
		case !ok:
			diff.Added = append(diff.Added, identity)
		case cur.TrackSID != trackSID:
			cur.cancel()
			diff.Changed = append(diff.Changed, identity)
		default:
			continue
		}

		snapshot, cancel := r.subscribe(identity, trackSID)
		r.subs[identity] = &Subscription{Identity: identity, TrackSID: trackSID, cancel: cancel}
		diff.Snapshots[identity] = snapshot
	}
	return diff
}

// Current returns the subscribed microphone track of a participant.
func (r *Reconciler) Current(identity string) (string, bool) {
	sub, ok := r.subs[identity]
	if !ok {
		return "", false
	}
	return sub.TrackSID, true
}

// Len returns the number of live subscriptions.
func (r *Reconciler) Len() int {
	return len(r.subs)
}

// Close cancels every subscription.
func (r *Reconciler) Close() {
	for identity, sub := range r.subs {
		sub.cancel()
		delete(r.subs, identity)
	}
}
