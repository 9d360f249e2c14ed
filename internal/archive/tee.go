package archive

import (
	"log"

	"arena-tracker/internal/tracker"
)

// Tee archives each event locally, then forwards it to the wrapped
// submitter. Archive failures are logged but never block delivery.
type Tee struct {
	Next    tracker.Submitter
	Rotator *Rotator
}

var _ tracker.Submitter = (*Tee)(nil)

func (t *Tee) record(kind string, env tracker.Envelope, event any) {
	if err := t.Rotator.WriteEvent(kind, map[string]any{"envelope": env, "event": event}); err != nil {
		log.Printf("[Archive] Failed to archive %s event: %v", kind, err)
	}
}

func (t *Tee) SubmitUser(env tracker.Envelope, e tracker.UserEvent) error {
	t.record("user", env, e)
	return t.Next.SubmitUser(env, e)
}

func (t *Tee) SubmitDraftPack(env tracker.Envelope, e tracker.DraftPack) error {
	t.record("pack", env, e)
	return t.Next.SubmitDraftPack(env, e)
}

func (t *Tee) SubmitDraftPick(env tracker.Envelope, e tracker.DraftPick) error {
	t.record("pick", env, e)
	return t.Next.SubmitDraftPick(env, e)
}

func (t *Tee) SubmitHumanDraftPack(env tracker.Envelope, e tracker.HumanDraftPack) error {
	t.record("human_draft_pack", env, e)
	return t.Next.SubmitHumanDraftPack(env, e)
}

func (t *Tee) SubmitHumanDraftPick(env tracker.Envelope, e tracker.HumanDraftPick) error {
	t.record("human_draft_pick", env, e)
	return t.Next.SubmitHumanDraftPick(env, e)
}

func (t *Tee) SubmitDeck(env tracker.Envelope, e tracker.DeckSubmission) error {
	t.record("deck", env, e)
	return t.Next.SubmitDeck(env, e)
}

func (t *Tee) SubmitGame(env tracker.Envelope, e tracker.CompletedGame) error {
	t.record("game", env, e)
	return t.Next.SubmitGame(env, e)
}

func (t *Tee) SubmitRank(env tracker.Envelope, e tracker.RankEvent) error {
	t.record("rank", env, e)
	return t.Next.SubmitRank(env, e)
}

func (t *Tee) SubmitOngoingEvents(env tracker.Envelope, e tracker.OngoingEvents) error {
	t.record("ongoing_events", env, e)
	return t.Next.SubmitOngoingEvents(env, e)
}

func (t *Tee) SubmitEventCourse(env tracker.Envelope, e tracker.EventCourse) error {
	t.record("event_course", env, e)
	return t.Next.SubmitEventCourse(env, e)
}

func (t *Tee) SubmitEventEnded(env tracker.Envelope, e tracker.EventEnded) error {
	t.record("event_ended", env, e)
	return t.Next.SubmitEventEnded(env, e)
}

func (t *Tee) SubmitCollection(env tracker.Envelope, e tracker.CollectionEvent) error {
	t.record("collection", env, e)
	return t.Next.SubmitCollection(env, e)
}

func (t *Tee) SubmitInventory(env tracker.Envelope, e tracker.InventoryEvent) error {
	t.record("inventory", env, e)
	return t.Next.SubmitInventory(env, e)
}

func (t *Tee) SubmitPlayerProgress(env tracker.Envelope, e tracker.PlayerProgress) error {
	t.record("player_progress", env, e)
	return t.Next.SubmitPlayerProgress(env, e)
}

func (t *Tee) SubmitError(env tracker.Envelope, e tracker.ErrorReport) error {
	t.record("error", env, e)
	return t.Next.SubmitError(env, e)
}
