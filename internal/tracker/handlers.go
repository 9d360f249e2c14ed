package tracker

import (
	"fmt"
	"log"
	"regexp"
	"strings"

	"arena-tracker/internal/payload"
)

// Account identity appears only in free-text lines, never inside payloads.
var (
	accountInfoRe      = regexp.MustCompile(`.*Updated account\. DisplayName:(.*), AccountID:(.*), Token:.*`)
	matchAccountInfoRe = regexp.MustCompile(`.*: ((\w+) to Match|Match to (\w+)):`)
)

func (t *Tracker) maybeHandleAccountInfo(line string) {
	if m := accountInfoRe.FindStringSubmatch(line); m != nil {
		t.curUser = m[2]
		t.updateScreenName(m[1])
		return
	}
	if m := matchAccountInfoRe.FindStringSubmatch(line); m != nil {
		if m[2] != "" {
			t.curUser = m[2]
		} else {
			t.curUser = m[3]
		}
	}
}

func (t *Tracker) handleLogin(_ string, obj map[string]any) error {
	t.clearGameData(false)

	playerID := payload.GetString(obj, "params", "payloadObject", "playerId")
	screenName := payload.GetString(obj, "params", "payloadObject", "screenName")
	if playerID == "" {
		return fmt.Errorf("login message missing playerId")
	}
	t.curUser = playerID
	t.updateScreenName(screenName)
	return nil
}

func (t *Tracker) handleJoinedPod(_ string, obj map[string]any) error {
	t.clearGameData(true)

	t.curDraftEvent = payload.GetString(obj, "EventName")
	log.Printf("[Tracker] Joined draft pod: %s", t.curDraftEvent)
	return nil
}

func (t *Tracker) handleBotDraftPack(_ string, obj map[string]any) error {
	if payload.GetString(obj, "DraftStatus") != "PickNext" {
		return nil
	}
	t.clearGameData(true)

	t.curDraftEvent = payload.GetString(obj, "EventName")
	packNumber, ok := payload.GetInt(obj, "PackNumber")
	if !ok {
		return fmt.Errorf("draft pack missing PackNumber")
	}
	pickNumber, ok := payload.GetInt(obj, "PickNumber")
	if !ok {
		return fmt.Errorf("draft pack missing PickNumber")
	}
	pack := DraftPack{
		EventName:  t.curDraftEvent,
		PackNumber: packNumber,
		PickNumber: pickNumber,
		CardIDs:    payload.IntSlice(payload.GetSlice(obj, "DraftPack")),
	}
	log.Printf("[Tracker] Draft pack: %+v", pack)
	return t.submitter.SubmitDraftPack(t.envelope(), pack)
}

func (t *Tracker) handleBotDraftPick(_ string, obj map[string]any) error {
	t.clearGameData(true)

	info := payload.GetMap(obj, "PickInfo")
	if info == nil {
		return fmt.Errorf("draft pick missing PickInfo")
	}
	t.curDraftEvent = payload.GetString(info, "EventName")
	packNumber, _ := payload.GetInt(info, "PackNumber")
	pickNumber, _ := payload.GetInt(info, "PickNumber")
	cardID, ok := payload.GetInt(info, "CardId")
	if !ok {
		return fmt.Errorf("draft pick missing CardId")
	}
	pick := DraftPick{
		EventName:  t.curDraftEvent,
		PackNumber: packNumber,
		PickNumber: pickNumber,
		CardID:     cardID,
	}
	log.Printf("[Tracker] Draft pick: %+v", pick)
	return t.submitter.SubmitDraftPick(t.envelope(), pick)
}

// handleHumanDraftCombined handles the business-log shape that reports the
// pack contents and the pick in a single message.
func (t *Tracker) handleHumanDraftCombined(_ string, obj map[string]any) error {
	t.clearGameData(true)

	t.curDraftEvent = payload.GetString(obj, "EventId")
	draftID := payload.GetString(obj, "DraftId")
	packNumber, _ := payload.GetInt(obj, "PackNumber")
	pickNumber, _ := payload.GetInt(obj, "PickNumber")

	pack := HumanDraftPack{
		DraftID:    draftID,
		EventName:  t.curDraftEvent,
		PackNumber: packNumber,
		PickNumber: pickNumber,
		CardIDs:    payload.IntSlice(payload.GetSlice(obj, "CardsInPack")),
		Method:     "LogBusiness",
	}
	log.Printf("[Tracker] Human draft pack (combined): %+v", pack)
	if err := t.submitter.SubmitHumanDraftPack(t.envelope(), pack); err != nil {
		t.reportError(fmt.Sprintf("error submitting human draft pack: %v", err), "")
	}

	cardID, ok := payload.GetInt(obj, "PickGrpId")
	if !ok {
		return fmt.Errorf("combined draft message missing PickGrpId")
	}
	autoPick, _ := payload.Get(obj, "AutoPick")
	timeRemaining, _ := payload.Get(obj, "TimeRemainingOnPick")
	pick := HumanDraftPick{
		DraftID:       draftID,
		EventName:     t.curDraftEvent,
		PackNumber:    packNumber,
		PickNumber:    pickNumber,
		CardID:        cardID,
		AutoPick:      autoPick == true,
		TimeRemaining: timeRemaining,
	}
	log.Printf("[Tracker] Human draft pick (combined): %+v", pick)
	return t.submitter.SubmitHumanDraftPick(t.envelope(), pick)
}

// handleHumanDraftPack handles the Draft.Notify shape, where the pack
// contents arrive as a comma-separated string.
func (t *Tracker) handleHumanDraftPack(_ string, obj map[string]any) error {
	t.clearGameData(true)

	packNumber, _ := payload.GetInt(obj, "SelfPack")
	pickNumber, _ := payload.GetInt(obj, "SelfPick")
	var cardIDs []int
	for _, part := range strings.Split(payload.GetString(obj, "PackCards"), ",") {
		if id, ok := payload.AsInt(strings.TrimSpace(part)); ok {
			cardIDs = append(cardIDs, id)
		}
	}
	pack := HumanDraftPack{
		DraftID:    payload.GetString(obj, "draftId"),
		EventName:  t.curDraftEvent,
		PackNumber: packNumber,
		PickNumber: pickNumber,
		CardIDs:    cardIDs,
		Method:     "Draft.Notify",
	}
	log.Printf("[Tracker] Human draft pack (Draft.Notify): %+v", pack)
	return t.submitter.SubmitHumanDraftPack(t.envelope(), pack)
}

func (t *Tracker) handleDeckSubmission(_ string, obj map[string]any) error {
	t.clearGameData(true)

	decks := payload.GetMap(obj, "Deck")
	if decks == nil {
		return fmt.Errorf("deck submission missing Deck")
	}
	deck := DeckSubmission{
		EventName:        payload.GetString(obj, "EventName"),
		MaindeckCardIDs:  expandDeckList(payload.GetSlice(decks, "MainDeck")),
		SideboardCardIDs: expandDeckList(payload.GetSlice(decks, "Sideboard")),
		IsDuringMatch:    false,
	}
	if companions := payload.GetSlice(decks, "Companions"); len(companions) > 0 {
		if m, ok := companions[0].(map[string]any); ok {
			deck.Companion, _ = payload.GetInt(m, "cardId")
		}
	}
	log.Printf("[Tracker] Deck submission: event=%s maindeck=%d sideboard=%d",
		deck.EventName, len(deck.MaindeckCardIDs), len(deck.SideboardCardIDs))
	return t.submitter.SubmitDeck(t.envelope(), deck)
}

// expandDeckList turns [{cardId, quantity}, ...] into a flat card id list
// with each id repeated quantity times.
func expandDeckList(entries []any) []int {
	out := []int{}
	for _, entry := range entries {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		cardID, ok := payload.GetInt(m, "cardId")
		if !ok {
			continue
		}
		quantity, ok := payload.GetInt(m, "quantity")
		if !ok {
			quantity = 1
		}
		for i := 0; i < quantity; i++ {
			out = append(out, cardID)
		}
	}
	return out
}

func (t *Tracker) handleOngoingEvents(_ string, obj map[string]any) error {
	log.Println("[Tracker] Updated ongoing events")
	return t.submitter.SubmitOngoingEvents(t.envelope(), OngoingEvents{Courses: obj["Courses"]})
}

func (t *Tracker) handleClaimPrize(_ string, obj map[string]any) error {
	event := EventEnded{EventName: payload.GetString(obj, "EventName")}
	log.Printf("[Tracker] Event ended: %s", event.EventName)
	return t.submitter.SubmitEventEnded(t.envelope(), event)
}

func (t *Tracker) handleEventCourse(_ string, obj map[string]any) error {
	course := EventCourse{
		EventName: payload.GetString(obj, "InternalEventName"),
		DraftID:   payload.GetString(obj, "DraftId"),
		CourseID:  payload.GetString(obj, "CourseId"),
		CardPool:  obj["CardPool"],
	}
	log.Printf("[Tracker] Event course: event=%s draft=%s", course.EventName, course.DraftID)
	return t.submitter.SubmitEventCourse(t.envelope(), course)
}

func (t *Tracker) handleAuthenticateResponse(_ string, obj map[string]any) error {
	t.updateScreenName(payload.GetString(obj, "authenticateResponse", "screenName"))
	return nil
}

func (t *Tracker) handleSelfRankInfo(_ string, obj map[string]any) error {
	t.curRankData = obj
	if playerID := payload.GetString(obj, "playerId"); playerID != "" {
		t.curUser = playerID
	}
	log.Printf("[Tracker] Parsed rank info for %s", t.curUser)
	return t.submitter.SubmitRank(t.envelope(), RankEvent{RankData: t.curRankData})
}

func (t *Tracker) handleCollection(_ string, obj map[string]any) error {
	if t.curUser == "" {
		log.Println("[Tracker] Skipping collection submission: player id still unknown")
		return nil
	}
	log.Printf("[Tracker] Collection submission of %d cards", len(obj))
	return t.submitter.SubmitCollection(t.envelope(), CollectionEvent{CardCounts: obj})
}

// inventoryFields is the subset of inventory data worth reporting.
var inventoryFields = map[string]bool{
	"Gems":               true,
	"Gold":               true,
	"TotalVaultProgress": true,
	"wcTrackPosition":    true,
	"WildCardCommons":    true,
	"WildCardUnCommons":  true,
	"WildCardRares":      true,
	"WildCardMythics":    true,
	"DraftTokens":        true,
	"SealedTokens":       true,
	"Boosters":           true,
	"Changes":            true,
}

func (t *Tracker) handleInventory(_ string, obj map[string]any) error {
	info := payload.GetMap(obj, "DTO_InventoryInfo")
	if info == nil {
		return fmt.Errorf("inventory message missing DTO_InventoryInfo")
	}
	filtered := make(map[string]any)
	for k, v := range info {
		if inventoryFields[k] {
			filtered[k] = v
		}
	}
	log.Println("[Tracker] Submitting inventory")
	return t.submitter.SubmitInventory(t.envelope(), InventoryEvent{Inventory: filtered})
}

func (t *Tracker) handlePlayerProgress(_ string, obj map[string]any) error {
	log.Println("[Tracker] Submitting mastery progress")
	return t.submitter.SubmitPlayerProgress(t.envelope(), PlayerProgress{Progress: obj})
}

func (t *Tracker) handleLogout(_ string, _ map[string]any) error {
	log.Println("[Tracker] User logged out from Arena")
	if t.curUser != "" {
		t.disconnectedUser = t.curUser
		t.disconnectedName = t.userScreenName
		t.disconnectedRank = t.curRankData
	}
	t.curUser = ""
	t.userScreenName = ""
	t.curRankData = nil
	return nil
}

func (t *Tracker) handleReconnect(_ string, _ map[string]any) error {
	log.Println("[Tracker] Reconnected - restoring prior user info")
	t.curUser = t.disconnectedUser
	t.userScreenName = t.disconnectedName
	t.curRankData = t.disconnectedRank
	return nil
}
