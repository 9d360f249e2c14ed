package tracker

import (
	"strings"

	"arena-tracker/internal/payload"
)

// rule pairs a shape predicate with its handler. Predicates combine field
// presence with substrings of the raw message text, because field names
// alone are not unique across message shapes from different client
// versions.
type rule struct {
	name   string
	match  func(raw string, obj map[string]any) bool
	handle func(t *Tracker, raw string, obj map[string]any) error
}

func hasField(key string) func(string, map[string]any) bool {
	return func(_ string, obj map[string]any) bool {
		_, ok := obj[key]
		return ok
	}
}

func rawAndField(substr, key string) func(string, map[string]any) bool {
	return func(raw string, obj map[string]any) bool {
		if !strings.Contains(raw, substr) {
			return false
		}
		_, ok := obj[key]
		return ok
	}
}

func rawWithoutField(substr, key string) func(string, map[string]any) bool {
	return func(raw string, obj map[string]any) bool {
		if !strings.Contains(raw, substr) {
			return false
		}
		_, ok := obj[key]
		return !ok
	}
}

func rawContains(substr string) func(string, map[string]any) bool {
	return func(raw string, _ map[string]any) bool {
		return strings.Contains(raw, substr)
	}
}

// rules is evaluated top to bottom; the first match wins. The table is
// additive-only: new client versions get new rows, existing rows are never
// altered, since multiple historical message shapes coexist in production
// logs.
var rules = []rule{
	{
		// Retired by newer clients but still seen in old logs.
		name: "login",
		match: func(_ string, obj map[string]any) bool {
			return payload.ValueMatches(obj, "Client.Connected", "params", "messageName")
		},
		handle: (*Tracker).handleLogin,
	},
	{
		name:   "joined_pod",
		match:  rawAndField("Event_Join", "EventName"),
		handle: (*Tracker).handleJoinedPod,
	},
	{
		name:   "bot_draft_pack",
		match:  hasField("DraftStatus"),
		handle: (*Tracker).handleBotDraftPack,
	},
	{
		name:   "bot_draft_pick",
		match:  rawAndField("BotDraft_DraftPick", "PickInfo"),
		handle: (*Tracker).handleBotDraftPick,
	},
	{
		name:   "human_draft_combined",
		match:  rawAndField("LogBusinessEvents", "PickGrpId"),
		handle: (*Tracker).handleHumanDraftCombined,
	},
	{
		name:   "business_game_end",
		match:  rawAndField("LogBusinessEvents", "WinningType"),
		handle: (*Tracker).handleBusinessGameEnd,
	},
	{
		name:   "human_draft_pack",
		match:  rawWithoutField("Draft.Notify ", "method"),
		handle: (*Tracker).handleHumanDraftPack,
	},
	{
		name:   "deck_submission",
		match:  rawAndField("Event_SetDeck", "EventName"),
		handle: (*Tracker).handleDeckSubmission,
	},
	{
		name:   "ongoing_events",
		match:  rawAndField("Event_GetCourses", "Courses"),
		handle: (*Tracker).handleOngoingEvents,
	},
	{
		name:   "claim_prize",
		match:  rawAndField("Event_ClaimPrize", "EventName"),
		handle: (*Tracker).handleClaimPrize,
	},
	{
		name:   "event_course",
		match:  rawAndField("Draft_CompleteDraft", "DraftId"),
		handle: (*Tracker).handleEventCourse,
	},
	{
		name:   "authenticate_response",
		match:  hasField("authenticateResponse"),
		handle: (*Tracker).handleAuthenticateResponse,
	},
	{
		name:   "match_state_changed",
		match:  hasField("matchGameRoomStateChangedEvent"),
		handle: (*Tracker).handleMatchStateChanged,
	},
	{
		name: "gre_to_client",
		match: func(_ string, obj map[string]any) bool {
			_, ok := payload.Get(obj, "greToClientEvent", "greToClientMessages")
			return ok
		},
		handle: (*Tracker).handleGreToClientEvent,
	},
	{
		name: "client_to_gre",
		match: func(_ string, obj map[string]any) bool {
			return payload.ValueMatches(obj,
				"ClientToMatchServiceMessageType_ClientToGREMessage",
				"clientToMatchServiceMessageType")
		},
		handle: (*Tracker).handleClientToGreWrapper,
	},
	{
		name: "client_to_gre_ui",
		match: func(_ string, obj map[string]any) bool {
			return payload.ValueMatches(obj,
				"ClientToMatchServiceMessageType_ClientToGREUIMessage",
				"clientToMatchServiceMessageType")
		},
		handle: (*Tracker).handleClientToGreUIWrapper,
	},
	{
		name:   "self_rank_info",
		match:  rawAndField("Rank_GetCombinedRankInfo", "limitedSeasonOrdinal"),
		handle: (*Tracker).handleSelfRankInfo,
	},
	{
		// Retired by newer clients but still seen in old logs.
		name:   "collection",
		match:  rawWithoutField(" PlayerInventory.GetPlayerCardsV3 ", "method"),
		handle: (*Tracker).handleCollection,
	},
	{
		name:   "inventory",
		match:  hasField("DTO_InventoryInfo"),
		handle: (*Tracker).handleInventory,
	},
	{
		name: "player_progress",
		match: func(_ string, obj map[string]any) bool {
			_, ok := payload.Get(obj, "NodeStates", "RewardTierUpgrade")
			return ok
		},
		handle: (*Tracker).handlePlayerProgress,
	},
	{
		name:   "logout",
		match:  rawContains("FrontDoorConnection.Close "),
		handle: (*Tracker).handleLogout,
	},
	{
		name:   "reconnect",
		match:  rawContains("Reconnect result : Connected"),
		handle: (*Tracker).handleReconnect,
	},
}
