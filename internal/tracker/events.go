package tracker

// Envelope is the base data attached to every submission: who the event
// belongs to and when it was observed, in both log-local and derived-UTC
// time.
type Envelope struct {
	Token         string `json:"token"`
	ClientVersion string `json:"client_version"`
	PlayerID      string `json:"player_id"`
	Time          string `json:"time"`
	UTCTime       string `json:"utc_time"`
	RawTime       string `json:"raw_time"`
}

// UserEvent reports the current account's identity.
type UserEvent struct {
	PlayerID   string `json:"player_id"`
	ScreenName string `json:"screen_name"`
}

// DraftPack is a pack offered during a bot draft.
type DraftPack struct {
	EventName  string `json:"event_name"`
	PackNumber int    `json:"pack_number"`
	PickNumber int    `json:"pick_number"`
	CardIDs    []int  `json:"card_ids"`
}

// DraftPick is the card chosen from a bot draft pack.
type DraftPick struct {
	EventName  string `json:"event_name"`
	PackNumber int    `json:"pack_number"`
	PickNumber int    `json:"pick_number"`
	CardID     int    `json:"card_id"`
}

// HumanDraftPack is a pack seen during a player-vs-player draft. Method
// records which message shape produced it, since two client variants
// report the same information.
type HumanDraftPack struct {
	DraftID    string `json:"draft_id"`
	EventName  string `json:"event_name"`
	PackNumber int    `json:"pack_number"`
	PickNumber int    `json:"pick_number"`
	CardIDs    []int  `json:"card_ids"`
	Method     string `json:"method"`
}

// HumanDraftPick is the card chosen from a human draft pack.
type HumanDraftPick struct {
	DraftID       string `json:"draft_id"`
	EventName     string `json:"event_name"`
	PackNumber    int    `json:"pack_number"`
	PickNumber    int    `json:"pick_number"`
	CardID        int    `json:"card_id"`
	AutoPick      bool   `json:"auto_pick"`
	TimeRemaining any    `json:"time_remaining"`
}

// DeckSubmission is a deck registered for an event.
type DeckSubmission struct {
	EventName        string `json:"event_name"`
	MaindeckCardIDs  []int  `json:"maindeck_card_ids"`
	SideboardCardIDs []int  `json:"sideboard_card_ids"`
	Companion        int    `json:"companion"`
	IsDuringMatch    bool   `json:"is_during_match"`
}

// GameResultPart is the per-game half of a completed game: which side won
// and how the game ended.
type GameResultPart struct {
	GameNumber    int    `json:"game_number"`
	Won           bool   `json:"won"`
	WinType       string `json:"win_type"`
	GameEndReason string `json:"game_end_reason"`
}

// MatchResultPart is the match-scope result, present when the game that
// just finished also decided the match.
type MatchResultPart struct {
	WonMatch        bool   `json:"won_match"`
	MatchResultType string `json:"match_result_type"`
	MatchEndReason  string `json:"match_end_reason"`
}

// GameHistory is the chronological record of raw sub-events observed during
// one game, with the seat assignments needed to interpret them.
type GameHistory struct {
	SeatID             int              `json:"seat_id"`
	OpponentSeatID     int              `json:"opponent_seat_id"`
	ScreenName         string           `json:"screen_name"`
	OpponentScreenName string           `json:"opponent_screen_name"`
	Events             []map[string]any `json:"events"`
}

// GameSubmission is the full snapshot of a finished game assembled from
// dozens of messages: hands, draws, decks, metadata, and history.
type GameSubmission struct {
	EventName             string       `json:"event_name"`
	MatchID               string       `json:"match_id"`
	OnPlay                bool         `json:"on_play"`
	OpeningHand           []int        `json:"opening_hand"`
	Mulligans             [][]int      `json:"mulligans"`
	DrawnHands            [][]int      `json:"drawn_hands"`
	DrawnCards            []int        `json:"drawn_cards"`
	MulliganCount         int          `json:"mulligan_count"`
	OpponentMulliganCount int          `json:"opponent_mulligan_count"`
	Turns                 int          `json:"turns"`
	Duration              int          `json:"duration"`
	OpponentCardIDs       []int        `json:"opponent_card_ids"`
	RankData              any          `json:"rank_data"`
	OpponentRank          *string      `json:"opponent_rank"`
	MaindeckCardIDs       []int        `json:"maindeck_card_ids"`
	SideboardCardIDs      []int        `json:"sideboard_card_ids"`
	AdditionalDeckInfo    any          `json:"additional_deck_info"`
	ServiceMetadata       any          `json:"service_metadata"`
	ClientMetadata        any          `json:"client_metadata"`
	History               *GameHistory `json:"history,omitempty"`
}

// CompletedGame is the flush unit: a pending submission paired with its
// pending result, plus the match result when one was observed.
type CompletedGame struct {
	GameResultPart
	*MatchResultPart
	GameSubmission
}

// RankEvent reports the player's own rank data verbatim.
type RankEvent struct {
	RankData        any `json:"rank_data"`
	LimitedRank     any `json:"limited_rank"`
	ConstructedRank any `json:"constructed_rank"`
}

// OngoingEvents is a snapshot of the player's active event courses.
type OngoingEvents struct {
	Courses any `json:"courses"`
}

// EventCourse links a draft id to its event name and card pool.
type EventCourse struct {
	EventName string `json:"event_name"`
	DraftID   string `json:"draft_id"`
	CourseID  string `json:"course_id"`
	CardPool  any    `json:"card_pool"`
}

// EventEnded reports that an event's prize was claimed.
type EventEnded struct {
	EventName string `json:"event_name"`
}

// CollectionEvent is a card-collection snapshot.
type CollectionEvent struct {
	CardCounts any `json:"card_counts"`
}

// InventoryEvent is a currency/inventory snapshot, filtered to the fields
// the collector cares about.
type InventoryEvent struct {
	Inventory map[string]any `json:"inventory"`
}

// PlayerProgress is a mastery-pass progress snapshot.
type PlayerProgress struct {
	Progress any `json:"progress"`
}

// ErrorReport carries enough context to diagnose a parse failure remotely.
type ErrorReport struct {
	Blob        string   `json:"blob"`
	RecentLines []string `json:"recent_lines"`
	Stacktrace  string   `json:"stacktrace"`
}

// Submitter delivers normalized events to the collector. One method per
// event kind; implementations own wire format, compression, and retries.
type Submitter interface {
	SubmitUser(env Envelope, e UserEvent) error
	SubmitDraftPack(env Envelope, e DraftPack) error
	SubmitDraftPick(env Envelope, e DraftPick) error
	SubmitHumanDraftPack(env Envelope, e HumanDraftPack) error
	SubmitHumanDraftPick(env Envelope, e HumanDraftPick) error
	SubmitDeck(env Envelope, e DeckSubmission) error
	SubmitGame(env Envelope, e CompletedGame) error
	SubmitRank(env Envelope, e RankEvent) error
	SubmitOngoingEvents(env Envelope, e OngoingEvents) error
	SubmitEventCourse(env Envelope, e EventCourse) error
	SubmitEventEnded(env Envelope, e EventEnded) error
	SubmitCollection(env Envelope, e CollectionEvent) error
	SubmitInventory(env Envelope, e InventoryEvent) error
	SubmitPlayerProgress(env Envelope, e PlayerProgress) error
	SubmitError(env Envelope, e ErrorReport) error
}
