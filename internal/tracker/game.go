package tracker

import (
	"fmt"
	"log"
	"strings"

	"arena-tracker/internal/payload"
)

// rankString serializes rank components the way the collector expects,
// e.g. "Gold-3-0.0-0-2". Missing components serialize as empty.
func rankString(parts ...any) string {
	strs := make([]string, len(parts))
	for i, p := range parts {
		if p == nil {
			strs[i] = ""
		} else {
			strs[i] = fmt.Sprintf("%v", p)
		}
	}
	return strings.Join(strs, "-")
}

func (t *Tracker) handleMatchStateChanged(_ string, obj map[string]any) error {
	gameRoomInfo := payload.GetMap(obj, "matchGameRoomStateChangedEvent", "gameRoomInfo")
	gameRoomConfig := payload.GetMap(gameRoomInfo, "gameRoomConfig")

	updatedMatchID := payload.GetString(gameRoomConfig, "matchId")
	updatedEventID := payload.GetString(gameRoomConfig, "eventId")

	if reserved := payload.GetSlice(gameRoomConfig, "reservedPlayers"); reserved != nil {
		oppoPlayerID := ""
		for _, p := range reserved {
			player, ok := p.(map[string]any)
			if !ok {
				continue
			}
			seat, _ := payload.GetInt(player, "systemSeatId")
			name := payload.GetString(player, "playerName")
			t.screenNames[seat] = strings.SplitN(name, "#", 2)[0]

			if payload.GetString(player, "userId") == t.curUser {
				// Backfill the current user's screen name when possible.
				t.updateScreenName(name)
				if eventID := payload.GetString(player, "eventId"); eventID != "" {
					updatedEventID = eventID
				}
			} else {
				oppoPlayerID = payload.GetString(player, "userId")
			}
		}

		if metadata := payload.GetMap(gameRoomConfig, "clientMetadata"); oppoPlayerID != "" && metadata != nil {
			level := rankString(
				metadata[oppoPlayerID+"_RankClass"],
				metadata[oppoPlayerID+"_RankTier"],
				metadata[oppoPlayerID+"_LeaderboardPercentile"],
				metadata[oppoPlayerID+"_LeaderboardPlacement"],
				nil,
			)
			t.curOpponentLevel = &level
			t.curOpponentMatchID = payload.GetString(gameRoomConfig, "matchId")
			log.Printf("[Tracker] Parsed opponent rank %s in match %s", level, t.curOpponentMatchID)
		}
	}

	if updatedMatchID != "" && updatedEventID != "" {
		t.currentMatchID = updatedMatchID
		t.currentEventID = updatedEventID
	}

	if metadata, ok := payload.Get(gameRoomConfig, "serviceMetadata"); ok {
		t.game.serviceMetadata = metadata
	}
	if metadata, ok := payload.Get(gameRoomConfig, "clientMetadata"); ok {
		t.game.clientMetadata = metadata
	}

	// finalMatchResult is the safety net for games whose per-game
	// GameOver signal was lost: capture whatever result data is present,
	// then tear down the match room.
	if finalResult := payload.GetMap(gameRoomInfo, "finalMatchResult"); finalResult != nil {
		if results := payload.GetSlice(finalResult, "resultList"); len(results) > 0 {
			if t.enqueueGameData() {
				t.enqueueGameResults(results)
			}
		}
		t.clearMatchData(true)
	}
	return nil
}

func (t *Tracker) handleGreToClientEvent(_ string, obj map[string]any) error {
	messages := payload.GetSlice(obj, "greToClientEvent", "greToClientMessages")
	for _, m := range messages {
		message, ok := m.(map[string]any)
		if !ok {
			continue
		}
		if err := t.handleGreToClientMessage(message); err != nil {
			t.reportError(fmt.Sprintf("error parsing GRE to client message: %v", err), "")
		}
	}
	return nil
}

func (t *Tracker) handleGreToClientMessage(message map[string]any) error {
	msgType := payload.GetString(message, "type")

	// Record history before processing: the message may complete the game
	// and trigger an immediate submission.
	switch msgType {
	case "GREMessageType_QueuedGameStateMessage", "GREMessageType_GameStateMessage":
		t.game.addHistory(message, t.curMsgUTC)
	case "GREMessageType_UIMessage":
		if _, ok := payload.Get(message, "uiMessage", "onChat"); ok {
			t.game.addHistory(message, t.curMsgUTC)
		}
	}

	switch msgType {
	case "GREMessageType_ConnectResp":
		t.captureDeckMessage(payload.GetMap(message, "connectResp", "deckMessage"))
	case "GREMessageType_EdictalMessage":
		return t.handleClientToGre(payload.GetMap(message, "edictalMessage", "edictMessage"))
	case "GREMessageType_GameStateMessage":
		return t.handleGameStateMessage(message)
	}
	return nil
}

// captureDeckMessage splits a deckMessage into maindeck, sideboard, and
// whatever else the client put there.
func (t *Tracker) captureDeckMessage(deckInfo map[string]any) {
	if deckInfo == nil {
		return
	}
	t.game.maindeck = payload.IntSlice(payload.GetSlice(deckInfo, "deckCards"))
	t.game.sideboard = payload.IntSlice(payload.GetSlice(deckInfo, "sideboardCards"))
	additional := make(map[string]any)
	for k, v := range deckInfo {
		if k != "deckCards" && k != "sideboardCards" {
			additional[k] = v
		}
	}
	t.game.additionalDeckInfo = additional
}

func (t *Tracker) handleClientToGreWrapper(_ string, obj map[string]any) error {
	return t.handleClientToGre(payload.GetMap(obj, "payload"))
}

func (t *Tracker) handleClientToGre(p map[string]any) error {
	if p == nil {
		return nil
	}
	switch payload.GetString(p, "type") {
	case "ClientMessageType_SelectNResp":
		t.game.addHistory(p, t.curMsgUTC)
	case "ClientMessageType_SubmitDeckResp":
		// A sideboarded deck submission marks the start of the next
		// game in the match.
		t.clearGameData(true)
		t.captureDeckMessage(payload.GetMap(p, "submitDeckResp", "deck"))
	}
	return nil
}

func (t *Tracker) handleClientToGreUIWrapper(_ string, obj map[string]any) error {
	p := payload.GetMap(obj, "payload")
	if p == nil {
		return nil
	}
	if _, ok := payload.Get(p, "uiMessage", "onChat"); ok {
		t.game.addHistory(p, t.curMsgUTC)
	}
	return nil
}

func (t *Tracker) handleGameStateMessage(message map[string]any) error {
	if seats := payload.GetSlice(message, "systemSeatIds"); len(seats) > 0 {
		if seat, ok := payload.AsInt(seats[0]); ok {
			t.seatID = seat
		}
	}

	gsm := payload.GetMap(message, "gameStateMessage")
	if gsm == nil {
		return nil
	}

	if gameInfo := payload.GetMap(gsm, "gameInfo"); gameInfo != nil {
		if matchID := payload.GetString(gameInfo, "matchID"); matchID != "" && matchID != t.currentMatchID {
			t.currentMatchID = matchID
			t.currentEventID = ""
		}
	}

	turnInfo := payload.GetMap(gsm, "turnInfo")
	players := payload.GetSlice(gsm, "players")

	if turnNumber, ok := payload.GetInt(turnInfo, "turnNumber"); ok && turnNumber != 0 {
		t.game.turnCount = turnNumber
	} else {
		// Some game modes stop reporting turnNumber mid-game; fall back
		// to the sum of per-player turn counts, kept monotonic.
		turnsSum := 0
		for _, p := range players {
			if player, ok := p.(map[string]any); ok {
				if n, ok := payload.GetInt(player, "turnNumber"); ok {
					turnsSum += n
				}
			}
		}
		if turnsSum > t.game.turnCount {
			t.game.turnCount = turnsSum
		}
	}

	for _, o := range payload.GetSlice(gsm, "gameObjects") {
		object, ok := o.(map[string]any)
		if !ok {
			continue
		}
		objType := payload.GetString(object, "type")
		if objType != "GameObjectType_Card" && objType != "GameObjectType_SplitCard" {
			continue
		}
		owner, ok1 := payload.GetInt(object, "ownerSeatId")
		instanceID, ok2 := payload.GetInt(object, "instanceId")
		cardID, ok3 := payload.GetInt(object, "overlayGrpId")
		if ok1 && ok2 && ok3 {
			t.game.ownerObjects(owner)[instanceID] = cardID
		}
	}

	for _, z := range payload.GetSlice(gsm, "zones") {
		zone, ok := z.(map[string]any)
		if !ok || payload.GetString(zone, "type") != "ZoneType_Hand" {
			continue
		}
		owner, ok := payload.GetInt(zone, "ownerSeatId")
		if !ok {
			continue
		}
		playerObjects := t.game.ownerObjects(owner)
		hand := []int{}
		for _, raw := range payload.GetSlice(zone, "objectInstanceIds") {
			instanceID, ok := payload.AsInt(raw)
			if !ok || instanceID == 0 {
				continue
			}
			cardID, known := playerObjects[instanceID]
			if !known {
				continue
			}
			hand = append(hand, cardID)
			// Permanent record: a card stays "drawn" even after it
			// leaves the hand.
			t.game.drawnCards(owner)[instanceID] = cardID
		}
		t.game.cardsInHand[owner] = hand
	}

	for _, p := range players {
		player, ok := p.(map[string]any)
		if !ok || payload.GetString(player, "pendingMessageType") != "ClientMessageType_MulliganResp" {
			continue
		}
		seat, ok := payload.GetInt(player, "systemSeatNumber")
		if !ok {
			continue
		}
		mulliganCount, _ := payload.GetInt(player, "mulliganCount")

		if t.game.startingTeamID == 0 {
			t.game.startingTeamID, _ = payload.GetInt(turnInfo, "activePlayer")
		}
		t.game.openingHandCountBySeat[seat]++

		// One snapshot per mulligan round: the same round is reported by
		// several consecutive game-state messages.
		if mulliganCount == len(t.game.drawnHands[seat]) {
			hand := append([]int(nil), t.game.cardsInHand[seat]...)
			t.game.drawnHands[seat] = append(t.game.drawnHands[seat], hand)
		}
	}

	// The pre-mulligan opening hand is captured exactly once per game, at
	// the first upkeep of turn 1.
	if len(t.game.openingHand) == 0 {
		turnNumber, _ := payload.GetInt(turnInfo, "turnNumber")
		if turnNumber == 1 &&
			payload.GetString(turnInfo, "phase") == "Phase_Beginning" &&
			payload.GetString(turnInfo, "step") == "Step_Upkeep" {
			for owner, hand := range t.game.cardsInHand {
				t.game.openingHand[owner] = append([]int(nil), hand...)
			}
		}
	}

	t.maybeHandleGameOverStage(gsm)
	return nil
}

func (t *Tracker) maybeHandleGameOverStage(gsm map[string]any) {
	gameInfo := payload.GetMap(gsm, "gameInfo")
	if payload.GetString(gameInfo, "stage") != "GameStage_GameOver" {
		return
	}
	if results := payload.GetSlice(gameInfo, "results"); len(results) > 0 {
		if t.enqueueGameData() {
			t.enqueueGameResults(results)
		}
	}
}

// handleBusinessGameEnd handles the business-log game end shape, the
// primary completion signal on newer clients.
func (t *Tracker) handleBusinessGameEnd(_ string, obj map[string]any) error {
	if t.game.startingTeamID == 0 {
		t.game.startingTeamID, _ = payload.GetInt(obj, "StartingTeamId")
	}

	if t.enqueueGameData() {
		winningTeam, _ := payload.GetInt(obj, "WinningTeamId")
		gameNumber, _ := payload.GetInt(obj, "GameNumber")
		t.pendingResult = &GameResultPart{
			GameNumber:    gameNumber,
			Won:           t.seatID == winningTeam,
			WinType:       payload.GetString(obj, "WinningType"),
			GameEndReason: payload.GetString(obj, "WinningReason"),
		}
		log.Printf("[Tracker] Added pending game result via business log: %+v", t.pendingResult)
	}
	return nil
}

// enqueueGameResults captures result snapshots from a result list: the last
// game-scope entry becomes the pending game result, and a match-scope entry
// (if any) the pending match result.
func (t *Tracker) enqueueGameResults(results []any) {
	var gameResults []map[string]any
	var matchResult map[string]any
	for _, r := range results {
		result, ok := r.(map[string]any)
		if !ok {
			continue
		}
		switch payload.GetString(result, "scope") {
		case "MatchScope_Game":
			gameResults = append(gameResults, result)
		case "MatchScope_Match":
			if matchResult == nil {
				matchResult = result
			}
		}
	}

	if len(gameResults) > 0 {
		last := gameResults[len(gameResults)-1]
		winningTeam, _ := payload.GetInt(last, "winningTeamId")
		t.pendingResult = &GameResultPart{
			GameNumber:    len(gameResults),
			Won:           t.seatID == winningTeam,
			WinType:       payload.GetString(last, "result"),
			GameEndReason: payload.GetString(last, "reason"),
		}
		log.Printf("[Tracker] Added pending game result %+v", t.pendingResult)
	}

	if matchResult != nil {
		winningTeam, _ := payload.GetInt(matchResult, "winningTeamId")
		t.pendingMatch = &MatchResultPart{
			WonMatch:        t.seatID == winningTeam,
			MatchResultType: payload.GetString(matchResult, "result"),
			MatchEndReason:  payload.GetString(matchResult, "reason"),
		}
		log.Printf("[Tracker] Added pending match result %+v", t.pendingMatch)
	}
}

// hasPendingGameData reports whether enough detail accumulated to make the
// game worth reporting. Both heuristics compensate for truncated logs where
// a game-over signal fires without its supporting messages.
func (t *Tracker) hasPendingGameData() bool {
	return len(t.game.drawnCardsByInstanceID) > 0 && len(t.game.historyEvents) > t.cfg.MinHistoryEvents
}

// enqueueGameData snapshots the full game into the pending submission.
// Returns false when the game does not meet the minimum-data threshold.
func (t *Tracker) enqueueGameData() bool {
	if !t.hasPendingGameData() {
		return false
	}

	opponentID := 1
	if t.seatID == 1 {
		opponentID = 2
	}
	var opponentCardIDs []int
	for _, cardID := range t.game.objectsByOwner[opponentID] {
		opponentCardIDs = append(opponentCardIDs, cardID)
	}

	// An opponent rank captured under a different match must never be
	// attributed to this game.
	if t.currentMatchID != t.curOpponentMatchID {
		t.curOpponentLevel = nil
	}

	drawnHands := t.game.drawnHands[t.seatID]
	var mulligans [][]int
	if len(drawnHands) > 0 {
		mulligans = drawnHands[:len(drawnHands)-1]
	}
	var drawnCards []int
	for _, cardID := range t.game.drawnCardsByInstanceID[t.seatID] {
		drawnCards = append(drawnCards, cardID)
	}

	game := GameSubmission{
		EventName:             t.currentEventID,
		MatchID:               t.currentMatchID,
		OnPlay:                t.seatID == t.game.startingTeamID,
		OpeningHand:           t.game.openingHand[t.seatID],
		Mulligans:             mulligans,
		DrawnHands:            drawnHands,
		DrawnCards:            drawnCards,
		MulliganCount:         t.game.openingHandCountBySeat[t.seatID] - 1,
		OpponentMulliganCount: t.game.openingHandCountBySeat[opponentID] - 1,
		Turns:                 t.game.turnCount,
		Duration:              -1,
		OpponentCardIDs:       opponentCardIDs,
		RankData:              t.curRankData,
		OpponentRank:          t.curOpponentLevel,
		MaindeckCardIDs:       t.game.maindeck,
		SideboardCardIDs:      t.game.sideboard,
		AdditionalDeckInfo:    t.game.additionalDeckInfo,
		ServiceMetadata:       t.game.serviceMetadata,
		ClientMetadata:        t.game.clientMetadata,
		History: &GameHistory{
			SeatID:             t.seatID,
			OpponentSeatID:     opponentID,
			ScreenName:         t.screenNames[t.seatID],
			OpponentScreenName: t.screenNames[opponentID],
			Events:             append([]map[string]any(nil), t.game.historyEvents...),
		},
	}
	log.Printf("[Tracker] Completed game: match=%s event=%s turns=%d history=%d",
		game.MatchID, game.EventName, game.Turns, len(game.History.Events))

	t.pendingSubmission = &game
	return true
}
