package tracker

// gameState holds everything scoped to a single game. It is replaced with a
// fresh value between games rather than cleared in place: a game's
// card-instance-id space is not disjoint from the next game's, so a partial
// clear would leak cards across games.
type gameState struct {
	startingTeamID int // 0 until known; seats are 1-based
	turnCount      int

	// Seat-scoped card tracking. objectsByOwner maps instance id to card
	// definition id for every card-like game object seen.
	objectsByOwner         map[int]map[int]int
	cardsInHand            map[int][]int
	drawnCardsByInstanceID map[int]map[int]int

	// Hand decisions. A seat's hand is snapshotted into drawnHands once
	// per mulligan round; openingHandCountBySeat counts decision events,
	// so the mulligan count is that count minus one.
	openingHandCountBySeat map[int]int
	drawnHands             map[int][][]int
	openingHand            map[int][]int

	maindeck           []int
	sideboard          []int
	additionalDeckInfo map[string]any
	serviceMetadata    any
	clientMetadata     any

	historyEvents []map[string]any
}

func newGameState() *gameState {
	return &gameState{
		objectsByOwner:         make(map[int]map[int]int),
		cardsInHand:            make(map[int][]int),
		drawnCardsByInstanceID: make(map[int]map[int]int),
		openingHandCountBySeat: make(map[int]int),
		drawnHands:             make(map[int][][]int),
		openingHand:            make(map[int][]int),
	}
}

func (g *gameState) ownerObjects(seat int) map[int]int {
	m, ok := g.objectsByOwner[seat]
	if !ok {
		m = make(map[int]int)
		g.objectsByOwner[seat] = m
	}
	return m
}

func (g *gameState) drawnCards(seat int) map[int]int {
	m, ok := g.drawnCardsByInstanceID[seat]
	if !ok {
		m = make(map[int]int)
		g.drawnCardsByInstanceID[seat] = m
	}
	return m
}

func (g *gameState) addHistory(event map[string]any, timestamp string) {
	entry := make(map[string]any, len(event)+1)
	if timestamp == "" {
		entry["_timestamp"] = nil
	} else {
		entry["_timestamp"] = timestamp
	}
	for k, v := range event {
		entry[k] = v
	}
	g.historyEvents = append(g.historyEvents, entry)
}
