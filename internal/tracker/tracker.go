// Package tracker is the stateful core of the follower: it classifies
// flattened log payloads, correlates them across a session, and emits
// normalized events (draft picks, deck submissions, completed games, rank
// updates) to a Submitter once enough state has accumulated.
package tracker

import (
	"fmt"
	"log"
	"runtime/debug"
	"strings"
	"time"

	"arena-tracker/internal/payload"
	"arena-tracker/internal/timeparse"
)

const (
	// recentLineCount is how many raw lines are kept for error reports.
	recentLineCount = 10

	// DefaultMinHistoryEvents is the minimum game-history length before a
	// game is considered to have enough data to report. Empirically
	// chosen: a game-over signal can fire without the supporting detail
	// messages ever arriving, and such games are not worth reporting.
	DefaultMinHistoryEvents = 5
)

const isoFormat = "2006-01-02T15:04:05.999999"

// Config tunes the tracker.
type Config struct {
	Token         string
	ClientVersion string

	// MinHistoryEvents overrides DefaultMinHistoryEvents when positive.
	MinHistoryEvents int
}

// Tracker holds one logical play session's state. It is not safe for
// concurrent use; the follower feeds it from a single goroutine.
type Tracker struct {
	submitter Submitter
	cfg       Config

	// Timestamps established from the line stream and payloads.
	curLogTime  time.Time
	lastUTCTime time.Time
	lastRawTime string
	curMsgUTC   string // ISO UTC of the message being dispatched, "" if unknown

	// Session identity.
	curUser          string
	userScreenName   string
	disconnectedUser string
	disconnectedName string
	disconnectedRank any

	// Draft / match correlation.
	curDraftEvent      string
	curRankData        any
	curOpponentLevel   *string
	curOpponentMatchID string
	currentMatchID     string
	currentEventID     string
	seatID             int
	screenNames        map[int]string

	game *gameState

	// Two halves of a completed game. A full submission is flushed only
	// once both the submission and the result exist.
	pendingSubmission *GameSubmission
	pendingResult     *GameResultPart
	pendingMatch      *MatchResultPart

	// Error-report context.
	currentDebugBlob string
	recentLines      []string

	// Counters exposed for tests and stats logging.
	messagesSeen int64
	handlersRun  int64
	gamesFlushed int64
}

func New(submitter Submitter, cfg Config) *Tracker {
	if cfg.MinHistoryEvents <= 0 {
		cfg.MinHistoryEvents = DefaultMinHistoryEvents
	}
	t := &Tracker{submitter: submitter, cfg: cfg}
	t.Reset()
	return t
}

// Reset reinitializes all session state. Called at construction and
// whenever the follower restarts from the top of the file.
func (t *Tracker) Reset() {
	t.curLogTime = time.Unix(0, 0).UTC()
	t.lastUTCTime = time.Unix(0, 0).UTC()
	t.lastRawTime = ""
	t.curMsgUTC = ""
	t.curUser = ""
	t.userScreenName = ""
	t.disconnectedUser = ""
	t.disconnectedName = ""
	t.disconnectedRank = nil
	t.curDraftEvent = ""
	t.curRankData = nil
	t.curOpponentLevel = nil
	t.curOpponentMatchID = ""
	t.currentDebugBlob = ""
	t.recentLines = nil
	t.pendingSubmission = nil
	t.clearMatchData(false)
}

// HandleLine observes every raw line before reassembly. Account identity is
// only present in free-text lines, never in the JSON payloads.
func (t *Tracker) HandleLine(line string) {
	if len(t.recentLines) >= recentLineCount {
		t.recentLines = t.recentLines[1:]
	}
	t.recentLines = append(t.recentLines, line)

	t.checkDetailedLogs(line)
	t.maybeHandleAccountInfo(line)
}

func (t *Tracker) checkDetailedLogs(line string) {
	if strings.HasPrefix(line, "DETAILED LOGS: DISABLED") {
		log.Println("[Tracker] Detailed logs are disabled in Arena; enable them in the client's account settings")
	} else if strings.HasPrefix(line, "DETAILED LOGS: ENABLED") {
		log.Println("[Tracker] Detailed logs enabled in Arena")
	}
}

// HandleMessage consumes one finalized log message.
func (t *Tracker) HandleMessage(text string, logTime time.Time, rawTime string) {
	t.messagesSeen++
	t.curLogTime = logTime
	t.lastRawTime = rawTime
	t.currentDebugBlob = text

	obj := payload.Extract(text)
	if obj == nil {
		return
	}

	t.curMsgUTC = ""
	if utc, ok := timeparse.DeriveUTC(obj); ok {
		t.lastUTCTime = utc
		t.curMsgUTC = utc.Format(isoFormat)
	}

	t.dispatch(text, obj)
}

// dispatch runs the first matching classifier rule. Rules are ordered:
// several message shapes are structurally ambiguous and only
// distinguishable by checking the rarer fields first.
func (t *Tracker) dispatch(raw string, obj map[string]any) {
	for _, r := range rules {
		if !r.match(raw, obj) {
			continue
		}
		t.handlersRun++
		t.runIsolated(r.name, func() error { return r.handle(t, raw, obj) })
		return
	}
}

// runIsolated keeps any single message's failure from aborting the stream.
// A handler failing mid-way can leave partially updated state; that is
// accepted rather than rolled back.
func (t *Tracker) runIsolated(name string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			t.reportError(fmt.Sprintf("panic in %s: %v", name, r), string(debug.Stack()))
		}
	}()
	if err := fn(); err != nil {
		t.reportError(fmt.Sprintf("error in %s", name), err.Error())
	}
}

func (t *Tracker) reportError(message, stacktrace string) {
	log.Printf("[Tracker] %s", message)
	report := ErrorReport{
		Blob:        t.currentDebugBlob,
		RecentLines: append([]string(nil), t.recentLines...),
		Stacktrace:  message + "\n" + stacktrace,
	}
	if err := t.submitter.SubmitError(t.envelope(), report); err != nil {
		log.Printf("[Tracker] Failed to submit error report: %v", err)
	}
}

func (t *Tracker) envelope() Envelope {
	return Envelope{
		Token:         t.cfg.Token,
		ClientVersion: t.cfg.ClientVersion,
		PlayerID:      t.curUser,
		Time:          t.curLogTime.Format(isoFormat),
		UTCTime:       t.lastUTCTime.Format(isoFormat),
		RawTime:       t.lastRawTime,
	}
}

// MessagesSeen returns how many finalized messages reached the tracker.
func (t *Tracker) MessagesSeen() int64 { return t.messagesSeen }

// HandlersRun returns how many messages matched a classifier rule.
func (t *Tracker) HandlersRun() int64 { return t.handlersRun }

// GamesFlushed returns how many completed games were submitted.
func (t *Tracker) GamesFlushed() int64 { return t.gamesFlushed }

// updateScreenName records the user's screen name and reports it once per
// distinct value.
func (t *Tracker) updateScreenName(screenName string) {
	if screenName == "" || t.userScreenName == screenName {
		return
	}
	t.userScreenName = screenName
	log.Printf("[Tracker] Updating user info: %s (%s)", screenName, t.curUser)
	if err := t.submitter.SubmitUser(t.envelope(), UserEvent{
		PlayerID:   t.curUser,
		ScreenName: t.userScreenName,
	}); err != nil {
		t.reportError(fmt.Sprintf("error submitting user info: %v", err), "")
	}
}

// clearGameData resets game-scoped state, first flushing any paired
// pending submission so a completed game is never silently dropped.
func (t *Tracker) clearGameData(submitPending bool) {
	if submitPending {
		t.maybeSubmitPendingGame()
	}
	t.game = newGameState()
	t.pendingResult = nil
	t.pendingMatch = nil
}

// clearMatchData resets match-scoped state on room teardown.
func (t *Tracker) clearMatchData(submitPending bool) {
	t.screenNames = make(map[int]string)
	t.currentMatchID = ""
	t.currentEventID = ""
	t.seatID = 0
	t.clearGameData(submitPending)
}

// maybeSubmitPendingGame flushes a completed game once both halves exist.
func (t *Tracker) maybeSubmitPendingGame() {
	if t.pendingSubmission == nil || t.pendingResult == nil {
		return
	}
	full := CompletedGame{
		GameResultPart:  *t.pendingResult,
		MatchResultPart: t.pendingMatch,
		GameSubmission:  *t.pendingSubmission,
	}
	log.Println("[Tracker] Submitting queued game result")
	if err := t.submitter.SubmitGame(t.envelope(), full); err != nil {
		t.reportError(fmt.Sprintf("error submitting game: %v", err), "")
	}
	t.gamesFlushed++
	t.pendingSubmission = nil
	t.clearGameData(false)
}
