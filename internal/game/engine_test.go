// internal/game/engine_test.go
package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/shadow-signal/internal/models"
	"github.com/jason-s-yu/shadow-signal/internal/store"
)

// fakeWords returns fixed words and counts its calls.
type fakeWords struct {
	mu        sync.Mutex
	wordErr   error
	decoyErr  error
	wordCalls int
}

func (f *fakeWords) PickWord(ctx context.Context) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wordCalls++
	if f.wordErr != nil {
		return "", "", f.wordErr
	}
	return "Places", "Beach", nil
}

func (f *fakeWords) PickDecoy(ctx context.Context, mainWord string) (string, error) {
	if f.decoyErr != nil {
		return "", f.decoyErr
	}
	return "Island", nil
}

// mockRecorder collects recorded actions.
type mockRecorder struct {
	mu      sync.Mutex
	records []models.ActionRecord
}

func (m *mockRecorder) Record(ctx context.Context, rec models.ActionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *mockRecorder) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.records))
	for i, r := range m.records {
		out[i] = r.ActionType
	}
	return out
}

// setupEngine returns an engine over a memory store whose codes come from codes in order
// and whose special role always goes to player index special.
func setupEngine(t *testing.T, special int, codes ...string) (*Engine, *fakeWords) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	fw := &fakeWords{}
	e := NewEngine(store.NewMemoryStore(), fw, logger)
	e.PickIndex = func(n int) int { return special }
	next := 0
	e.NewCode = func() (string, error) {
		if next >= len(codes) {
			return GenerateCode()
		}
		c := codes[next]
		next++
		return c, nil
	}
	return e, fw
}

// setupRoom creates ABC123 with players P1..Pn joined in order.
func setupRoom(t *testing.T, e *Engine, n int) *models.Room {
	t.Helper()
	ctx := context.Background()
	room, err := e.Create(ctx, "host")
	require.NoError(t, err)
	for i := 1; i <= n; i++ {
		room, err = e.Join(ctx, room.Code, fmt.Sprintf("P%d", i), fmt.Sprintf("Player %d", i))
		require.NoError(t, err)
	}
	return room
}

// playRound advances every turn of the current speaking round.
func playRound(t *testing.T, e *Engine, code string) *models.Room {
	t.Helper()
	ctx := context.Background()
	var room *models.Room
	var err error
	for i := 0; i < 20; i++ {
		room, err = e.AdvanceTurn(ctx, code)
		require.NoError(t, err)
		if room.Status != models.StatusSpeaking {
			return room
		}
	}
	t.Fatalf("round in room %s never reached voting", code)
	return nil
}

// voteOut has every alive player vote for target.
func voteOut(t *testing.T, e *Engine, code, target string) *models.Room {
	t.Helper()
	ctx := context.Background()
	room, err := e.Get(ctx, code)
	require.NoError(t, err)
	voters := room.AlivePlayers()
	for _, v := range voters {
		to := target
		if v.ID == target {
			// the target votes for someone else
			for _, o := range voters {
				if o.ID != target {
					to = o.ID
					break
				}
			}
		}
		room, err = e.SubmitVote(ctx, code, v.ID, to)
		require.NoError(t, err)
	}
	return room
}

func TestCreateRoom(t *testing.T) {
	e, _ := setupEngine(t, 0, "ABC123")
	room, err := e.Create(context.Background(), "host-1")
	require.NoError(t, err)

	assert.Equal(t, "ABC123", room.Code)
	assert.Equal(t, "host-1", room.HostID)
	assert.Equal(t, models.StatusLobby, room.Status)
	assert.Empty(t, room.Players)
	assert.Equal(t, room.CreatedAt.Add(DefaultRoomTTL), room.ExpiresAt)
}

func TestCreateRetriesOnCollision(t *testing.T) {
	e, _ := setupEngine(t, 0, "ABC123", "ABC123", "XYZ789")
	_, err := e.Create(context.Background(), "a")
	require.NoError(t, err)

	room, err := e.Create(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, "XYZ789", room.Code)
}

func TestCreateGivesUpAfterRepeatedCollisions(t *testing.T) {
	e, _ := setupEngine(t, 0)
	e.NewCode = func() (string, error) { return "SAME00", nil }
	_, err := e.Create(context.Background(), "a")
	require.NoError(t, err)

	_, err = e.Create(context.Background(), "b")
	assert.ErrorIs(t, err, ErrCodeExhausted)
}

func TestGenerateCode(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		require.Len(t, code, CodeLength)
		for _, ch := range code {
			assert.Contains(t, CodeAlphabet, string(ch))
		}
	}
}

func TestJoin(t *testing.T) {
	ctx := context.Background()
	e, _ := setupEngine(t, 0, "ABC123")
	room := setupRoom(t, e, 0)

	room, err := e.Join(ctx, room.Code, "P1", "  Ann ")
	require.NoError(t, err)
	require.Len(t, room.Players, 1)
	p := room.Players[0]
	assert.Equal(t, "Ann", p.Name)
	assert.True(t, p.IsAlive)
	assert.False(t, p.HasSpoken)
	assert.Empty(t, p.VotedFor)
	assert.Equal(t, models.RoleNone, p.Role)

	_, err = e.Join(ctx, room.Code, "P1", "Ann again")
	assert.ErrorIs(t, err, ErrAlreadyJoined)

	_, err = e.Join(ctx, "NOPE00", "P2", "Bob")
	assert.ErrorIs(t, err, ErrNotFound)

	room, err = e.Join(ctx, room.Code, "P2", "Bob")
	require.NoError(t, err)
	assert.Equal(t, "P1", room.Players[0].ID)
	assert.Equal(t, "P2", room.Players[1].ID)
}

func TestJoinAfterStartFails(t *testing.T) {
	ctx := context.Background()
	e, _ := setupEngine(t, 0, "ABC123")
	room := setupRoom(t, e, 3)
	_, err := e.Start(ctx, room.Code, models.ModeStandard)
	require.NoError(t, err)

	_, err = e.Join(ctx, room.Code, "P9", "Late")
	assert.ErrorIs(t, err, ErrInvalidPhase)
	_, err = e.Join(ctx, room.Code, "P1", "Dup")
	assert.ErrorIs(t, err, ErrInvalidPhase)
}

func TestStartFailures(t *testing.T) {
	ctx := context.Background()
	e, fw := setupEngine(t, 0, "ABC123")
	room := setupRoom(t, e, 2)

	_, err := e.Start(ctx, room.Code, models.ModeStandard)
	assert.ErrorIs(t, err, ErrInsufficientPlayers)

	_, err = e.Start(ctx, "NOPE00", models.ModeStandard)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = e.Start(ctx, room.Code, models.Mode("chess"))
	assert.ErrorIs(t, err, ErrInvalidMode)
	assert.Equal(t, 0, fw.wordCalls, "no word is picked for a rejected start")
}

func TestStartIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	e, fw := setupEngine(t, 1, "ABC123")
	room := setupRoom(t, e, 3)

	fw.decoyErr = errors.New("upstream timeout")
	_, err := e.Start(ctx, room.Code, models.ModeAdversarial)
	assert.ErrorIs(t, err, ErrWordProvider)

	room, err = e.Get(ctx, room.Code)
	require.NoError(t, err)
	assert.Equal(t, models.StatusLobby, room.Status)
	assert.Empty(t, room.Mode)
	assert.Empty(t, room.MainWord)
	for _, p := range room.Players {
		assert.Equal(t, models.RoleNone, p.Role)
		assert.Empty(t, p.Word)
	}

	fw.decoyErr = nil
	fw.wordErr = errors.New("catalog offline")
	_, err = e.Start(ctx, room.Code, models.ModeStandard)
	assert.ErrorIs(t, err, ErrWordProvider)

	fw.wordErr = nil
	room, err = e.Start(ctx, room.Code, models.ModeAdversarial)
	require.NoError(t, err)
	assert.Equal(t, "Island", room.DecoyWord)
	assert.Equal(t, "Island", room.Players[1].Word)

	_, err = e.Start(ctx, room.Code, models.ModeAdversarial)
	assert.ErrorIs(t, err, ErrInvalidPhase)
}

func TestStartAssignsExactlyOneSpecialRole(t *testing.T) {
	tests := []struct {
		mode     models.Mode
		special  models.Role
		ordinary models.Role
		word     string
	}{
		{models.ModeStandard, models.RoleImpostor, models.RoleCitizen, ""},
		{models.ModeAdversarial, models.RoleSpy, models.RoleAgent, "Island"},
	}
	for _, tt := range tests {
		for pick := 0; pick < 5; pick++ {
			t.Run(fmt.Sprintf("%s/%d", tt.mode, pick), func(t *testing.T) {
				e, _ := setupEngine(t, pick, "ABC123")
				room := setupRoom(t, e, 5)
				room, err := e.Start(context.Background(), room.Code, tt.mode)
				require.NoError(t, err)

				specials := 0
				for i, p := range room.Players {
					if p.Role == tt.special {
						specials++
						assert.Equal(t, pick, i)
						assert.Equal(t, tt.word, p.Word)
					} else {
						assert.Equal(t, tt.ordinary, p.Role)
						assert.Equal(t, "Beach", p.Word)
					}
				}
				assert.Equal(t, 1, specials)
				assert.Equal(t, tt.mode, room.Mode)
				assert.Equal(t, "Places", room.Topic)
			})
		}
	}
}

func TestConcreteScenario(t *testing.T) {
	ctx := context.Background()
	e, _ := setupEngine(t, 1, "ABC123")
	room := setupRoom(t, e, 3)
	require.Equal(t, "ABC123", room.Code)

	room, err := e.Start(ctx, "ABC123", models.ModeStandard)
	require.NoError(t, err)
	assert.Equal(t, models.RoleImpostor, room.Players[1].Role)
	assert.Equal(t, "", room.Players[1].Word)
	assert.Equal(t, "Beach", room.Players[0].Word)
	assert.Equal(t, "Beach", room.Players[2].Word)
	assert.Equal(t, 0, room.CurrentSpeaker)
	assert.Equal(t, 30, room.SpeakerTimeLeft)
	assert.Equal(t, models.StatusSpeaking, room.Status)

	room, err = e.AdvanceTurn(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, 1, room.CurrentSpeaker)
	assert.True(t, room.Players[0].HasSpoken)

	room, err = e.AdvanceTurn(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, 2, room.CurrentSpeaker)
	assert.Equal(t, 30, room.SpeakerTimeLeft)

	room, err = e.AdvanceTurn(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, models.StatusVoting, room.Status)
	for _, p := range room.Players {
		assert.Empty(t, p.VotedFor)
		assert.True(t, p.HasSpoken)
	}

	// further advances are no-ops
	again, err := e.AdvanceTurn(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, room, again)
}

func TestTurnOrderSkipsEliminated(t *testing.T) {
	ctx := context.Background()
	e, _ := setupEngine(t, 4, "ABC123")
	room := setupRoom(t, e, 5)
	_, err := e.Start(ctx, room.Code, models.ModeStandard)
	require.NoError(t, err)

	playRound(t, e, room.Code)
	room = voteOut(t, e, room.Code, "P1")
	require.Equal(t, models.StatusSpeaking, room.Status)
	assert.False(t, room.Players[0].IsAlive)
	assert.Equal(t, "P1", room.EliminatedID)
	assert.Equal(t, 2, room.Round)

	// first alive player opens the round
	assert.Equal(t, 1, room.CurrentSpeaker)

	var visited []string
	for room.Status == models.StatusSpeaking {
		visited = append(visited, room.Players[room.CurrentSpeaker].ID)
		room, err = e.AdvanceTurn(ctx, room.Code)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"P2", "P3", "P4", "P5"}, visited)
	assert.Equal(t, models.StatusVoting, room.Status)
}

func TestAdvanceTurnNoOpOutsideSpeaking(t *testing.T) {
	ctx := context.Background()
	e, _ := setupEngine(t, 0, "ABC123")
	room := setupRoom(t, e, 3)

	lobby, err := e.AdvanceTurn(ctx, room.Code)
	require.NoError(t, err)
	assert.Equal(t, models.StatusLobby, lobby.Status)

	_, err = e.Start(ctx, room.Code, models.ModeStandard)
	require.NoError(t, err)
	playRound(t, e, room.Code)
	ended := voteOut(t, e, room.Code, "P1")
	require.Equal(t, models.StatusEnded, ended.Status)

	again, err := e.AdvanceTurn(ctx, room.Code)
	require.NoError(t, err)
	assert.Equal(t, ended, again)

	_, err = e.AdvanceTurn(ctx, "NOPE00")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubmitVote(t *testing.T) {
	ctx := context.Background()
	e, _ := setupEngine(t, 2, "ABC123")
	room := setupRoom(t, e, 4)
	_, err := e.Start(ctx, room.Code, models.ModeStandard)
	require.NoError(t, err)

	_, err = e.SubmitVote(ctx, room.Code, "P1", "P2")
	assert.ErrorIs(t, err, ErrInvalidPhase, "votes are only taken while voting")

	playRound(t, e, room.Code)

	_, err = e.SubmitVote(ctx, room.Code, "ghost", "P2")
	assert.ErrorIs(t, err, ErrIneligibleVoter)
	_, err = e.SubmitVote(ctx, room.Code, "P1", "ghost")
	assert.ErrorIs(t, err, ErrInvalidTarget)
	_, err = e.SubmitVote(ctx, "NOPE00", "P1", "P2")
	assert.ErrorIs(t, err, ErrNotFound)

	room, err = e.SubmitVote(ctx, room.Code, "P1", "P2")
	require.NoError(t, err)
	assert.Equal(t, "P2", room.PlayerByID("P1").VotedFor)

	// last vote wins
	room, err = e.SubmitVote(ctx, room.Code, "P1", "P4")
	require.NoError(t, err)
	assert.Equal(t, "P4", room.PlayerByID("P1").VotedFor)
	assert.Equal(t, models.StatusVoting, room.Status)

	_, err = e.SubmitVote(ctx, room.Code, "P2", "P4")
	require.NoError(t, err)
	_, err = e.SubmitVote(ctx, room.Code, "P3", "P1")
	require.NoError(t, err)
	room, err = e.SubmitVote(ctx, room.Code, "P4", "P2")
	require.NoError(t, err)

	assert.Equal(t, []models.VoteCount{{TargetID: "P4", Votes: 2}, {TargetID: "P1", Votes: 1}, {TargetID: "P2", Votes: 1}}, room.LastTally)
	assert.Equal(t, "P4", room.EliminatedID)
	assert.False(t, room.PlayerByID("P4").IsAlive)
	for _, p := range room.Players {
		assert.Empty(t, p.VotedFor)
	}

	_, err = e.SubmitVote(ctx, room.Code, "P4", "P1")
	assert.ErrorIs(t, err, ErrIneligibleVoter, "eliminated players cannot vote")
}

func TestTieBreakFavoursFirstVotedTarget(t *testing.T) {
	ctx := context.Background()
	// P1 holds the special role so eliminating either tied player continues the game
	e, _ := setupEngine(t, 0, "ABC123")
	room := setupRoom(t, e, 5)
	_, err := e.Start(ctx, room.Code, models.ModeStandard)
	require.NoError(t, err)
	playRound(t, e, room.Code)

	// scan order: P1->P3, P2->P4, P3->P4, P4->P3, P5->P1 gives {P3:2, P4:2, P1:1}
	votes := [][2]string{{"P5", "P1"}, {"P4", "P3"}, {"P3", "P4"}, {"P2", "P4"}, {"P1", "P3"}}
	for _, v := range votes {
		room, err = e.SubmitVote(ctx, room.Code, v[0], v[1])
		require.NoError(t, err)
	}
	assert.Equal(t, "P3", room.EliminatedID)
	assert.False(t, room.PlayerByID("P3").IsAlive)
	assert.True(t, room.PlayerByID("P4").IsAlive)
}

func TestLeader(t *testing.T) {
	assert.Equal(t, "", leader(nil))
	assert.Equal(t, "A", leader([]models.VoteCount{{TargetID: "A", Votes: 2}, {TargetID: "B", Votes: 2}}))
	assert.Equal(t, "B", leader([]models.VoteCount{{TargetID: "A", Votes: 1}, {TargetID: "B", Votes: 2}}))
}

func TestEmptyTallyStartsNewRound(t *testing.T) {
	logger, _ := test.NewNullLogger()
	e := &Engine{log: logger, TurnSeconds: 30, Now: time.Now}
	room := &models.Room{
		Code:   "ABC123",
		Mode:   models.ModeStandard,
		Status: models.StatusVoting,
		Round:  1,
		Players: []*models.Player{
			{ID: "P1", IsAlive: true, HasSpoken: true},
			{ID: "P2", IsAlive: true, HasSpoken: true},
			{ID: "P3", IsAlive: true, HasSpoken: true},
		},
	}
	var acts actionBatch
	e.resolveVotes(room, &acts)

	assert.Equal(t, models.StatusSpeaking, room.Status)
	assert.Empty(t, room.EliminatedID)
	assert.Equal(t, 2, room.Round)
	assert.Equal(t, 0, room.CurrentSpeaker)
	for _, p := range room.Players {
		assert.True(t, p.IsAlive)
		assert.False(t, p.HasSpoken)
	}
}

func TestSpecialRoleEliminatedEndsGame(t *testing.T) {
	ctx := context.Background()
	var ended *models.Room
	e, _ := setupEngine(t, 2, "ABC123")
	e.OnGameEnd = func(room *models.Room) { ended = room }
	room := setupRoom(t, e, 3)
	_, err := e.Start(ctx, room.Code, models.ModeStandard)
	require.NoError(t, err)
	playRound(t, e, room.Code)

	room = voteOut(t, e, room.Code, "P3")
	assert.Equal(t, models.StatusEnded, room.Status)
	assert.Equal(t, "citizens", room.Winner)
	require.NotNil(t, ended)
	assert.Equal(t, "citizens", ended.Winner)

	_, err = e.SubmitVote(ctx, room.Code, "P1", "P2")
	assert.ErrorIs(t, err, ErrInvalidPhase)
	after, err := e.Get(ctx, room.Code)
	require.NoError(t, err)
	assert.Equal(t, room, after)
}

func TestSpecialRoleSurvivesToFinalTwo(t *testing.T) {
	ctx := context.Background()
	e, _ := setupEngine(t, 3, "ABC123")
	room := setupRoom(t, e, 4)
	_, err := e.Start(ctx, room.Code, models.ModeAdversarial)
	require.NoError(t, err)

	playRound(t, e, room.Code)
	room = voteOut(t, e, room.Code, "P1")
	require.Equal(t, models.StatusSpeaking, room.Status)

	playRound(t, e, room.Code)
	room = voteOut(t, e, room.Code, "P2")
	assert.Equal(t, models.StatusEnded, room.Status)
	assert.Equal(t, "spy", room.Winner)
	assert.Len(t, room.AlivePlayers(), 2)
}

func TestTick(t *testing.T) {
	ctx := context.Background()
	e, _ := setupEngine(t, 0, "ABC123")
	e.TurnSeconds = 2
	room := setupRoom(t, e, 3)
	_, err := e.Start(ctx, room.Code, models.ModeStandard)
	require.NoError(t, err)

	room, advanced, err := e.Tick(ctx, room.Code)
	require.NoError(t, err)
	assert.False(t, advanced)
	assert.Equal(t, 1, room.SpeakerTimeLeft)
	assert.Equal(t, 0, room.CurrentSpeaker)

	room, advanced, err = e.Tick(ctx, room.Code)
	require.NoError(t, err)
	assert.True(t, advanced)
	assert.Equal(t, 1, room.CurrentSpeaker)
	assert.Equal(t, 2, room.SpeakerTimeLeft)

	_, _, err = e.Tick(ctx, "NOPE00")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTickNoOpOutsideSpeaking(t *testing.T) {
	ctx := context.Background()
	e, _ := setupEngine(t, 0, "ABC123")
	room := setupRoom(t, e, 3)

	got, advanced, err := e.Tick(ctx, room.Code)
	require.NoError(t, err)
	assert.False(t, advanced)
	assert.Equal(t, room, got)
}

func TestConcurrentVotesAreNotLost(t *testing.T) {
	ctx := context.Background()
	// P1 is special; everyone votes P2, so the round resolves with P2 out
	e, _ := setupEngine(t, 0, "ABC123")
	room := setupRoom(t, e, 8)
	_, err := e.Start(ctx, room.Code, models.ModeStandard)
	require.NoError(t, err)
	playRound(t, e, room.Code)

	var wg sync.WaitGroup
	for i := 1; i <= 8; i++ {
		wg.Add(1)
		go func(voter string) {
			defer wg.Done()
			target := "P2"
			if voter == "P2" {
				target = "P3"
			}
			_, err := e.SubmitVote(ctx, room.Code, voter, target)
			assert.NoError(t, err)
		}(fmt.Sprintf("P%d", i))
	}
	wg.Wait()

	room, err = e.Get(ctx, room.Code)
	require.NoError(t, err)
	assert.Equal(t, "P2", room.EliminatedID)
	assert.Equal(t, models.StatusSpeaking, room.Status)
	assert.Equal(t, 0, e.locks.size())
}

func TestActionsAreRecorded(t *testing.T) {
	ctx := context.Background()
	rec := &mockRecorder{}
	e, _ := setupEngine(t, 1, "ABC123")
	e.Recorder = rec
	room := setupRoom(t, e, 3)
	_, err := e.Start(ctx, room.Code, models.ModeStandard)
	require.NoError(t, err)

	// failed operations record nothing
	_, err = e.Join(ctx, room.Code, "P4", "Late")
	require.Error(t, err)

	assert.Eventually(t, func() bool {
		return len(rec.types()) == 5
	}, time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{
		models.ActionRoomCreated,
		models.ActionPlayerJoined, models.ActionPlayerJoined, models.ActionPlayerJoined,
		models.ActionGameStarted,
	}, rec.types())
}

func TestNewEngineDefaults(t *testing.T) {
	e := NewEngine(store.NewMemoryStore(), &fakeWords{}, nil)
	assert.Equal(t, DefaultTurnSeconds, e.TurnSeconds)
	assert.Equal(t, DefaultRoomTTL, e.RoomTTL)
	assert.Equal(t, DefaultDecoyTimeout, e.DecoyTimeout)
	assert.IsType(t, &logrus.Logger{}, e.log)
}
