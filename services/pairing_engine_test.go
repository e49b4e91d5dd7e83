package services

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"testing"
	"time"

	"topminton/models"

	"github.com/stretchr/testify/assert"
)

// fakePairingStore keeps everything in memory so engine semantics can
// be tested without Postgres.
type fakePairingStore struct {
	rosters  map[string][]models.PartyMember
	rooms    map[string]*models.Room
	pairings map[string]*models.Pairing
	order    []string // pairing ids in creation order
}

func newFakeStore() *fakePairingStore {
	return &fakePairingStore{
		rosters:  make(map[string][]models.PartyMember),
		rooms:    make(map[string]*models.Room),
		pairings: make(map[string]*models.Pairing),
	}
}

func (f *fakePairingStore) LoadRoster(_ context.Context, partyID string) ([]models.PartyMember, error) {
	return f.rosters[partyID], nil
}

func (f *fakePairingStore) CountRooms(_ context.Context, partyID string) (int64, error) {
	var n int64
	for _, r := range f.rooms {
		if r.PartyID == partyID {
			n++
		}
	}
	return n, nil
}

func (f *fakePairingStore) SaveRoom(_ context.Context, room *models.Room, pairings []models.Pairing) error {
	f.rooms[room.ID] = room
	for i := range pairings {
		p := pairings[i]
		f.pairings[p.ID] = &p
		f.order = append(f.order, p.ID)
	}
	return nil
}

func (f *fakePairingStore) GetPairing(_ context.Context, pairingID string) (*models.Pairing, error) {
	p, ok := f.pairings[pairingID]
	if !ok {
		return nil, ErrPairingNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePairingStore) ApplyScoreDelta(_ context.Context, pairingID string, team string, delta int) (*models.Pairing, error) {
	p, ok := f.pairings[pairingID]
	if !ok {
		return nil, ErrPairingNotFound
	}
	if p.Status == models.PairingStatusCompleted {
		return nil, ErrPairingClosed
	}
	if team == models.TeamA {
		p.ScoreA += delta
		if p.ScoreA < 0 {
			p.ScoreA = 0
		}
	} else {
		p.ScoreB += delta
		if p.ScoreB < 0 {
			p.ScoreB = 0
		}
	}
	cp := *p
	return &cp, nil
}

func (f *fakePairingStore) CompletePairing(_ context.Context, pairing *models.Pairing) (bool, error) {
	p, ok := f.pairings[pairing.ID]
	if !ok {
		return false, ErrPairingNotFound
	}
	if p.Status == models.PairingStatusCompleted {
		*pairing = *p
		return false, nil
	}
	p.Status = models.PairingStatusCompleted
	p.Winner = pairing.Winner
	p.CompletedAt = pairing.CompletedAt
	return true, nil
}

func (f *fakePairingStore) ListRoomPairings(_ context.Context, roomID string) ([]models.Pairing, error) {
	var out []models.Pairing
	for _, id := range f.order {
		if f.pairings[id].RoomID == roomID {
			out = append(out, *f.pairings[id])
		}
	}
	return out, nil
}

func (f *fakePairingStore) ListCompletedPairings(_ context.Context, partyID string) ([]models.Pairing, error) {
	var out []models.Pairing
	for _, id := range f.order {
		p := f.pairings[id]
		if p.PartyID == partyID && p.Status == models.PairingStatusCompleted {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePairingStore) SetRoomStatus(_ context.Context, roomID string, status string) error {
	if r, ok := f.rooms[roomID]; ok {
		r.Status = status
	}
	return nil
}

func seedRoster(store *fakePairingStore, partyID string, n int) []string {
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("player-%02d", i)
		ids[i] = id
		store.rosters[partyID] = append(store.rosters[partyID], models.PartyMember{
			ID:             fmt.Sprintf("member-%02d", i),
			PartyID:        partyID,
			ExternalUserID: id,
			DisplayName:    fmt.Sprintf("Player %02d", i),
			Status:         models.MemberStatusActive,
		})
	}
	return ids
}

func testEngine(store *fakePairingStore, seed int64) *PairingEngine {
	return NewPairingEngine(store, rand.New(rand.NewSource(seed)))
}

func TestGenerateRoundRequiresFourParticipants(t *testing.T) {
	store := newFakeStore()
	seedRoster(store, "party-1", 3)
	engine := testEngine(store, 1)

	_, _, err := engine.GenerateRound(context.Background(), "party-1")
	assert.ErrorIs(t, err, ErrInsufficientParticipants)
	assert.Empty(t, store.rooms, "no room should be created on failure")
	assert.Empty(t, store.pairings, "no pairings should be created on failure")
}

func TestGenerateRoundPartitionsRoster(t *testing.T) {
	store := newFakeStore()
	ids := seedRoster(store, "party-1", 12)
	engine := testEngine(store, 2)

	room, pairings, err := engine.GenerateRound(context.Background(), "party-1")
	assert.NoError(t, err)
	assert.Equal(t, models.RoomStatusWaiting, room.Status)
	assert.Equal(t, "Round 1", room.Label)
	assert.Len(t, pairings, 3)

	seen := make(map[string]bool)
	rosterSet := make(map[string]bool)
	for _, id := range ids {
		rosterSet[id] = true
	}
	for i, p := range pairings {
		assert.Equal(t, i+1, p.SequenceNumber)
		assert.Equal(t, models.PairingStatusPending, p.Status)
		assert.Zero(t, p.ScoreA)
		assert.Zero(t, p.ScoreB)
		assert.Nil(t, p.Winner)

		participants := p.ParticipantIDs()
		assert.Len(t, participants, 4)
		for _, id := range participants {
			assert.True(t, rosterSet[id], "participant %s must come from the roster", id)
			assert.False(t, seen[id], "participant %s appears in more than one pairing", id)
			seen[id] = true
		}
	}
	assert.Len(t, seen, 12, "every roster member should be placed when n is a multiple of 4")
}

func TestGenerateRoundDropsRemainder(t *testing.T) {
	for _, n := range []int{5, 6, 7, 9, 11} {
		t.Run(fmt.Sprintf("roster_%d", n), func(t *testing.T) {
			store := newFakeStore()
			seedRoster(store, "party-1", n)
			engine := testEngine(store, int64(n))

			_, pairings, err := engine.GenerateRound(context.Background(), "party-1")
			assert.NoError(t, err)
			assert.Len(t, pairings, n/4)

			placed := 0
			for _, p := range pairings {
				placed += len(p.ParticipantIDs())
			}
			assert.Equal(t, (n/4)*4, placed, "remainder participants must sit out")
		})
	}
}

func TestGenerateRoundAppendsIndependentRooms(t *testing.T) {
	store := newFakeStore()
	seedRoster(store, "party-1", 8)
	engine := testEngine(store, 3)

	room1, _, err := engine.GenerateRound(context.Background(), "party-1")
	assert.NoError(t, err)
	room2, _, err := engine.GenerateRound(context.Background(), "party-1")
	assert.NoError(t, err)

	assert.NotEqual(t, room1.ID, room2.ID)
	assert.Equal(t, "Round 1", room1.Label)
	assert.Equal(t, "Round 2", room2.Label)
	assert.Len(t, store.rooms, 2)
	assert.Len(t, store.pairings, 4)
}

// Shuffle fairness: with a roster of 8 there are 8 team-slot positions;
// over many rounds each player should land in each position roughly
// uniformly. Statistical bounds, not exact equality.
func TestShuffleFairness(t *testing.T) {
	const iterations = 2000
	store := newFakeStore()
	seedRoster(store, "party-1", 8)
	engine := testEngine(store, 42)

	slotCounts := make(map[string]int) // position index -> count for player-00
	for i := 0; i < iterations; i++ {
		_, pairings, err := engine.GenerateRound(context.Background(), "party-1")
		assert.NoError(t, err)

		pos := 0
		for _, p := range pairings {
			for _, id := range []string{p.TeamA1ID, *p.TeamA2ID, p.TeamB1ID, *p.TeamB2ID} {
				if id == "player-00" {
					slotCounts[fmt.Sprintf("slot-%d", pos)]++
				}
				pos++
			}
		}
	}

	expected := float64(iterations) / 8
	for slot, count := range slotCounts {
		assert.InDelta(t, expected, float64(count), expected*0.3,
			"player-00 frequency in %s should be near uniform", slot)
	}
	assert.Len(t, slotCounts, 8, "player should have visited every slot position")
}

func seedPairing(store *fakePairingStore, id string, scoreA, scoreB int) *models.Pairing {
	a2 := "p2"
	b2 := "p4"
	room := &models.Room{ID: "room-" + id, PartyID: "party-1", Status: models.RoomStatusWaiting}
	store.rooms[room.ID] = room
	p := &models.Pairing{
		ID:             id,
		RoomID:         room.ID,
		PartyID:        "party-1",
		SequenceNumber: 1,
		TeamA1ID:       "p1", TeamA1Name: "P1",
		TeamA2ID: &a2, TeamA2Name: "P2",
		TeamB1ID: "p3", TeamB1Name: "P3",
		TeamB2ID: &b2, TeamB2Name: "P4",
		ScoreA: scoreA,
		ScoreB: scoreB,
		Status: models.PairingStatusPending,
	}
	store.pairings[id] = p
	store.order = append(store.order, id)
	return p
}

func TestAdjustScoreClampsAtZero(t *testing.T) {
	store := newFakeStore()
	seedPairing(store, "pairing-1", 0, 0)
	engine := testEngine(store, 4)

	for i := 0; i < 5; i++ {
		p, err := engine.AdjustScore(context.Background(), "pairing-1", models.TeamA, -1)
		assert.NoError(t, err)
		assert.Equal(t, 0, p.ScoreA, "score must never go negative")
	}
}

func TestAdjustScoreValidation(t *testing.T) {
	store := newFakeStore()
	seedPairing(store, "pairing-1", 0, 0)
	engine := testEngine(store, 5)

	_, err := engine.AdjustScore(context.Background(), "pairing-1", "C", 1)
	assert.ErrorIs(t, err, ErrInvalidTeam)

	_, err = engine.AdjustScore(context.Background(), "pairing-1", models.TeamA, 2)
	assert.ErrorIs(t, err, ErrInvalidDelta)

	_, err = engine.AdjustScore(context.Background(), "missing", models.TeamA, 1)
	assert.ErrorIs(t, err, ErrPairingNotFound)
}

func TestFinishMatchWinner(t *testing.T) {
	cases := []struct {
		name   string
		scoreA int
		scoreB int
		winner *string
	}{
		{"team A wins", 21, 15, ptr(models.TeamA)},
		{"team B wins", 15, 21, ptr(models.TeamB)},
		{"tie leaves winner unset", 21, 21, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeStore()
			seedPairing(store, "pairing-1", tc.scoreA, tc.scoreB)
			engine := testEngine(store, 6)

			p, won, err := engine.FinishMatch(context.Background(), "pairing-1")
			assert.NoError(t, err)
			assert.True(t, won)
			assert.Equal(t, models.PairingStatusCompleted, p.Status)
			assert.NotNil(t, p.CompletedAt)
			if tc.winner == nil {
				assert.Nil(t, p.Winner)
			} else {
				assert.NotNil(t, p.Winner)
				assert.Equal(t, *tc.winner, *p.Winner)
			}
		})
	}
}

func TestFinishMatchIsIdempotent(t *testing.T) {
	store := newFakeStore()
	seedPairing(store, "pairing-1", 21, 15)
	engine := testEngine(store, 7)

	first, won, err := engine.FinishMatch(context.Background(), "pairing-1")
	assert.NoError(t, err)
	assert.True(t, won, "first call performs the transition")

	// Second call must return the stored state unchanged, not re-derive,
	// and must not report the transition again.
	second, won, err := engine.FinishMatch(context.Background(), "pairing-1")
	assert.NoError(t, err)
	assert.False(t, won, "repeat call must not re-trigger side effects")
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, *first.Winner, *second.Winner)
	assert.True(t, first.CompletedAt.Equal(*second.CompletedAt))
}

func TestFinishMatchCompletionRaceHasSingleWinner(t *testing.T) {
	store := newFakeStore()
	seedPairing(store, "pairing-1", 21, 15)
	engine := testEngine(store, 11)

	// Simulate two concurrent finish calls landing on a pending pairing:
	// the store's conditional write lets exactly one through.
	raced := *store.pairings["pairing-1"]
	_, firstWon, err := engine.FinishMatch(context.Background(), "pairing-1")
	assert.NoError(t, err)

	now := time.Now()
	raced.Winner = ptr(models.TeamA)
	raced.CompletedAt = &now
	secondWon, err := store.CompletePairing(context.Background(), &raced)
	assert.NoError(t, err)

	assert.True(t, firstWon)
	assert.False(t, secondWon)
}

func TestCompletedPairingRejectsScoreEdits(t *testing.T) {
	store := newFakeStore()
	seedPairing(store, "pairing-1", 21, 15)
	engine := testEngine(store, 8)

	_, _, err := engine.FinishMatch(context.Background(), "pairing-1")
	assert.NoError(t, err)

	_, err = engine.AdjustScore(context.Background(), "pairing-1", models.TeamA, 1)
	assert.ErrorIs(t, err, ErrPairingClosed)

	stored, err := store.GetPairing(context.Background(), "pairing-1")
	assert.NoError(t, err)
	assert.Equal(t, 21, stored.ScoreA)
	assert.Equal(t, 15, stored.ScoreB)
}

func TestDeriveRoomStatus(t *testing.T) {
	a2, b2 := "a2", "b2"
	base := models.Pairing{TeamA1ID: "a1", TeamA2ID: &a2, TeamB1ID: "b1", TeamB2ID: &b2}

	pending := base
	pending.Status = models.PairingStatusPending

	scored := pending
	scored.ScoreA = 3

	done := base
	done.Status = models.PairingStatusCompleted

	assert.Equal(t, models.RoomStatusWaiting, DeriveRoomStatus(nil))
	assert.Equal(t, models.RoomStatusWaiting, DeriveRoomStatus([]models.Pairing{pending, pending}))
	assert.Equal(t, models.RoomStatusInProgress, DeriveRoomStatus([]models.Pairing{scored, pending}))
	assert.Equal(t, models.RoomStatusInProgress, DeriveRoomStatus([]models.Pairing{done, pending}))
	assert.Equal(t, models.RoomStatusCompleted, DeriveRoomStatus([]models.Pairing{done, done}))
}

func TestRoomStatusFollowsPairingLifecycle(t *testing.T) {
	store := newFakeStore()
	seedRoster(store, "party-1", 4)
	engine := testEngine(store, 9)

	room, pairings, err := engine.GenerateRound(context.Background(), "party-1")
	assert.NoError(t, err)
	assert.Equal(t, models.RoomStatusWaiting, store.rooms[room.ID].Status)

	_, err = engine.AdjustScore(context.Background(), pairings[0].ID, models.TeamA, 1)
	assert.NoError(t, err)
	assert.Equal(t, models.RoomStatusInProgress, store.rooms[room.ID].Status)

	_, _, err = engine.FinishMatch(context.Background(), pairings[0].ID)
	assert.NoError(t, err)
	assert.Equal(t, models.RoomStatusCompleted, store.rooms[room.ID].Status)
}

// completedPairing builds a finished pairing where teamX beat teamY.
func completedPairing(seq int, winners [2]string, losers [2]string) models.Pairing {
	a2 := winners[1]
	b2 := losers[1]
	w := models.TeamA
	now := time.Now()
	return models.Pairing{
		ID:             fmt.Sprintf("done-%d", seq),
		PartyID:        "party-1",
		SequenceNumber: seq,
		TeamA1ID:       winners[0], TeamA1Name: winners[0],
		TeamA2ID: &a2, TeamA2Name: winners[1],
		TeamB1ID: losers[0], TeamB1Name: losers[0],
		TeamB2ID: &b2, TeamB2Name: losers[1],
		ScoreA: 21, ScoreB: 15,
		Status: models.PairingStatusCompleted,
		Winner: &w, CompletedAt: &now,
	}
}

func TestComputeStandings(t *testing.T) {
	// X wins twice and loses once: {matches: 3, wins: 2}.
	pairings := []models.Pairing{
		completedPairing(1, [2]string{"X", "M1"}, [2]string{"Y", "M2"}),
		completedPairing(2, [2]string{"X", "M3"}, [2]string{"Z", "M4"}),
		completedPairing(3, [2]string{"Y", "Z"}, [2]string{"X", "M1"}),
	}

	standings := ComputeStandings(pairings)
	byID := make(map[string]Standing)
	for _, s := range standings {
		byID[s.ExternalUserID] = s
	}

	assert.Equal(t, int64(3), byID["X"].Matches)
	assert.Equal(t, int64(2), byID["X"].Wins)
	assert.Equal(t, int64(2), byID["Y"].Matches)
	assert.Equal(t, int64(1), byID["Y"].Wins)

	// Ordering: wins desc, then matches desc.
	assert.True(t, sort.SliceIsSorted(standings, func(i, j int) bool {
		if standings[i].Wins != standings[j].Wins {
			return standings[i].Wins > standings[j].Wins
		}
		return standings[i].Matches > standings[j].Matches
	}))
	assert.Equal(t, "X", standings[0].ExternalUserID)
}

func TestComputeStandingsIgnoresTiesAndPending(t *testing.T) {
	now := time.Now()
	a2, b2 := "M1", "M2"
	tie := models.Pairing{
		ID: "tie", PartyID: "party-1",
		TeamA1ID: "X", TeamA2ID: &a2, TeamB1ID: "Y", TeamB2ID: &b2,
		ScoreA: 21, ScoreB: 21,
		Status: models.PairingStatusCompleted, CompletedAt: &now,
	}
	pending := models.Pairing{
		ID: "pending", PartyID: "party-1",
		TeamA1ID: "X", TeamA2ID: &a2, TeamB1ID: "Y", TeamB2ID: &b2,
		ScoreA: 5, ScoreB: 3,
		Status: models.PairingStatusPending,
	}

	standings := ComputeStandings([]models.Pairing{tie, pending})
	assert.Empty(t, standings, "ties and pending pairings contribute nothing")
}

// Full example scenario: 8 players, one round, score 21-15, finish,
// then a rejected post-completion edit.
func TestScoringScenario(t *testing.T) {
	store := newFakeStore()
	seedRoster(store, "party-1", 8)
	engine := testEngine(store, 10)
	ctx := context.Background()

	_, pairings, err := engine.GenerateRound(ctx, "party-1")
	assert.NoError(t, err)
	assert.Len(t, pairings, 2)

	target := pairings[0].ID
	for i := 0; i < 21; i++ {
		_, err := engine.AdjustScore(ctx, target, models.TeamA, 1)
		assert.NoError(t, err)
	}
	for i := 0; i < 15; i++ {
		_, err := engine.AdjustScore(ctx, target, models.TeamB, 1)
		assert.NoError(t, err)
	}

	done, won, err := engine.FinishMatch(ctx, target)
	assert.NoError(t, err)
	assert.True(t, won)
	assert.Equal(t, models.PairingStatusCompleted, done.Status)
	assert.Equal(t, 21, done.ScoreA)
	assert.Equal(t, 15, done.ScoreB)
	assert.NotNil(t, done.Winner)
	assert.Equal(t, models.TeamA, *done.Winner)

	_, err = engine.AdjustScore(ctx, target, models.TeamA, 1)
	assert.ErrorIs(t, err, ErrPairingClosed)

	stored, err := store.GetPairing(ctx, target)
	assert.NoError(t, err)
	assert.Equal(t, 21, stored.ScoreA)
}

func ptr(s string) *string { return &s }
