package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"topminton/models"

	"github.com/google/uuid"
)

// Pairing failure taxonomy. Handlers map these to HTTP statuses; the
// engine never writes anything when it returns one of them.
var (
	ErrInsufficientParticipants = errors.New("at least 4 active participants are required to generate a round")
	ErrPairingNotFound          = errors.New("pairing not found")
	ErrPairingClosed            = errors.New("match already finished")
	ErrInvalidTeam              = errors.New("team must be A or B")
	ErrInvalidDelta             = errors.New("score delta must be +1 or -1")
)

// PairingStore is the narrow persistence interface the engine needs.
// gormPairingStore implements it against Postgres; tests use an
// in-memory fake.
type PairingStore interface {
	// LoadRoster returns the active members of a party.
	LoadRoster(ctx context.Context, partyID string) ([]models.PartyMember, error)
	// CountRooms returns how many rooms a party already has.
	CountRooms(ctx context.Context, partyID string) (int64, error)
	// SaveRoom persists a new room and its pairings in one transaction.
	SaveRoom(ctx context.Context, room *models.Room, pairings []models.Pairing) error
	GetPairing(ctx context.Context, pairingID string) (*models.Pairing, error)
	// ApplyScoreDelta applies a signed delta to one team's score as a
	// single atomic update with a floor at zero, and returns the row as
	// written. Concurrent scorekeepers therefore commute instead of
	// overwriting each other.
	ApplyScoreDelta(ctx context.Context, pairingID string, team string, delta int) (*models.Pairing, error)
	// CompletePairing flips a pending pairing to completed with its
	// winner and completion time. Must not touch already-completed rows;
	// reports whether this call performed the transition. When it lost a
	// completion race it loads the stored row into pairing instead.
	CompletePairing(ctx context.Context, pairing *models.Pairing) (bool, error)
	ListRoomPairings(ctx context.Context, roomID string) ([]models.Pairing, error)
	// ListCompletedPairings returns all completed pairings of a party,
	// across every room, for standings derivation.
	ListCompletedPairings(ctx context.Context, partyID string) ([]models.Pairing, error)
	SetRoomStatus(ctx context.Context, roomID string, status string) error
}

// PairingEngine turns a party roster into randomized doubles pairings
// and runs each pairing's scoring lifecycle. It holds no state between
// calls beyond its store and RNG.
type PairingEngine struct {
	store PairingStore
	rng   *rand.Rand
}

// NewPairingEngine builds an engine around a store. rng may be nil, in
// which case a time-seeded source is used; tests inject a seeded one.
func NewPairingEngine(store PairingStore, rng *rand.Rand) *PairingEngine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &PairingEngine{store: store, rng: rng}
}

// GenerateRound shuffles the party's active roster uniformly, slices it
// into consecutive groups of 4 (chunk[0:2] vs chunk[2:4]), and persists
// a new Room with one pending Pairing per group. A trailing group of
// 1–3 sits out this round. Fails with ErrInsufficientParticipants and
// writes nothing when fewer than 4 members are active.
func (e *PairingEngine) GenerateRound(ctx context.Context, partyID string) (*models.Room, []models.Pairing, error) {
	roster, err := e.store.LoadRoster(ctx, partyID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load roster: %w", err)
	}
	if len(roster) < 4 {
		return nil, nil, ErrInsufficientParticipants
	}

	shuffled := make([]models.PartyMember, len(roster))
	copy(shuffled, roster)
	// Fisher–Yates: every permutation equally likely. The shuffle alone
	// decides teams; there is no separate teaming step.
	for i := len(shuffled) - 1; i >= 1; i-- {
		j := e.rng.Intn(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}

	existing, err := e.store.CountRooms(ctx, partyID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to count rooms: %w", err)
	}

	room := &models.Room{
		ID:      uuid.NewString(),
		PartyID: partyID,
		Label:   fmt.Sprintf("Round %d", existing+1),
		Status:  models.RoomStatusWaiting,
	}

	pairings := make([]models.Pairing, 0, len(shuffled)/4)
	for i := 0; i+4 <= len(shuffled); i += 4 {
		chunk := shuffled[i : i+4]
		a2 := chunk[1].ExternalUserID
		b2 := chunk[3].ExternalUserID
		pairings = append(pairings, models.Pairing{
			ID:             uuid.NewString(),
			RoomID:         room.ID,
			PartyID:        partyID,
			SequenceNumber: i/4 + 1,
			TeamA1ID:       chunk[0].ExternalUserID,
			TeamA1Name:     chunk[0].DisplayName,
			TeamA2ID:       &a2,
			TeamA2Name:     chunk[1].DisplayName,
			TeamB1ID:       chunk[2].ExternalUserID,
			TeamB1Name:     chunk[2].DisplayName,
			TeamB2ID:       &b2,
			TeamB2Name:     chunk[3].DisplayName,
			Status:         models.PairingStatusPending,
		})
	}

	if err := e.store.SaveRoom(ctx, room, pairings); err != nil {
		return nil, nil, fmt.Errorf("failed to save room: %w", err)
	}
	return room, pairings, nil
}

// AdjustScore applies a ±1 delta to one team's score, floored at zero.
// Rejected with ErrPairingClosed once the pairing is completed.
func (e *PairingEngine) AdjustScore(ctx context.Context, pairingID string, team string, delta int) (*models.Pairing, error) {
	if team != models.TeamA && team != models.TeamB {
		return nil, ErrInvalidTeam
	}
	if delta != 1 && delta != -1 {
		return nil, ErrInvalidDelta
	}

	pairing, err := e.store.GetPairing(ctx, pairingID)
	if err != nil {
		return nil, err
	}
	if pairing.Status == models.PairingStatusCompleted {
		return nil, ErrPairingClosed
	}

	updated, err := e.store.ApplyScoreDelta(ctx, pairingID, team, delta)
	if err != nil {
		return nil, err
	}

	if err := e.syncRoomStatus(ctx, updated.RoomID); err != nil {
		return nil, err
	}
	return updated, nil
}

// FinishMatch completes a pairing and freezes it: winner is the team
// with the strictly greater score, a tie leaves winner unset. Calling
// it on an already-completed pairing is a no-op returning the stored
// state, so stale clients cannot re-derive a different result. The
// returned bool is true only for the call that performed the
// transition — the store's conditional write decides the winner of a
// completion race, so callers can hang exactly-once side effects off
// it without a racy pre-read.
func (e *PairingEngine) FinishMatch(ctx context.Context, pairingID string) (*models.Pairing, bool, error) {
	pairing, err := e.store.GetPairing(ctx, pairingID)
	if err != nil {
		return nil, false, err
	}
	if pairing.Status == models.PairingStatusCompleted {
		return pairing, false, nil
	}

	now := time.Now()
	pairing.Status = models.PairingStatusCompleted
	pairing.CompletedAt = &now
	pairing.Winner = nil
	if pairing.ScoreA > pairing.ScoreB {
		w := models.TeamA
		pairing.Winner = &w
	} else if pairing.ScoreB > pairing.ScoreA {
		w := models.TeamB
		pairing.Winner = &w
	}

	won, err := e.store.CompletePairing(ctx, pairing)
	if err != nil {
		return nil, false, err
	}

	if err := e.syncRoomStatus(ctx, pairing.RoomID); err != nil {
		return nil, false, err
	}
	return pairing, won, nil
}

// syncRoomStatus persists the status derived from the room's pairings
// after every mutation, so the engine stays the sole authority for it.
func (e *PairingEngine) syncRoomStatus(ctx context.Context, roomID string) error {
	pairings, err := e.store.ListRoomPairings(ctx, roomID)
	if err != nil {
		return fmt.Errorf("failed to list room pairings: %w", err)
	}
	return e.store.SetRoomStatus(ctx, roomID, DeriveRoomStatus(pairings))
}

// DeriveRoomStatus is the single definition of room status: waiting
// until any score moves or any pairing completes, completed once every
// pairing is, in_progress in between.
func DeriveRoomStatus(pairings []models.Pairing) string {
	if len(pairings) == 0 {
		return models.RoomStatusWaiting
	}
	allDone := true
	anyActivity := false
	for _, p := range pairings {
		if p.Status == models.PairingStatusCompleted {
			anyActivity = true
			continue
		}
		allDone = false
		if p.ScoreA > 0 || p.ScoreB > 0 {
			anyActivity = true
		}
	}
	if allDone {
		return models.RoomStatusCompleted
	}
	if anyActivity {
		return models.RoomStatusInProgress
	}
	return models.RoomStatusWaiting
}

// Standing is one row of a party leaderboard.
type Standing struct {
	ExternalUserID string `json:"external_user_id"`
	DisplayName    string `json:"display_name"`
	Matches        int64  `json:"matches"`
	Wins           int64  `json:"wins"`
}

// ComputeStandings derives per-player win/loss totals from completed
// pairings with a determined winner. It is recomputed from the full
// history on every read; nothing here is ever stored, so counters
// cannot drift. Ordered by wins desc, then matches desc.
func ComputeStandings(pairings []models.Pairing) []Standing {
	type acc struct {
		name    string
		matches int64
		wins    int64
	}
	totals := make(map[string]*acc)

	record := func(id, name string) *acc {
		a, ok := totals[id]
		if !ok {
			a = &acc{name: name}
			totals[id] = a
		}
		return a
	}

	for i := range pairings {
		p := &pairings[i]
		if p.Status != models.PairingStatusCompleted || p.Winner == nil {
			continue
		}
		names := map[string]string{p.TeamA1ID: p.TeamA1Name, p.TeamB1ID: p.TeamB1Name}
		if p.TeamA2ID != nil {
			names[*p.TeamA2ID] = p.TeamA2Name
		}
		if p.TeamB2ID != nil {
			names[*p.TeamB2ID] = p.TeamB2Name
		}
		for _, id := range p.ParticipantIDs() {
			record(id, names[id]).matches++
		}
		for _, id := range p.TeamIDs(*p.Winner) {
			record(id, names[id]).wins++
		}
	}

	standings := make([]Standing, 0, len(totals))
	for id, a := range totals {
		standings = append(standings, Standing{
			ExternalUserID: id,
			DisplayName:    a.name,
			Matches:        a.matches,
			Wins:           a.wins,
		})
	}
	sort.Slice(standings, func(i, j int) bool {
		if standings[i].Wins != standings[j].Wins {
			return standings[i].Wins > standings[j].Wins
		}
		if standings[i].Matches != standings[j].Matches {
			return standings[i].Matches > standings[j].Matches
		}
		return standings[i].ExternalUserID < standings[j].ExternalUserID
	})
	return standings
}
