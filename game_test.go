package main

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{
		dataFile:   "partyquest.json",
		sessionTTL: 2 * time.Hour,
		port:       8080,
	}
}

func testKeeper(t *testing.T) (*GameKeeper, Store) {
	t.Helper()

	store := newFileStore(afero.NewMemMapFs(), "partyquest.json")
	return NewGameKeeper(testConfig(), store), store
}

func createReadyGame(t *testing.T, keeper *GameKeeper) {
	t.Helper()

	_, err := keeper.CreateGame("T",
		[]string{"A", "B"},
		[]string{"Sword", "Shield"},
		[]string{"Forest", "Cave"},
	)
	require.NoError(t, err)

	_, err = keeper.StartGame()
	require.NoError(t, err)
}

func TestCreateGameValidation(t *testing.T) {
	tests := []struct {
		name         string
		gameName     string
		participants []string
		items        []string
		locations    []string
	}{
		{name: "empty name", gameName: " ", participants: []string{"A"}, items: []string{"i"}, locations: []string{"l"}},
		{name: "no participants", gameName: "T", items: []string{"i"}, locations: []string{"l"}},
		{name: "no items", gameName: "T", participants: []string{"A"}, locations: []string{"l"}},
		{name: "no locations", gameName: "T", participants: []string{"A"}, items: []string{"i"}},
		{name: "too few items", gameName: "T", participants: []string{"A", "B"}, items: []string{"i"}, locations: []string{"l", "m"}},
		{name: "too few locations", gameName: "T", participants: []string{"A", "B"}, items: []string{"i", "j"}, locations: []string{"l"}},
		{name: "duplicate participants", gameName: "T", participants: []string{"Alice", "alice"}, items: []string{"i", "j"}, locations: []string{"l", "m"}},
		{name: "blank participant", gameName: "T", participants: []string{"A", "  "}, items: []string{"i", "j"}, locations: []string{"l", "m"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keeper, _ := testKeeper(t)

			_, err := keeper.CreateGame(tt.gameName, tt.participants, tt.items, tt.locations)

			var validation *ValidationError
			require.ErrorAs(t, err, &validation)

			// A failed create must not leave a game behind.
			_, err = keeper.Game()
			var notFound *NotFoundError
			assert.ErrorAs(t, err, &notFound)
		})
	}
}

func TestGameLifecycleRoundTrip(t *testing.T) {
	keeper, _ := testKeeper(t)
	createReadyGame(t, keeper)

	canJoin, err := keeper.CanUserJoin()
	require.NoError(t, err)
	assert.True(t, canJoin)

	_, _, err = keeper.AssignPlayerToUser("A", "alice")
	require.NoError(t, err)
	_, _, err = keeper.AssignPlayerToUser("B", "bob")
	require.NoError(t, err)

	game, err := keeper.PerformRandomAssignments()
	require.NoError(t, err)
	assert.Equal(t, StateAssigned, game.State)

	assignments := game.Assignments()
	require.Len(t, assignments, 2)

	gotItems := []string{assignments[0].AssignedItem, assignments[1].AssignedItem}
	gotLocations := []string{assignments[0].AssignedLocation, assignments[1].AssignedLocation}
	assert.ElementsMatch(t, []string{"Sword", "Shield"}, gotItems)
	assert.ElementsMatch(t, []string{"Forest", "Cave"}, gotLocations)

	for _, p := range assignments {
		assert.True(t, p.Assigned)
		assert.NotEmpty(t, p.UserName)
		require.NotNil(t, p.AssignedAt)
	}
}

func TestPerformRandomAssignmentsIdempotentReentry(t *testing.T) {
	keeper, _ := testKeeper(t)
	createReadyGame(t, keeper)

	_, _, err := keeper.AssignPlayerToUser("A", "alice")
	require.NoError(t, err)
	_, _, err = keeper.AssignPlayerToUser("B", "bob")
	require.NoError(t, err)

	first, err := keeper.PerformRandomAssignments()
	require.NoError(t, err)

	before := make(map[string][2]string)
	for _, p := range first.Assignments() {
		before[p.Name] = [2]string{p.AssignedItem, p.AssignedLocation}
	}

	_, err = keeper.PerformRandomAssignments()
	var noCandidates *NoCandidatesError
	require.ErrorAs(t, err, &noCandidates)

	// Existing assignments are untouched by the failed re-run.
	game, err := keeper.Game()
	require.NoError(t, err)
	assert.Equal(t, StateAssigned, game.State)
	for _, p := range game.Assignments() {
		assert.Equal(t, before[p.Name], [2]string{p.AssignedItem, p.AssignedLocation})
	}
	assert.Len(t, game.Assignments(), len(before))
}

func TestClaimUniqueness(t *testing.T) {
	keeper, _ := testKeeper(t)

	_, err := keeper.CreateGame("T",
		[]string{"Hero", "Sidekick"},
		[]string{"Sword", "Shield"},
		[]string{"Forest", "Cave"},
	)
	require.NoError(t, err)
	_, err = keeper.StartGame()
	require.NoError(t, err)

	_, _, err = keeper.AssignPlayerToUser("Hero", "Alice")
	require.NoError(t, err)

	_, _, err = keeper.AssignPlayerToUser("Hero", "Bob")
	var taken *AlreadyTakenError
	require.ErrorAs(t, err, &taken)
	assert.Equal(t, "Hero", taken.PlayerName)

	// Bob can still claim the other slot.
	_, _, err = keeper.AssignPlayerToUser("Sidekick", "Bob")
	assert.NoError(t, err)
}

func TestAssignPlayerToUserUnknownParticipant(t *testing.T) {
	keeper, _ := testKeeper(t)
	createReadyGame(t, keeper)

	_, _, err := keeper.AssignPlayerToUser("Nobody", "alice")

	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "participant", notFound.Kind)
}

func TestStartGameRequiresSetupState(t *testing.T) {
	keeper, _ := testKeeper(t)

	_, err := keeper.StartGame()
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)

	createReadyGame(t, keeper)

	_, err = keeper.StartGame()
	var validation *ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestAdvisoryTransitionsBracketAssignment(t *testing.T) {
	keeper, _ := testKeeper(t)

	_, err := keeper.BeginAssignments()
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)

	createReadyGame(t, keeper)

	inProgress, err := keeper.IsGameInProgress()
	require.NoError(t, err)
	assert.False(t, inProgress)

	game, err := keeper.BeginAssignments()
	require.NoError(t, err)
	assert.Equal(t, StateInProgress, game.State)

	inProgress, err = keeper.IsGameInProgress()
	require.NoError(t, err)
	assert.True(t, inProgress)

	game, err = keeper.CompleteAssignments()
	require.NoError(t, err)
	assert.Equal(t, StateAssigned, game.State)
}

func TestResetGameIsIdempotent(t *testing.T) {
	keeper, _ := testKeeper(t)
	createReadyGame(t, keeper)

	_, _, err := keeper.AssignPlayerToUser("A", "alice")
	require.NoError(t, err)

	require.NoError(t, keeper.ResetGame())
	require.NoError(t, keeper.ResetGame())

	_, err = keeper.Game()
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)

	players, err := keeper.ConnectedPlayers()
	require.NoError(t, err)
	assert.Empty(t, players)
}

func TestGameStatsCountLiveSessions(t *testing.T) {
	keeper, _ := testKeeper(t)
	createReadyGame(t, keeper)

	_, session, err := keeper.AssignPlayerToUser("A", "alice")
	require.NoError(t, err)

	stats, err := keeper.GameStats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalPlayers)
	assert.Equal(t, 1, stats.JoinedPlayers)
	assert.Equal(t, 0, stats.AssignedPlayers)
	assert.Equal(t, 1, stats.AvailablePlayers)
	assert.Equal(t, StateReady, stats.State)

	// Logging out ends the session but keeps the userName binding, and
	// stats must follow the sessions.
	require.NoError(t, keeper.Logout(session.ID))

	stats, err = keeper.GameStats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.JoinedPlayers)
	assert.Equal(t, 2, stats.AvailablePlayers)

	game, err := keeper.Game()
	require.NoError(t, err)
	assert.Equal(t, "alice", game.participant("A").UserName)
}

func TestAvailableParticipantsExcludesClaimed(t *testing.T) {
	keeper, _ := testKeeper(t)
	createReadyGame(t, keeper)

	_, _, err := keeper.AssignPlayerToUser("A", "alice")
	require.NoError(t, err)

	available, err := keeper.AvailableParticipants()
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "B", available[0].Name)
}

func TestUserAssignmentReturnsOwnResultOnly(t *testing.T) {
	keeper, _ := testKeeper(t)
	createReadyGame(t, keeper)

	_, session, err := keeper.AssignPlayerToUser("A", "alice")
	require.NoError(t, err)

	// Nothing assigned yet.
	_, err = keeper.UserAssignment(session.ID)
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)

	_, _, err = keeper.AssignPlayerToUser("B", "bob")
	require.NoError(t, err)
	_, err = keeper.PerformRandomAssignments()
	require.NoError(t, err)

	participant, err := keeper.UserAssignment(session.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", participant.Name)
	assert.True(t, participant.Assigned)
	assert.NotEmpty(t, participant.AssignedItem)
	assert.NotEmpty(t, participant.AssignedLocation)
}

func TestSetupPoolEditing(t *testing.T) {
	keeper, _ := testKeeper(t)

	_, err := keeper.CreateGame("T", []string{"A"}, []string{"Sword"}, []string{"Forest"})
	require.NoError(t, err)

	require.NoError(t, keeper.AddItem("Shield"))
	require.NoError(t, keeper.AddLocation("Cave"))
	require.NoError(t, keeper.AddParticipant("B"))
	require.NoError(t, keeper.RemoveItem("Sword"))

	var notFound *NotFoundError
	require.ErrorAs(t, keeper.RemoveLocation("Volcano"), &notFound)

	var validation *ValidationError
	require.ErrorAs(t, keeper.AddParticipant("b"), &validation)

	game, err := keeper.Game()
	require.NoError(t, err)
	assert.Equal(t, []string{"Shield"}, game.Items)
	assert.Equal(t, []string{"Forest", "Cave"}, game.Locations)
	require.Len(t, game.Participants, 2)

	// Pools freeze once the game leaves setup.
	_, err = keeper.StartGame()
	require.NoError(t, err)
	require.ErrorAs(t, keeper.AddItem("Bow"), &validation)
}

func TestDocumentVersionAdvancesOnEveryPersist(t *testing.T) {
	keeper, store := testKeeper(t)
	createReadyGame(t, keeper)

	doc, err := store.Load()
	require.NoError(t, err)
	before := doc.Version
	assert.Positive(t, before)

	_, _, err = keeper.AssignPlayerToUser("A", "alice")
	require.NoError(t, err)

	doc, err = store.Load()
	require.NoError(t, err)
	assert.Greater(t, doc.Version, before)
	assert.False(t, doc.LastUpdated.IsZero())
}
