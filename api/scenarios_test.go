/*
scenarios_test.go - Unit tests for demo scenarios

PURPOSE:
	Tests that each scenario correctly sets up the expected state:
	- Resources are registered
	- Reservations are admitted through the engine
	- Loyalty entries land on the right accounts and tiers

These tests double as integration tests of the engine, the ledger and
the SQLite store working together.
*/
package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/studio-engine/generic"
)

func TestScenario_StudioBasics(t *testing.T) {
	// GIVEN: An empty database
	// WHEN: Loading the basics scenario
	// THEN: Two rooms and three items exist, nothing is booked
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.handler.loadStudioBasicsScenario(ctx))

	rooms, err := env.handler.Engine.ListResources(ctx, "room")
	require.NoError(t, err)
	assert.Len(t, rooms, 2)

	items, err := env.handler.Engine.ListResources(ctx, "item")
	require.NoError(t, err)
	assert.Len(t, items, 3)

	all, err := env.handler.Engine.List(ctx, generic.ReservationFilter{}, testAdmin)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestScenario_BusyWeek(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.handler.loadBusyWeekScenario(ctx))

	all, err := env.handler.Engine.List(ctx, generic.ReservationFilter{}, testAdmin)
	require.NoError(t, err)
	require.Len(t, all, 6)

	byStatus := map[generic.ReservationStatus]int{}
	for _, r := range all {
		byStatus[r.Status]++
	}
	assert.Equal(t, 1, byStatus[generic.StatusCancelled])
	assert.Equal(t, 2, byStatus[generic.StatusPending])
	assert.Equal(t, 3, byStatus[generic.StatusConfirmed])

	// Leo's cancelled booking earned nothing in the end
	leo, err := env.handler.Rewards.History(ctx, "leo")
	require.NoError(t, err)
	var net int64
	for _, e := range leo {
		net += e.Amount
	}
	assert.Equal(t, int64(22), net) // only the guitar rental: 45.00 at 0.5/unit

	// Mia's first session is confirmed and paid
	mia, err := env.handler.Engine.ListByRequester(ctx, "mia")
	require.NoError(t, err)
	var paid int
	for _, r := range mia {
		if r.PaymentStatus == generic.PaymentPaid {
			paid++
			assert.Equal(t, generic.StatusConfirmed, r.Status)
		}
	}
	assert.Equal(t, 1, paid)
}

func TestScenario_LoyaltyLadder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.handler.loadLoyaltyLadderScenario(ctx))

	cases := []struct {
		account string
		tier    string
		points  int64
	}{
		{"member-1", "Bronze", 7 + 50},
		{"member-2", "Silver", 107},
		{"member-3", "Gold", 507},
		{"member-4", "Platinum", 1007},
	}
	for _, tc := range cases {
		acct, err := env.handler.Rewards.GetAccount(ctx, generic.AccountID(tc.account))
		require.NoError(t, err, tc.account)
		assert.Equal(t, tc.tier, acct.Tier, tc.account)
		assert.Equal(t, tc.points, acct.Total, tc.account)
	}
}

func TestScenarioEndpoints_LoadAndReset(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/scenarios", anonymous, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]ScenarioDTO](t, rec), len(scenarios))

	// Non-admins cannot load
	rec = env.do(http.MethodPost, "/api/scenarios/load", alice, `{"scenario_id":"busy-week"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodPost, "/api/scenarios/load", testAdmin, `{"scenario_id":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// WHEN: An admin loads the busy week
	rec = env.do(http.MethodPost, "/api/scenarios/load", testAdmin, `{"scenario_id":"busy-week"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(http.MethodGet, "/api/scenarios/current", anonymous, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "busy-week", decode[ScenarioDTO](t, rec).ID)

	rec = env.do(http.MethodGet, "/api/resources", anonymous, nil)
	assert.Len(t, decode[[]ResourceDTO](t, rec), 5)

	// WHEN: An admin resets
	rec = env.do(http.MethodPost, "/api/scenarios/reset", testAdmin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: Everything is gone but the default reward config is back
	rec = env.do(http.MethodGet, "/api/resources", anonymous, nil)
	assert.Empty(t, decode[[]ResourceDTO](t, rec))

	rec = env.do(http.MethodGet, "/api/rewards/config", anonymous, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, rec)["version"])

	rec = env.do(http.MethodGet, "/api/scenarios/current", anonymous, nil)
	assert.Equal(t, "null\n", rec.Body.String())
}
