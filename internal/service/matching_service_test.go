package service

import (
	"context"
	"testing"

	"shefixes/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindTechnicians(t *testing.T) {
	env := newTestEnv(t)
	svc := env.matchingService()
	ctx := context.Background()

	plumberLow := env.createTechnician(t, "Portland", models.VerificationApproved, models.CategoryPlumbing)
	plumberHigh := env.createTechnician(t, "Portland", models.VerificationApproved, models.CategoryPlumbing, models.CategoryDrain)
	electrician := env.createTechnician(t, "Portland", models.VerificationApproved, models.CategoryElectrical)
	env.createTechnician(t, "Portland", models.VerificationPending, models.CategoryPlumbing)
	env.createTechnician(t, "Seattle", models.VerificationApproved, models.CategoryPlumbing)

	// Give plumberHigh a better rating.
	_, err := env.db.ExecContext(ctx, `UPDATE technicians SET rating = 4.8, jobs_completed = 12 WHERE id = ?`, plumberHigh.ID)
	require.NoError(t, err)
	_, err = env.db.ExecContext(ctx, `UPDATE technicians SET rating = 3.2, jobs_completed = 40 WHERE id = ?`, plumberLow.ID)
	require.NoError(t, err)

	results, err := svc.FindTechnicians(ctx, &models.MatchQuery{
		City:     "portland",
		Category: models.CategoryPlumbing,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, plumberHigh.ID, results[0].Technician.ID)
	assert.Equal(t, plumberLow.ID, results[1].Technician.ID)

	results, err = svc.FindTechnicians(ctx, &models.MatchQuery{
		City:     "Portland",
		Category: models.CategoryElectrical,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, electrician.ID, results[0].Technician.ID)
}

func TestFindTechnicians_DateAnnotation(t *testing.T) {
	env := newTestEnv(t)
	svc := env.matchingService()
	ctx := context.Background()

	withSlots := env.createTechnician(t, "Portland", models.VerificationApproved)
	noSlots := env.createTechnician(t, "Portland", models.VerificationApproved)

	date := futureWeekday(t, 3)
	_, err := env.db.ReplaceDaySlots(ctx, withSlots.ID, date, []*models.Slot{
		{StartMinute: 540, DurationMin: 60},
		{StartMinute: 600, DurationMin: 60},
	})
	require.NoError(t, err)

	results, err := svc.FindTechnicians(ctx, &models.MatchQuery{
		City:     "Portland",
		Category: models.CategoryPlumbing,
		Date:     date,
		HasDate:  true,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Technicians without free slots stay in the result with a zero count.
	counts := make(map[string]int, len(results))
	for _, match := range results {
		counts[match.Technician.ID] = match.AvailableSlotCount
	}
	assert.Equal(t, 2, counts[withSlots.ID])
	assert.Equal(t, 0, counts[noSlots.ID])

	// Without a date both technicians match and nothing is annotated.
	results, err = svc.FindTechnicians(ctx, &models.MatchQuery{
		City:     "Portland",
		Category: models.CategoryPlumbing,
	})
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Zero(t, results[0].AvailableSlotCount)
}

func TestFindTechnicians_Validation(t *testing.T) {
	env := newTestEnv(t)
	svc := env.matchingService()
	ctx := context.Background()

	_, err := svc.FindTechnicians(ctx, &models.MatchQuery{Category: models.CategoryPlumbing})
	assert.Error(t, err)

	_, err = svc.FindTechnicians(ctx, &models.MatchQuery{City: "Portland", Category: "welding"})
	assert.Error(t, err)
}
