package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

func TestResumeCheckRecomputesDeadline(t *testing.T) {
	db := newTestDB(t)

	now := time.Now().UTC().Truncate(time.Second)
	lastPing := now.Add(-10 * time.Second)
	check := &models.Check{
		Kind: models.KindSimple, Timeout: 60, Grace: 30,
		Status: models.StatusDown, NPings: 3, LastPing: &lastPing,
		ManualResume: true,
	}
	require.NoError(t, db.Create(check).Error)

	resumed, err := ResumeCheck(db, check, now)
	require.NoError(t, err)
	assert.True(t, resumed)
	assert.Equal(t, models.StatusUp, check.Status)

	// The check rejoins the going-down scan with the deadline its schedule
	// implies, not a cleared one.
	var fresh models.Check
	require.NoError(t, db.First(&fresh, check.ID).Error)
	assert.Equal(t, models.StatusUp, fresh.Status)
	require.NotNil(t, fresh.AlertAfter)
	assert.True(t, lastPing.Add(90*time.Second).Equal(*fresh.AlertAfter))

	var flip models.Flip
	require.NoError(t, db.First(&flip).Error)
	assert.Equal(t, models.StatusDown, flip.OldStatus)
	assert.Equal(t, models.StatusUp, flip.NewStatus)
	assert.Equal(t, "", flip.Reason)
}

func TestResumeCheckExpiredDeadline(t *testing.T) {
	// The job stopped pinging long ago: resuming stamps the expired
	// deadline so the next scan immediately re-evaluates the check instead
	// of leaving it unmonitored.
	db := newTestDB(t)

	now := time.Now().UTC().Truncate(time.Second)
	lastPing := now.Add(-3 * time.Hour)
	check := &models.Check{
		Kind: models.KindSimple, Timeout: 60, Grace: 30,
		Status: models.StatusDown, NPings: 3, LastPing: &lastPing,
	}
	require.NoError(t, db.Create(check).Error)

	resumed, err := ResumeCheck(db, check, now)
	require.NoError(t, err)
	assert.True(t, resumed)

	var fresh models.Check
	require.NoError(t, db.First(&fresh, check.ID).Error)
	require.NotNil(t, fresh.AlertAfter)
	assert.True(t, fresh.AlertAfter.Before(now))
	assert.True(t, lastPing.Add(90*time.Second).Equal(*fresh.AlertAfter))
}

func TestResumeCheckNotDown(t *testing.T) {
	db := newTestDB(t)
	check := newCheck(t, db, models.StatusUp)

	resumed, err := ResumeCheck(db, check, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, resumed)

	var count int64
	require.NoError(t, db.Model(&models.Flip{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestPauseCheck(t *testing.T) {
	db := newTestDB(t)

	alertAfter := time.Now().UTC().Add(time.Minute)
	check := newCheck(t, db, models.StatusUp)
	require.NoError(t, db.Model(check).Update("alert_after", alertAfter).Error)

	require.NoError(t, PauseCheck(db, check))

	var fresh models.Check
	require.NoError(t, db.First(&fresh, check.ID).Error)
	assert.Equal(t, models.StatusPaused, fresh.Status)
	assert.Nil(t, fresh.AlertAfter)
}

func TestDeleteCheckCascade(t *testing.T) {
	db := newTestDB(t)
	check := newCheck(t, db, models.StatusDown)
	other := newCheck(t, db, models.StatusUp)

	channel := &models.Channel{Kind: "webhook"}
	require.NoError(t, db.Create(channel).Error)
	require.NoError(t, db.Create(&models.CheckChannel{CheckID: check.ID, ChannelID: channel.ID}).Error)
	require.NoError(t, db.Create(&models.Ping{CheckID: check.ID, N: 1, Created: storeT0}).Error)
	addFlip(t, db, check, storeT0, models.StatusUp, models.StatusDown, models.ReasonTimeout)
	require.NoError(t, db.Create(&models.Notification{
		CheckID: check.ID, ChannelID: channel.ID,
		CheckStatus: models.StatusDown, Created: storeT0,
	}).Error)
	otherFlip := addFlip(t, db, other, storeT0, models.StatusNew, models.StatusUp, "")

	require.NoError(t, DeleteCheck(db, check))

	var count int64
	require.NoError(t, db.Model(&models.Ping{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
	require.NoError(t, db.Model(&models.CheckChannel{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)

	// The shared channel and the other check's history survive.
	require.NoError(t, db.Model(&models.Channel{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	var remaining models.Flip
	require.NoError(t, db.First(&remaining).Error)
	assert.Equal(t, otherFlip.ID, remaining.ID)
}
