package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pulsewatch/pulsewatch/internal/models"
	"github.com/pulsewatch/pulsewatch/internal/store"
	"github.com/pulsewatch/pulsewatch/internal/transport"
)

func newTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Check{}, &models.Ping{}, &models.Flip{},
		&models.Channel{}, &models.CheckChannel{}, &models.Notification{},
	))
	return db
}

// fakeTransport records deliveries and fails on demand.
type fakeTransport struct {
	mu     sync.Mutex
	calls  int
	err    error
	noopUp bool
}

func (f *fakeTransport) Notify(ctx context.Context, flip *models.Flip, n *models.Notification) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.err
}

func (f *fakeTransport) IsNoop(status string) bool {
	return f.noopUp && status == models.StatusUp
}

func (f *fakeTransport) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// registerFake registers a one-off transport kind backed by the fake.
func registerFake(t *testing.T, fake *fakeTransport) string {
	kind := "fake-" + t.Name()
	transport.Register(kind, func(db *gorm.DB, ch *models.Channel) (transport.Transport, error) {
		return fake, nil
	})
	return kind
}

func setup(t *testing.T, db *gorm.DB, kind string) (*models.Check, *models.Channel, *models.Flip) {
	check := &models.Check{Kind: models.KindSimple, Timeout: 60, Grace: 30, Status: models.StatusDown, NPings: 1}
	require.NoError(t, db.Create(check).Error)

	channel := &models.Channel{Kind: kind}
	require.NoError(t, db.Create(channel).Error)
	require.NoError(t, db.Create(&models.CheckChannel{CheckID: check.ID, ChannelID: channel.ID}).Error)

	flip := &models.Flip{
		CheckID:   check.ID,
		Created:   time.Now().UTC().Add(-time.Minute),
		OldStatus: models.StatusUp,
		NewStatus: models.StatusDown,
		Reason:    models.ReasonTimeout,
	}
	require.NoError(t, db.Create(flip).Error)
	return check, channel, flip
}

func TestProcessOneDelivers(t *testing.T) {
	db := newTestDB(t)
	fake := &fakeTransport{}
	kind := registerFake(t, fake)
	check, channel, flip := setup(t, db, kind)

	d := New(db, 4)
	busy, err := d.ProcessOne(context.Background())
	require.NoError(t, err)
	assert.True(t, busy)
	assert.Equal(t, 1, fake.callCount())

	// Exactly one notification row per (flip, channel), with no error.
	var notifications []models.Notification
	require.NoError(t, db.Find(&notifications).Error)
	require.Len(t, notifications, 1)
	assert.Equal(t, check.ID, notifications[0].CheckID)
	assert.Equal(t, channel.ID, notifications[0].ChannelID)
	assert.Equal(t, models.StatusDown, notifications[0].CheckStatus)
	assert.Equal(t, "", notifications[0].Error)

	// The flip is processed and the channel cache updated.
	var freshFlip models.Flip
	require.NoError(t, db.First(&freshFlip, flip.ID).Error)
	assert.NotNil(t, freshFlip.Processed)

	var freshChannel models.Channel
	require.NoError(t, db.First(&freshChannel, channel.ID).Error)
	assert.NotNil(t, freshChannel.LastNotify)
	assert.False(t, freshChannel.Disabled)

	// At most once: nothing left to process.
	busy, err = d.ProcessOne(context.Background())
	require.NoError(t, err)
	assert.False(t, busy)
	assert.Equal(t, 1, fake.callCount())
}

func TestProcessOneTransientError(t *testing.T) {
	db := newTestDB(t)
	fake := &fakeTransport{err: transport.Transient("connection refused")}
	kind := registerFake(t, fake)
	_, channel, _ := setup(t, db, kind)

	d := New(db, 4)
	busy, err := d.ProcessOne(context.Background())
	require.NoError(t, err)
	assert.True(t, busy)

	// The error lands on the notification and the channel, which stays
	// enabled.
	var notification models.Notification
	require.NoError(t, db.First(&notification).Error)
	assert.Equal(t, "connection refused", notification.Error)

	var freshChannel models.Channel
	require.NoError(t, db.First(&freshChannel, channel.ID).Error)
	assert.Equal(t, "connection refused", freshChannel.LastError)
	assert.False(t, freshChannel.Disabled)
}

func TestProcessOnePermanentErrorDisablesChannel(t *testing.T) {
	db := newTestDB(t)
	fake := &fakeTransport{err: transport.Permanent("endpoint returned status 410")}
	kind := registerFake(t, fake)
	check, channel, _ := setup(t, db, kind)

	d := New(db, 4)
	_, err := d.ProcessOne(context.Background())
	require.NoError(t, err)

	var freshChannel models.Channel
	require.NoError(t, db.First(&freshChannel, channel.ID).Error)
	assert.True(t, freshChannel.Disabled)

	// A later flip for the same check does not reach the channel again.
	flip2 := &models.Flip{
		CheckID:   check.ID,
		Created:   time.Now().UTC(),
		OldStatus: models.StatusDown,
		NewStatus: models.StatusDown,
		Reason:    models.ReasonNag,
	}
	require.NoError(t, db.Create(flip2).Error)

	_, err = d.ProcessOne(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fake.callCount())

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestProcessOneSkipsNoopChannels(t *testing.T) {
	db := newTestDB(t)
	fake := &fakeTransport{noopUp: true}
	kind := registerFake(t, fake)
	check, _, _ := setup(t, db, kind)

	// Flip the check back up; the channel ignores up transitions.
	require.NoError(t, db.Model(&models.Check{}).Where("id = ?", check.ID).
		Update("status", models.StatusUp).Error)
	upFlip := &models.Flip{
		CheckID:   check.ID,
		Created:   time.Now().UTC(),
		OldStatus: models.StatusDown,
		NewStatus: models.StatusUp,
	}
	require.NoError(t, db.Create(upFlip).Error)

	d := New(db, 4)
	// First call handles the seeded down flip, second the up flip.
	_, err := d.ProcessOne(context.Background())
	require.NoError(t, err)
	_, err = d.ProcessOne(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, fake.callCount())

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).
		Where("check_status = ?", models.StatusUp).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestDrainProcessesEverything(t *testing.T) {
	db := newTestDB(t)
	fake := &fakeTransport{}
	kind := registerFake(t, fake)
	_, channel, _ := setup(t, db, kind)

	// Two more checks sharing the same channel.
	for i := 0; i < 2; i++ {
		c := &models.Check{Kind: models.KindSimple, Timeout: 60, Grace: 30, Status: models.StatusDown, NPings: 1}
		require.NoError(t, db.Create(c).Error)
		require.NoError(t, db.Create(&models.CheckChannel{CheckID: c.ID, ChannelID: channel.ID}).Error)
		require.NoError(t, db.Create(&models.Flip{
			CheckID:   c.ID,
			Created:   time.Now().UTC(),
			OldStatus: models.StatusUp,
			NewStatus: models.StatusDown,
			Reason:    models.ReasonFail,
		}).Error)
	}

	d := New(db, 4)
	require.NoError(t, d.Drain(context.Background()))

	assert.Equal(t, 3, fake.callCount())

	flips, err := store.UnprocessedFlips(db, 10)
	require.NoError(t, err)
	assert.Empty(t, flips)
}

func TestChannelOrdering(t *testing.T) {
	db := newTestDB(t)

	check := &models.Check{Kind: models.KindSimple, Timeout: 60, Grace: 30, Status: models.StatusDown, NPings: 1}
	require.NoError(t, db.Create(check).Error)

	slow := &models.Channel{Kind: "webhook", LastNotifyDuration: 9000}
	fast := &models.Channel{Kind: "webhook", LastNotifyDuration: 120}
	never := &models.Channel{Kind: "webhook"}
	disabled := &models.Channel{Kind: "webhook", Disabled: true}
	for _, ch := range []*models.Channel{slow, fast, never, disabled} {
		require.NoError(t, db.Create(ch).Error)
		require.NoError(t, db.Create(&models.CheckChannel{CheckID: check.ID, ChannelID: ch.ID}).Error)
	}

	channels, err := store.ChannelsForCheck(db, check.ID)
	require.NoError(t, err)
	require.Len(t, channels, 3)
	assert.Equal(t, never.ID, channels[0].ID)
	assert.Equal(t, fast.ID, channels[1].ID)
	assert.Equal(t, slow.ID, channels[2].ID)
}
