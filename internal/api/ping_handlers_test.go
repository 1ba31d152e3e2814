package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pulsewatch/pulsewatch/internal/config"
	"github.com/pulsewatch/pulsewatch/internal/models"
)

func newTestRouter(t *testing.T) (http.Handler, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Check{}, &models.Ping{}, &models.Flip{},
		&models.Channel{}, &models.CheckChannel{}, &models.Notification{},
	))

	cfg := &config.Config{SiteRoot: "http://localhost:8000"}
	return NewRouter(cfg, db, nil), db
}

func createCheck(t *testing.T, db *gorm.DB) *models.Check {
	check := &models.Check{Kind: models.KindSimple, Timeout: 60, Grace: 30}
	require.NoError(t, db.Create(check).Error)
	return check
}

func TestPingEndpoint(t *testing.T) {
	router, db := newTestRouter(t)
	check := createCheck(t, db)

	req := httptest.NewRequest("POST", "/ping/"+check.Code, strings.NewReader("job done"))
	req.RemoteAddr = "10.1.2.3:5555"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	var fresh models.Check
	require.NoError(t, db.First(&fresh, check.ID).Error)
	assert.Equal(t, models.StatusUp, fresh.Status)
	assert.Equal(t, 1, fresh.NPings)

	var ping models.Ping
	require.NoError(t, db.First(&ping).Error)
	assert.Equal(t, "job done", ping.Body)
	assert.Equal(t, models.PingSuccess, ping.Kind)
}

func TestPingEndpointVariants(t *testing.T) {
	router, db := newTestRouter(t)
	check := createCheck(t, db)

	for _, path := range []string{"/start", "/log", "/fail"} {
		req := httptest.NewRequest("POST", "/ping/"+check.Code+path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, "path %s", path)
	}

	var fresh models.Check
	require.NoError(t, db.First(&fresh, check.ID).Error)
	assert.Equal(t, models.StatusDown, fresh.Status)
	assert.Equal(t, 3, fresh.NPings)
}

func TestPingEndpointExitStatus(t *testing.T) {
	router, db := newTestRouter(t)
	check := createCheck(t, db)

	req := httptest.NewRequest("POST", "/ping/"+check.Code+"/0", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var fresh models.Check
	require.NoError(t, db.First(&fresh, check.ID).Error)
	assert.Equal(t, models.StatusUp, fresh.Status)

	req = httptest.NewRequest("POST", "/ping/"+check.Code+"/7", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, db.First(&fresh, check.ID).Error)
	assert.Equal(t, models.StatusDown, fresh.Status)
}

func TestPingEndpointUnknownCheck(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest("POST", "/ping/b6d1a02e-0000-0000-0000-000000000000", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResumeEndpoint(t *testing.T) {
	router, db := newTestRouter(t)

	check := &models.Check{Kind: models.KindSimple, Timeout: 60, Grace: 30, ManualResume: true}
	require.NoError(t, db.Create(check).Error)

	// Take the check down through a fail ping.
	req := httptest.NewRequest("POST", "/ping/"+check.Code+"/fail", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// A success ping does not revive a manual_resume check.
	req = httptest.NewRequest("POST", "/ping/"+check.Code, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var fresh models.Check
	require.NoError(t, db.First(&fresh, check.ID).Error)
	require.Equal(t, models.StatusDown, fresh.Status)

	// The operator resume does, and records the transition.
	req = httptest.NewRequest("POST", "/api/checks/"+check.Code+"/resume", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, db.First(&fresh, check.ID).Error)
	assert.Equal(t, models.StatusUp, fresh.Status)
	// The resumed check is back under the going-down scan: its deadline is
	// recomputed from the last ping, not left empty.
	require.NotNil(t, fresh.AlertAfter)
	require.NotNil(t, fresh.LastPing)
	assert.True(t, fresh.LastPing.Add(90*time.Second).Equal(*fresh.AlertAfter))

	var flip models.Flip
	require.NoError(t, db.Where("new_status = ?", models.StatusUp).First(&flip).Error)
	assert.Equal(t, models.StatusDown, flip.OldStatus)

	// Resuming an up check is a conflict.
	req = httptest.NewRequest("POST", "/api/checks/"+check.Code+"/resume", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPauseEndpoint(t *testing.T) {
	router, db := newTestRouter(t)
	check := createCheck(t, db)

	req := httptest.NewRequest("POST", "/ping/"+check.Code, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest("POST", "/api/checks/"+check.Code+"/pause", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var fresh models.Check
	require.NoError(t, db.First(&fresh, check.ID).Error)
	assert.Equal(t, models.StatusPaused, fresh.Status)
	assert.Nil(t, fresh.AlertAfter)
}

func TestDeleteCheckEndpoint(t *testing.T) {
	router, db := newTestRouter(t)
	check := createCheck(t, db)

	channel := &models.Channel{Kind: "webhook"}
	require.NoError(t, db.Create(channel).Error)
	require.NoError(t, db.Create(&models.CheckChannel{CheckID: check.ID, ChannelID: channel.ID}).Error)

	req := httptest.NewRequest("POST", "/ping/"+check.Code, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest("DELETE", "/api/checks/"+check.Code, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// The check and everything it owned is gone; the shared channel stays.
	var count int64
	require.NoError(t, db.Model(&models.Check{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
	require.NoError(t, db.Model(&models.Ping{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
	require.NoError(t, db.Model(&models.CheckChannel{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
	require.NoError(t, db.Model(&models.Channel{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	req = httptest.NewRequest("DELETE", "/api/checks/"+check.Code, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBadgeEndpoint(t *testing.T) {
	router, db := newTestRouter(t)
	check := createCheck(t, db)

	req := httptest.NewRequest("POST", "/ping/"+check.Code, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest("GET", "/badge/"+check.Fingerprint, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"up"`)
}
