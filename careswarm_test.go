package careswarm

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careswarm/careswarm/pkg/config"
	"github.com/careswarm/careswarm/pkg/observability"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Provider.Name = "mock"
	cfg.Database.Path = filepath.Join(t.TempDir(), "clinic.db")
	cfg.Reminders.Enabled = false
	return cfg
}

func TestNewApp(t *testing.T) {
	app, err := NewApp(testConfig(t))
	require.NoError(t, err)
	defer app.Close()

	assert.NotNil(t, app.Clinic)
	assert.NotNil(t, app.Sessions)
	assert.NotNil(t, app.Router)
	assert.NotNil(t, app.Server)
	assert.Nil(t, app.Reminders)

	resp := app.Health.Check(context.Background())
	assert.Equal(t, observability.HealthStatusHealthy, resp.Status)
}

func TestNewAppWithReminders(t *testing.T) {
	cfg := testConfig(t)
	cfg.Reminders.Enabled = true

	app, err := NewApp(cfg)
	require.NoError(t, err)
	defer app.Close()
	assert.NotNil(t, app.Reminders)
}

func TestNewAppRejectsUnknownProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.Provider.Name = "nonesuch"

	_, err := NewApp(cfg)
	require.Error(t, err)
}

func TestAppClose(t *testing.T) {
	app, err := NewApp(testConfig(t))
	require.NoError(t, err)
	require.NoError(t, app.Close())
}
