package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/task-planner/internal/config"
	"github.com/yukikurage/task-planner/internal/models"
)

func TestDialector(t *testing.T) {
	tests := []struct {
		driver string
		name   string
	}{
		{"sqlite", "sqlite"},
		{"mysql", "mysql"},
		{"postgres", "postgres"},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			d, err := Dialector(&config.Config{DBDriver: tt.driver, DBPath: ":memory:"})
			require.NoError(t, err)
			assert.Equal(t, tt.name, d.Name())
		})
	}

	_, err := Dialector(&config.Config{DBDriver: "oracle"})
	assert.Error(t, err)
}

func TestMigrate_Idempotent(t *testing.T) {
	db, err := Connect(&config.Config{DBDriver: "sqlite", DBPath: ":memory:", GinMode: "test"})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	defer sqlDB.Close()

	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db))

	assert.True(t, db.Migrator().HasTable(&models.Task{}))
	assert.True(t, db.Migrator().HasIndex(&models.Task{}, "idx_tasks_series_due"))
	assert.True(t, db.Migrator().HasIndex(&models.Task{}, "idx_tasks_status_due"))
}
