package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alem-hub/studentdb/config"
	"github.com/alem-hub/studentdb/internal/application/query"
	"github.com/alem-hub/studentdb/internal/domain/shared"
	"github.com/alem-hub/studentdb/internal/domain/student"
	"github.com/alem-hub/studentdb/internal/infrastructure/external/spreadsheet"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func xlsxConfig(path string) *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name:        "studentdb",
			Environment: config.EnvDevelopment,
			Timeout:     30 * time.Second,
		},
		Roster: config.RosterConfig{
			Source:       config.RosterSourceXLSX,
			XLSXPath:     path,
			LoadAttempts: 1,
		},
		Redis: config.RedisConfig{Disabled: true},
		Query: config.QueryConfig{ParallelThreshold: 2, Workers: 2},
		Observability: config.ObservabilityConfig{
			LogLevel:  "debug",
			LogFormat: "json",
		},
	}
}

func writeWorkbook(t *testing.T, students []student.Student) string {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, spreadsheet.WriteRoster(&buf, "", students))

	path := filepath.Join(t.TempDir(), "students.xlsx")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func TestRun_XLSXReport(t *testing.T) {
	path := writeWorkbook(t, []student.Student{
		{ID: 1, FirstName: "Ann", LastName: "Lee", Group: "G1"},
		{ID: 2, FirstName: "Bob", LastName: "Lee", Group: "G1"},
		{ID: 3, FirstName: "Ann", LastName: "Fox", Group: "G2"},
	})

	var stdout, stderr bytes.Buffer
	require.NoError(t, run(context.Background(), xlsxConfig(path), &stdout, &stderr))

	var report query.GroupReport
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &report))

	assert.Equal(t, 3, report.TotalStudents)
	assert.Equal(t, "G1", report.LargestGroup)
	assert.Equal(t, "G1", report.LargestGroupFirstName)
	assert.Equal(t, []string{"Ann", "Bob"}, report.DistinctFirstNames)
	require.Len(t, report.Groups, 2)
	assert.Equal(t, "G1", report.Groups[0].Name)
	assert.Equal(t, 2, report.Groups[0].Size)

	assert.Contains(t, stderr.String(), `"message":"report completed"`)
}

func TestRun_EmptyWorkbook(t *testing.T) {
	path := writeWorkbook(t, nil)

	var stdout, stderr bytes.Buffer
	require.NoError(t, run(context.Background(), xlsxConfig(path), &stdout, &stderr))

	var report query.GroupReport
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &report))
	assert.Zero(t, report.TotalStudents)
	assert.Empty(t, report.LargestGroup)
	assert.Empty(t, report.Groups)
}

func TestRun_MissingWorkbook(t *testing.T) {
	cfg := xlsxConfig(filepath.Join(t.TempDir(), "absent.xlsx"))

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), cfg, &stdout, &stderr)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrExternalService)
	assert.Empty(t, stdout.String())
}

func TestRedisConfig_KeepsDefaultsForZeroValues(t *testing.T) {
	cfg := redisConfig(config.RedisConfig{Host: "cache", Port: 6380, PoolSize: 0})

	assert.Equal(t, "cache:6380", cfg.Addr())
	assert.Equal(t, 10, cfg.PoolSize)
	assert.Equal(t, 5*time.Second, cfg.DialTimeout)
}

func TestSetupLogger_ProductionAlwaysJSON(t *testing.T) {
	cfg := xlsxConfig("roster.xlsx")
	cfg.App.Environment = config.EnvProduction
	cfg.Observability.LogFormat = "console"

	var out bytes.Buffer
	log := setupLogger(cfg, &out)
	log.Info("ready")
	require.NoError(t, log.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &entry))
	assert.Equal(t, "ready", entry["message"])
	assert.Equal(t, "studentdb", entry["app"])
}
