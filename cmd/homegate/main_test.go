package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-homegate/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-homegate/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-homegate/internal/ingest"
	"github.com/nerrad567/gray-logic-homegate/internal/state"
)

func writeTestConfig(t *testing.T, content string) {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "test-config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("HOMEGATE_CONFIG", configPath)
}

// freePort reserves and releases a local TCP port.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserving port: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("HOMEGATE_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_BrokerUnreachable verifies an unreachable broker aborts startup.
func TestRun_BrokerUnreachable(t *testing.T) {
	writeTestConfig(t, fmt.Sprintf(`
gateway:
  id: test-gateway
mqtt:
  broker:
    host: "127.0.0.1"
    port: %d
    client_id: "test-unreachable"
http:
  host: "127.0.0.1"
  port: %d
logging:
  level: error
  format: text
`, freePort(t), freePort(t)))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail when the broker is unreachable")
	}
}

// TestRun_EmbeddedBrokerStartupAndShutdown runs the whole gateway against
// the in-process broker, with the access log enabled and InfluxDB pointed
// at a dead address, and checks it shuts down cleanly.
func TestRun_EmbeddedBrokerStartupAndShutdown(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "homegate.db")
	writeTestConfig(t, fmt.Sprintf(`
gateway:
  id: test-gateway
mqtt:
  broker:
    client_id: "test-embedded"
  embedded:
    enabled: true
    listen: "127.0.0.1:0"
http:
  host: "127.0.0.1"
  port: %d
influxdb:
  enabled: true
  url: "http://127.0.0.1:%d"
  org: "home"
  bucket: "sensors"
database:
  enabled: true
  path: %q
logging:
  level: error
  format: text
`, freePort(t), freePort(t), dbPath))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("access log database not created: %v", err)
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("HOMEGATE_CONFIG", "")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/config.yaml"
	t.Setenv("HOMEGATE_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

func TestOpenAccessLog_Disabled(t *testing.T) {
	db, repo := openAccessLog(context.Background(), config.DatabaseConfig{}, logging.Default())
	if db != nil || repo != nil {
		t.Error("openAccessLog() with disabled config returned a store")
	}
}

func TestConnectInfluxDB_Disabled(t *testing.T) {
	if c := connectInfluxDB(context.Background(), config.InfluxDBConfig{}, logging.Default()); c != nil {
		t.Error("connectInfluxDB() with disabled config returned a client")
	}
}

type recordedWrite struct {
	measurement string
	fields      map[string]any
}

type mockFieldWriter struct {
	writes []recordedWrite
}

func (m *mockFieldWriter) WriteFields(measurement string, fields map[string]any) {
	m.writes = append(m.writes, recordedWrite{measurement, fields})
}

func TestInfluxSink_Write(t *testing.T) {
	w := &mockFieldWriter{}
	sink := influxSink{client: w}

	sink.Write(ingest.Record{
		Measurement: "security",
		Fields: []state.Field{
			{Key: "people_count", Value: 4},
			{Key: "max_people_allowed", Value: 10},
		},
	})

	if len(w.writes) != 1 {
		t.Fatalf("writes = %d, want 1", len(w.writes))
	}
	got := w.writes[0]
	if got.measurement != "security" {
		t.Errorf("measurement = %q, want security", got.measurement)
	}
	if got.fields["people_count"] != 4.0 || got.fields["max_people_allowed"] != 10.0 {
		t.Errorf("fields = %v", got.fields)
	}
}
