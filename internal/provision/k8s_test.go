package provision

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/unigate/gateway/pkg/models"
)

func TestPodConfigFor_DefaultsToPostgres(t *testing.T) {
	cfg, engine := podConfigFor(nil)
	if engine != "postgresql" || cfg.Port != 5432 {
		t.Errorf("podConfigFor(nil) = %+v, %q, want postgresql:5432", cfg, engine)
	}
}

func TestPodConfigFor_UnknownEngineFallsBackToPostgres(t *testing.T) {
	cfg, engine := podConfigFor(map[string]interface{}{"engine": "oracle"})
	if engine != "oracle" || cfg.Port != 5432 {
		t.Errorf("podConfigFor(oracle) = %+v, %q, want fallback to postgres port", cfg, engine)
	}
}

func TestGenerateSecret_PopulatesCredentials(t *testing.T) {
	conn := &models.Connection{ID: "Conn-ABC"}
	secret, err := generateSecret(conn, DatabasePodConfig{Port: 5432})
	if err != nil {
		t.Fatalf("generateSecret() error = %v", err)
	}
	if secret.Password == "" {
		t.Error("generateSecret() should produce a non-empty password")
	}
	if !strings.Contains(secret.Username, "conn-abc") {
		t.Errorf("Username = %q, want it derived from the connection id", secret.Username)
	}
}

func TestBuildManifest_ContainsExpectedResources(t *testing.T) {
	secret := &DatabaseConnectionSecret{Username: "u", Password: "p", Database: "d"}
	manifest := buildManifest("gw-conn-x", "gateway-connections", "postgres:16-alpine", 5432, secret)

	for _, want := range []string{"kind: Secret", "kind: Deployment", "kind: Service", "gw-conn-x"} {
		if !strings.Contains(manifest, want) {
			t.Errorf("buildManifest() missing %q", want)
		}
	}
}

func TestProvision_NoOpForAPIConnections(t *testing.T) {
	p := New("", time.Second)
	conn := &models.Connection{ID: "conn-1", Type: models.ConnectionTypeAPI}
	if err := p.Provision(context.Background(), conn, &models.ConnectionDefinition{}); err != nil {
		t.Errorf("Provision() on an API connection should no-op, got error = %v", err)
	}
}

func TestWaitReady_NoOpForAPIConnections(t *testing.T) {
	p := New("", time.Second)
	conn := &models.Connection{ID: "conn-1", Type: models.ConnectionTypeAPI}
	if err := p.WaitReady(context.Background(), conn); err != nil {
		t.Errorf("WaitReady() on an API connection should no-op, got error = %v", err)
	}
}
