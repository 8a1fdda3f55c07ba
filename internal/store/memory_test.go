package store_test

import (
	"context"
	"testing"

	"github.com/unigate/gateway/internal/store"
	"github.com/unigate/gateway/pkg/models"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGetConnection(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conn := &models.Connection{
		ID:          "conn-1",
		Key:         "live::stripe::default::abc123",
		Platform:    "stripe",
		Type:        models.ConnectionTypeAPI,
		Environment: "live",
		Ownership:   models.Ownership{ClientID: "client-a"},
	}
	if err := s.CreateConnection(ctx, conn); err != nil {
		t.Fatalf("CreateConnection() error = %v", err)
	}

	got, err := s.GetConnection(ctx, "conn-1")
	if err != nil {
		t.Fatalf("GetConnection() error = %v", err)
	}
	if got.Platform != "stripe" {
		t.Errorf("GetConnection().Platform = %q, want %q", got.Platform, "stripe")
	}
	if !got.RecordMetadata.Active {
		t.Error("GetConnection().RecordMetadata.Active = false, want true")
	}

	byKey, err := s.GetConnectionByKey(ctx, conn.Key)
	if err != nil {
		t.Fatalf("GetConnectionByKey() error = %v", err)
	}
	if byKey.ID != "conn-1" {
		t.Errorf("GetConnectionByKey().ID = %q, want %q", byKey.ID, "conn-1")
	}
}

func TestListConnections_ScopedByOwnershipAndEnvironment(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.CreateConnection(ctx, &models.Connection{ID: "a", Key: "k-a", Platform: "stripe", Environment: "live", Ownership: models.Ownership{ClientID: "client-a"}})
	s.CreateConnection(ctx, &models.Connection{ID: "b", Key: "k-b", Platform: "github", Environment: "live", Ownership: models.Ownership{ClientID: "client-a"}})
	s.CreateConnection(ctx, &models.Connection{ID: "c", Key: "k-c", Platform: "stripe", Environment: "test", Ownership: models.Ownership{ClientID: "client-b"}})

	got, err := s.ListConnections(ctx, "live", store.Ownership{ClientID: "client-a"}, store.ListFilter{})
	if err != nil {
		t.Fatalf("ListConnections() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListConnections() returned %d, want 2", len(got))
	}
}

func TestDeleteConnection_IsSoft(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.CreateConnection(ctx, &models.Connection{ID: "del", Key: "k-del", Platform: "stripe", Environment: "live"})
	if err := s.DeleteConnection(ctx, "del"); err != nil {
		t.Fatalf("DeleteConnection() error = %v", err)
	}

	got, err := s.GetConnection(ctx, "del")
	if err != nil {
		t.Fatalf("GetConnection() after delete error = %v", err)
	}
	if got.RecordMetadata.Active {
		t.Error("GetConnection() after delete: Active = true, want false")
	}

	list, _ := s.ListConnections(ctx, "live", store.Ownership{}, store.ListFilter{})
	if len(list) != 0 {
		t.Errorf("ListConnections() after soft delete returned %d, want 0", len(list))
	}
}

func TestConnectionDefinitionUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	def := &models.ConnectionDefinition{ID: "def-1", Platform: "stripe", Type: models.ConnectionTypeAPI}
	if err := s.UpsertConnectionDefinition(ctx, def); err != nil {
		t.Fatalf("UpsertConnectionDefinition() error = %v", err)
	}

	got, err := s.GetConnectionDefinition(ctx, "stripe")
	if err != nil {
		t.Fatalf("GetConnectionDefinition() error = %v", err)
	}
	if got.ID != "def-1" {
		t.Errorf("GetConnectionDefinition().ID = %q, want %q", got.ID, "def-1")
	}

	def.Description = "Stripe payments"
	s.UpsertConnectionDefinition(ctx, def)
	got, _ = s.GetConnectionDefinition(ctx, "stripe")
	if got.Description != "Stripe payments" {
		t.Errorf("after re-upsert, Description = %q, want %q", got.Description, "Stripe payments")
	}

	all, err := s.ListConnectionDefinitions(ctx)
	if err != nil {
		t.Fatalf("ListConnectionDefinitions() error = %v", err)
	}
	if len(all) != 1 {
		t.Errorf("ListConnectionDefinitions() returned %d, want 1", len(all))
	}
}

func TestCMDLookupByPlatformAndAction(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cmd := &models.ConnectionModelDefinition{
		ID:         "cmd-1",
		Platform:   "stripe",
		Action:     "GET",
		ActionName: models.ActionGetOne,
	}
	if err := s.UpsertCMD(ctx, cmd); err != nil {
		t.Fatalf("UpsertCMD() error = %v", err)
	}

	got, err := s.GetCMD(ctx, "stripe", string(models.ActionGetOne))
	if err != nil {
		t.Fatalf("GetCMD() error = %v", err)
	}
	if got.ID != "cmd-1" {
		t.Errorf("GetCMD().ID = %q, want %q", got.ID, "cmd-1")
	}

	byID, err := s.GetCMDByID(ctx, "cmd-1")
	if err != nil {
		t.Fatalf("GetCMDByID() error = %v", err)
	}
	if byID.Platform != "stripe" {
		t.Errorf("GetCMDByID().Platform = %q, want %q", byID.Platform, "stripe")
	}

	list, err := s.ListCMDs(ctx, "stripe")
	if err != nil {
		t.Fatalf("ListCMDs() error = %v", err)
	}
	if len(list) != 1 {
		t.Errorf("ListCMDs() returned %d, want 1", len(list))
	}
}

func TestCMSLookup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cms := &models.ConnectionModelSchema{
		ID:       "cms-1",
		Platform: "stripe",
		Mapping:  models.Mapping{CommonModelName: "contact"},
	}
	if err := s.UpsertCMS(ctx, cms); err != nil {
		t.Fatalf("UpsertCMS() error = %v", err)
	}

	got, err := s.GetCMS(ctx, "stripe", "contact")
	if err != nil {
		t.Fatalf("GetCMS() error = %v", err)
	}
	if got.ID != "cms-1" {
		t.Errorf("GetCMS().ID = %q, want %q", got.ID, "cms-1")
	}
}

func TestSecretCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sec := &models.Secret{ID: "sec-1", Value: []byte(`{"accessToken":"tok"}`)}
	if err := s.PutSecret(ctx, sec); err != nil {
		t.Fatalf("PutSecret() error = %v", err)
	}

	got, err := s.GetSecret(ctx, "sec-1")
	if err != nil {
		t.Fatalf("GetSecret() error = %v", err)
	}
	if string(got.Value) != `{"accessToken":"tok"}` {
		t.Errorf("GetSecret().Value = %s, want %s", got.Value, `{"accessToken":"tok"}`)
	}

	if err := s.DeleteSecret(ctx, "sec-1"); err != nil {
		t.Fatalf("DeleteSecret() error = %v", err)
	}
	if _, err := s.GetSecret(ctx, "sec-1"); err == nil {
		t.Error("GetSecret() after delete should return error, got nil")
	}
}

func TestEventAccessLookup(t *testing.T) {
	s := newTestStore(t).(*store.MemoryStore)
	ctx := context.Background()

	s.PutEventAccess(&models.EventAccess{
		ID:          "ea-1",
		AccessKey:   "sk_live_abc",
		Environment: "live",
		Ownership:   models.Ownership{ClientID: "client-a"},
	})

	got, err := s.GetEventAccessByKey(ctx, "sk_live_abc")
	if err != nil {
		t.Fatalf("GetEventAccessByKey() error = %v", err)
	}
	if got.Ownership.ClientID != "client-a" {
		t.Errorf("GetEventAccessByKey().Ownership.ClientID = %q, want %q", got.Ownership.ClientID, "client-a")
	}

	if _, err := s.GetEventAccessByKey(ctx, "missing"); err == nil {
		t.Error("GetEventAccessByKey() for missing key should return error, got nil")
	}
}
