package catalog_test

import (
	"context"
	"testing"

	"github.com/unigate/gateway/internal/catalog"
	"github.com/unigate/gateway/internal/store"
	"github.com/unigate/gateway/pkg/models"
)

func TestCatalog_RefreshAndLookup(t *testing.T) {
	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()
	if err := s.UpsertConnectionDefinition(ctx, &models.ConnectionDefinition{
		ID: "def-1", Platform: "stripe", Description: "Payments",
		Type: models.ConnectionTypeAPI,
	}); err != nil {
		t.Fatalf("UpsertConnectionDefinition() error = %v", err)
	}

	cat := catalog.New(s)
	if err := cat.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	def, ok := cat.Lookup("stripe")
	if !ok {
		t.Fatal("Lookup() should find stripe after refresh")
	}
	if def.Description != "Payments" {
		t.Errorf("Description = %q, want %q", def.Description, "Payments")
	}

	if _, ok := cat.Lookup("unknown"); ok {
		t.Error("Lookup() should not find an unregistered platform")
	}
}

func TestCatalog_ListAllSortedByPlatform(t *testing.T) {
	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()
	s.UpsertConnectionDefinition(ctx, &models.ConnectionDefinition{ID: "1", Platform: "zendesk"})
	s.UpsertConnectionDefinition(ctx, &models.ConnectionDefinition{ID: "2", Platform: "asana"})

	cat := catalog.New(s)
	if err := cat.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	all := cat.ListAll()
	if len(all) != 2 || all[0].Platform != "asana" || all[1].Platform != "zendesk" {
		t.Errorf("ListAll() = %v, want [asana, zendesk]", all)
	}
}

func TestCatalog_RegisterIsImmediatelyVisible(t *testing.T) {
	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })

	cat := catalog.New(s)
	cat.Register(models.ConnectionDefinition{Platform: "hubspot"})

	if _, ok := cat.Lookup("hubspot"); !ok {
		t.Error("Register() should make a definition immediately visible")
	}
}
