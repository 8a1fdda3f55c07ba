package resppipeline_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/unigate/gateway/internal/resppipeline"
	"github.com/unigate/gateway/internal/sandbox"
	"github.com/unigate/gateway/pkg/models"
)

func httpResponse(status int, body string) (*http.Response, []byte) {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}, []byte(body)
}

func TestRun_NonSuccessShortCircuits(t *testing.T) {
	p := resppipeline.New(sandbox.New(), 100, true)
	cmd := &models.ConnectionModelDefinition{ID: "cmd-1"}
	resp, raw := httpResponse(http.StatusNotFound, `{"error":"missing"}`)

	result, err := p.Run(context.Background(), cmd, models.DestinationAction{}, resp, raw)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.IsError || result.Status != http.StatusNotFound {
		t.Errorf("Run() = %+v, want IsError with status 404", result)
	}
	if string(result.RawBody) != `{"error":"missing"}` {
		t.Errorf("RawBody = %s, want raw passthrough", result.RawBody)
	}
}

func TestRun_GetOneMapsSingleObjectWithModifyTokenFallback(t *testing.T) {
	p := resppipeline.New(sandbox.New(), 100, true)
	cmd := &models.ConnectionModelDefinition{
		ID:           "cmd-2",
		PlatformInfo: models.ApiModelConfig{Paths: &models.PathsConfig{ResponseObject: "$.body"}},
		Mapping: &models.Mapping{
			ToCommonModel: `function mapToCommonModel(body) { return {id: body.id, email: body.email}; }`,
		},
	}
	resp, raw := httpResponse(http.StatusOK, `{"id":"cus_1","email":"a@b"}`)

	result, err := p.Run(context.Background(), cmd, models.DestinationAction{ActionName: models.ActionGetOne}, resp, raw)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	m, ok := result.Unified.(map[string]interface{})
	if !ok {
		t.Fatalf("Unified type = %T", result.Unified)
	}
	if m["id"] != "cus_1" || m["modifyToken"] != "cus_1" {
		t.Errorf("Unified = %v, want modifyToken fallback to id", m)
	}
}

func TestRun_GetManyMapsEachElement(t *testing.T) {
	p := resppipeline.New(sandbox.New(), 100, true)
	cmd := &models.ConnectionModelDefinition{
		ID: "cmd-3",
		PlatformInfo: models.ApiModelConfig{
			Paths: &models.PathsConfig{ResponseObject: "$.body.data"},
		},
		Mapping: &models.Mapping{
			ToCommonModel: `function mapToCommonModel(body) { return {id: body.id}; }`,
		},
	}
	resp, raw := httpResponse(http.StatusOK, `{"data":[{"id":"a"},{"id":"b"}]}`)

	result, err := p.Run(context.Background(), cmd, models.DestinationAction{ActionName: models.ActionGetMany}, resp, raw)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	items, ok := result.Unified.([]interface{})
	if !ok || len(items) != 2 {
		t.Fatalf("Unified = %v, want 2 mapped elements", result.Unified)
	}
	for _, it := range items {
		m := it.(map[string]interface{})
		if m["modifyToken"] != m["id"] {
			t.Errorf("element = %v, want modifyToken == id", m)
		}
	}
}

func TestRun_UpdateDropsBody(t *testing.T) {
	p := resppipeline.New(sandbox.New(), 100, true)
	cmd := &models.ConnectionModelDefinition{ID: "cmd-4"}
	resp, raw := httpResponse(http.StatusOK, `{"id":"x"}`)

	result, err := p.Run(context.Background(), cmd, models.DestinationAction{ActionName: models.ActionUpdate}, resp, raw)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Unified != nil {
		t.Errorf("Unified = %v, want nil for update action", result.Unified)
	}
}

func TestRun_CardinalityMismatchFailsInNonProduction(t *testing.T) {
	p := resppipeline.New(sandbox.New(), 100, false)
	cmd := &models.ConnectionModelDefinition{
		ID:           "cmd-5",
		PlatformInfo: models.ApiModelConfig{Paths: &models.PathsConfig{ResponseObject: "$.body.missing"}},
		Mapping:      &models.Mapping{ToCommonModel: `function mapToCommonModel(b) { return b; }`},
	}
	resp, raw := httpResponse(http.StatusOK, `{"id":"x"}`)

	if _, err := p.Run(context.Background(), cmd, models.DestinationAction{ActionName: models.ActionGetOne}, resp, raw); err == nil {
		t.Fatal("Run() should fail on cardinality mismatch in non-production")
	}
}
