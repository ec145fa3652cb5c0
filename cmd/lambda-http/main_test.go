package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"submission-backend/internal/shared/server/respond"
)

func TestServeReportsBootstrapFailure(t *testing.T) {
	bootErr := errors.New("DATABASE_URL is required")
	resp, err := serve(context.Background(), nil, bootErr, events.APIGatewayV2HTTPRequest{})
	if !errors.Is(err, bootErr) {
		t.Fatalf("expected bootstrap error, got %v", err)
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	var body respond.ErrorResponse
	if err := json.Unmarshal([]byte(resp.Body), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error.Code != "bootstrap_failed" {
		t.Fatalf("unexpected code: %s", body.Error.Code)
	}
}

func TestServeWithoutRouter(t *testing.T) {
	resp, err := serve(context.Background(), nil, nil, events.APIGatewayV2HTTPRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
}

func TestServeDelegatesToProxy(t *testing.T) {
	var gotPath string
	p := func(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		gotPath = req.RawPath
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusOK}, nil
	}
	resp, err := serve(context.Background(), p, nil, events.APIGatewayV2HTTPRequest{RawPath: "/api/v1/health"})
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected response %d, %v", resp.StatusCode, err)
	}
	if gotPath != "/api/v1/health" {
		t.Fatalf("proxy saw path %q", gotPath)
	}
}
