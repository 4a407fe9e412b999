package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	appconfig "github.com/wolfman30/callwindow/internal/config"
	"github.com/wolfman30/callwindow/pkg/logging"
)

func testConfig(redisAddr string) *appconfig.Config {
	return &appconfig.Config{
		RedisAddr:            redisAddr,
		CallWindowStartHour:  9,
		CallWindowEndHour:    20,
		CallWindowDays:       "1,2,3,4,5",
		DeferralPollInterval: time.Minute,
		DeferralBatchSize:    10,
		DeferralMaxAttempts:  3,
		RateLimitRPS:         100,
		RateLimitBurst:       100,
	}
}

func TestBuildAppServesRoutes(t *testing.T) {
	mr := miniredis.RunT(t)
	a, err := buildApp(context.Background(), testConfig(mr.Addr()), logging.New("error"))
	if err != nil {
		t.Fatalf("buildApp: %v", err)
	}
	defer a.Close()
	if a.redis == nil {
		t.Fatalf("expected redis client when miniredis is reachable")
	}

	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/timezone?phone=%2B815012345678", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["timezone"] != "Asia/Tokyo" {
		t.Fatalf("expected Asia/Tokyo, got %v", resp["timezone"])
	}

	rr = httptest.NewRecorder()
	a.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rr.Body.String(), "callwindow_timezone_resolve_total") {
		t.Fatalf("expected resolve counter to be exported")
	}
}

func TestBuildAppDefersIntoRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(mr.Addr())
	// A window that never opens guarantees deferral regardless of wall-clock time.
	cfg.CallWindowDays = "none"
	a, err := buildApp(context.Background(), cfg, logging.New("error"))
	if err != nil {
		t.Fatalf("buildApp: %v", err)
	}
	defer a.Close()

	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/calls", bytes.NewBufferString(`{"phone":"+12125550100"}`)))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d body=%s", rr.Code, rr.Body.String())
	}
	keys := mr.Keys()
	if len(keys) != 2 {
		t.Fatalf("expected hash and schedule keys, got %v", keys)
	}
}

func TestBuildAppFallsBackToMemory(t *testing.T) {
	a, err := buildApp(context.Background(), testConfig(""), logging.New("error"))
	if err != nil {
		t.Fatalf("buildApp: %v", err)
	}
	defer a.Close()
	if a.redis != nil {
		t.Fatalf("expected no redis client without REDIS_ADDR")
	}
	if a.dispatcher == nil {
		t.Fatalf("expected dispatcher")
	}
}

func TestBuildAppInvalidWindow(t *testing.T) {
	cfg := testConfig("")
	cfg.CallWindowDays = "8"
	if _, err := buildApp(context.Background(), cfg, logging.New("error")); err == nil {
		t.Fatalf("expected invalid window error")
	}
}
