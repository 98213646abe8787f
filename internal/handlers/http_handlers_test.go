package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"raffle/internal/services"

	"github.com/gin-gonic/gin"
)

func newTestRouter() (*gin.Engine, *services.Bank, *services.TokenMint) {
	gin.SetMode(gin.TestMode)

	bank := services.NewBank()
	mint := services.NewTokenMint()
	// Callback mode: the test plays the randomness provider.
	random := services.NewRandomnessService(false, 0)
	registry := services.NewRegistry(random, bank, mint)
	referrals := services.NewReferralService()
	stats := services.NewStatsService(registry)

	router := gin.New()
	NewHTTPHandler(registry, referrals, stats, random, bank, mint).RegisterRoutes(router)
	return router, bank, mint
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Encoding request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("Decoding response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestRaffleLifecycleOverHTTP(t *testing.T) {
	router, _, _ := newTestRouter()

	w := doJSON(t, router, http.MethodPost, "/raffles",
		gin.H{"entranceFee": 100, "drawIntervalSeconds": 1, "rewardAmount": 10})
	if w.Code != http.StatusCreated {
		t.Fatalf("Create returned %d: %s", w.Code, w.Body.String())
	}
	raffleID := decode(t, w)["id"].(string)

	t.Run("upkeep refused before any entries", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/raffles/"+raffleID+"/upkeep", nil)
		if w.Code != http.StatusConflict {
			t.Fatalf("Expected 409, got %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("entries grow the pool", func(t *testing.T) {
		for _, addr := range []string{"alice", "bob", "carol", "dave"} {
			w := doJSON(t, router, http.MethodPost, "/raffles/"+raffleID+"/enter",
				gin.H{"address": addr, "value": 100})
			if w.Code != http.StatusOK {
				t.Fatalf("Enter %s returned %d: %s", addr, w.Code, w.Body.String())
			}
		}
		w := doJSON(t, router, http.MethodGet, "/raffles/"+raffleID, nil)
		snap := decode(t, w)
		if snap["poolBalance"].(float64) != 400 || snap["entrantCount"].(float64) != 4 {
			t.Errorf("Unexpected snapshot: %v", snap)
		}
	})

	t.Run("underpaid entry rejected", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/raffles/"+raffleID+"/enter",
			gin.H{"address": "eve", "value": 50})
		if w.Code != http.StatusBadRequest {
			t.Fatalf("Expected 400, got %d", w.Code)
		}
	})

	var requestID string
	t.Run("upkeep requests a draw once the interval elapses", func(t *testing.T) {
		time.Sleep(1100 * time.Millisecond)
		w := doJSON(t, router, http.MethodPost, "/raffles/"+raffleID+"/upkeep", nil)
		if w.Code != http.StatusAccepted {
			t.Fatalf("Expected 202, got %d: %s", w.Code, w.Body.String())
		}
		requestID = decode(t, w)["requestId"].(string)
		if requestID == "" {
			t.Fatal("Expected a request id")
		}

		w = doJSON(t, router, http.MethodPost, "/raffles/"+raffleID+"/enter",
			gin.H{"address": "eve", "value": 100})
		if w.Code != http.StatusConflict {
			t.Fatalf("Expected 409 while drawing, got %d", w.Code)
		}
	})

	t.Run("fulfillment pays the winner", func(t *testing.T) {
		// words[0] = 5, roster size 4: bob wins.
		w := doJSON(t, router, http.MethodPost, "/randomness/"+requestID, gin.H{"words": []uint64{5}})
		if w.Code != http.StatusOK {
			t.Fatalf("Fulfill returned %d: %s", w.Code, w.Body.String())
		}

		w = doJSON(t, router, http.MethodGet, "/raffles/"+raffleID, nil)
		snap := decode(t, w)
		if snap["state"] != "open" || snap["poolBalance"].(float64) != 0 {
			t.Errorf("Raffle did not reset: %v", snap)
		}
		if snap["recentWinner"] != "bob" {
			t.Errorf("Expected recentWinner bob, got %v", snap["recentWinner"])
		}

		w = doJSON(t, router, http.MethodGet, "/accounts/bob", nil)
		account := decode(t, w)
		if account["funds"].(float64) != 400 || account["rewards"].(float64) != 10 {
			t.Errorf("Unexpected winner account: %v", account)
		}
	})

	t.Run("duplicate fulfillment is rejected", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/randomness/"+requestID, gin.H{"words": []uint64{5}})
		if w.Code != http.StatusNotFound {
			t.Fatalf("Expected 404, got %d", w.Code)
		}
	})

	t.Run("referral credit", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/raffles/"+raffleID+"/referral-enter",
			gin.H{"address": "frank", "referrer": "alice", "value": 100})
		if w.Code != http.StatusOK {
			t.Fatalf("Referral enter returned %d: %s", w.Code, w.Body.String())
		}
		w = doJSON(t, router, http.MethodGet, "/referrals/alice", nil)
		if got := decode(t, w)["reward"].(float64); got != 10 {
			t.Errorf("Expected alice's referral reward 10, got %v", got)
		}
	})

	t.Run("stats and winners export", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/stats", nil)
		stats := decode(t, w)
		if stats["totalRaffles"].(float64) != 1 {
			t.Errorf("Unexpected stats: %v", stats)
		}

		w = doJSON(t, router, http.MethodGet, "/stats/winners.csv", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("CSV export returned %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), "bob") {
			t.Errorf("CSV export missing the winner: %q", w.Body.String())
		}
	})

	t.Run("unknown raffle", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/raffles/missing", nil)
		if w.Code != http.StatusNotFound {
			t.Fatalf("Expected 404, got %d", w.Code)
		}
	})
}
