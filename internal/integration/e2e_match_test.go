package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"rps_arena/internal/chain"
	"rps_arena/internal/cipher"
	"rps_arena/internal/config"
	"rps_arena/internal/domain"
	httpserver "rps_arena/internal/http"
	"rps_arena/internal/match"
	"rps_arena/internal/repository"
	"rps_arena/internal/service"
	"rps_arena/internal/settlement"
	"rps_arena/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type recordingEscrow struct {
	mu      sync.Mutex
	winners []string
}

func (e *recordingEscrow) Payout(_ context.Context, appID uint64, winner string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.winners = append(e.winners, winner)
	return "E2ETX" + strconv.FormatUint(appID, 10), nil
}

type fundedEscrow struct{}

func (fundedEscrow) Deposits(_ context.Context, appID uint64) (domain.DepositState, error) {
	return domain.DepositState{AppID: appID, Player1: true, Player2: true}, nil
}

func TestE2EMatchOverHTTPAndWebSocket(t *testing.T) {
	db := openDB(t)
	gin.SetMode(gin.TestMode)
	service.InitJWT("e2e-secret")

	key, err := cipher.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	mc, err := cipher.NewFromBase64(key)
	if err != nil {
		t.Fatal(err)
	}

	repo := repository.NewMatchRepository(db)
	audit := service.NewAuditService(db)
	escrow := &recordingEscrow{}
	store := match.NewStore(match.NewMemoryBackend(), mc)
	trigger := settlement.NewTrigger(repo, escrow, settlement.NewMemoryLocker(), time.Minute)
	poller := chain.NewPoller(5*time.Millisecond, 20*time.Millisecond, 20)
	svc := service.NewMatchService(repo, store, trigger, fundedEscrow{}, poller, audit)
	hub := ws.NewHub(svc, store.Reveal)
	store.SetNotifier(hub)

	r := gin.New()
	cfg := &config.Config{APIRateLimit: 1000, APIRateWindow: time.Minute, MoveRateLimit: 1000}
	httpserver.RegisterRoutes(r, cfg, httpserver.Deps{
		DB:      db,
		Matches: svc,
		Auth:    service.NewAuthService("localhost", audit),
		Audit:   audit,
		Hub:     hub,
		Version: "e2e",
	})
	ts := httptest.NewServer(r)
	defer ts.Close()

	alice, bob := "E2EALICE", "E2EBOB"
	tokenA, _ := service.GenerateJWT(alice)
	tokenB, _ := service.GenerateJWT(bob)
	appID := freshMatchID(t)

	post := func(path, token string, body any) map[string]any {
		t.Helper()
		var buf bytes.Buffer
		_ = json.NewEncoder(&buf).Encode(body)
		req, _ := http.NewRequest(http.MethodPost, ts.URL+path, &buf)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		res, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("POST %s: %v", path, err)
		}
		defer res.Body.Close()
		out := map[string]any{}
		_ = json.NewDecoder(res.Body).Decode(&out)
		if res.StatusCode >= 300 {
			t.Fatalf("POST %s: %d %v", path, res.StatusCode, out)
		}
		return out
	}

	post("/api/v1/matches", tokenA, map[string]any{"app_id": appID})
	matchPath := "/api/v1/matches/" + strconv.FormatInt(appID, 10)
	post(matchPath+"/join", tokenB, nil)

	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws?match=" + strconv.FormatInt(appID, 10) + "&token="
	connA, _, err := websocket.DefaultDialer.Dial(wsURL+tokenA, nil)
	if err != nil {
		t.Fatalf("dial A: %v", err)
	}
	defer connA.Close()
	connB, _, err := websocket.DefaultDialer.Dial(wsURL+tokenB, nil)
	if err != nil {
		t.Fatalf("dial B: %v", err)
	}
	defer connB.Close()

	// the snapshot is sent after subscribing, so once it arrives updates will too
	waitFor := func(conn *websocket.Conn, accept func(typ string, payload map[string]any) bool) bool {
		deadline := time.Now().Add(5 * time.Second)
		for {
			_ = conn.SetReadDeadline(deadline)
			var frame struct {
				Type    string         `json:"type"`
				Payload map[string]any `json:"payload"`
			}
			if err := conn.ReadJSON(&frame); err != nil {
				return false
			}
			if accept(frame.Type, frame.Payload) {
				return true
			}
		}
	}
	isState := func(typ string, _ map[string]any) bool { return typ == ws.MsgState }
	if !waitFor(connA, isState) || !waitFor(connB, isState) {
		t.Fatalf("no state snapshot")
	}

	_ = connA.WriteJSON(ws.Message{Type: ws.MsgMove, Payload: ws.MovePayload{Move: "paper"}})
	_ = connB.WriteJSON(ws.Message{Type: ws.MsgMove, Payload: ws.MovePayload{Move: "rock"}})

	resolved := func(typ string, p map[string]any) bool {
		return typ == ws.MsgMatchUpdate && p["verdict"] == string(domain.VerdictPlayer1) && p["player2_move"] == "rock"
	}
	if !waitFor(connB, resolved) {
		t.Fatalf("player2 never saw the verdict")
	}

	// settlement runs on the mover's request; poll the index until it lands
	deadline := time.Now().Add(5 * time.Second)
	var rec *domain.GameRecord
	for time.Now().Before(deadline) {
		rec, err = repo.GetByMatchID(context.Background(), appID)
		if err == nil && rec != nil && rec.Paid() {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if rec == nil || !rec.Paid() || *rec.WinnerAddress != alice {
		t.Fatalf("match not paid to alice: %+v", rec)
	}

	out := post(matchPath+"/settle", tokenB, nil)
	if out["kind"] != string(settlement.OutcomeAlreadySettled) {
		t.Fatalf("second settle should be a no-op: %v", out)
	}
	escrow.mu.Lock()
	paid := len(escrow.winners)
	escrow.mu.Unlock()
	if paid != 1 {
		t.Fatalf("expected one payout, got %d", paid)
	}

	trail, err := audit.MatchTrail(context.Background(), appID, 50)
	if err != nil {
		t.Fatalf("trail: %v", err)
	}
	seen := map[string]bool{}
	for _, e := range trail {
		seen[e.Action] = true
	}
	for _, want := range []string{domain.AuditActionMatchCreate, domain.AuditActionMatchJoin, domain.AuditActionMatchMove, domain.AuditActionSettlePaid} {
		if !seen[want] {
			t.Fatalf("audit trail missing %s: %v", want, seen)
		}
	}
}
