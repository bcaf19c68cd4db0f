// Command match_smoke plays one match against a running server: two players
// create and join over HTTP, then move over WebSocket and wait for the verdict.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"rps_arena/internal/logger"
	"rps_arena/internal/service"
	"rps_arena/internal/ws"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	host := flag.String("host", "127.0.0.1", "server host")
	playerA := flag.String("a", "SMOKEPLAYERA", "player1 wallet address")
	playerB := flag.String("b", "SMOKEPLAYERB", "player2 wallet address")
	appID := flag.Uint64("app", 0, "escrow application id (0 for a random match id)")
	moveA := flag.String("move-a", "rock", "player1 move")
	moveB := flag.String("move-b", "scissors", "player2 move")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		logger.Fatal("JWT_SECRET not set")
	}
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://%s:%s/api/v1", *host, port)

	// tokens are minted directly with the server secret, skipping the wallet proof
	service.InitJWT(secret)
	tokenA, err := service.GenerateJWT(*playerA)
	if err != nil {
		logger.Fatal("token A", "error", err)
	}
	tokenB, err := service.GenerateJWT(*playerB)
	if err != nil {
		logger.Fatal("token B", "error", err)
	}

	var created struct {
		Record struct {
			MatchID int64 `json:"match_id"`
		} `json:"record"`
	}
	if err := call(http.MethodPost, base+"/matches", tokenA, map[string]any{"app_id": *appID}, &created); err != nil {
		logger.Fatal("create match", "error", err)
	}
	id := created.Record.MatchID
	logger.Info("match created", "match_id", id)

	if err := call(http.MethodPost, fmt.Sprintf("%s/matches/%d/join", base, id), tokenB, nil, nil); err != nil {
		logger.Fatal("join match", "error", err)
	}

	connA := dial(*host, port, tokenA, id)
	defer connA.Close()
	connB := dial(*host, port, tokenB, id)
	defer connB.Close()

	send(connA, *moveA)
	send(connB, *moveB)

	verdict := awaitVerdict(connA, 10*time.Second)
	if verdict == "" {
		logger.Fatal("no verdict observed", "match_id", id)
	}
	logger.Info("verdict observed", "match_id", id, "verdict", verdict)

	var final map[string]any
	if err := call(http.MethodGet, fmt.Sprintf("%s/matches/%d", base, id), tokenA, nil, &final); err != nil {
		logger.Fatal("get match", "error", err)
	}
	out, _ := json.MarshalIndent(final, "", "  ")
	fmt.Println(string(out))
	logger.Info("smoke test finished")
}

func call(method, url, token string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		var e map[string]any
		_ = json.NewDecoder(res.Body).Decode(&e)
		return fmt.Errorf("%s %s: %d %v", method, url, res.StatusCode, e)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}

// use 127.0.0.1 by default to prefer IPv4
func dial(host, port, token string, matchID int64) *websocket.Conn {
	url := fmt.Sprintf("ws://%s:%s/ws?token=%s&match=%d", host, port, token, matchID)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		logger.Fatal("ws dial", "error", err)
	}
	return conn
}

func send(conn *websocket.Conn, move string) {
	if err := conn.WriteJSON(ws.Message{Type: ws.MsgMove, Payload: ws.MovePayload{Move: move}}); err != nil {
		logger.Fatal("ws write", "error", err)
	}
}

// awaitVerdict reads frames until one carries a verdict.
func awaitVerdict(conn *websocket.Conn, timeout time.Duration) string {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn.SetReadDeadline(deadline)
		var frame struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := conn.ReadJSON(&frame); err != nil {
			logger.Warn("ws read", "error", err)
			return ""
		}
		logger.Debug("frame", "type", frame.Type)

		var p struct {
			Verdict string `json:"verdict"`
			Match   struct {
				Verdict string `json:"verdict"`
			} `json:"match"`
		}
		_ = json.Unmarshal(frame.Payload, &p)
		switch {
		case p.Verdict != "":
			return p.Verdict
		case p.Match.Verdict != "":
			return p.Match.Verdict
		}
	}
	return ""
}
