package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"rps_arena/internal/domain"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
)

var (
	ErrExternalStateFetch  = errors.New("external state fetch failed")
	ErrApplicationNotFound = errors.New("application not found")
)

// Indexer is a minimal Algorand indexer REST client
type Indexer struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewIndexer(baseURL, token string) *Indexer {
	return &Indexer{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// StateEntry is one key of an application's global state
type StateEntry struct {
	Key   string `json:"key"`
	Value struct {
		Bytes string `json:"bytes"`
		Type  int    `json:"type"`
		Uint  uint64 `json:"uint"`
	} `json:"value"`
}

// Application represents an indexer application record
type Application struct {
	ID      uint64 `json:"id"`
	Deleted bool   `json:"deleted"`
	Params  struct {
		Creator     string       `json:"creator"`
		GlobalState []StateEntry `json:"global-state"`
	} `json:"params"`
}

// GetApplication fetches an application by id
func (i *Indexer) GetApplication(ctx context.Context, appID uint64) (*Application, error) {
	url := fmt.Sprintf("%s/v2/applications/%d", i.baseURL, appID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if i.token != "" {
		req.Header.Set("X-Indexer-API-Token", i.token)
	}

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternalStateFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %d", ErrApplicationNotFound, appID)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: indexer %s - %s", ErrExternalStateFetch, resp.Status, string(body))
	}

	var result struct {
		Application Application `json:"application"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrExternalStateFetch, err)
	}
	return &result.Application, nil
}

// Deposits reports which players have funded the escrow application
func (i *Indexer) Deposits(ctx context.Context, appID uint64) (domain.DepositState, error) {
	app, err := i.GetApplication(ctx, appID)
	if err != nil {
		return domain.DepositState{AppID: appID}, err
	}
	return DepositsFromState(appID, app.Params.GlobalState), nil
}

// DepositsFromState inspects global state keys for player deposit markers
func DepositsFromState(appID uint64, state []StateEntry) domain.DepositState {
	ds := domain.DepositState{AppID: appID}
	for _, e := range state {
		switch e.Key {
		case Player1DepositKey:
			ds.Player1 = true
		case Player2DepositKey:
			ds.Player2 = true
		}
	}
	return ds
}

// ApplicationAddress returns the escrow account of an application
func ApplicationAddress(appID uint64) string {
	return crypto.GetApplicationAddress(appID).String()
}
