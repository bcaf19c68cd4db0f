package chain

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIndexerDeposits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Indexer-API-Token") != "tok" {
			t.Errorf("missing token header")
		}
		switch r.URL.Path {
		case "/v2/applications/42":
			w.Write([]byte(`{"application":{"id":42,"params":{"creator":"X","global-state":[
				{"key":"cGxheWVyMQ==","value":{"type":1,"bytes":"AAAA"}},
				{"key":"b3RoZXI=","value":{"type":2,"uint":5}}]}}}`))
		case "/v2/applications/43":
			w.Write([]byte(`{"application":{"id":43,"params":{"global-state":[
				{"key":"cGxheWVyMQ==","value":{"type":1}},
				{"key":"cGxheWVyMg==","value":{"type":1}}]}}}`))
		case "/v2/applications/500":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	idx := NewIndexer(srv.URL+"/", "tok")
	ctx := context.Background()

	ds, err := idx.Deposits(ctx, 42)
	if err != nil {
		t.Fatal(err)
	}
	if !ds.Player1 || ds.Player2 || ds.Both() {
		t.Fatalf("unexpected deposits %+v", ds)
	}

	ds, err = idx.Deposits(ctx, 43)
	if err != nil {
		t.Fatal(err)
	}
	if !ds.Both() {
		t.Fatalf("expected both deposits, got %+v", ds)
	}

	if _, err := idx.Deposits(ctx, 500); !errors.Is(err, ErrExternalStateFetch) {
		t.Fatalf("expected ErrExternalStateFetch, got %v", err)
	}
	if _, err := idx.Deposits(ctx, 7); !errors.Is(err, ErrApplicationNotFound) {
		t.Fatalf("expected ErrApplicationNotFound, got %v", err)
	}
}

func TestDepositKeys(t *testing.T) {
	if Player1DepositKey != "cGxheWVyMQ==" || Player2DepositKey != "cGxheWVyMg==" {
		t.Fatalf("unexpected keys %s %s", Player1DepositKey, Player2DepositKey)
	}
}

func TestApplicationAddress(t *testing.T) {
	addr := ApplicationAddress(42)
	if !ValidateAddress(addr) {
		t.Fatalf("application address %q does not validate", addr)
	}
	if ApplicationAddress(43) == addr {
		t.Fatalf("distinct apps share an address")
	}
}
