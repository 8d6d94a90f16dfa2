package actionkit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestInvokeSendsArgsAndToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/actions/get_balance" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("unexpected auth header %q", got)
		}
		var body struct {
			Args map[string]any `json:"args"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.Args["token_address"] != "0xabc" {
			t.Errorf("unexpected args %v", body.Args)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"result": "Balance of USDC is 1"})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	client.SetToken("tok")
	got, err := client.Invoke(context.Background(), "get_balance", map[string]any{"token_address": "0xabc"})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if got != "Balance of USDC is 1" {
		t.Fatalf("unexpected result %q", got)
	}
}

func TestInvokeDecodesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"VALIDATION","message":"invalid arguments","fields":[{"field":"amount","message":"is required"}]}}`))
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, nil)
	_, err := client.Invoke(context.Background(), "transfer", nil)
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %T %v", err, err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Code != "VALIDATION" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
	if len(apiErr.Fields) != 1 || apiErr.Fields[0].Field != "amount" {
		t.Fatalf("unexpected fields %+v", apiErr.Fields)
	}
	if NotFound(err) {
		t.Fatalf("400 is not a not found error")
	}
}

func TestNotFoundWithPlainBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nothing here", http.StatusNotFound)
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, nil)
	_, err := client.Invoke(context.Background(), "missing", nil)
	if !NotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if apiErr := err.(*APIError); apiErr.Message != "nothing here" {
		t.Fatalf("unexpected message %q", apiErr.Message)
	}
}

func TestListActionsAndInvocations(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/prefix/api/v1/actions", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ActionList{
			Network: Network{ProtocolFamily: "evm", NetworkID: "base-sepolia", ChainID: "84532"},
			Actions: []Action{{Name: "get_wallet_details", Provider: "wallet", Schema: json.RawMessage(`{"type":"object"}`)}},
		})
	})
	mux.HandleFunc("/prefix/api/v1/invocations", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "3" {
			t.Errorf("unexpected limit %q", r.URL.Query().Get("limit"))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"invocations": []Invocation{{ID: "a", Outcome: "succeeded"}}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := NewClient(srv.URL+"/prefix", nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	list, err := client.ListActions(context.Background())
	if err != nil {
		t.Fatalf("list actions: %v", err)
	}
	if list.Network.ChainID != "84532" || len(list.Actions) != 1 {
		t.Fatalf("unexpected list %+v", list)
	}
	invs, err := client.Invocations(context.Background(), 3)
	if err != nil {
		t.Fatalf("invocations: %v", err)
	}
	if len(invs) != 1 || invs[0].ID != "a" {
		t.Fatalf("unexpected invocations %+v", invs)
	}
}

func TestNewClientRejectsRelativeURL(t *testing.T) {
	if _, err := NewClient("localhost:8080", nil); err == nil {
		t.Fatalf("expected error")
	}
}
