// Command examples lists the actions of a running actionkitd and invokes
// one of them.
//
//	ACTIONKIT_URL=http://localhost:8080 go run ./sdk/go/examples get_balance '{"token_address":"0x..."}'
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"ActionKit-Chain/sdk/go/actionkit"
)

func main() {
	baseURL := os.Getenv("ACTIONKIT_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	client, err := actionkit.NewClient(baseURL, nil)
	if err != nil {
		fail(err)
	}
	client.SetToken(os.Getenv("ACTIONKIT_API_TOKEN"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	list, err := client.ListActions(ctx)
	if err != nil {
		fail(err)
	}
	fmt.Printf("network %s (chain %s)\n", list.Network.NetworkID, list.Network.ChainID)
	for _, a := range list.Actions {
		fmt.Printf("  %-32s %s\n", a.Name, a.Provider)
	}

	name := "get_wallet_details"
	args := map[string]any{}
	if len(os.Args) > 1 {
		name = os.Args[1]
	}
	if len(os.Args) > 2 {
		if err := json.Unmarshal([]byte(os.Args[2]), &args); err != nil {
			fail(fmt.Errorf("args must be a JSON object: %w", err))
		}
	}
	result, err := client.Invoke(ctx, name, args)
	if err != nil {
		fail(err)
	}
	fmt.Println(result)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
