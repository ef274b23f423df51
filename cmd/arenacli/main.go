// Command arenacli is a thin JSON-RPC client for an ArenaChain node: key
// management, game transactions, and state queries.
//
// Usage:
//
//	arenacli [-rpc URL] [-key FILE] [-chain ID] <command> [args]
//
// Commands:
//
//	genkey                              generate a keystore file
//	balance <pubkey>                    query an account
//	register-player <name>              claim a display name
//	register-battle <name>              open a battle as player one
//	mint-card <class> <name> [owner]    mint a character card
//	transfer-card <card-id> <to>        move a card
//	resolve-battle <outcome.json>       attest and submit a battle outcome
//	player <pubkey>                     query a player record
//	battle <id>                         query a battle
//	stats <pubkey> <token-id>           query character stats
//	card <id>                           query a card
//	cards <pubkey>                      list card IDs by owner
//
// The keystore password is read from ARENA_PASSWORD.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/karuha/arenachain/core"
	"github.com/karuha/arenachain/rpc"
	"github.com/karuha/arenachain/wallet"
)

func main() {
	rpcURL := flag.String("rpc", "http://localhost:8545", "node RPC endpoint")
	keyPath := flag.String("key", "wallet.key", "path to keystore file")
	chainID := flag.String("chain", "arenachain-dev", "chain ID of the target network")
	authToken := flag.String("token", "", "RPC bearer token (if the node requires one)")
	fee := flag.Uint64("fee", 0, "transaction fee")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	c := &client{url: *rpcURL, token: *authToken}
	password := os.Getenv("ARENA_PASSWORD")

	cmd, args := args[0], args[1:]
	switch cmd {
	case "genkey":
		w, err := wallet.Generate()
		if err != nil {
			log.Fatal(err)
		}
		if err := wallet.SaveKey(*keyPath, password, w.PrivKey()); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Public key: %s\nSaved to: %s\n", w.PubKey(), *keyPath)

	case "balance":
		requireArgs(args, 1, "balance <pubkey>")
		c.query("getBalance", map[string]any{"address": args[0]})

	case "player":
		requireArgs(args, 1, "player <pubkey>")
		c.query("getPlayer", map[string]any{"address": args[0]})

	case "battle":
		requireArgs(args, 1, "battle <id>")
		c.query("getBattle", map[string]any{"id": parseU64(args[0])})

	case "stats":
		requireArgs(args, 2, "stats <pubkey> <token-id>")
		c.query("getCharacterStats", map[string]any{"player": args[0], "token_id": parseU64(args[1])})

	case "card":
		requireArgs(args, 1, "card <id>")
		c.query("getCard", map[string]any{"id": parseU64(args[0])})

	case "cards":
		requireArgs(args, 1, "cards <pubkey>")
		c.query("getCardsByOwner", map[string]any{"owner": args[0]})

	case "register-player":
		requireArgs(args, 1, "register-player <name>")
		w := loadWallet(*keyPath, password)
		tx, err := w.RegisterPlayer(*chainID, args[0], c.nonce(w.PubKey()), *fee)
		if err != nil {
			log.Fatal(err)
		}
		c.send(tx)

	case "register-battle":
		requireArgs(args, 1, "register-battle <name>")
		w := loadWallet(*keyPath, password)
		tx, err := w.RegisterBattle(*chainID, args[0], c.nonce(w.PubKey()), *fee)
		if err != nil {
			log.Fatal(err)
		}
		c.send(tx)

	case "mint-card":
		if len(args) != 2 && len(args) != 3 {
			log.Fatal("usage: mint-card <class> <name> [owner]")
		}
		class, err := core.ParseCharacterClass(args[0])
		if err != nil {
			log.Fatal(err)
		}
		owner := ""
		if len(args) == 3 {
			owner = args[2]
		}
		w := loadWallet(*keyPath, password)
		tx, err := w.MintCard(*chainID, class, args[1], owner, c.nonce(w.PubKey()), *fee)
		if err != nil {
			log.Fatal(err)
		}
		c.send(tx)

	case "transfer-card":
		requireArgs(args, 2, "transfer-card <card-id> <to>")
		w := loadWallet(*keyPath, password)
		tx, err := w.TransferCard(*chainID, parseU64(args[0]), args[1], c.nonce(w.PubKey()), *fee)
		if err != nil {
			log.Fatal(err)
		}
		c.send(tx)

	case "resolve-battle":
		// The outcome file is the ResolveBattlePayload without Attestation;
		// this wallet signs the digest, so it must hold the authority key.
		requireArgs(args, 1, "resolve-battle <outcome.json>")
		data, err := os.ReadFile(args[0])
		if err != nil {
			log.Fatal(err)
		}
		var p core.ResolveBattlePayload
		if err := json.Unmarshal(data, &p); err != nil {
			log.Fatalf("parse outcome file: %v", err)
		}
		w := loadWallet(*keyPath, password)
		p.Attestation = w.AttestOutcome(*chainID, &p)
		tx, err := w.ResolveBattle(*chainID, p, c.nonce(w.PubKey()), *fee)
		if err != nil {
			log.Fatal(err)
		}
		c.send(tx)

	default:
		log.Fatalf("unknown command %q", cmd)
	}
}

func requireArgs(args []string, n int, usage string) {
	if len(args) != n {
		log.Fatalf("usage: %s", usage)
	}
}

func parseU64(s string) uint64 {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		log.Fatalf("invalid number %q: %v", s, err)
	}
	return v
}

func loadWallet(path, password string) *wallet.Wallet {
	priv, err := wallet.LoadKey(path, password)
	if err != nil {
		log.Fatalf("load key %s: %v", path, err)
	}
	return wallet.New(priv)
}

type client struct {
	url   string
	token string
}

// call performs one JSON-RPC request and returns the raw result.
func (c *client) call(method string, params any) (json.RawMessage, error) {
	rawParams, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(rpc.Request{JSONRPC: "2.0", ID: 1, Method: method, Params: rawParams})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out struct {
		Result json.RawMessage `json:"result"`
		Error  *rpc.Error      `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if out.Error != nil {
		return nil, fmt.Errorf("rpc error %d: %s", out.Error.Code, out.Error.Message)
	}
	return out.Result, nil
}

// query calls method and pretty-prints the result.
func (c *client) query(method string, params any) {
	result, err := c.call(method, params)
	if err != nil {
		log.Fatal(err)
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, result, "", "  "); err != nil {
		fmt.Println(string(result))
		return
	}
	fmt.Println(pretty.String())
}

// nonce fetches the account's current nonce for transaction building.
func (c *client) nonce(pubkey string) uint64 {
	result, err := c.call("getBalance", map[string]any{"address": pubkey})
	if err != nil {
		log.Fatal(err)
	}
	var acc struct {
		Nonce uint64 `json:"nonce"`
	}
	if err := json.Unmarshal(result, &acc); err != nil {
		log.Fatal(err)
	}
	return acc.Nonce
}

// send submits a signed transaction and prints its ID.
func (c *client) send(tx *core.Transaction) {
	result, err := c.call("sendTx", tx)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(string(result))
}
