// Command node runs an ArenaChain validator: block production, P2P gossip
// and sync, and the JSON-RPC/WebSocket API.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/karuha/arenachain/config"
	"github.com/karuha/arenachain/consensus"
	"github.com/karuha/arenachain/core"
	"github.com/karuha/arenachain/crypto/certgen"
	"github.com/karuha/arenachain/events"
	"github.com/karuha/arenachain/indexer"
	"github.com/karuha/arenachain/network"
	"github.com/karuha/arenachain/rpc"
	"github.com/karuha/arenachain/storage"
	"github.com/karuha/arenachain/vm"
	"github.com/karuha/arenachain/wallet"

	// Transaction modules self-register through init().
	_ "github.com/karuha/arenachain/vm/modules/arena"
	_ "github.com/karuha/arenachain/vm/modules/card"
	_ "github.com/karuha/arenachain/vm/modules/economy"
	_ "github.com/karuha/arenachain/vm/modules/market"
)

const blockInterval = 2 * time.Second

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to config file")
	keyPath := flag.String("key", "validator.key", "path to keystore file")
	genKey := flag.Bool("genkey", false, "generate a new validator key and exit")
	genCerts := flag.String("gencerts", "", "generate CA + node TLS certs into the given directory and exit")
	flag.Parse()

	// The password comes from the environment; CLI flags leak through ps.
	password := os.Getenv("ARENA_PASSWORD")
	if password == "" {
		log.Println("WARNING: ARENA_PASSWORD not set, keystore will use an empty password")
	}

	switch {
	case *genKey:
		if err := generateKey(*keyPath, password); err != nil {
			log.Fatal(err)
		}
	case *genCerts != "":
		if err := generateCerts(*cfgPath, *genCerts); err != nil {
			log.Fatal(err)
		}
	default:
		if err := run(*cfgPath, *keyPath, password); err != nil {
			log.Fatal(err)
		}
	}
}

func generateKey(keyPath, password string) error {
	w, err := wallet.Generate()
	if err != nil {
		return err
	}
	if err := wallet.SaveKey(keyPath, password, w.PrivKey()); err != nil {
		return err
	}
	fmt.Printf("Generated key. Public key (validator address): %s\n", w.PubKey())
	fmt.Printf("Saved to: %s\n", keyPath)
	return nil
}

func generateCerts(cfgPath, dir string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := certgen.GenerateAll(dir, cfg.NodeID, nil); err != nil {
		return fmt.Errorf("gencerts: %w", err)
	}
	fmt.Printf("Certificates generated in %s for node %q\n", dir, cfg.NodeID)
	return nil
}

func run(cfgPath, keyPath, password string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	chainID := cfg.Genesis.ChainID

	privKey, err := wallet.LoadKey(keyPath, password)
	if err != nil {
		return fmt.Errorf("load key: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("mkdir data dir: %w", err)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "chain"))
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	// Block store and state share the DB under distinct key prefixes.
	state := storage.NewStateDB(db)
	bc := core.NewBlockchain(storage.NewLevelBlockStore(db))
	if err := bc.Init(); err != nil {
		return fmt.Errorf("blockchain init: %w", err)
	}

	if bc.Tip() == nil {
		genesis, err := config.CreateGenesisBlock(cfg, state, privKey)
		if err != nil {
			return fmt.Errorf("genesis: %w", err)
		}
		if err := bc.AddBlock(genesis); err != nil {
			return fmt.Errorf("add genesis: %w", err)
		}
		log.Printf("Genesis block committed: %s (chain %s)", genesis.Hash, chainID)
	}

	emitter := events.NewEmitter()
	idx := indexer.New(db, emitter)
	mempool := core.NewMempool()
	exec := vm.NewExecutor(chainID, state, emitter)
	poa := consensus.New(cfg, bc, state, mempool, exec, emitter, privKey)

	tlsCfg, err := config.LoadTLSConfig(cfg.TLS)
	if err != nil {
		return fmt.Errorf("tls: %w", err)
	}
	if tlsCfg != nil {
		log.Println("mTLS enabled for P2P")
	}

	p2pAddr := fmt.Sprintf(":%d", cfg.P2PPort)
	node := network.NewNode(cfg.NodeID, chainID, p2pAddr, mempool, tlsCfg)
	syncer := network.NewSyncer(node, bc, poa, exec, state)
	if err := node.Start(); err != nil {
		return fmt.Errorf("p2p start: %w", err)
	}
	defer node.Stop()
	log.Printf("P2P listening on %s", p2pAddr)

	connectSeeds(cfg.SeedPeers, node, syncer)

	// Push each block we produce to peers as soon as consensus commits it.
	emitter.Subscribe(events.EventBlockCommit, func(ev events.Event) {
		hash, _ := ev.Data["hash"].(string)
		if hash == "" {
			return
		}
		if b, err := bc.GetBlock(hash); err == nil {
			node.BroadcastBlock(b)
		}
	})

	rpcAddr := fmt.Sprintf(":%d", cfg.RPCPort)
	stream := rpc.NewEventStream(emitter)
	rpcServer := rpc.NewServer(rpcAddr, rpc.NewHandler(bc, mempool, state, idx, chainID), stream, cfg.RPCAuthToken)
	if err := rpcServer.Start(); err != nil {
		return fmt.Errorf("rpc start: %w", err)
	}
	defer rpcServer.Stop()
	log.Printf("RPC listening on %s (events at ws://%s/events)", rpcAddr, rpcAddr)
	if cfg.RPCAuthToken != "" {
		log.Println("RPC Bearer token authentication enabled")
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		poa.Run(blockInterval, done)
	}()
	log.Printf("Consensus running (validator: %s)", privKey.Public().Hex())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("Shutting down...")

	// Stop producing blocks before the deferred teardown of RPC, P2P and
	// the database (LIFO).
	close(done)
	wg.Wait()
	log.Println("Shutdown complete.")
	return nil
}

// connectSeeds dials each "id@host:port" seed and kicks off an initial
// block sync with those that answer.
func connectSeeds(seeds []string, node *network.Node, syncer *network.Syncer) {
	for _, seed := range seeds {
		id, addr, ok := strings.Cut(seed, "@")
		if !ok {
			log.Printf("seed peer %q: want id@host:port", seed)
			continue
		}
		if err := node.AddPeer(id, addr); err != nil {
			log.Printf("seed peer %s (%s): %v", id, addr, err)
			continue
		}
		if peer := node.Peer(id); peer != nil {
			syncer.SyncWithPeer(peer)
		}
		log.Printf("Connected to seed peer %s (%s)", id, addr)
	}
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Printf("Config file not found at %s, using defaults.", path)
			return config.DefaultConfig(), nil
		}
		return nil, err
	}
	return cfg, nil
}
