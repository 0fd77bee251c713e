// Command cavesd starts a Crystal Caves game server.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/MatrixLabsTech/crystal-caves-zk/config"
	"github.com/MatrixLabsTech/crystal-caves-zk/crypto"
	"github.com/MatrixLabsTech/crystal-caves-zk/engine"
	"github.com/MatrixLabsTech/crystal-caves-zk/events"
	"github.com/MatrixLabsTech/crystal-caves-zk/indexer"
	"github.com/MatrixLabsTech/crystal-caves-zk/rpc"
	"github.com/MatrixLabsTech/crystal-caves-zk/storage"
)

func main() {
	cfgPath := flag.String("config", "config.json", "path to config file")
	genKey := flag.Bool("genkey", false, "generate a new admission key pair and exit")
	flag.Parse()

	// ---- generate admission key mode ----
	if *genKey {
		priv, pub, err := crypto.GenerateKeyPair()
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Admission public key:  %s\n", pub.Hex())
		fmt.Printf("Admission private key: %s\n", priv.Hex())
		fmt.Printf("Operator address:      %s\n", pub.Address())
		return
	}

	// ---- load config ----
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- open DB ----
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("mkdir data dir: %v", err)
	}
	db, err := storage.NewLevelDB(cfg.DataDir + "/game")
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	// ---- wire components ----
	emitter := events.NewEmitter()
	journal, err := indexer.New(db, emitter)
	if err != nil {
		log.Fatalf("journal: %v", err)
	}
	store := storage.NewGameStore(db)
	eng := engine.New(store, emitter, engine.StdEnv(), engine.NopVault{}, cfg.Operator)
	if err := eng.Initialize(cfg.Operator, &cfg.Game); err != nil {
		log.Fatalf("initialize: %v", err)
	}
	log.Printf("[cavesd] game %q initialized, journal at seq %d", cfg.Game.General.GameID, journal.Len())

	// ---- RPC server ----
	handler := rpc.NewHandler(eng, journal)
	server := rpc.NewServer(fmt.Sprintf(":%d", cfg.RPCPort), handler, cfg.OperatorToken)
	if err := server.Start(); err != nil {
		log.Fatalf("rpc: %v", err)
	}
	log.Printf("[cavesd] rpc listening on :%d", cfg.RPCPort)

	// ---- wait for shutdown ----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("[cavesd] shutting down")
	if err := server.Stop(); err != nil {
		log.Printf("[cavesd] rpc stop: %v", err)
	}
}

// loadConfig reads the config file, creating it with defaults on first run.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if os.IsNotExist(err) {
		cfg = config.DefaultConfig()
		if err := config.Save(cfg, path); err != nil {
			return nil, err
		}
		log.Printf("[cavesd] wrote default config to %s", path)
		return cfg, nil
	}
	return cfg, err
}
