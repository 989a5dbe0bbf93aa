package main

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/aragon/zkid-node/api"
	"github.com/aragon/zkid-node/chain"
	"github.com/aragon/zkid-node/db"
	"github.com/aragon/zkid-node/gateway"
	"github.com/aragon/zkid-node/idproof"
	_ "github.com/mattn/go-sqlite3"
	flag "github.com/spf13/pflag"
	"go.vocdoni.io/dvote/log"
)

// Config contains the main configuration parameters of the node
type Config struct {
	dir, logLevel, addr    string
	statementPath, distDir string
	nodeURL                string
	nodeTimeout            time.Duration
	challengeTTL, tokenTTL time.Duration
	sweepInterval          time.Duration
	audit                  bool
}

func main() {
	config := Config{}

	home, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "debug"
	}
	flag.StringVarP(&config.dir, "dir", "d", filepath.Join(home, ".zkid-node"),
		"storage data directory")
	flag.StringVarP(&config.logLevel, "logLevel", "l", logLevel,
		"log level (debug, info, warn, error)")
	flag.StringVarP(&config.addr, "addr", "a", "127.0.0.1:4800", "listen address of the HTTP API")
	flag.StringVarP(&config.statementPath, "statement", "s", "./config/statement.json",
		"path of the JSON encoded policy statement")
	flag.StringVar(&config.distDir, "dist", "../dist", "directory of the static front end")
	flag.StringVar(&config.nodeURL, "node", "http://localhost:20000",
		"JSON-RPC endpoint of a chain node serving chain_getCryptographicParameters"+
			" and chain_getAccountInfo (not a Concordium gRPC node)")
	flag.DurationVar(&config.nodeTimeout, "nodeTimeout", 10*time.Second,
		"timeout of the requests to the chain node")
	flag.DurationVar(&config.challengeTTL, "challengeTTL", 0,
		"lifetime of the challenges, 0 never expires")
	flag.DurationVar(&config.tokenTTL, "tokenTTL", 0, "lifetime of the tokens, 0 never expires")
	flag.DurationVar(&config.sweepInterval, "sweepInterval", time.Minute,
		"interval between the removals of expired challenges and tokens")
	flag.BoolVar(&config.audit, "audit", true, "store the outcome of the proof submissions")

	flag.CommandLine.SortFlags = false
	flag.Parse()

	log.Init(config.logLevel, "stdout")

	log.Debugf("Config: %#v\n", config)

	statement, err := idproof.LoadStatement(config.statementPath)
	if err != nil {
		log.Fatal(err)
	}

	var sqlite *db.SQLite
	if config.audit {
		if err := os.MkdirAll(config.dir, 0750); err != nil {
			log.Fatal(err)
		}
		sqlDB, err := sql.Open("sqlite3", filepath.Join(config.dir, "zkid.sqlite3"))
		if err != nil {
			log.Fatal(err)
		}
		defer sqlDB.Close() //nolint:errcheck
		sqlite = db.NewSQLite(sqlDB)
		if err := sqlite.Migrate(); err != nil {
			log.Fatal(err)
		}
	}

	chainC, err := chain.New(chain.Options{
		NodeURL: config.nodeURL,
		Timeout: config.nodeTimeout,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer chainC.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.nodeTimeout)
	gw, err := gateway.New(ctx, gateway.Options{
		Statement:    statement,
		Chain:        chainC,
		SQLite:       sqlite,
		ChallengeTTL: config.challengeTTL,
		TokenTTL:     config.tokenTTL,
	})
	cancel()
	if err != nil {
		log.Fatal(err)
	}
	log.Infof("connected to chain %q", gw.GlobalContext().GenesisString)

	gw.StartSweeper(context.Background(), config.sweepInterval)

	a, err := api.New(api.Options{
		Gateway: gw,
		DistDir: config.distDir,
	})
	if err != nil {
		log.Fatal(err)
	}
	err = a.Serve(config.addr)
	if err != nil {
		log.Fatal(err)
	}
}
