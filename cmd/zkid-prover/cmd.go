package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/aragon/zkid-node/chain"
	"github.com/aragon/zkid-node/client"
	"github.com/aragon/zkid-node/idproof"
	"github.com/aragon/zkid-node/types"
	flag "github.com/spf13/pflag"
	"go.vocdoni.io/dvote/log"
)

const usage = `usage: zkid-prover <command> [flags]

commands:
  devnode   generate an identity and serve a local chain node holding it
  prove     redeem a challenge of the gateway with a proof of the identity
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "devnode":
		err = devNode(os.Args[2:])
	case "prove":
		err = prove(os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

// devNode serves the chain rpc methods over http, backed by an in memory
// chain that holds a freshly generated identity
func devNode(args []string) error {
	fs := flag.NewFlagSet("devnode", flag.ExitOnError)
	addr := fs.StringP("addr", "a", "127.0.0.1:20000", "listen address of the chain node")
	idPath := fs.StringP("identity", "i", "identity.json",
		"file where the generated identity is written")
	attrsPath := fs.String("attributes", "",
		"JSON file with the attribute values of the identity, by tag")
	logLevel := fs.StringP("logLevel", "l", "info", "log level (debug, info, warn, error)")
	fs.SortFlags = false
	if err := fs.Parse(args); err != nil {
		return err
	}
	log.Init(*logLevel, "stdout")

	values := types.DefaultAttributes
	if *attrsPath != "" {
		b, err := os.ReadFile(*attrsPath)
		if err != nil {
			return err
		}
		values = nil
		if err := json.Unmarshal(b, &values); err != nil {
			return fmt.Errorf("attributes %s: %w", *attrsPath, err)
		}
	}

	ck, err := idproof.NewCommitmentKey()
	if err != nil {
		return err
	}
	gc := &idproof.GlobalContext{
		GenesisString:        fmt.Sprintf("zkid-node devnode %d", time.Now().Unix()),
		OnChainCommitmentKey: ck,
	}
	id, err := types.NewIdentity(values)
	if err != nil {
		return err
	}
	info, err := id.AccountInfo(gc)
	if err != nil {
		return err
	}
	backend := chain.NewTestClient(gc)
	backend.SetAccount(info)

	b, err := json.MarshalIndent(id, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(*idPath, b, 0600); err != nil {
		return err
	}
	log.Infof("identity of account %s written to %s", id.Address, *idPath)

	srv, err := chain.NewServer(backend)
	if err != nil {
		return err
	}
	defer srv.Stop()
	log.Infof("chain node listening at %s", *addr)
	return http.ListenAndServe(*addr, srv) //nolint:gosec
}

// prove requests a challenge for the account of the identity, proves the
// gateway statement for it and prints the granted token
func prove(args []string) error {
	fs := flag.NewFlagSet("prove", flag.ExitOnError)
	gatewayURL := fs.StringP("gateway", "g", "http://127.0.0.1:4800", "gateway url")
	nodeURL := fs.StringP("node", "n", "http://127.0.0.1:20000", "chain node endpoint")
	idPath := fs.StringP("identity", "i", "identity.json", "identity file")
	logLevel := fs.StringP("logLevel", "l", "info", "log level (debug, info, warn, error)")
	fs.SortFlags = false
	if err := fs.Parse(args); err != nil {
		return err
	}
	log.Init(*logLevel, "stdout")

	b, err := os.ReadFile(*idPath)
	if err != nil {
		return err
	}
	var id types.Identity
	if err := json.Unmarshal(b, &id); err != nil {
		return fmt.Errorf("identity %s: %w", *idPath, err)
	}

	chainC, err := chain.New(chain.Options{NodeURL: *nodeURL, Timeout: 10 * time.Second})
	if err != nil {
		return err
	}
	defer chainC.Close()
	gc, err := chainC.CryptographicParameters(context.Background(), chain.LastFinal)
	if err != nil {
		return err
	}

	gw := client.New(*gatewayURL)
	statement, err := gw.Statement()
	if err != nil {
		return err
	}
	ch, err := gw.Challenge(id.Address)
	if err != nil {
		return err
	}
	log.Debugf("challenge %s for account %s", ch, id.Address)
	proof, err := id.Prove(gc, statement, ch)
	if err != nil {
		return err
	}
	token, err := gw.Prove(proof)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
