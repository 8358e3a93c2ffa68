package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"garrison.ai/internal/config"
	"garrison.ai/internal/persistence/garrisondb"
	"garrison.ai/internal/sim/garrison"
)

type rowLoader interface {
	Load(ctx context.Context, ownerID uint64) (garrison.Rows, error)
}

func garrisonCmd(args []string) {
	env, err := config.LoadServer()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fs := flag.NewFlagSet("garrison", flag.ExitOnError)
	dataDir := fs.String("data", env.DataDir, "runtime data directory")
	driver := fs.String("db_driver", env.DBDriver, "sqlite or postgres")
	dsn := fs.String("db_dsn", env.DBDSN, "store dsn (default: <data>/garrison.sqlite)")
	player := fs.Uint64("player", 0, "player id")
	_ = fs.Parse(args)

	if *player == 0 {
		fmt.Fprintln(os.Stderr, "missing -player")
		os.Exit(2)
	}
	if *dsn == "" && *driver == garrisondb.DriverSQLite {
		*dsn = filepath.Join(*dataDir, "garrison.sqlite")
	}
	store, err := garrisondb.Open(*driver, *dsn)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := dumpGarrison(ctx, os.Stdout, store, *player); err != nil {
		fmt.Fprintln(os.Stderr, "garrison:", err)
		os.Exit(1)
	}
}

func dumpGarrison(ctx context.Context, w io.Writer, store rowLoader, player uint64) error {
	rows, err := store.Load(ctx, player)
	if err != nil {
		return err
	}
	if rows.Garrison == nil {
		return fmt.Errorf("player %d has no garrison", player)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}
