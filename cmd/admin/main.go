package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"voxellands.ai/internal/land"
	"voxellands.ai/internal/migrate"
	"voxellands.ai/internal/persistence/backup"
	"voxellands.ai/internal/persistence/kvstore"
	"voxellands.ai/internal/registry"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "backup":
			backupCmd(os.Args[2:])
			return
		case "restore":
			restoreCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "flush":
			flushCmd(os.Args[2:])
			return
		case "list":
			listCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	dbPath := fs.String("db", "./data/lands.db", "store path")
	owner := fs.String("owner", "", "only claims owned by this identity")
	_ = fs.Parse(args)

	store, err := kvstore.OpenSQLite(*dbPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer store.Close()

	chain, err := migrate.NewClaimChain()
	if err != nil {
		fmt.Fprintln(os.Stderr, "migrator:", err)
		os.Exit(1)
	}
	// The registry is opened without a flush loop and closed before the store, so
	// migrated records are written back on exit.
	reg, err := registry.Open(registry.Options{Store: store, ClaimMigrator: chain})
	if err != nil {
		fmt.Fprintln(os.Stderr, "open registry:", err)
		os.Exit(1)
	}
	defer reg.Close()

	want := strings.TrimSpace(*owner)
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDIM\tTYPE\tDEPTH\tMIN\tMAX\tOWNER\tNAME")
	for _, c := range reg.GetClaims(func(c *land.Claim) bool {
		return want == "" || c.Owner().String() == want || c.LegacyOwner() == want
	}) {
		rec := c.Record()
		o := rec.Owner
		if o == "" {
			o = "legacy:" + rec.LegacyOwner
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%d\t%v\t%v\t%s\t%s\n",
			rec.ID, rec.Dimension, c.Type(), c.CachedDepth(), rec.Min, rec.Max, o, rec.Name)
	}
	_ = tw.Flush()
}

func backupCmd(args []string) {
	fs := flag.NewFlagSet("backup", flag.ExitOnError)
	dbPath := fs.String("db", "./data/lands.db", "store path")
	outDir := fs.String("out", "./data/backups", "backup directory")
	_ = fs.Parse(args)

	store, err := kvstore.OpenSQLite(*dbPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, "mkdir:", err)
		os.Exit(1)
	}
	version := registry.StoreVersion
	if v, ok, err := store.Get("__version__"); err == nil && ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			version = n
		}
	}
	path := filepath.Join(*outDir, backup.FileName(version, time.Now()))
	h, err := backup.Dump(path, store, version, "manual")
	if err != nil {
		fmt.Fprintln(os.Stderr, "backup:", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s (%d entries, v%d)\n", path, h.Entries, h.Version)
}

func restoreCmd(args []string) {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	dbPath := fs.String("db", "", "store path to create (must not exist)")
	in := fs.String("in", "", "backup file")
	_ = fs.Parse(args)

	if strings.TrimSpace(*dbPath) == "" || strings.TrimSpace(*in) == "" {
		fmt.Fprintln(os.Stderr, "missing -db or -in")
		os.Exit(2)
	}
	if _, err := os.Stat(*dbPath); err == nil {
		fmt.Fprintln(os.Stderr, "refusing to overwrite", *dbPath)
		os.Exit(2)
	}
	store, err := kvstore.OpenSQLite(*dbPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer store.Close()

	h, err := backup.Restore(*in, store)
	if err != nil {
		fmt.Fprintln(os.Stderr, "restore:", err)
		os.Exit(1)
	}
	fmt.Printf("restored %d entries (v%d, %s) into %s\n", h.Entries, h.Version, h.CreatedAt, *dbPath)
}
