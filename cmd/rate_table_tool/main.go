// Command rate_table_tool inspects and edits SOA rate table databases.
//
// A database is a pair of files, NAME.ndx and NAME.dat, given either as the
// positional argument or with --file. Exactly one operation is performed per
// run, except that --delete may follow --extract.
package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"

	"github.com/let-me-illustrate/lmi-sub002/core/ratetable"
	"github.com/let-me-illustrate/lmi-sub002/internal/config"
	"github.com/let-me-illustrate/lmi-sub002/internal/logging"
	"github.com/let-me-illustrate/lmi-sub002/internal/tool"
)

const (
	name    = "rate_table_tool"
	version = "1.0.0"
)

// CLI defines the command-line interface. Table numbers of 0 mean the flag
// was not given.
type CLI struct {
	Path string `arg:"" optional:"" help:"Database path, with or without the .ndx/.dat extension." type:"path"`
	File string `short:"f" help:"Database path (alternative to the positional argument)." type:"path"`

	Crc          bool   `help:"Print number, CRC (decimal and hex) and name of every table."`
	List         bool   `short:"l" help:"Print number and name of every table, sorted by number."`
	Merge        string `short:"m" placeholder:"PATH" help:"Merge a .rates file, a directory of them or a tar bundle into the database, creating it if needed." type:"path"`
	Extract      uint32 `short:"e" placeholder:"N" help:"Write table N to NNNNN.rates."`
	ExtractAll   bool   `short:"x" help:"Write every table to its own NNNNN.rates file."`
	Delete       uint32 `short:"d" placeholder:"N" help:"Delete table N (may follow --extract)."`
	Rename       string `short:"r" placeholder:"FILE" help:"Rename tables using a file of \"number name\" lines." type:"existingfile"`
	Verify       bool   `short:"v" help:"Check that every table survives text and database round trips."`
	Digest       bool   `help:"Print the BLAKE3 fingerprint of every table."`
	ExportSqlite string `name:"export-sqlite" placeholder:"PATH" help:"Export all tables to a new SQLite database." type:"path"`

	Xz        bool   `help:"Compress extracted tables with xz (.rates.xz)."`
	Bundle    string `placeholder:"PATH" help:"With --extract-all, write a .tar.xz or .tar.gz bundle instead of files." type:"path"`
	OutputDir string `placeholder:"DIR" help:"Directory for extracted tables." type:"path"`

	Config   string           `short:"c" help:"Configuration file (default: ./rate_table_tool.yaml if present)." type:"path"`
	LogLevel string           `help:"Log level: debug, info, warn or error."`
	Version  kong.VersionFlag `help:"Print version information and quit."`
}

// operations returns the number of operations selected, not counting
// --delete.
func (c *CLI) operations() int {
	n := 0
	for _, set := range []bool{
		c.Crc, c.List, c.Merge != "", c.Extract != 0, c.ExtractAll,
		c.Rename != "", c.Verify, c.Digest, c.ExportSqlite != "",
	} {
		if set {
			n++
		}
	}
	return n
}

func (c *CLI) check() error {
	ops := c.operations()
	switch {
	case c.Delete != 0 && ops > 0 && (ops != 1 || c.Extract == 0):
		return errors.New("--delete can only be combined with --extract")
	case c.Delete == 0 && ops == 0:
		return errors.New("no operation specified")
	case ops > 1:
		return errors.New("only one operation may be specified")
	}

	if (c.Xz || c.Bundle != "" || c.OutputDir != "") && c.Extract == 0 && !c.ExtractAll {
		return errors.New("--xz, --bundle and --output-dir require --extract or --extract-all")
	}
	if c.Bundle != "" && !c.ExtractAll {
		return errors.New("--bundle requires --extract-all")
	}
	if c.Bundle != "" && c.Xz {
		return errors.New("--xz cannot be combined with --bundle")
	}
	if c.Path != "" && c.File != "" && c.Path != c.File {
		return fmt.Errorf("conflicting database paths %q and %q", c.File, c.Path)
	}
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	cfg, err := config.Load(config.DefaultFile)
	if err != nil {
		// The default file is optional.
		cfg = config.DefaultConfig()
	}
	return cfg, nil
}

// run parses args, performs the requested operation and returns the exit
// status.
func run(args []string, stdout, stderr io.Writer) (status int) {
	var cli CLI
	exited := false
	parser, err := kong.New(&cli,
		kong.Name(name),
		kong.Description("Inspect and edit SOA rate table databases"),
		kong.UsageOnError(),
		kong.Writers(stdout, stderr),
		kong.Exit(func(code int) {
			exited = true
			status = code
		}),
		kong.Vars{"version": name + " " + version},
	)
	if err != nil {
		panic(err)
	}

	_, err = parser.Parse(args)
	if exited {
		return status
	}
	if err == nil {
		err = cli.check()
	}
	if err != nil {
		parser.FatalIfErrorf(err)
		return cmp.Or(status, 1)
	}

	cfg, err := loadConfig(cli.Config)
	if err != nil {
		fmt.Fprintf(stderr, "%s: error: %v\n", name, err)
		return 1
	}
	logging.SetOutput(stderr)
	logging.InitLogger(
		logging.ParseLevel(cmp.Or(cli.LogLevel, cfg.Log.Level)),
		logging.ParseFormat(cfg.Log.Format),
	)

	path := cmp.Or(cli.File, cli.Path, cfg.Database)
	if path == "" {
		fmt.Fprintf(stderr, "%s: error: database path must be specified\n", name)
		return 1
	}

	failures, err := cli.dispatch(logging.WithDatabase(context.Background(), path), cfg, path, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "%s: error: %v\n", name, err)
		return 1
	}
	return min(failures, 255)
}

// dispatch performs the selected operation on the database at path. It
// returns the number of verification failures.
func (c *CLI) dispatch(ctx context.Context, cfg *config.Config, path string, stdout io.Writer) (int, error) {
	if c.Merge != "" {
		db, err := tool.OpenOrCreate(path)
		if err != nil {
			return 0, err
		}
		defer db.Close()
		n, err := tool.Merge(db, c.Merge)
		if err != nil {
			return 0, err
		}
		logging.InfoContext(ctx, "merged tables", "count", n, "source", c.Merge)
		return 0, save(ctx, db, path)
	}

	db, err := ratetable.Open(path)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	opts := tool.ExtractOptions{
		Dir:      cmp.Or(c.OutputDir, cfg.Extract.Dir),
		Compress: c.Xz || cfg.Extract.Compress,
		Bundle:   c.Bundle,
	}

	switch {
	case c.Crc:
		return 0, tool.CRC(stdout, db)
	case c.List:
		return 0, tool.List(stdout, db)
	case c.ExtractAll:
		return 0, tool.ExtractAll(db, opts)
	case c.Rename != "":
		if err := tool.RenameTables(db, c.Rename); err != nil {
			return 0, err
		}
		return 0, save(ctx, db, path)
	case c.Verify:
		return tool.Verify(stdout, db)
	case c.Digest:
		return 0, tool.Digest(stdout, db)
	case c.ExportSqlite != "":
		return 0, tool.ExportSQLite(ctx, db, c.ExportSqlite)
	}

	if c.Extract != 0 {
		if err := tool.Extract(db, ratetable.Number(c.Extract), opts); err != nil {
			return 0, err
		}
	}
	if c.Delete != 0 {
		if err := db.DeleteTable(ratetable.Number(c.Delete)); err != nil {
			return 0, err
		}
		return 0, save(ctx, db, path)
	}
	return 0, nil
}

func save(ctx context.Context, db *ratetable.Database, path string) error {
	if err := db.Save(path); err != nil {
		return err
	}
	logging.InfoContext(ctx, "database saved", "tables", db.TablesCount())
	return nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
