// dbengine-demo is an interactive SQL REPL that exercises the whole
// engine stack end to end — factory → pool → execute/stream — as a
// thin readline-driven CLI over the database engine abstraction layer.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/chzyer/readline"

	"github.com/vectorsql/dbengine/internal/dbconfig"
	"github.com/vectorsql/dbengine/internal/engine"
	"github.com/vectorsql/dbengine/internal/model"
	"github.com/vectorsql/dbengine/internal/obslog"
	"github.com/vectorsql/dbengine/internal/pool"
	"github.com/vectorsql/dbengine/internal/resilience"
)

const version = "0.1.0"

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version")
		dbPath      = flag.String("db", "", "Database path (default: in-memory)")
		debug       = flag.Bool("debug", false, "Enable debug logging")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `dbengine-demo v%s - engine abstraction layer REPL

Usage: dbengine-demo [options]

Options:
`, version)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  dbengine-demo                  Start an in-memory session
  dbengine-demo --db ./data.db   Use a file-backed database
  dbengine-demo --debug          Enable structured debug logging

Meta-commands:
  .tables          list tables in the current database
  .stats           print pool statistics
  .stream <sql>    run a query through the single-yield stream path
  .quit            exit
`)
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("dbengine-demo v%s\n", version)
		return
	}

	if *debug {
		obslog.Init(obslog.Config{Level: "debug"})
	} else {
		obslog.Init(obslog.Config{Level: "warn"})
	}

	if err := run(*dbPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// repl bundles the pieces a session of meta-commands dispatches
// against: the engine facade (for tables/stream) and the
// retry-wrapped pool (for ordinary query execution).
type repl struct {
	ctx      context.Context
	eng      engine.Engine
	basePool *pool.Pool
	pool     *resilience.RetryPool
}

func run(dbPath string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	factory := engine.NewFactory(nil) // no native host in this demo: in-process only
	cfg := factory.DetectOptimal(dbPath)

	eng, err := factory.Create(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	defer factory.DestroyAll(context.Background())

	poolCfg := dbconfig.TunedDefaults(cfg.Kind)
	basePool, err := eng.CreatePool(poolCfg)
	if err != nil {
		return fmt.Errorf("create pool: %w", err)
	}
	defer basePool.Close()

	timeoutPool := resilience.NewTimeoutPool(basePool, 5*time.Second)
	retryPool := resilience.NewRetryPool(timeoutPool, resilience.RetryConfig{
		MaxRetries:        3,
		InitialDelay:      10 * time.Millisecond,
		BackoffMultiplier: 2,
		MaxDelay:          200 * time.Millisecond,
	})

	r := &repl{ctx: ctx, eng: eng, basePool: basePool, pool: retryPool}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[36mdbengine>\033[0m ",
		HistoryFile:     ".dbengine_history",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer rl.Close()

	fmt.Printf("dbengine-demo v%s — %s engine, %s\n", version, cfg.Kind, cfg.Persistence)
	fmt.Println("Type SQL directly, or a meta-command (.tables, .stats, .stream <sql>, .quit)")

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if err := r.dispatch(line); err != nil {
			fmt.Printf("\033[31mError: %v\033[0m\n", err)
		}
	}
}

func (r *repl) dispatch(line string) error {
	switch {
	case line == ".quit":
		os.Exit(0)
		return nil
	case line == ".tables":
		return r.printTables()
	case line == ".stats":
		return r.printStats()
	case strings.HasPrefix(line, ".stream "):
		return r.streamQuery(strings.TrimPrefix(line, ".stream "))
	default:
		return r.runQuery(line)
	}
}

func (r *repl) runQuery(sql string) error {
	conn, err := r.pool.Acquire(r.ctx)
	if err != nil {
		return err
	}
	defer r.pool.Release(conn)

	result, err := conn.Execute(r.ctx, sql, nil)
	if err != nil {
		return err
	}
	printRows(result.Columns, result.Rows, result.RowCount)
	return nil
}

func (r *repl) streamQuery(sql string) error {
	conn, err := r.eng.CreateConnection(r.ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	seq, err := conn.Stream(r.ctx, sql, nil)
	if err != nil {
		return err
	}
	defer seq.Close()

	var total int64
	for {
		rec, ok, err := seq.Next(r.ctx)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		total += rec.NumRows()
		fmt.Printf("batch: %d rows, %d cols\n", rec.NumRows(), rec.NumCols())
	}
	fmt.Printf("stream done, %d total rows\n", total)
	return nil
}

func (r *repl) printTables() error {
	dbs, err := r.eng.GetDatabases(r.ctx)
	if err != nil {
		return err
	}
	for _, db := range dbs {
		tables, err := r.eng.GetTables(r.ctx, db)
		if err != nil {
			return err
		}
		for _, t := range tables {
			fmt.Printf("%s.%s (%s)\n", db, t.Name, t.Kind)
		}
	}
	return nil
}

func (r *repl) printStats() error {
	s := r.basePool.Stats()
	fmt.Printf("created=%d available=%d waiting=%d acquired=%d totalCreated=%d totalDestroyed=%d totalAcquireTimeouts=%d\n",
		s.Created, s.Available, s.Waiting, s.Acquired, s.TotalCreated, s.TotalDestroyed, s.TotalAcquireTimeouts)
	return nil
}

func printRows(columns []model.ColumnInfo, rows []map[string]any, rowCount int64) {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}
	fmt.Println(strings.Join(names, " | "))

	for _, row := range rows {
		vals := make([]string, len(columns))
		for i, c := range columns {
			vals[i] = fmt.Sprintf("%v", row[c.Name])
		}
		fmt.Println(strings.Join(vals, " | "))
	}
	fmt.Printf("(%d rows)\n", rowCount)
}
