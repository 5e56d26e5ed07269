package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Rishet11/LeadPilot/internal/bootstrap"
)

// connectDB opens the database connection shared by most admin commands.
func connectDB(cmdCtx *commandContext) (*sql.DB, error) {
	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	return db, nil
}

type componentStatus struct {
	Name   string
	OK     bool
	Detail string
}

func runInfraStatus(cmdCtx *commandContext, _ []string) error {
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, 30*time.Second)
	defer cancel()

	statuses := []componentStatus{
		checkPostgres(ctx, cmdCtx),
		checkRedis(ctx, cmdCtx),
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(w, "COMPONENT\tSTATUS\tDETAIL"); err != nil {
		return fmt.Errorf("write infra header: %w", err)
	}
	failed := 0
	for _, st := range statuses {
		state := "ok"
		if !st.OK {
			state = "unreachable"
			failed++
		}
		if err := writef(w, "%s\t%s\t%s\n", st.Name, state, st.Detail); err != nil {
			return fmt.Errorf("write infra row: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush infra output: %w", err)
	}

	if failed > 0 {
		return fmt.Errorf("%d component(s) unreachable", failed)
	}
	return nil
}

func checkPostgres(ctx context.Context, cmdCtx *commandContext) componentStatus {
	start := time.Now()
	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return componentStatus{Name: "postgres", Detail: err.Error()}
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()

	var version string
	if err := db.QueryRowContext(ctx, "SELECT version()").Scan(&version); err != nil {
		return componentStatus{Name: "postgres", Detail: err.Error()}
	}
	// The full banner includes compiler and build details; the leading
	// product/version pair is enough here.
	if i := strings.Index(version, " on "); i > 0 {
		version = version[:i]
	}
	return componentStatus{
		Name:   "postgres",
		OK:     true,
		Detail: fmt.Sprintf("%s (%s)", version, time.Since(start).Round(time.Millisecond)),
	}
}

func checkRedis(ctx context.Context, cmdCtx *commandContext) componentStatus {
	start := time.Now()
	client, err := bootstrap.ConnectRedis(bootstrap.DatabaseConfig{
		RedisConfig: cmdCtx.Config.Redis,
		Logger:      cmdCtx.Logger,
	})
	if err != nil {
		return componentStatus{Name: "redis", Detail: err.Error()}
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", closeErr)
		}
	}()

	if err := client.Ping(ctx).Err(); err != nil {
		return componentStatus{Name: "redis", Detail: err.Error()}
	}
	return componentStatus{
		Name:   "redis",
		OK:     true,
		Detail: fmt.Sprintf("ping %s", time.Since(start).Round(time.Millisecond)),
	}
}
