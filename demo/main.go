package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/simple-rbac/pkg/adapter"
	"github.com/tendant/simple-rbac/pkg/adapter/memory"
	"github.com/tendant/simple-rbac/pkg/adapter/postgres"
	"github.com/tendant/simple-rbac/pkg/audit"
	"github.com/tendant/simple-rbac/pkg/config"
	"github.com/tendant/simple-rbac/pkg/permission"
	"github.com/tendant/simple-rbac/pkg/rbac"
	"github.com/tendant/simple-rbac/pkg/role"
	"github.com/tendant/simple-rbac/pkg/tenant"
)

type Config struct {
	Addr        string `env:"RBAC_ADDR" env-default:"localhost:4000"`
	DatabaseURL string `env:"RBAC_DATABASE_URL" env-default:""`
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	appCfg := Config{}
	if err := cleanenv.ReadEnv(&appCfg); err != nil {
		logger.Error("failed to read env", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()

	var store adapter.Adapter
	if appCfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, appCfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "err", err)
			os.Exit(1)
		}
		defer pool.Close()
		store = postgres.New(pool)
		logger.Info("using postgres adapter")
	} else {
		store = memory.New()
		logger.Info("using in-memory adapter")
	}

	cfg, err := config.LoadEnv()
	if err != nil {
		logger.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	cfg.Adapter = store

	authz, err := rbac.New(cfg, rbac.WithLogger(logger))
	if err != nil {
		logger.Error("failed to build rbac", "err", err)
		os.Exit(1)
	}
	authz.Audit.Register(func(e audit.Event) {
		logger.Info("audit", "action", string(e.Action), "tenantId", e.TenantID, "recordId", e.RecordID)
	})

	if err := walkthrough(ctx, authz); err != nil {
		logger.Error("walkthrough failed", "err", err)
		os.Exit(1)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	rbac.Routes(r, rbac.NewHandle(authz))

	logger.Info("listening", "addr", appCfg.Addr)
	if err := http.ListenAndServe(appCfg.Addr, r); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

// walkthrough seeds a tenant, a role and a permission, assigns the role
// to a user and runs a permission check end to end.
func walkthrough(ctx context.Context, authz *rbac.RBAC) error {
	acme, err := authz.CreateTenant(ctx, tenant.CreateParams{
		Name:     "Acme Corp",
		IsActive: true,
	}, true)
	if err != nil {
		return err
	}

	if _, err := authz.EnsurePermissions(ctx, []permission.CreateParams{
		{Title: "read:invoice", IsActive: true},
		{Title: "write:invoice", IsActive: true},
	}); err != nil {
		return err
	}

	if _, err := authz.CreateRoles(ctx, acme.Slug, []role.CreateParams{
		{Title: "Auditor", IsActive: true},
	}); err != nil {
		return err
	}
	if _, err := authz.SyncPermissions(ctx, acme.ID, "auditor", []string{"read:invoice"}); err != nil {
		return err
	}

	if _, err := authz.AssignRole(ctx, acme.ID, "user-42", "auditor"); err != nil {
		return err
	}

	canRead, err := authz.Authorize(ctx, acme.ID, "user-42", "read:invoice")
	if err != nil {
		return err
	}
	canWrite, err := authz.Authorize(ctx, acme.ID, "user-42", "write:invoice")
	if err != nil {
		return err
	}
	fmt.Printf("user-42 read:invoice=%v write:invoice=%v\n", canRead, canWrite)
	return nil
}
