// Command server runs the gateway's HTTP surface: inference endpoints,
// credential/oauth management, and the fallback/stats/config control plane.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/cliproxy-gateway/gateway/internal/api"
	"github.com/cliproxy-gateway/gateway/internal/auth"
	"github.com/cliproxy-gateway/gateway/internal/auth/antigravity"
	"github.com/cliproxy-gateway/gateway/internal/auth/claude"
	"github.com/cliproxy-gateway/gateway/internal/auth/codex"
	"github.com/cliproxy-gateway/gateway/internal/auth/copilot"
	"github.com/cliproxy-gateway/gateway/internal/auth/geminicli"
	"github.com/cliproxy-gateway/gateway/internal/auth/iflow"
	"github.com/cliproxy-gateway/gateway/internal/auth/kiro"
	"github.com/cliproxy-gateway/gateway/internal/auth/openaicompat"
	"github.com/cliproxy-gateway/gateway/internal/auth/qwen"
	"github.com/cliproxy-gateway/gateway/internal/auth/vertex"
	"github.com/cliproxy-gateway/gateway/internal/config"
	"github.com/cliproxy-gateway/gateway/internal/executor"
	"github.com/cliproxy-gateway/gateway/internal/fallback"
	"github.com/cliproxy-gateway/gateway/internal/logging"
	"github.com/cliproxy-gateway/gateway/internal/router"
	"github.com/cliproxy-gateway/gateway/internal/store"

	// all registers every directional translator pair; imported for its
	// init() side effects only.
	_ "github.com/cliproxy-gateway/gateway/internal/translator/all"
	"github.com/cliproxy-gateway/gateway/internal/usage"
)

func main() {
	configFile := flag.String("config", "config.yaml", "path to the gateway configuration file")
	flag.Parse()

	if wd, err := os.Getwd(); err == nil {
		_ = godotenv.Load(wd + "/.env")
	}

	logging.SetupBaseLogger()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}
	logging.SetDebug(cfg.Debug)
	if cfg.LoggingToFile {
		if err := logging.EnableFileLogging(cfg.DataDir); err != nil {
			log.WithError(err).Warn("failed to enable file logging")
		}
	}

	if err := os.MkdirAll(cfg.ConfigDir, 0o755); err != nil {
		log.WithError(err).Fatal("failed to create config dir")
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.WithError(err).Fatal("failed to create data dir")
	}

	creds, err := store.NewCredentialStore(store.BackendConfig{
		Backend: cfg.Storage.Backend, AuthDir: cfg.AuthDir,
		PostgresDSN: cfg.Storage.PostgresDSN,
		GitRemoteURL: cfg.Storage.GitRemoteURL, GitLocalPath: cfg.Storage.GitLocalPath,
		GitUser: cfg.Storage.GitUser, GitPassword: cfg.Storage.GitPassword,
		ObjectEndpoint: cfg.Storage.ObjectEndpoint, ObjectAccessKey: cfg.Storage.ObjectAccessKey,
		ObjectSecretKey: cfg.Storage.ObjectSecretKey, ObjectBucket: cfg.Storage.ObjectBucket,
		ObjectUseTLS: cfg.Storage.ObjectUseTLS,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to open credential store")
	}

	sessions, err := store.NewSessionStore(store.SessionBackendConfig{
		Backend: cfg.SessionStore.Backend, SessionsDir: cfg.SessionsDir(), RedisURL: cfg.SessionStore.RedisURL,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to open session store")
	}

	authMgr := auth.NewManager(creds, sessions)
	authMgr.RegisterOAuth(claude.New())
	authMgr.RegisterOAuth(codex.New())
	authMgr.RegisterOAuth(geminicli.New())
	authMgr.RegisterOAuth(kiro.New())
	authMgr.RegisterOAuth(iflow.New())
	authMgr.RegisterOAuth(antigravity.New())
	authMgr.RegisterDeviceCode(copilot.New())
	authMgr.RegisterDeviceCode(qwen.New())
	authMgr.RegisterServiceAccount(openaicompat.New())
	authMgr.RegisterServiceAccount(vertex.New())

	fallbackEngine, err := fallback.New(cfg.FallbackFilePath())
	if err != nil {
		log.WithError(err).Fatal("failed to load fallback config")
	}

	quotaGroups, err := router.LoadQuotaGroups(cfg.QuotaGroupsFilePath())
	if err != nil {
		log.WithError(err).Fatal("failed to load quota groups")
	}

	exec := executor.New(executor.Config{
		RequestRetry:     cfg.RequestRetry,
		MaxRetryInterval: time.Duration(cfg.MaxRetryInterval) * time.Second,
		Timeout:          time.Duration(cfg.Passthrough.TimeoutSec) * time.Second,
	})

	stats := usage.NewStats()
	usageMgr := usage.NewManager()
	usageMgr.Register(stats)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	usageMgr.Start(ctx)
	defer usageMgr.Stop()

	stopCleaner := logging.StartLogDirCleaner(cfg.DataDir, 14*24*time.Hour, time.Hour)
	defer stopCleaner()

	stopSweeper := startSessionSweeper(sessions, 5*time.Minute)
	defer stopSweeper()

	srv := api.NewServer(cfg, creds, sessions, authMgr, fallbackEngine, exec, stats, usageMgr, quotaGroups)
	engine := srv.NewRouter()

	watcher, err := config.WatchConfig(*configFile, func(reloaded *config.Config) {
		log.Info("config file changed, reloading")
		*cfg = *reloaded
		logging.SetDebug(cfg.Debug)
	})
	if err != nil {
		log.WithError(err).Warn("failed to start config watcher; hot reload disabled")
	} else {
		defer watcher.Close()
	}

	if err := os.WriteFile(cfg.PIDFilePath(), []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644); err != nil {
		log.WithError(err).Warn("failed to write pid file")
	}
	defer os.Remove(cfg.PIDFilePath())

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      engine,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 0, // streaming responses must not be cut off
	}

	go func() {
		log.WithField("addr", httpSrv.Addr).Info("gateway listening")
		var err error
		if cfg.TLS.Enable {
			err = httpSrv.ListenAndServeTLS(cfg.TLS.Cert, cfg.TLS.Key)
		} else {
			err = httpSrv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server stopped unexpectedly")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("graceful shutdown failed")
	}
}

// startSessionSweeper periodically removes expired pending OAuth sessions
// (spec §4.2), returning a stop function.
func startSessionSweeper(sessions store.SessionStore, interval time.Duration) func() {
	done := make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := sessions.SweepExpired(); err != nil {
					log.WithError(err).Warn("session sweep failed")
				} else if n > 0 {
					log.WithField("count", n).Debug("swept expired oauth sessions")
				}
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}
