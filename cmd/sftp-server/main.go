package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/crypto/ssh"

	"github.com/sftpcore/server/internal/audit"
	"github.com/sftpcore/server/internal/metrics"
	"github.com/sftpcore/server/internal/orchestrator"
	"github.com/sftpcore/server/internal/users"
)

func main() {
	log.SetFlags(0)

	cfg, err := loadConfigFromEnv()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := metrics.New(ctx, metrics.Config{
		Addr: cfg.MetricsAddr, Path: cfg.MetricsPath,
		Namespace: "sftp", Subsystem: "server",
	})

	sink := audit.NewQueue(nil)
	defer sink.Close()

	hostKey, err := readHostKey(cfg.HostKeyPath)
	if err != nil {
		log.Fatalf("read host key %q failed: %v", cfg.HostKeyPath, err)
	}

	store, err := users.NewVaultStore(cfg.VaultAddr, cfg.VaultToken, cfg.VaultUsersPrefix, cfg.VaultHomeRoot, cfg.UserCacheTTL)
	if err != nil {
		log.Fatalf("vault client error: %v", err)
	}
	store.Metrics = reg

	orch, sshCfg := orchestrator.New(store, sink, reg, orchestrator.Options{
		MaxConnections:     cfg.MaxConnections,
		MaxUploadBytes:     cfg.MaxUploadBytes,
		IdleTimeoutSeconds: cfg.IdleTimeoutSeconds,
		EnableLogging:      cfg.EnableLogging,
		UserLookupTimeout:  cfg.VaultTimeout,
	})
	sshCfg.AddHostKey(hostKey)
	orch.SetKeyVerifier(makeKeyVerifier(store, cfg.VaultTimeout))

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		log.Fatalf("listen %s failed: %v", cfg.ListenAddr, err)
	}
	defer ln.Close()

	log.Printf("sftp-server listening on %s", cfg.ListenAddr)

	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() { errCh <- orch.Accept(ctx, ln) }()

	select {
	case <-stop:
		cancel()
		_ = ln.Close()
		<-errCh
	case err := <-errCh:
		if err != nil {
			log.Printf("accept loop error: %v", err)
		}
	}
}

func readHostKey(path string) (ssh.Signer, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ssh.ParsePrivateKey(b)
}
