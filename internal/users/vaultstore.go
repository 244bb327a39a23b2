package users

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	vault "github.com/hashicorp/vault/api"
)

// vaultRecord is the JSON shape stored under the users prefix in
// Vault's KV v2 engine.
type vaultRecord struct {
	Username      string   `json:"username"`
	Disabled      bool     `json:"disabled"`
	HomeDir       string   `json:"homeDir"`
	PublicKeys    []string `json:"publicKeys"`
	CanUpload     bool     `json:"canUpload"`
	CanDownload   bool     `json:"canDownload"`
	CanDelete     bool     `json:"canDelete"`
	CanCreateDir  bool     `json:"canCreateDir"`
	UploadCeiling int64    `json:"uploadCeilingBytes"`
}

// VaultMetrics receives optional lookup-outcome instrumentation. A
// VaultStore with a nil Metrics simply skips the call.
type VaultMetrics interface {
	ObserveVault(result string)
}

// VaultStore is a Store backed by a Vault KV v2 secrets engine, with a
// TTL cache in front of it so the lookups made at authentication and
// at subsystem start don't each round-trip to Vault.
type VaultStore struct {
	client       *vault.Client
	usersPrefix  string
	ttl          time.Duration
	defaultHome  string
	Metrics      VaultMetrics

	mu    sync.Mutex
	cache map[string]cachedAccount
}

type cachedAccount struct {
	account Account
	expires time.Time
}

// NewVaultStore wires a Vault client configured with addr/token to the
// given KV v2 prefix (e.g. "kv/sftp/users"). defaultHomeRoot is joined
// with the username when a record omits homeDir.
func NewVaultStore(addr, token, usersPrefix, defaultHomeRoot string, ttl time.Duration) (*VaultStore, error) {
	cfg := vault.DefaultConfig()
	cfg.Address = addr
	c, err := vault.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	c.SetToken(token)
	return &VaultStore{
		client:      c,
		usersPrefix: usersPrefix,
		ttl:         ttl,
		defaultHome: defaultHomeRoot,
		cache:       make(map[string]cachedAccount),
	}, nil
}

func (v *VaultStore) Lookup(ctx context.Context, username string) (Account, bool, error) {
	if a, ok := v.cached(username); ok {
		v.observe("cache_hit")
		return a, true, nil
	}

	rec, found, err := v.readVault(ctx, username)
	switch {
	case err != nil:
		v.observe("error")
	case !found:
		v.observe("not_found")
	default:
		v.observe("miss")
	}
	if err != nil || !found {
		return Account{}, found, err
	}

	a := Account{
		Username:       username,
		Enabled:        !rec.Disabled,
		HomeDir:        rec.HomeDir,
		AuthorizedKeys: rec.PublicKeys,
		CanUpload:      rec.CanUpload,
		CanDownload:    rec.CanDownload,
		CanDelete:      rec.CanDelete,
		CanCreateDir:   rec.CanCreateDir,
		UploadCeiling:  nonNegative(rec.UploadCeiling),
	}
	if a.HomeDir == "" {
		a.HomeDir = joinHome(v.defaultHome, username)
	}

	v.mu.Lock()
	v.cache[username] = cachedAccount{account: a, expires: time.Now().Add(v.ttl)}
	v.mu.Unlock()

	return a, true, nil
}

func (v *VaultStore) observe(result string) {
	if v.Metrics != nil {
		v.Metrics.ObserveVault(result)
	}
}

func (v *VaultStore) cached(username string) (Account, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	c, ok := v.cache[username]
	if !ok || time.Now().After(c.expires) {
		return Account{}, false
	}
	return c.account, true
}

// readVault performs the actual KV v2 read, using the
// "<mount>/data/<path>/<username>" addressing kvV2DataPath builds.
func (v *VaultStore) readVault(ctx context.Context, username string) (vaultRecord, bool, error) {
	var rec vaultRecord
	path := kvV2DataPath(v.usersPrefix, username)

	type result struct {
		sec *vault.Secret
		err error
	}
	ch := make(chan result, 1)
	go func() {
		sec, err := v.client.Logical().Read(path)
		ch <- result{sec: sec, err: err}
	}()

	select {
	case <-ctx.Done():
		return rec, false, ctx.Err()
	case res := <-ch:
		if res.err != nil {
			return rec, false, res.err
		}
		if res.sec == nil || res.sec.Data == nil {
			return rec, false, nil
		}
		raw, ok := res.sec.Data["data"]
		if !ok {
			return rec, false, fmt.Errorf("unexpected vault kv response for %q", username)
		}
		b, err := json.Marshal(raw)
		if err != nil {
			return rec, false, err
		}
		if err := json.Unmarshal(b, &rec); err != nil {
			return rec, false, err
		}
		if rec.Username == "" {
			rec.Username = username
		}
		return rec, true, nil
	}
}

func kvV2DataPath(usersPrefix, username string) string {
	p := strings.Trim(usersPrefix, "/")
	if strings.Contains(p, "/data/") {
		return fmt.Sprintf("%s/%s", p, username)
	}
	parts := strings.SplitN(p, "/", 2)
	mount := parts[0]
	if len(parts) == 1 {
		return fmt.Sprintf("%s/data/%s", mount, username)
	}
	return fmt.Sprintf("%s/data/%s/%s", mount, parts[1], username)
}

func joinHome(root, username string) string {
	root = strings.TrimRight(root, "/")
	return fmt.Sprintf("%s/%s", root, username)
}

func nonNegative(n int64) uint64 {
	if n < 0 {
		return 0
	}
	return uint64(n)
}
