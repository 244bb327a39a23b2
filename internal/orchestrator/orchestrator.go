// Package orchestrator implements the per-connection session
// lifecycle: accept, bound by max-connections, authenticate, agree to
// "subsystem sftp", instantiate a Subsystem bound to the user's jail
// root, teardown.
package orchestrator

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/sftpcore/server/internal/audit"
	"github.com/sftpcore/server/internal/metrics"
	"github.com/sftpcore/server/internal/sftpwire"
	"github.com/sftpcore/server/internal/users"
)

// Options configures one orchestrator instance.
type Options struct {
	MaxConnections     int64
	MaxUploadBytes     uint64
	IdleTimeoutSeconds int
	EnableLogging      bool
	UserLookupTimeout  time.Duration
}

// Orchestrator accepts raw TCP connections, negotiates SSH, and binds
// exactly one Subsystem per "subsystem sftp" channel request.
type Orchestrator struct {
	sshConfig *ssh.ServerConfig
	store     users.Store
	sink      audit.Sink
	metrics   *metrics.Registry
	opts      Options

	active      atomic.Int64
	keyVerifier KeyVerifier
}

// New wires an Orchestrator. The returned ssh.ServerConfig must still
// have a host key added by the caller before Accept is called.
func New(store users.Store, sink audit.Sink, reg *metrics.Registry, opts Options) (*Orchestrator, *ssh.ServerConfig) {
	o := &Orchestrator{store: store, sink: sink, metrics: reg, opts: opts}

	sshCfg := &ssh.ServerConfig{
		ServerVersion:     "SSH-2.0-sftpcore",
		PublicKeyCallback: o.publicKeyCallback,
		PasswordCallback: func(c ssh.ConnMetadata, _ []byte) (*ssh.Permissions, error) {
			o.sink.AuthFailed(sessionID(c), c.User(), "password authentication disabled")
			return nil, fmt.Errorf("password authentication disabled")
		},
	}
	o.sshConfig = sshCfg
	return o, sshCfg
}

// KeyVerifier authenticates a presented public key against whatever
// keystore the deployment uses (authorized_keys file, database, ...).
// The core only asks "is this key allowed for this user", never how
// the key material is stored.
type KeyVerifier func(username string, key ssh.PublicKey) bool

// SetKeyVerifier installs the public-key verification function. Kept
// separate from New so the orchestrator package itself stays agnostic
// to where authorized keys live.
func (o *Orchestrator) SetKeyVerifier(v KeyVerifier) { o.keyVerifier = v }

func (o *Orchestrator) publicKeyCallback(c ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
	start := time.Now()
	user := c.User()
	sid := sessionID(c)

	ctx, cancel := context.WithTimeout(context.Background(), o.opts.UserLookupTimeout)
	defer cancel()

	account, found, err := o.store.Lookup(ctx, user)
	if err != nil || !found {
		o.sink.AuthFailed(sid, user, "unknown user")
		o.observeAuth(metrics.AuthFailUnknown, start)
		return nil, fmt.Errorf("permission denied")
	}
	if !account.Enabled {
		o.sink.AuthFailed(sid, user, "account disabled")
		o.observeAuth(metrics.AuthFailDisabled, start)
		return nil, fmt.Errorf("permission denied")
	}
	if o.keyVerifier == nil || !o.keyVerifier(user, key) {
		o.sink.AuthFailed(sid, user, "key not authorized")
		o.observeAuth(metrics.AuthFailKey, start)
		return nil, fmt.Errorf("permission denied")
	}

	o.sink.AuthSuccess(sid, user)
	o.observeAuth(metrics.AuthOK, start)
	return &ssh.Permissions{Extensions: map[string]string{"authed": "true"}}, nil
}

func (o *Orchestrator) observeAuth(result string, start time.Time) {
	if o.metrics != nil {
		o.metrics.ObserveAuth(result, time.Since(start))
	}
}

// Accept runs the accept loop against ln until ctx is cancelled,
// enforcing the max-connections cap.
func (o *Orchestrator) Accept(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}

		if o.opts.MaxConnections > 0 && o.active.Add(1) > o.opts.MaxConnections {
			o.active.Add(-1)
			_ = conn.Close()
			continue
		}
		if o.metrics != nil {
			o.metrics.IncSessionActive(1)
			o.metrics.IncSessionTotal("started")
		}

		go func() {
			defer o.active.Add(-1)
			defer func() {
				if o.metrics != nil {
					o.metrics.IncSessionActive(-1)
				}
			}()
			o.handleConn(ctx, conn)
		}()
	}
}

func (o *Orchestrator) handleConn(ctx context.Context, raw net.Conn) {
	defer raw.Close()

	sshConn, chans, reqs, err := ssh.NewServerConn(raw, o.sshConfig)
	if err != nil {
		o.sink.ConnectionFailed("", "", err.Error())
		return
	}
	defer sshConn.Close()

	user := sshConn.User()
	sid := fmt.Sprintf("%x", sshConn.SessionID())
	o.sink.Connected(sid, user)
	defer o.sink.Disconnected(sid, user)

	go ssh.DiscardRequests(reqs)

	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			_ = newCh.Reject(ssh.UnknownChannelType, "only session channels supported")
			continue
		}
		ch, inReqs, err := newCh.Accept()
		if err != nil {
			continue
		}
		go o.handleSessionChannel(ctx, ch, inReqs, sid, user)
	}
}

func (o *Orchestrator) handleSessionChannel(ctx context.Context, ch ssh.Channel, inReqs <-chan *ssh.Request, sid, user string) {
	defer ch.Close()

	for req := range inReqs {
		switch req.Type {
		case "subsystem":
			name := parseSubsystemName(req.Payload)
			if name != "sftp" {
				_ = req.Reply(false, nil)
				o.sink.Error(sid, user, "subsystem", "unsupported subsystem: "+name)
				continue
			}
			_ = req.Reply(true, nil)
			o.serveSFTP(ctx, ch, sid, user)
			return

		case "shell", "exec":
			_ = req.Reply(false, nil)
			o.sink.Error(sid, user, name(req), "refused: sftp-only session")

		default:
			_ = req.Reply(false, nil)
		}
	}
}

func name(req *ssh.Request) string { return req.Type }

func (o *Orchestrator) serveSFTP(ctx context.Context, ch ssh.Channel, sid, user string) {
	lookupCtx, cancel := context.WithTimeout(context.Background(), o.opts.UserLookupTimeout)
	account, found, err := o.store.Lookup(lookupCtx, user)
	cancel()
	if err != nil || !found || !account.Enabled {
		o.sink.Error(sid, user, "subsystem", "user record unavailable at subsystem start")
		return
	}

	cfg := sftpwire.Config{
		RootDirectory: account.HomeDir,
		EnableLogging: o.opts.EnableLogging,
		User: sftpwire.Permissions{
			CanUpload:            account.CanUpload,
			CanDownload:          account.CanDownload,
			CanDelete:            account.CanDelete,
			CanCreateDir:         account.CanCreateDir,
			UploadCeilingPerUser: account.UploadCeiling,
		},
		SessionID:          sid,
		Username:           user,
		MaxUploadBytes:     o.opts.MaxUploadBytes,
		IdleTimeoutSeconds: o.opts.IdleTimeoutSeconds,
	}
	if o.metrics != nil {
		cfg.Metrics = o.metrics
	}

	sub, err := sftpwire.New(ch, cfg, o.sink)
	if err != nil {
		o.sink.Error(sid, user, "subsystem", err.Error())
		return
	}
	if err := sub.Run(ctx); err != nil {
		o.sink.Error(sid, user, "subsystem", err.Error())
	}
}

// parseSubsystemName decodes the RFC 4254 subsystem-request payload:
// uint32 length || name bytes.
func parseSubsystemName(payload []byte) string {
	if len(payload) < 4 {
		return ""
	}
	n := int(payload[0])<<24 | int(payload[1])<<16 | int(payload[2])<<8 | int(payload[3])
	if n < 0 || 4+n > len(payload) {
		return ""
	}
	return string(payload[4 : 4+n])
}

func sessionID(c ssh.ConnMetadata) string {
	return fmt.Sprintf("%x", c.SessionID())
}
