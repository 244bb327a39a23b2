package main

import (
	"context"
	"crypto/subtle"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/sftpcore/server/internal/users"
)

// makeKeyVerifier adapts a users.Store into an orchestrator.KeyVerifier
// by comparing the presented key's wire encoding against the account's
// authorized_keys lines, constant-time, to avoid timing side
// isKeyAllowed.
func makeKeyVerifier(store users.Store, timeout time.Duration) func(username string, key ssh.PublicKey) bool {
	return func(username string, key ssh.PublicKey) bool {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		account, found, err := store.Lookup(ctx, username)
		if err != nil || !found {
			return false
		}
		return isKeyAllowed(key, account.AuthorizedKeys)
	}
}

func isKeyAllowed(presented ssh.PublicKey, authorized []string) bool {
	pb := presented.Marshal()
	for _, line := range authorized {
		parsed, _, _, _, err := ssh.ParseAuthorizedKey([]byte(line))
		if err != nil {
			continue
		}
		ab := parsed.Marshal()
		if len(ab) != len(pb) {
			continue
		}
		if subtle.ConstantTimeCompare(ab, pb) == 1 {
			return true
		}
	}
	return false
}
