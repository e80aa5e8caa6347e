package studio

import (
	"context"
	"sync/atomic"

	"camera-angle-studio/internal/gemini"
)

// CredentialHost is the host integration that owns API key selection.
// RequestCredentialSelection must not block; the session proceeds without
// waiting for the user to finish choosing.
type CredentialHost interface {
	HasCredential(ctx context.Context) bool
	RequestCredentialSelection(ctx context.Context)
}

// AlwaysReady is used when keys come from configuration only.
type AlwaysReady struct{}

func (AlwaysReady) HasCredential(context.Context) bool         { return true }
func (AlwaysReady) RequestCredentialSelection(context.Context) {}

// KeyCredentials reports a credential when the key source yields one and
// forwards selection requests to Notify, typically a message to the user.
type KeyCredentials struct {
	Keys   gemini.KeySource
	Notify func(ctx context.Context)

	requests atomic.Int64
}

func (k *KeyCredentials) HasCredential(ctx context.Context) bool {
	if k.Keys == nil {
		return false
	}
	_, err := k.Keys.APIKey(ctx)
	return err == nil
}

func (k *KeyCredentials) RequestCredentialSelection(ctx context.Context) {
	k.requests.Add(1)
	if k.Notify != nil {
		k.Notify(ctx)
	}
}

// Requests is how many times selection was asked for.
func (k *KeyCredentials) Requests() int64 {
	return k.requests.Load()
}
