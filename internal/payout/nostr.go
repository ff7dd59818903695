package payout

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
	"github.com/nbd-wtf/go-nostr/nip44"

	"satstash/internal/ecash"
)

// NIP-17 private direct message kinds.
const (
	kindChatMessage = 14
	kindSeal        = 13
	kindGiftWrap    = 1059
)

// DirectMessage delivers the payout payload as an encrypted nostr direct
// message to an nprofile target. The target must carry at least one relay
// hint; the message is published to the first one.
type DirectMessage struct {
	pubkey    string
	relays    []string
	secretKey string
}

// NewDirectMessage creates a direct-message transport. target is an nprofile
// and secretKey the sender's key, hex or nsec encoded.
func NewDirectMessage(target, secretKey string) (*DirectMessage, error) {
	pubkey, relays, err := resolveProfile(target)
	if err != nil {
		return nil, err
	}
	sk, err := decodeSecretKey(secretKey)
	if err != nil {
		return nil, err
	}
	return &DirectMessage{pubkey: pubkey, relays: relays, secretKey: sk}, nil
}

// Kind implements Transport.
func (d *DirectMessage) Kind() string { return ecash.TransportNostr }

// Send implements Transport.
func (d *DirectMessage) Send(ctx context.Context, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	wrap, err := wrapDirectMessage(d.secretKey, d.pubkey, string(body))
	if err != nil {
		return fmt.Errorf("wrap direct message: %w", err)
	}

	relay, err := nostr.RelayConnect(ctx, d.relays[0])
	if err != nil {
		return fmt.Errorf("connect relay %s: %w", d.relays[0], err)
	}
	defer relay.Close()

	if err := relay.Publish(ctx, wrap); err != nil {
		return fmt.Errorf("publish to %s: %w", d.relays[0], err)
	}
	return nil
}

func resolveProfile(target string) (pubkey string, relays []string, err error) {
	prefix, data, err := nip19.Decode(strings.TrimSpace(target))
	if err != nil {
		return "", nil, fmt.Errorf("decode nostr target: %w", err)
	}
	if prefix != "nprofile" {
		return "", nil, fmt.Errorf("nostr target must be an nprofile, got %s", prefix)
	}
	profile, ok := data.(nostr.ProfilePointer)
	if !ok {
		return "", nil, fmt.Errorf("unexpected nprofile payload %T", data)
	}
	if len(profile.Relays) == 0 {
		return "", nil, fmt.Errorf("nostr target carries no relay hints")
	}
	return profile.PublicKey, profile.Relays, nil
}

func decodeSecretKey(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("nostr secret key is required")
	}
	if strings.HasPrefix(raw, "nsec") {
		prefix, data, err := nip19.Decode(raw)
		if err != nil {
			return "", fmt.Errorf("decode nsec: %w", err)
		}
		if prefix != "nsec" {
			return "", fmt.Errorf("expected nsec key, got %s", prefix)
		}
		return data.(string), nil
	}
	return raw, nil
}

// wrapDirectMessage builds a NIP-17 gift-wrapped message: an unsigned chat
// event sealed with the sender's key, wrapped with a throwaway key so relays
// learn nothing about the sender.
func wrapDirectMessage(senderSecret, recipientPub, content string) (nostr.Event, error) {
	var zero nostr.Event

	senderPub, err := nostr.GetPublicKey(senderSecret)
	if err != nil {
		return zero, err
	}

	rumor := nostr.Event{
		PubKey:    senderPub,
		CreatedAt: nostr.Now(),
		Kind:      kindChatMessage,
		Tags:      nostr.Tags{nostr.Tag{"p", recipientPub}},
		Content:   content,
	}
	rumor.ID = rumor.GetID()

	sealKey, err := nip44.GenerateConversationKey(recipientPub, senderSecret)
	if err != nil {
		return zero, err
	}
	rumorJSON, err := json.Marshal(rumor)
	if err != nil {
		return zero, err
	}
	sealContent, err := nip44.Encrypt(string(rumorJSON), sealKey)
	if err != nil {
		return zero, err
	}

	seal := nostr.Event{
		PubKey:    senderPub,
		CreatedAt: nostr.Now(),
		Kind:      kindSeal,
		Tags:      nostr.Tags{},
		Content:   sealContent,
	}
	if err := seal.Sign(senderSecret); err != nil {
		return zero, err
	}

	wrapSecret := nostr.GeneratePrivateKey()
	wrapPub, err := nostr.GetPublicKey(wrapSecret)
	if err != nil {
		return zero, err
	}
	wrapKey, err := nip44.GenerateConversationKey(recipientPub, wrapSecret)
	if err != nil {
		return zero, err
	}
	sealJSON, err := json.Marshal(seal)
	if err != nil {
		return zero, err
	}
	wrapContent, err := nip44.Encrypt(string(sealJSON), wrapKey)
	if err != nil {
		return zero, err
	}

	wrap := nostr.Event{
		PubKey:    wrapPub,
		CreatedAt: nostr.Now(),
		Kind:      kindGiftWrap,
		Tags:      nostr.Tags{nostr.Tag{"p", recipientPub}},
		Content:   wrapContent,
	}
	if err := wrap.Sign(wrapSecret); err != nil {
		return zero, err
	}
	return wrap, nil
}
