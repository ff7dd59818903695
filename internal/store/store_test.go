package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"satstash/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBlobUpsertGetDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	expires := time.Now().UTC().Add(24 * time.Hour)
	blob := &models.Blob{
		SHA256:   "ab12",
		Size:     1000000,
		Type:     "image/png",
		Uploaded: time.Now().UTC(),
		Expires:  &expires,
	}
	if err := s.UpsertBlob(ctx, blob); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.GetBlob(ctx, "ab12")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Size != 1000000 || got.Type != "image/png" || got.Expires == nil {
		t.Fatalf("got = %#v", got)
	}

	// Re-upsert extends expiry rather than erroring.
	later := expires.Add(time.Hour)
	blob.Expires = &later
	if err := s.UpsertBlob(ctx, blob); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	got, err = s.GetBlob(ctx, "ab12")
	if err != nil {
		t.Fatalf("get after re-upsert: %v", err)
	}
	if !got.Expires.After(expires.Truncate(time.Second)) {
		t.Fatalf("expiry not extended: %v", got.Expires)
	}

	if err := s.DeleteBlob(ctx, "ab12"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err = s.GetBlob(ctx, "ab12")
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %#v", got)
	}
}

func TestExpiredBlobsSkipsUnexpired(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	rows := []*models.Blob{
		{SHA256: "old1", Size: 1, Uploaded: now, Expires: &past},
		{SHA256: "new1", Size: 1, Uploaded: now, Expires: &future},
		{SHA256: "keep", Size: 1, Uploaded: now}, // no expiry
	}
	for _, b := range rows {
		if err := s.UpsertBlob(ctx, b); err != nil {
			t.Fatalf("upsert %s: %v", b.SHA256, err)
		}
	}

	expired, err := s.ExpiredBlobs(ctx, now)
	if err != nil {
		t.Fatalf("expired blobs: %v", err)
	}
	if len(expired) != 1 || expired[0].SHA256 != "old1" {
		t.Fatalf("expired = %#v", expired)
	}
}

func TestMintBalancesThreshold(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	inserts := []models.PendingToken{
		{Token: "t1", Mint: "https://m1", Amount: 600},
		{Token: "t2", Mint: "https://m1", Amount: 500},
		{Token: "t3", Mint: "https://m2", Amount: 400},
	}
	for i := range inserts {
		if err := s.InsertToken(ctx, &inserts[i]); err != nil {
			t.Fatalf("insert: %v", err)
		}
		if inserts[i].ID == 0 {
			t.Fatal("expected assigned id")
		}
	}

	balances, err := s.MintBalances(ctx, 1000)
	if err != nil {
		t.Fatalf("balances: %v", err)
	}
	if len(balances) != 1 || balances[0].Mint != "https://m1" || balances[0].Amount != 1100 {
		t.Fatalf("balances = %#v", balances)
	}

	all, err := s.MintBalances(ctx, 0)
	if err != nil {
		t.Fatalf("all balances: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("all = %#v", all)
	}
}

func TestReplaceTokensIsAtomic(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := models.PendingToken{Token: "t1", Mint: "https://m1", Amount: 600}
	second := models.PendingToken{Token: "t2", Mint: "https://m1", Amount: 500}
	for _, tok := range []*models.PendingToken{&first, &second} {
		if err := s.InsertToken(ctx, tok); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	replacement := &models.PendingToken{Token: "swapped", Mint: "https://m1", Amount: 1100}
	if err := s.ReplaceTokens(ctx, []int64{first.ID, second.ID}, replacement); err != nil {
		t.Fatalf("replace: %v", err)
	}

	remaining, err := s.TokensByMint(ctx, "https://m1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(remaining) != 1 || remaining[0].Token != "swapped" || remaining[0].Amount != 1100 {
		t.Fatalf("remaining = %#v", remaining)
	}
	if remaining[0].ID != replacement.ID {
		t.Fatalf("replacement id %d != listed id %d", replacement.ID, remaining[0].ID)
	}
}

func TestDeleteTokens(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tok := models.PendingToken{Token: "t1", Mint: "https://m1", Amount: 10}
	if err := s.InsertToken(ctx, &tok); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.DeleteTokens(ctx, []int64{tok.ID}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteTokens(ctx, nil); err != nil {
		t.Fatalf("delete empty: %v", err)
	}

	remaining, err := s.TokensByMint(ctx, "https://m1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("remaining = %#v", remaining)
	}
}
