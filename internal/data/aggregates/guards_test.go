package aggregates

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/introvirght/engagement-backend/internal/data/repos/testutil"
	types "github.com/introvirght/engagement-backend/internal/domain"
	"github.com/introvirght/engagement-backend/internal/platform/dbctx"
)

func TestRequireCASSuccess(t *testing.T) {
	if err := RequireCASSuccess(true, "ok"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := RequireCASSuccess(false, "stale"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict error, got=%v", err)
	}
}

func TestUpdateByVersion(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := testutil.Ctx(tx)
	guard := NewCASGuard(db)

	p := types.NewEngagementProfile(uuid.New())
	if err := tx.Create(p).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	ok, err := guard.UpdateByVersion(dbc, "engagement_profile", p.ID, 1, map[string]any{"version": 2, "experience": 10})
	if err != nil || !ok {
		t.Fatalf("first CAS: ok=%v err=%v", ok, err)
	}
	ok, err = guard.UpdateByVersion(dbc, "engagement_profile", p.ID, 1, map[string]any{"version": 2, "experience": 99})
	if err != nil || ok {
		t.Fatalf("stale CAS: want ok=false got ok=%v err=%v", ok, err)
	}

	var got types.EngagementProfile
	if err := tx.Where("id = ?", p.ID).First(&got).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Experience != 10 || got.Version != 2 {
		t.Fatalf("row: want xp=10 version=2 got xp=%d version=%d", got.Experience, got.Version)
	}
}

func TestUpdateByVersionWithoutDB(t *testing.T) {
	guard := NewCASGuard(nil)
	_, err := guard.UpdateByVersion(dbctx.Context{}, "engagement_profile", uuid.New(), 1, map[string]any{"version": 2})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("nil db: want validation error got=%v", err)
	}
}

func TestUpdateByVersionRejectsMissingBump(t *testing.T) {
	db := testutil.DB(t)
	guard := NewCASGuard(db)
	_, err := guard.UpdateByVersion(dbctx.Background(context.Background()), "engagement_profile", uuid.New(), 1, map[string]any{"experience": 1})
	if !errors.Is(err, ErrInvariant) {
		t.Fatalf("missing version: want invariant error got=%v", err)
	}
}
