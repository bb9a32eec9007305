package database

import (
	"context"
	"errors"
	"time"

	"tipscore/internal/model"
)

// ErrTipResolved is returned when a transition targets a tip that is already
// terminal. Terminal tips are write-once; re-applying is a caller bug or a
// race with a previous cycle, never a reason to abort a batch.
var ErrTipResolved = errors.New("tip already resolved")

// Repository defines the standard interface for tip store operations.
type Repository interface {
	// ListOutstandingTips returns every tip in a non-terminal status.
	ListOutstandingTips(ctx context.Context) ([]model.Tip, error)
	// ListResolvedTips returns the terminal tips of one creator, the scoring
	// engine's read-only view.
	ListResolvedTips(ctx context.Context, creatorID int64) ([]model.ResolvedTip, error)
	// ListCreatorIDs returns every creator with at least one resolved tip.
	ListCreatorIDs(ctx context.Context) ([]int64, error)
	// ApplyTransition commits one status transition. For terminal transitions
	// the resolution fields are written exactly once; a second terminal write
	// fails with ErrTipResolved.
	ApplyTransition(ctx context.Context, tr model.Transition) error
	// UpdateLastPrice records the freshest observed price for a symbol.
	UpdateLastPrice(ctx context.Context, symbol string, price float64, seenAt time.Time) error
	// WriteCreatorScore overwrites the live score row and appends an
	// immutable history snapshot.
	WriteCreatorScore(ctx context.Context, score model.CreatorScore) error
	// FlagTip marks a malformed tip for operator review so it stops being
	// evaluated.
	FlagTip(ctx context.Context, tipID int64, reason string) error
}
