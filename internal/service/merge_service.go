package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/klawrenceboxx/postergenius2025-sub000/internal/cache"
	"github.com/klawrenceboxx/postergenius2025-sub000/internal/domain"
	"github.com/klawrenceboxx/postergenius2025-sub000/internal/events"
	"github.com/klawrenceboxx/postergenius2025-sub000/internal/ratelimit"
	"github.com/klawrenceboxx/postergenius2025-sub000/internal/repository"
	"golang.org/x/sync/errgroup"
)

const mergeLockPrefix = "cart-merge:"

var errDeleteGuestCart = errors.New("failed to delete guest cart")

type EventPublisher interface {
	PublishCartMerged(ctx context.Context, event events.CartMerged) error
}

type MergeResult struct {
	Merged    bool
	ItemCount int
}

// MergeService folds a guest cart into the signed-in user's cart.
type MergeService struct {
	repo    repository.CartRepository
	cache   cache.CartCache
	locks   ratelimit.Locker
	events  EventPublisher
	lockTTL time.Duration
	now     func() time.Time
}

func NewMergeService(
	repo repository.CartRepository,
	cache cache.CartCache,
	locks ratelimit.Locker,
	events EventPublisher,
	lockTTL time.Duration,
) *MergeService {
	return &MergeService{
		repo:    repo,
		cache:   cache,
		locks:   locks,
		events:  events,
		lockTTL: lockTTL,
		now:     time.Now,
	}
}

// MergeGuestCart merges the cart of guestID into the cart of userID and
// deletes the guest cart. It is safe to retry: the user cart records the id of
// every guest cart it absorbed, so a repeated call never sums the same guest
// cart twice. The per-user lock is held only while the merge runs; lockTTL
// frees it if the process dies mid-merge.
func (s *MergeService) MergeGuestCart(ctx context.Context, userID, guestID string) (MergeResult, error) {
	guestID = strings.TrimSpace(guestID)
	if guestID == "" {
		return MergeResult{}, nil
	}
	userOwner := domain.UserOwner(userID)
	guestOwner := domain.GuestOwner(guestID)
	if err := userOwner.Validate(); err != nil {
		return MergeResult{}, err
	}

	log := slog.With("user_id", userOwner.ID, "guest_id", guestID)

	release, acquired, err := s.locks.Acquire(ctx, mergeLockPrefix+userOwner.ID, s.lockTTL)
	switch {
	case err != nil:
		log.WarnContext(ctx, "merge lock unavailable, continuing", "error", err)
	case !acquired:
		return MergeResult{}, domain.ErrMergeInProgress
	default:
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				log.WarnContext(ctx, "failed to release merge lock", "error", err)
			}
		}()
	}

	guestCart, userCart, err := s.loadCarts(ctx, guestOwner, userOwner)
	if err != nil {
		return MergeResult{}, err
	}
	if guestCart == nil {
		return MergeResult{}, nil
	}

	alreadyMerged := userCart.HasMerged(guestCart.ID)
	merged := *userCart
	merged.MergedCarts = slices.Clone(userCart.MergedCarts)
	if !alreadyMerged {
		merged.Items = domain.MergeCartItems(userCart.Items.Entries(), guestCart.Items.Entries())
		merged.MarkMerged(guestCart.ID)
		merged.UpdatedAt = s.now()
	} else {
		log.InfoContext(ctx, "guest cart already merged, finishing cleanup")
	}

	transactional, err := s.repo.RunInTransaction(ctx, func(ctx context.Context) error {
		if !alreadyMerged {
			// A retried transaction starts again from the loaded version.
			merged.ID, merged.Version = userCart.ID, userCart.Version
			if err := s.repo.SaveCart(ctx, &merged); err != nil {
				return fmt.Errorf("failed to save merged cart: %w", err)
			}
		}
		if err := s.repo.DeleteCart(ctx, guestOwner); err != nil && !errors.Is(err, repository.ErrCartNotFound) {
			return fmt.Errorf("%w: %w", errDeleteGuestCart, err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errDeleteGuestCart) && !transactional {
			// The merged cart is stored; only the guest cart is left behind.
			log.ErrorContext(ctx, "guest cart cleanup failed after merge", "error", err)
			invalidateCache(ctx, s.cache, userOwner)
			return MergeResult{}, fmt.Errorf("%w: %w", domain.ErrGuestCartCleanup, err)
		}
		log.ErrorContext(ctx, "cart merge failed", "transactional", transactional, "error", err)
		return MergeResult{}, err
	}

	invalidateCache(ctx, s.cache, userOwner)
	invalidateCache(ctx, s.cache, guestOwner)

	result := MergeResult{Merged: true, ItemCount: len(merged.Items)}
	event := events.CartMerged{UserID: userOwner.ID, GuestID: guestID, ItemCount: result.ItemCount, MergedAt: s.now().UTC()}
	if err := s.events.PublishCartMerged(ctx, event); err != nil {
		log.WarnContext(ctx, "failed to publish cart merged event", "error", err)
	}

	log.InfoContext(ctx, "guest cart merged", "items", result.ItemCount, "transactional", transactional)
	return result, nil
}

// loadCarts reads both carts concurrently. A missing guest cart is nil; a
// missing user cart is a new empty one.
func (s *MergeService) loadCarts(ctx context.Context, guest, user domain.Owner) (*domain.Cart, *domain.Cart, error) {
	var guestCart, userCart *domain.Cart

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := s.repo.GetCart(gctx, guest)
		if errors.Is(err, repository.ErrCartNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load guest cart: %w", err)
		}
		guestCart = c
		return nil
	})
	g.Go(func() error {
		c, err := s.repo.GetCart(gctx, user)
		if errors.Is(err, repository.ErrCartNotFound) {
			userCart = domain.NewCart(user, s.now())
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load user cart: %w", err)
		}
		userCart = c
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return guestCart, userCart, nil
}
