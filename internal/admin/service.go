// Package admin is the moderation console: a full snapshot of users,
// listings and reports, plus the approve, reject and resolve actions.
package admin

import (
	"context"
	"errors"

	"classifieds/internal/listing"
	"classifieds/internal/report"
	"classifieds/internal/user"

	"golang.org/x/sync/errgroup"
)

// ErrNotFound is returned when an action targets a record that does not exist.
var ErrNotFound = errors.New("admin: record not found")

type Profiles interface {
	ListProfiles(ctx context.Context) ([]user.Profile, error)
}

type Listings interface {
	ListAll(ctx context.Context) ([]listing.Listing, error)
	SetStatus(ctx context.Context, id string, status listing.ApprovalStatus) error
}

type Reports interface {
	List(ctx context.Context) ([]report.Report, error)
	Resolve(ctx context.Context, id, adminID string) error
}

type Stats struct {
	Users    int `json:"users"`
	Products int `json:"products"`
	Pending  int `json:"pending"`
	Reports  int `json:"reports"`
}

type Snapshot struct {
	Stats    Stats             `json:"stats"`
	Profiles []user.Profile    `json:"profiles"`
	Products []listing.Listing `json:"products"`
	Reports  []report.Report   `json:"reports"`
}

// ActionResult is what every moderation action returns: the outcome
// notice and the freshly loaded console.
type ActionResult struct {
	Notice   string   `json:"notice"`
	Snapshot Snapshot `json:"snapshot"`
}

// ActionError carries the notice shown when an action fails.
type ActionError struct {
	Notice string
	Err    error
}

func (e *ActionError) Error() string { return e.Notice + ": " + e.Err.Error() }
func (e *ActionError) Unwrap() error { return e.Err }

type Service struct {
	profiles Profiles
	listings Listings
	reports  Reports
}

func NewService(profiles Profiles, listings Listings, reports Reports) *Service {
	return &Service{profiles: profiles, listings: listings, reports: reports}
}

// Snapshot loads the three collections concurrently and derives the stats.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.Profiles, err = s.profiles.ListProfiles(gctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Products, err = s.listings.ListAll(gctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Reports, err = s.reports.List(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	snap.Stats = ComputeStats(snap.Profiles, snap.Products, snap.Reports)
	return snap, nil
}

func ComputeStats(profiles []user.Profile, products []listing.Listing, reports []report.Report) Stats {
	st := Stats{
		Users:    len(profiles),
		Products: len(products),
		Reports:  report.PendingCount(reports),
	}
	for _, p := range products {
		if p.ApprovalStatus == listing.StatusPending {
			st.Pending++
		}
	}
	return st
}

func (s *Service) Approve(ctx context.Context, listingID string) (ActionResult, error) {
	return s.act(ctx, "Product approved", "Failed to approve product", func() error {
		return s.listings.SetStatus(ctx, listingID, listing.StatusApproved)
	})
}

func (s *Service) Reject(ctx context.Context, listingID string) (ActionResult, error) {
	return s.act(ctx, "Product rejected", "Failed to reject product", func() error {
		return s.listings.SetStatus(ctx, listingID, listing.StatusRejected)
	})
}

func (s *Service) ResolveReport(ctx context.Context, reportID, adminID string) (ActionResult, error) {
	return s.act(ctx, "Report resolved", "Failed to resolve report", func() error {
		return s.reports.Resolve(ctx, reportID, adminID)
	})
}

// act runs one keyed update and reloads the whole console on success.
func (s *Service) act(ctx context.Context, success, failure string, update func() error) (ActionResult, error) {
	if err := update(); err != nil {
		if errors.Is(err, listing.ErrNotFound) || errors.Is(err, report.ErrNotFound) {
			err = ErrNotFound
		}
		return ActionResult{}, &ActionError{Notice: failure, Err: err}
	}
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return ActionResult{}, err
	}
	return ActionResult{Notice: success, Snapshot: snap}, nil
}
