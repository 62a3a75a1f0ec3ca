// Package dashboard assembles the signed-in user's home screen.
package dashboard

import (
	"context"
	"net/http"

	"classifieds/internal/chat"
	"classifieds/internal/listing"
	"classifieds/internal/logging"
	"classifieds/internal/session"
	"classifieds/internal/user"
	"classifieds/internal/web"

	"golang.org/x/sync/errgroup"
)

type Profiles interface {
	Profile(ctx context.Context, id string) (user.Profile, error)
}

type Listings interface {
	BySeller(ctx context.Context, sellerID string) ([]listing.Listing, error)
}

type Conversations interface {
	ForUser(ctx context.Context, userID string) ([]chat.Conversation, error)
}

// Stats are derived from the fetched rows, not aggregated by the database.
type Stats struct {
	Listings int `json:"listings"`
	Messages int `json:"messages"`
	Views    int `json:"views"`
}

type Overview struct {
	Profile       user.Profile        `json:"profile"`
	Listings      []listing.Listing   `json:"listings"`
	Conversations []chat.Conversation `json:"conversations"`
	Stats         Stats               `json:"stats"`
}

type Service struct {
	profiles      Profiles
	listings      Listings
	conversations Conversations
}

func NewService(profiles Profiles, listings Listings, conversations Conversations) *Service {
	return &Service{profiles: profiles, listings: listings, conversations: conversations}
}

// Overview fetches the three collections concurrently and derives the stats.
func (s *Service) Overview(ctx context.Context, userID string) (Overview, error) {
	var (
		profile user.Profile
		items   []listing.Listing
		convs   []chat.Conversation
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		profile, err = s.profiles.Profile(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		items, err = s.listings.BySeller(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		convs, err = s.conversations.ForUser(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}
	return Overview{
		Profile:       profile,
		Listings:      items,
		Conversations: convs,
		Stats:         ComputeStats(items, convs),
	}, nil
}

func ComputeStats(items []listing.Listing, convs []chat.Conversation) Stats {
	st := Stats{Listings: len(items), Messages: len(convs)}
	for _, l := range items {
		st.Views += l.ViewsCount
	}
	return st
}

type Handler struct {
	Service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{Service: s}
}

func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())
	ov, err := h.Service.Overview(r.Context(), sess.UserID)
	if err != nil {
		logging.FromContext(r.Context()).Error("dashboard load failed", "user_id", sess.UserID, "err", err)
		web.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	web.JSON(w, http.StatusOK, ov)
}
