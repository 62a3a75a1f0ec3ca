package listing

import (
	"context"
	"errors"
	"math"
	"slices"
	"strings"

	"classifieds/internal/web"

	"github.com/go-playground/validator/v10"
)

const EmptyCategoryMessage = "No products found in this category"

var (
	ErrUnknownCategory = errors.New("listing: unknown category")
	ErrSellerNotFound  = errors.New("listing: seller not found")
)

// ValidationError reports a rejected listing form. Nothing is stored when it is returned.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

type Store interface {
	ListApproved(ctx context.Context, category string) ([]Listing, error)
	CountApproved(ctx context.Context) (map[string]int, error)
	Get(ctx context.Context, id string) (Listing, error)
	GetSeller(ctx context.Context, sellerID string) (Seller, error)
	IncrementViews(ctx context.Context, id string) (int, error)
	Insert(ctx context.Context, l Listing) (Listing, error)
	ListBySeller(ctx context.Context, sellerID string, approvedOnly bool) ([]Listing, error)
}

type Service struct {
	repo     Store
	validate *validator.Validate
}

func NewService(repo Store) *Service {
	v := web.NewValidator()
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		_, ok := LookupCategory(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("condition", func(fl validator.FieldLevel) bool {
		return slices.Contains(conditions, fl.Field().String())
	})
	return &Service{repo: repo, validate: v}
}

// Catalog lists the approved listings of one category, filtered and sorted.
func (s *Service) Catalog(ctx context.Context, slug string, q CatalogQuery) (CatalogPage, error) {
	cat, ok := LookupCategory(slug)
	if !ok {
		return CatalogPage{}, ErrUnknownCategory
	}
	items, err := s.repo.ListApproved(ctx, cat.Slug)
	if err != nil {
		return CatalogPage{}, err
	}
	page := newPage(Apply(items, q))
	cat.Count = len(items)
	page.Category = &cat
	if len(page.Items) == 0 {
		page.Message = EmptyCategoryMessage
	}
	return page, nil
}

// Browse is the home page search across every category.
func (s *Service) Browse(ctx context.Context, q CatalogQuery) (CatalogPage, error) {
	items, err := s.repo.ListApproved(ctx, "")
	if err != nil {
		return CatalogPage{}, err
	}
	return newPage(Apply(items, q)), nil
}

func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	counts, err := s.repo.CountApproved(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Category, len(categories))
	for i, c := range categories {
		c.Count = counts[c.Slug]
		out[i] = c
	}
	return out, nil
}

// Detail loads a listing with its seller and records one view.
// Listings that are not approved are only visible to their seller.
func (s *Service) Detail(ctx context.Context, id, viewerID string) (Detail, error) {
	l, err := s.repo.Get(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	if l.ApprovalStatus != StatusApproved && l.SellerID != viewerID {
		return Detail{}, ErrNotFound
	}

	views, err := s.repo.IncrementViews(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	l.ViewsCount = views

	seller, err := s.repo.GetSeller(ctx, l.SellerID)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Listing: l, Seller: seller}, nil
}

func (s *Service) Create(ctx context.Context, sellerID string, req CreateRequest) (Listing, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	req.Location = strings.TrimSpace(req.Location)
	req.Images = compactImages(req.Images)
	if err := s.validate.Struct(req); err != nil {
		return Listing{}, &ValidationError{Message: web.ValidationMessage(err)}
	}

	return s.repo.Insert(ctx, Listing{
		SellerID:       sellerID,
		Title:          req.Title,
		Description:    req.Description,
		Price:          roundCents(*req.Price),
		Category:       req.Category,
		Condition:      req.Condition,
		Location:       req.Location,
		Images:         req.Images,
		ApprovalStatus: StatusPending,
	})
}

// BySeller returns every listing the seller owns, whatever its status.
func (s *Service) BySeller(ctx context.Context, sellerID string) ([]Listing, error) {
	return s.repo.ListBySeller(ctx, sellerID, false)
}

func (s *Service) SellerProfile(ctx context.Context, sellerID string) (SellerPage, error) {
	seller, err := s.repo.GetSeller(ctx, sellerID)
	if err != nil {
		return SellerPage{}, err
	}
	items, err := s.repo.ListBySeller(ctx, sellerID, true)
	if err != nil {
		return SellerPage{}, err
	}
	return SellerPage{Seller: seller, Listings: items}, nil
}

// roundCents matches the numeric(14,2) price column so the returned row
// equals what a later read yields.
func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

func newPage(items []Listing) CatalogPage {
	return CatalogPage{Items: items, Total: len(items)}
}

func compactImages(images []string) []string {
	out := make([]string, 0, len(images))
	for _, img := range images {
		if img = strings.TrimSpace(img); img != "" {
			out = append(out, img)
		}
	}
	return out
}
