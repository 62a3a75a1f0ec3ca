package listing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeStore struct {
	mu       sync.Mutex
	listings map[string]Listing
	sellers  map[string]Seller
	inserts  int
	seq      int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		listings: make(map[string]Listing),
		sellers:  make(map[string]Seller),
	}
}

func (f *fakeStore) add(l Listing) Listing {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	if l.ID == "" {
		l.ID = fmt.Sprintf("listing-%d", f.seq)
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Date(2025, 1, 1, 0, 0, f.seq, 0, time.UTC)
	}
	f.listings[l.ID] = l
	return l
}

func (f *fakeStore) ListApproved(_ context.Context, category string) ([]Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []Listing{}
	for _, l := range f.listings {
		if l.ApprovalStatus == StatusApproved && (category == "" || l.Category == category) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeStore) CountApproved(ctx context.Context) (map[string]int, error) {
	items, _ := f.ListApproved(ctx, "")
	counts := map[string]int{}
	for _, l := range items {
		counts[l.Category]++
	}
	return counts, nil
}

func (f *fakeStore) Get(_ context.Context, id string) (Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.listings[id]
	if !ok {
		return Listing{}, ErrNotFound
	}
	return l, nil
}

func (f *fakeStore) GetSeller(_ context.Context, sellerID string) (Seller, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sellers[sellerID]
	if !ok {
		return Seller{}, ErrSellerNotFound
	}
	return s, nil
}

func (f *fakeStore) IncrementViews(_ context.Context, id string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.listings[id]
	if !ok {
		return 0, ErrNotFound
	}
	l.ViewsCount++
	f.listings[id] = l
	return l.ViewsCount, nil
}

func (f *fakeStore) Insert(_ context.Context, l Listing) (Listing, error) {
	f.mu.Lock()
	f.inserts++
	f.mu.Unlock()
	return f.add(l), nil
}

func (f *fakeStore) ListBySeller(_ context.Context, sellerID string, approvedOnly bool) ([]Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []Listing{}
	for _, l := range f.listings {
		if l.SellerID == sellerID && (!approvedOnly || l.ApprovalStatus == StatusApproved) {
			out = append(out, l)
		}
	}
	Sort(out, SortNewest)
	return out, nil
}

func price(v float64) *float64 { return &v }

func validRequest() CreateRequest {
	return CreateRequest{
		Title:     "PS5 Slim",
		Price:     price(650000),
		Category:  "electronics",
		Condition: "Brand New",
		Location:  "Lagos, Ikeja",
		Images:    []string{"https://cdn.example.com/ps5.jpg"},
	}
}

func TestService_CatalogEmptyCategory(t *testing.T) {
	store := newFakeStore()
	store.add(Listing{Category: "vehicles", ApprovalStatus: StatusApproved})
	store.add(Listing{Category: "pets", ApprovalStatus: StatusPending})
	svc := NewService(store)

	page, err := svc.Catalog(context.Background(), "pets", CatalogQuery{})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	if page.Items == nil || len(page.Items) != 0 {
		t.Fatalf("expected empty non-nil items, got %#v", page.Items)
	}
	if page.Message != EmptyCategoryMessage {
		t.Fatalf("expected empty message, got %q", page.Message)
	}
	if page.Category == nil || page.Category.Name != "Animals & Pets" {
		t.Fatalf("expected category metadata, got %+v", page.Category)
	}
}

func TestService_CatalogOnlyApproved(t *testing.T) {
	store := newFakeStore()
	store.add(Listing{Title: "Approved", Category: "vehicles", ApprovalStatus: StatusApproved})
	store.add(Listing{Title: "Pending", Category: "vehicles", ApprovalStatus: StatusPending})
	store.add(Listing{Title: "Rejected", Category: "vehicles", ApprovalStatus: StatusRejected})
	svc := NewService(store)

	page, err := svc.Catalog(context.Background(), "vehicles", CatalogQuery{Sort: SortNewest})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	if page.Total != 1 || page.Items[0].Title != "Approved" {
		t.Fatalf("expected only the approved listing, got %+v", page.Items)
	}
	if page.Message != "" {
		t.Fatalf("expected no message, got %q", page.Message)
	}
}

func TestService_CatalogUnknownCategory(t *testing.T) {
	svc := NewService(newFakeStore())
	if _, err := svc.Catalog(context.Background(), "spaceships", CatalogQuery{}); !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}
}

func TestService_CreateRejectsEmptyTitle(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)

	req := validRequest()
	req.Title = "   "
	_, err := svc.Create(context.Background(), "seller-1", req)

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !strings.Contains(verr.Message, "title") {
		t.Fatalf("expected title message, got %q", verr.Message)
	}
	if store.inserts != 0 {
		t.Fatalf("expected no insert, got %d", store.inserts)
	}
}

func TestService_CreateValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateRequest)
		field  string
	}{
		{name: "missing price", mutate: func(r *CreateRequest) { r.Price = nil }, field: "price"},
		{name: "negative price", mutate: func(r *CreateRequest) { r.Price = price(-1) }, field: "price"},
		{name: "price over column range", mutate: func(r *CreateRequest) { r.Price = price(1e12) }, field: "price"},
		{name: "unknown category", mutate: func(r *CreateRequest) { r.Category = "spaceships" }, field: "category"},
		{name: "unknown condition", mutate: func(r *CreateRequest) { r.Condition = "Refurbished" }, field: "condition"},
		{name: "empty location", mutate: func(r *CreateRequest) { r.Location = "" }, field: "location"},
		{name: "bad image url", mutate: func(r *CreateRequest) { r.Images = []string{"not a url"} }, field: "images"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeStore()
			svc := NewService(store)
			req := validRequest()
			tc.mutate(&req)

			_, err := svc.Create(context.Background(), "seller-1", req)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if !strings.Contains(verr.Message, tc.field) {
				t.Fatalf("expected message about %s, got %q", tc.field, verr.Message)
			}
			if store.inserts != 0 {
				t.Fatalf("expected no insert, got %d", store.inserts)
			}
		})
	}
}

func TestService_CreateForcesPending(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)

	req := validRequest()
	req.ApprovalStatus = string(StatusApproved)
	req.Images = []string{"", "https://cdn.example.com/a.jpg", "  "}

	l, err := svc.Create(context.Background(), "seller-1", req)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if l.ApprovalStatus != StatusPending {
		t.Fatalf("expected pending, got %s", l.ApprovalStatus)
	}
	if l.SellerID != "seller-1" {
		t.Fatalf("expected seller-1, got %s", l.SellerID)
	}
	if len(l.Images) != 1 {
		t.Fatalf("expected blank images dropped, got %v", l.Images)
	}
	if store.inserts != 1 {
		t.Fatalf("expected exactly one insert, got %d", store.inserts)
	}
}

func TestService_CreateRoundsPriceToCents(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{in: 1499.99, want: 1499.99},
		{in: 19.999, want: 20},
		{in: 60000000, want: 60000000},
	}
	for _, tc := range tests {
		store := newFakeStore()
		svc := NewService(store)
		req := validRequest()
		req.Price = price(tc.in)

		l, err := svc.Create(context.Background(), "seller-1", req)
		if err != nil {
			t.Fatalf("create %v: %v", tc.in, err)
		}
		if l.Price != tc.want {
			t.Fatalf("price %v: expected %v, got %v", tc.in, tc.want, l.Price)
		}
	}
}

func TestService_DetailCountsViews(t *testing.T) {
	store := newFakeStore()
	store.sellers["seller-1"] = Seller{ID: "seller-1", FullName: "Auto Dealers Ltd"}
	l := store.add(Listing{SellerID: "seller-1", ApprovalStatus: StatusApproved, ViewsCount: 5})
	svc := NewService(store)

	first, err := svc.Detail(context.Background(), l.ID, "")
	if err != nil {
		t.Fatalf("first detail: %v", err)
	}
	second, err := svc.Detail(context.Background(), l.ID, "")
	if err != nil {
		t.Fatalf("second detail: %v", err)
	}
	if first.Listing.ViewsCount != 6 || second.Listing.ViewsCount != 7 {
		t.Fatalf("expected 6 then 7, got %d then %d", first.Listing.ViewsCount, second.Listing.ViewsCount)
	}
	if second.Seller.FullName != "Auto Dealers Ltd" {
		t.Fatalf("expected seller profile, got %+v", second.Seller)
	}
}

func TestService_DetailHidesUnapproved(t *testing.T) {
	store := newFakeStore()
	store.sellers["seller-1"] = Seller{ID: "seller-1"}
	l := store.add(Listing{SellerID: "seller-1", ApprovalStatus: StatusPending})
	svc := NewService(store)

	if _, err := svc.Detail(context.Background(), l.ID, "someone-else"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for stranger, got %v", err)
	}
	if _, err := svc.Detail(context.Background(), l.ID, "seller-1"); err != nil {
		t.Fatalf("owner should see own pending listing: %v", err)
	}
	if _, err := svc.Detail(context.Background(), "missing", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing listing, got %v", err)
	}
}

func TestService_SellerProfileShowsApprovedOnly(t *testing.T) {
	store := newFakeStore()
	store.sellers["seller-1"] = Seller{ID: "seller-1", FullName: "Premium Motors"}
	store.add(Listing{SellerID: "seller-1", ApprovalStatus: StatusApproved})
	store.add(Listing{SellerID: "seller-1", ApprovalStatus: StatusPending})
	svc := NewService(store)

	page, err := svc.SellerProfile(context.Background(), "seller-1")
	if err != nil {
		t.Fatalf("seller profile: %v", err)
	}
	if len(page.Listings) != 1 {
		t.Fatalf("expected 1 approved listing, got %d", len(page.Listings))
	}

	mine, err := svc.BySeller(context.Background(), "seller-1")
	if err != nil {
		t.Fatalf("by seller: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("expected both listings for owner, got %d", len(mine))
	}
}

func TestService_Categories(t *testing.T) {
	store := newFakeStore()
	store.add(Listing{Category: "fashion", ApprovalStatus: StatusApproved})
	store.add(Listing{Category: "fashion", ApprovalStatus: StatusApproved})
	store.add(Listing{Category: "fashion", ApprovalStatus: StatusPending})
	svc := NewService(store)

	cats, err := svc.Categories(context.Background())
	if err != nil {
		t.Fatalf("categories: %v", err)
	}
	if len(cats) != 14 {
		t.Fatalf("expected 14 categories, got %d", len(cats))
	}
	for _, c := range cats {
		if c.Slug == "fashion" && c.Count != 2 {
			t.Fatalf("expected fashion count 2, got %d", c.Count)
		}
	}
}
