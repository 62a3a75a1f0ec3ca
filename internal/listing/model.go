package listing

import (
	"time"

	"github.com/lib/pq"
)

type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "pending"
	StatusApproved ApprovalStatus = "approved"
	StatusRejected ApprovalStatus = "rejected"
)

type SortKey string

const (
	SortNewest    SortKey = "newest"
	SortPriceLow  SortKey = "price-low"
	SortPriceHigh SortKey = "price-high"
	SortPopular   SortKey = "popular"
)

// ParseSort maps a query value to a SortKey, falling back to newest.
func ParseSort(raw string) SortKey {
	switch k := SortKey(raw); k {
	case SortPriceLow, SortPriceHigh, SortPopular:
		return k
	default:
		return SortNewest
	}
}

type Category struct {
	Slug  string `json:"slug"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

var categories = []Category{
	{Slug: "vehicles", Name: "Vehicles"},
	{Slug: "property", Name: "Property"},
	{Slug: "mobile-phones", Name: "Mobile Phones & Tablets"},
	{Slug: "electronics", Name: "Electronics"},
	{Slug: "home-furniture", Name: "Home, Furniture & Appliances"},
	{Slug: "fashion", Name: "Fashion"},
	{Slug: "beauty", Name: "Beauty & Personal Care"},
	{Slug: "services", Name: "Services"},
	{Slug: "repair", Name: "Repair & Construction"},
	{Slug: "commercial", Name: "Commercial Equipment"},
	{Slug: "babies-kids", Name: "Babies & Kids"},
	{Slug: "food", Name: "Food & Agriculture"},
	{Slug: "pets", Name: "Animals & Pets"},
	{Slug: "other", Name: "Other"},
}

var conditions = []string{"Brand New", "Foreign Used", "Nigerian Used"}

// LookupCategory returns the category with the given slug.
func LookupCategory(slug string) (Category, bool) {
	for _, c := range categories {
		if c.Slug == slug {
			return c, true
		}
	}
	return Category{}, false
}

func Conditions() []string {
	return append([]string(nil), conditions...)
}

type Listing struct {
	ID             string         `db:"id" json:"id"`
	SellerID       string         `db:"seller_id" json:"seller_id"`
	Title          string         `db:"title" json:"title"`
	Description    string         `db:"description" json:"description"`
	Price          float64        `db:"price" json:"price"`
	Category       string         `db:"category" json:"category"`
	Condition      string         `db:"condition" json:"condition"`
	Location       string         `db:"location" json:"location"`
	Images         pq.StringArray `db:"images" json:"images"`
	ApprovalStatus ApprovalStatus `db:"approval_status" json:"approval_status"`
	IsVerified     bool           `db:"is_verified" json:"is_verified"`
	IsPopular      bool           `db:"is_popular" json:"is_popular"`
	ViewsCount     int            `db:"views_count" json:"views_count"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// Seller is the slice of a profile shown next to a listing.
type Seller struct {
	ID          string    `db:"id" json:"id"`
	FullName    string    `db:"full_name" json:"full_name"`
	Phone       string    `db:"phone" json:"phone,omitempty"`
	Location    string    `db:"location" json:"location,omitempty"`
	AvatarURL   string    `db:"avatar_url" json:"avatar_url,omitempty"`
	Rating      float64   `db:"rating" json:"rating"`
	TotalSales  int       `db:"total_sales" json:"total_sales"`
	MemberSince time.Time `db:"created_at" json:"member_since"`
}

type Detail struct {
	Listing Listing `json:"listing"`
	Seller  Seller  `json:"seller"`
}

type CatalogQuery struct {
	Search string
	Sort   SortKey
}

type CatalogPage struct {
	Category *Category `json:"category,omitempty"`
	Items    []Listing `json:"items"`
	Total    int       `json:"total"`
	Message  string    `json:"message,omitempty"`
}

type SellerPage struct {
	Seller   Seller    `json:"seller"`
	Listings []Listing `json:"listings"`
}

// CreateRequest is the listing-creation form. ApprovalStatus is accepted
// but never honored: new listings always start pending.
type CreateRequest struct {
	Title          string   `json:"title" validate:"required,max=200"`
	Description    string   `json:"description" validate:"max=5000"`
	Price          *float64 `json:"price" validate:"required,gte=0,lte=999999999999.99"`
	Category       string   `json:"category" validate:"required,category"`
	Condition      string   `json:"condition" validate:"required,condition"`
	Location       string   `json:"location" validate:"required,max=120"`
	Images         []string `json:"images" validate:"max=10,dive,http_url"`
	ApprovalStatus string   `json:"approval_status,omitempty" validate:"-"`
}
