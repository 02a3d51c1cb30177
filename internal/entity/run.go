package entity

import (
	"errors"
	"strings"
)

// ListingMode distinguishes completed (sold) listings from currently active ones.
type ListingMode string

const (
	ModeSold   ListingMode = "sold"
	ModeActive ListingMode = "active"
)

// Run is the resolved trigger for an orchestrator run. It is either a KeywordRun or a
// SellerRun; the unexported method keeps the set closed.
type Run interface {
	Mode() ListingMode
	Term() string
	isRun()
}

// KeywordRun collects sold listings matching a keyword.
type KeywordRun struct {
	Keyword string
}

func (KeywordRun) Mode() ListingMode { return ModeSold }
func (r KeywordRun) Term() string    { return r.Keyword }
func (KeywordRun) isRun()            {}

// SellerRun collects a seller's active listings.
type SellerRun struct {
	SellerName string
}

func (SellerRun) Mode() ListingMode { return ModeActive }
func (r SellerRun) Term() string    { return r.SellerName }
func (SellerRun) isRun()            {}

var ErrAmbiguousRun = errors.New("exactly one of keyword or seller_name is required")

// NewRun resolves a trigger payload into a Run. Exactly one argument must be non-blank.
func NewRun(keyword, sellerName string) (Run, error) {
	keyword = strings.TrimSpace(keyword)
	sellerName = strings.TrimSpace(sellerName)
	switch {
	case keyword != "" && sellerName == "":
		return KeywordRun{Keyword: keyword}, nil
	case sellerName != "" && keyword == "":
		return SellerRun{SellerName: sellerName}, nil
	default:
		return nil, ErrAmbiguousRun
	}
}
