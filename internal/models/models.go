package models

import "time"

// AuctionStatus is the lifecycle of a listing. OPEN and SETTLED are the only
// persisted values; CLOSED is derived from the end time at read time.
type AuctionStatus string

const (
	AuctionOpen    AuctionStatus = "OPEN"
	AuctionClosed  AuctionStatus = "CLOSED"
	AuctionSettled AuctionStatus = "SETTLED"
)

// Auction is a priced listing open for bidding within a fixed time window.
type Auction struct {
	ID           string        `json:"id"`
	SellerID     string        `json:"seller_id"`
	ItemName     string        `json:"item_name"`
	Category     string        `json:"category"`
	Description  string        `json:"description"`
	ImageURL     string        `json:"image_url,omitempty"`
	StartingBid  float64       `json:"starting_bid"`
	CurrentPrice float64       `json:"current_price"`
	MinIncrement float64       `json:"min_increment"`
	Status       AuctionStatus `json:"status"`
	WinnerID     string        `json:"winner_id,omitempty"`
	EndTime      time.Time     `json:"end_time"`
	CreatedAt    time.Time     `json:"created_at"`
}

// EffectiveStatus folds the time window into the persisted status.
func (a *Auction) EffectiveStatus(now time.Time) AuctionStatus {
	if a.Status == AuctionOpen && !now.Before(a.EndTime) {
		return AuctionClosed
	}
	return a.Status
}

// AuctionFilter narrows and orders an open-auction listing. Zero value lists
// everything newest-first.
type AuctionFilter struct {
	Category string
	Sort     string // "", "price" or "end_time"
	Limit    int
	Offset   int
}

// Bid is an immutable, timestamped offer tied to one bidder and one auction.
type Bid struct {
	ID         string    `json:"id"`
	AuctionID  string    `json:"auction_id"`
	BidderID   string    `json:"bidder_id"`
	Amount     float64   `json:"amount"`
	IsAutoBid  bool      `json:"is_auto_bid"`
	MaxAutoBid float64   `json:"max_auto_bid,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// User is a registered marketplace participant.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
