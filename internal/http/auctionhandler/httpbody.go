package auctionhandler

import "time"

type CreateAuctionBody struct {
	ItemName     string    `json:"item_name"     binding:"required,max=140"       example:"Vintage camera"`
	Category     string    `json:"category"      binding:"omitempty,max=60"       example:"Electronics"`
	Description  string    `json:"description"   binding:"required,max=2000"      example:"1968 rangefinder, working"`
	ImageURL     string    `json:"image_url"     binding:"omitempty,url"          example:"/uploads/1712.jpg"`
	StartingBid  float64   `json:"starting_bid"  binding:"required,gt=0"          example:"1000"`
	MinIncrement float64   `json:"min_increment" binding:"omitempty,gt=0"         example:"50"`
	EndTime      time.Time `json:"end_time"      binding:"required"               example:"2025-07-27T16:05:05Z"`
} // @name CreateAuctionRequest

type PlaceBidBody struct {
	Amount     float64 `json:"amount"       binding:"required,gt=0" example:"1050"`
	IsAutoBid  bool    `json:"is_auto_bid"                          example:"false"`
	MaxAutoBid float64 `json:"max_auto_bid" binding:"omitempty,gt=0" example:"2000"`
} // @name PlaceBidRequest

type ListAuctionsQuery struct {
	Category string `form:"category" binding:"omitempty,max=60"`
	Sort     string `form:"sort"     binding:"omitempty,oneof=price end_time"`
	Limit    int    `form:"limit,default=20"  binding:"gte=0,lte=100"`
	Offset   int    `form:"offset,default=0"  binding:"gte=0"`
} // @name ListAuctionsQuery

type ErrorResponse struct {
	Error string `json:"error"`
} // @name ErrorResponse
