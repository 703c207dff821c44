package auctionhandler

import (
	"errors"
	"net/http"

	"auctionhouse/internal/auctionerrors"
	"auctionhouse/internal/http/middleware"
	"auctionhouse/internal/models"
	"auctionhouse/internal/services/auction"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc auction.IAuctionService
}

func New(svc auction.IAuctionService) *Handler { return &Handler{svc: svc} }

func (h *Handler) Register(r gin.IRoutes, requireAuth gin.HandlerFunc) {
	r.GET("/api/auctions", h.list)
	r.GET("/api/auctions/:id", h.info)
	r.GET("/api/auctions/:id/bids", h.listBids)
	r.POST("/api/auctions", requireAuth, h.create)
	r.POST("/api/auctions/:id/bids", requireAuth, h.placeBid)
	r.GET("/api/user/dashboard", requireAuth, h.dashboard)
}

// @Summary		Create an auction listing
// @Description	Opens a time-boxed listing owned by the authenticated seller.
// @Tags			Auctions
// @Security		BearerAuth
// @Param			body	body		CreateAuctionBody	true	"Listing payload"
// @Success		201		{object}	models.Auction
// @Failure		400		{object}	ErrorResponse
// @Router			/api/auctions [post]
func (h *Handler) create(ginCtx *gin.Context) {
	var body CreateAuctionBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	}

	a, err := h.svc.CreateAuction(ginCtx.Request.Context(), auction.CreateAuctionInput{
		SellerID:     middleware.UserID(ginCtx),
		ItemName:     body.ItemName,
		Category:     body.Category,
		Description:  body.Description,
		ImageURL:     body.ImageURL,
		StartingBid:  body.StartingBid,
		MinIncrement: body.MinIncrement,
		EndTime:      body.EndTime,
	})
	if err != nil {
		ginCtx.JSON(statusFor(err), &ErrorResponse{Error: err.Error()})
		return
	}
	ginCtx.JSON(http.StatusCreated, a)
}

// @Summary		List open auctions
// @Description	Paginated list of open listings, newest first; filter by category, sort by price or end time.
// @Tags			Auctions
// @Param			category	query		string	false	"Category filter"
// @Param			sort		query		string	false	"Sort order"	Enums(price,end_time)
// @Param			limit		query		int		false	"Max results (0-100)"	default(20)
// @Param			offset		query		int		false	"Offset for pagination"	default(0)
// @Success		200			{array}		models.Auction
// @Failure		400			{object}	ErrorResponse
// @Router			/api/auctions [get]
func (h *Handler) list(ginCtx *gin.Context) {
	var q ListAuctionsQuery
	if err := ginCtx.ShouldBindQuery(&q); err != nil {
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	}
	out, err := h.svc.ListOpen(ginCtx.Request.Context(), models.AuctionFilter{
		Category: q.Category,
		Sort:     q.Sort,
		Limit:    q.Limit,
		Offset:   q.Offset,
	})
	if err != nil {
		ginCtx.JSON(http.StatusInternalServerError, &ErrorResponse{Error: err.Error()})
		return
	}
	ginCtx.JSON(http.StatusOK, out)
}

// @Summary		Get auction details
// @Tags			Auctions
// @Param			id	path		string	true	"Auction ID"
// @Success		200	{object}	models.Auction
// @Failure		404	{object}	ErrorResponse
// @Router			/api/auctions/{id} [get]
func (h *Handler) info(ginCtx *gin.Context) {
	dto, err := h.svc.GetAuction(ginCtx.Request.Context(), ginCtx.Param("id"))
	if err != nil {
		ginCtx.JSON(statusFor(err), &ErrorResponse{Error: err.Error()})
		return
	}
	ginCtx.JSON(http.StatusOK, dto)
}

// @Summary		Place a bid
// @Description	Accepts a bid that beats the current price by at least the listing's minimum increment.
// @Tags			Bids
// @Security		BearerAuth
// @Param			id		path		string			true	"Auction ID"
// @Param			body	body		PlaceBidBody	true	"Bid payload"
// @Success		201		{object}	auction.PlaceBidResult
// @Failure		400		{object}	ErrorResponse
// @Failure		404		{object}	ErrorResponse
// @Failure		409		{object}	ErrorResponse
// @Router			/api/auctions/{id}/bids [post]
func (h *Handler) placeBid(ginCtx *gin.Context) {
	var body PlaceBidBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	}

	res, err := h.svc.PlaceBid(ginCtx.Request.Context(), auction.PlaceBidInput{
		AuctionID:  ginCtx.Param("id"),
		BidderID:   middleware.UserID(ginCtx),
		Amount:     body.Amount,
		IsAutoBid:  body.IsAutoBid,
		MaxAutoBid: body.MaxAutoBid,
	})
	if err != nil {
		ginCtx.JSON(statusFor(err), &ErrorResponse{Error: err.Error()})
		return
	}
	ginCtx.JSON(http.StatusCreated, res)
}

// @Summary		Bid history
// @Tags			Bids
// @Param			id	path		string	true	"Auction ID"
// @Success		200	{array}		models.Bid
// @Failure		404	{object}	ErrorResponse
// @Router			/api/auctions/{id}/bids [get]
func (h *Handler) listBids(ginCtx *gin.Context) {
	bids, err := h.svc.ListBids(ginCtx.Request.Context(), ginCtx.Param("id"))
	if err != nil {
		ginCtx.JSON(statusFor(err), &ErrorResponse{Error: err.Error()})
		return
	}
	if bids == nil {
		bids = []models.Bid{}
	}
	ginCtx.JSON(http.StatusOK, bids)
}

// @Summary		User dashboard
// @Description	The caller's listings with bid counts plus their bids on open auctions.
// @Tags			Users
// @Security		BearerAuth
// @Success		200	{object}	auction.DashboardData
// @Router			/api/user/dashboard [get]
func (h *Handler) dashboard(ginCtx *gin.Context) {
	data, err := h.svc.Dashboard(ginCtx.Request.Context(), middleware.UserID(ginCtx))
	if err != nil {
		ginCtx.JSON(statusFor(err), &ErrorResponse{Error: err.Error()})
		return
	}
	ginCtx.JSON(http.StatusOK, data)
}

// statusFor maps the service error taxonomy onto HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, auctionerrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, auctionerrors.ErrValidation),
		errors.Is(err, auctionerrors.ErrBidTooLow):
		return http.StatusBadRequest
	case errors.Is(err, auctionerrors.ErrAuctionClosed),
		errors.Is(err, auctionerrors.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
