package handlers

import (
	"encoding/csv"
	"errors"
	"net/http"
	"strconv"
	"time"

	"raffle/internal/models"
	"raffle/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
)

// HTTPHandler holds the dependencies for the HTTP handlers.
type HTTPHandler struct {
	registry  *services.Registry
	referrals *services.ReferralService
	stats     *services.StatsService
	random    *services.RandomnessService
	bank      *services.Bank
	mint      *services.TokenMint
}

// NewHTTPHandler creates a new HTTPHandler.
func NewHTTPHandler(registry *services.Registry, referrals *services.ReferralService,
	stats *services.StatsService, random *services.RandomnessService,
	bank *services.Bank, mint *services.TokenMint) *HTTPHandler {
	return &HTTPHandler{
		registry:  registry,
		referrals: referrals,
		stats:     stats,
		random:    random,
		bank:      bank,
		mint:      mint,
	}
}

// RegisterRoutes registers all the application routes.
func (h *HTTPHandler) RegisterRoutes(router *gin.Engine) {
	router.POST("/raffles", h.CreateRaffle)
	router.GET("/raffles", h.ListRaffles)
	router.GET("/raffles/:id", h.GetRaffle)
	router.GET("/raffles/:id/entrants/:index", h.GetEntrant)
	router.POST("/raffles/:id/enter", h.Enter)
	router.POST("/raffles/:id/referral-enter", h.ReferralEnter)
	router.POST("/raffles/:id/upkeep", h.Upkeep)
	router.POST("/raffles/:id/abandon", h.Abandon)
	router.POST("/randomness/:requestId", h.FulfillRandomness)
	router.GET("/referrals/:address", h.GetReferral)
	router.GET("/accounts/:address", h.GetAccount)
	router.GET("/stats", h.GetStats)
	router.GET("/stats/winners.csv", h.ExportWinnersCSV)
}

type createRaffleRequest struct {
	EntranceFee         uint64 `json:"entranceFee" binding:"required,gt=0"`
	DrawIntervalSeconds int64  `json:"drawIntervalSeconds" binding:"required,gt=0"`
	RewardAmount        uint64 `json:"rewardAmount"`
}

type enterRequest struct {
	Address string `json:"address" binding:"required"`
	Value   uint64 `json:"value" binding:"required,gt=0"`
}

type referralEnterRequest struct {
	Address  string `json:"address" binding:"required"`
	Referrer string `json:"referrer" binding:"required"`
	Value    uint64 `json:"value" binding:"required,gt=0"`
}

type fulfillRequest struct {
	Words []uint64 `json:"words" binding:"required,min=1"`
}

// CreateRaffle handles the creation of a new raffle instance.
func (h *HTTPHandler) CreateRaffle(c *gin.Context) {
	var req createRaffleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	r, err := h.registry.Create(models.RaffleParams{
		EntranceFee:  req.EntranceFee,
		DrawInterval: time.Duration(req.DrawIntervalSeconds) * time.Second,
		RewardAmount: req.RewardAmount,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, r.Snapshot())
}

// ListRaffles returns a snapshot of every registered raffle.
func (h *HTTPHandler) ListRaffles(c *gin.Context) {
	raffles := h.registry.List()
	out := make([]models.RaffleSnapshot, 0, len(raffles))
	for _, r := range raffles {
		out = append(out, r.Snapshot())
	}
	c.JSON(http.StatusOK, out)
}

func (h *HTTPHandler) lookup(c *gin.Context) (*services.Raffle, bool) {
	r, ok := h.registry.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown raffle"})
	}
	return r, ok
}

// GetRaffle returns the snapshot of one raffle.
func (h *HTTPHandler) GetRaffle(c *gin.Context) {
	r, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, r.Snapshot())
}

// GetEntrant returns the roster entry at the given position.
func (h *HTTPHandler) GetEntrant(c *gin.Context) {
	r, ok := h.lookup(c)
	if !ok {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid index"})
		return
	}
	address, ok := r.Entrant(index)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no entrant at that index"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"index": index, "address": address})
}

// Enter handles a raffle entry.
func (h *HTTPHandler) Enter(c *gin.Context) {
	r, ok := h.lookup(c)
	if !ok {
		return
	}
	var req enterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := r.Enter(req.Address, req.Value); err != nil {
		h.renderEntryError(c, err)
		return
	}
	c.JSON(http.StatusOK, r.Snapshot())
}

// ReferralEnter handles a referred raffle entry.
func (h *HTTPHandler) ReferralEnter(c *gin.Context) {
	r, ok := h.lookup(c)
	if !ok {
		return
	}
	var req referralEnterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.referrals.EnterWithReferral(r, req.Address, req.Referrer, req.Value); err != nil {
		if errors.Is(err, services.ErrSelfReferral) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.renderEntryError(c, err)
		return
	}
	c.JSON(http.StatusOK, r.Snapshot())
}

func (h *HTTPHandler) renderEntryError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInsufficientPayment):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrNotOpen):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// Upkeep checks eligibility and requests a draw for one raffle.
func (h *HTTPHandler) Upkeep(c *gin.Context) {
	r, ok := h.lookup(c)
	if !ok {
		return
	}

	_, payload := r.CheckDraw(r.DrawInterval())
	requestID, err := r.RequestDraw(payload)
	if err != nil {
		var notNeeded *services.UpkeepNotNeededError
		if errors.As(err, &notNeeded) {
			c.JSON(http.StatusConflict, gin.H{
				"error":    "upkeep not needed",
				"balance":  notNeeded.Balance,
				"entrants": notNeeded.Entrants,
				"state":    notNeeded.State.String(),
			})
			return
		}
		logger.Errorf("Upkeep for raffle %s failed: %v", r.ID(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"requestId": requestID})
}

// Abandon clears a stuck draw request so the raffle reopens.
func (h *HTTPHandler) Abandon(c *gin.Context) {
	r, ok := h.lookup(c)
	if !ok {
		return
	}
	if err := r.AbandonDraw(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, r.Snapshot())
}

// FulfillRandomness is the inbound callback delivering random words for an
// outstanding request.
func (h *HTTPHandler) FulfillRandomness(c *gin.Context) {
	var req fulfillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	requestID := c.Param("requestId")
	err := h.random.Fulfill(requestID, req.Words)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "fulfilled"})
	case errors.Is(err, services.ErrUnknownRequest):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrRewardIssuance):
		// The payout itself succeeded; only the token credit is missing.
		c.JSON(http.StatusOK, gin.H{"status": "fulfilled", "warning": err.Error()})
	case errors.Is(err, services.ErrTransferFailed):
		logger.Errorf("Fulfillment %s left funds stuck: %v", requestID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

// GetReferral returns an address's referral standing.
func (h *HTTPHandler) GetReferral(c *gin.Context) {
	address := c.Param("address")
	referrer, _ := h.referrals.ReferrerOf(address)
	c.JSON(http.StatusOK, gin.H{
		"address":  address,
		"referrer": referrer,
		"reward":   h.referrals.RewardOf(address),
	})
}

// GetAccount returns an address's fund and reward-token balances.
func (h *HTTPHandler) GetAccount(c *gin.Context) {
	address := c.Param("address")
	c.JSON(http.StatusOK, gin.H{
		"address": address,
		"funds":   h.bank.BalanceOf(address),
		"rewards": h.mint.BalanceOf(address),
	})
}

// GetStats returns the aggregate view across all raffles.
func (h *HTTPHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.stats.Summary())
}

// ExportWinnersCSV handles the request to download the draw history as CSV.
func (h *HTTPHandler) ExportWinnersCSV(c *gin.Context) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment;filename=winners.csv")

	w := csv.NewWriter(c.Writer)

	if err := w.Write([]string{"raffle", "request", "winner", "payout", "reward", "entrants", "drawnAt"}); err != nil {
		logger.Infof("Error writing CSV header: %v", err)
		c.String(http.StatusInternalServerError, "Error writing CSV")
		return
	}

	for _, r := range h.registry.List() {
		for _, result := range r.History() {
			row := []string{
				result.RaffleID,
				result.RequestID,
				result.Winner,
				strconv.FormatUint(result.Payout, 10),
				strconv.FormatUint(result.Reward, 10),
				strconv.Itoa(result.Entrants),
				result.DrawnAt.Format(time.RFC3339),
			}
			if err := w.Write(row); err != nil {
				logger.Infof("Error writing CSV row: %v", err)
				c.String(http.StatusInternalServerError, "Error writing CSV")
				return
			}
		}
	}

	w.Flush()

	if err := w.Error(); err != nil {
		logger.Infof("Error flushing CSV writer: %v", err)
		c.String(http.StatusInternalServerError, "Error writing CSV")
	}
}
