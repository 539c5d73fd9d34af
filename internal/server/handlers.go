package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nexafin/poolrisk/internal/position"
	"github.com/nexafin/poolrisk/pkg/errors"
	"github.com/nexafin/poolrisk/pkg/models"
)

type createPoolRequest struct {
	AssetA string `json:"asset_a" binding:"required"`
	AssetB string `json:"asset_b" binding:"required"`
}

func (s *Server) createPool(c *gin.Context) {
	var req createPoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errors.ErrInvalidInput)
		return
	}
	pool, err := s.ledger.CreatePool(req.AssetA, req.AssetB)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, pool)
}

func (s *Server) listPools(c *gin.Context) {
	c.JSON(http.StatusOK, s.ledger.ListPools())
}

func (s *Server) getPool(c *gin.Context) {
	poolID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortWithError(c, errors.ErrInvalidInput)
		return
	}
	pool, err := s.ledger.GetPool(poolID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, pool)
}

func (s *Server) quoteSwap(c *gin.Context) {
	poolID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortWithError(c, errors.ErrInvalidInput)
		return
	}
	amountIn, err := decimal.NewFromString(c.Query("amount_in"))
	if err != nil {
		abortWithError(c, errors.ErrInvalidInput)
		return
	}
	quote, err := s.ledger.QuoteSwap(poolID, c.Query("asset_in"), amountIn)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

type executeSwapRequest struct {
	Account string           `json:"account" binding:"required"`
	Quote   models.SwapQuote `json:"quote" binding:"required"`
}

func (s *Server) executeSwap(c *gin.Context) {
	var req executeSwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errors.ErrInvalidInput)
		return
	}
	result, err := s.ledger.ExecuteSwap(c.Request.Context(), req.Account, req.Quote)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type recordSnapshotRequest struct {
	Base       string          `json:"base" binding:"required"`
	Quote      string          `json:"quote" binding:"required"`
	Price      decimal.Decimal `json:"price" binding:"required"`
	Timestamp  time.Time       `json:"timestamp" binding:"required"`
	Confidence decimal.Decimal `json:"confidence"`
}

func (s *Server) recordSnapshot(c *gin.Context) {
	var req recordSnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errors.ErrInvalidInput)
		return
	}
	pair := models.AssetPair{Base: req.Base, Quote: req.Quote}
	snap := models.PriceSnapshot{
		Pair:       pair,
		Price:      req.Price,
		Timestamp:  req.Timestamp,
		Confidence: req.Confidence,
	}
	if err := s.cache.Record(snap); err != nil {
		abortWithError(c, err)
		return
	}
	// Every accepted snapshot is a potential rebalance trigger.
	s.rebalancer.OnSnapshot(pair)
	c.JSON(http.StatusAccepted, gin.H{"status": "recorded"})
}

type openPositionRequest struct {
	Account string `json:"account" binding:"required"`
	PoolID  string `json:"pool_id" binding:"required"`
	Kind    string `json:"kind" binding:"required"` // dual_sided or single_sided

	AmountA decimal.Decimal `json:"amount_a"`
	AmountB decimal.Decimal `json:"amount_b"`
	Asset   string          `json:"asset"`
	Amount  decimal.Decimal `json:"amount"`
}

func (s *Server) openPosition(c *gin.Context) {
	var req openPositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errors.ErrInvalidInput)
		return
	}
	poolID, err := uuid.Parse(req.PoolID)
	if err != nil {
		abortWithError(c, errors.ErrInvalidInput)
		return
	}

	spec := position.DepositSpec{
		AmountA: req.AmountA,
		AmountB: req.AmountB,
		Asset:   req.Asset,
		Amount:  req.Amount,
	}
	switch req.Kind {
	case models.DualSided.String():
		spec.Kind = models.DualSided
	case models.SingleSided.String():
		spec.Kind = models.SingleSided
	default:
		abortWithError(c, errors.ErrInvalidDeposit)
		return
	}

	pos, err := s.positions.Open(c.Request.Context(), req.Account, poolID, spec)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, pos)
}

func (s *Server) listPositions(c *gin.Context) {
	owner := c.Query("owner")
	if owner == "" {
		abortWithError(c, errors.ErrInvalidInput)
		return
	}
	c.JSON(http.StatusOK, s.positions.ListByOwner(owner))
}

func (s *Server) getPosition(c *gin.Context) {
	positionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortWithError(c, errors.ErrInvalidInput)
		return
	}
	pos, err := s.positions.Get(positionID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, pos)
}

type closePositionRequest struct {
	Account string `json:"account" binding:"required"`
}

func (s *Server) closePosition(c *gin.Context) {
	positionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortWithError(c, errors.ErrInvalidInput)
		return
	}
	var req closePositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errors.ErrInvalidInput)
		return
	}
	if err := s.verifyOwner(positionID, req.Account); err != nil {
		abortWithError(c, err)
		return
	}
	pos, err := s.positions.Close(c.Request.Context(), positionID)
	if err != nil {
		if errors.Is(err, errors.ErrWithdrawalPending) {
			c.JSON(http.StatusAccepted, pos)
			return
		}
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, pos)
}

type partialWithdrawRequest struct {
	Account  string          `json:"account" binding:"required"`
	Fraction decimal.Decimal `json:"fraction" binding:"required"`
}

func (s *Server) partialWithdraw(c *gin.Context) {
	positionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortWithError(c, errors.ErrInvalidInput)
		return
	}
	var req partialWithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errors.ErrInvalidInput)
		return
	}
	if err := s.verifyOwner(positionID, req.Account); err != nil {
		abortWithError(c, err)
		return
	}
	pos, err := s.positions.PartialWithdraw(c.Request.Context(), positionID, req.Fraction)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, pos)
}

// verifyOwner rejects position mutations by anyone but the owner.
func (s *Server) verifyOwner(positionID uuid.UUID, account string) error {
	pos, err := s.positions.Get(positionID)
	if err != nil {
		return err
	}
	if pos.Owner != account {
		return errors.ErrNotOwner
	}
	return nil
}

func (s *Server) fundStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"total_balance": s.fund.Balance()})
}

func (s *Server) listRebalances(c *gin.Context) {
	poolID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortWithError(c, errors.ErrInvalidInput)
		return
	}
	records, err := s.journal.RebalancesForPool(poolID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}
