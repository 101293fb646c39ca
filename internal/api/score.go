package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fmuoria/recruitment-scoring/internal/models"
	"github.com/fmuoria/recruitment-scoring/internal/scoring"
)

type scoreItem struct {
	Input    float64 `json:"input"`
	From     string  `json:"from_date"`
	To       string  `json:"to_date"`
	Weight   float64 `json:"weight" binding:"gte=0"`
	Cap      float64 `json:"cap" binding:"gte=0"`
	Rejected bool    `json:"rejected"`
}

type scoreRequest struct {
	ParentCap float64     `json:"parent_cap" binding:"gte=0"`
	Items     []scoreItem `json:"items" binding:"dive"`
}

type scoreResponse struct {
	Items   []models.ScoreTriple `json:"items"`
	Total   models.ScoreTriple   `json:"total"`
	Invalid []int                `json:"invalid,omitempty"`
	Error   *APIError            `json:"error,omitempty"`
}

// handleScore scores ad hoc items with one calculation method
func (s *Server) handleScore(method models.CalcMethod) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req scoreRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			s.badRequest(c, err)
			return
		}

		items := make([]scoring.Item, len(req.Items))
		for i, it := range req.Items {
			from, err := parseOptionalDate(it.From)
			if err != nil {
				s.badRequest(c, fmt.Errorf("items[%d].from_date: %w", i, err))
				return
			}
			to, err := parseOptionalDate(it.To)
			if err != nil {
				s.badRequest(c, fmt.Errorf("items[%d].to_date: %w", i, err))
				return
			}
			items[i] = scoring.Item{
				Input:    it.Input,
				From:     from,
				To:       to,
				Weight:   it.Weight,
				Cap:      it.Cap,
				Rejected: it.Rejected,
			}
		}

		res, err := scoring.Calculate(method, items, req.ParentCap)
		resp := scoreResponse{Items: res.Items, Total: res.Total, Invalid: res.Invalid}
		if err != nil {
			status, body := apiError(err)
			resp.Error = &body
			c.JSON(status, resp)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func parseOptionalDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("must be a date in YYYY-MM-DD format")
	}
	return t, nil
}
