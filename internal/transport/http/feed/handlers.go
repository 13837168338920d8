package feedhttp

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"datafeeder/internal/pkg/symbol"

	"github.com/gin-gonic/gin"
)

type handlers struct {
	cfg ServerConfig
}

func (h *handlers) register(r gin.IRoutes) {
	r.GET("/", h.root)
	r.GET("/health", h.health)
	r.GET("/market-data", h.marketData)
	r.GET("/market-data/all", h.marketDataAll)
	r.GET("/stats", h.stats)
	r.GET("/stats/fetches", h.fetches)
}

func (h *handlers) timestamp() string {
	return h.cfg.Now().UTC().Format(time.RFC3339Nano)
}

func (h *handlers) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"service":     ServiceName,
		"initialized": h.cfg.Readiness.Ready(),
	})
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"timestamp":   h.timestamp(),
		"initialized": h.cfg.Readiness.Ready(),
	})
}

func (h *handlers) marketData(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("pair"))
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "query parameter pair is required"})
		return
	}
	pair := symbol.Normalize(raw)
	if pair == "" || !h.cfg.Store.HasInstrument(pair) {
		c.JSON(http.StatusBadRequest, gin.H{
			"detail": fmt.Sprintf("Invalid pair: %s. Valid pairs: %s",
				strings.ToUpper(raw), strings.Join(h.cfg.Store.Instruments(), ", ")),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"pair":       pair,
		"timestamp":  h.timestamp(),
		"timeframes": h.cfg.Store.Snapshot(pair),
	})
}

func (h *handlers) marketDataAll(c *gin.Context) {
	out := make(gin.H)
	ts := h.timestamp()
	for _, pair := range h.cfg.Store.Instruments() {
		out[pair] = gin.H{
			"timestamp":  ts,
			"timeframes": h.cfg.Store.Snapshot(pair),
		}
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"timestamp": h.timestamp(),
		"api_keys":  h.cfg.Usage.Stats(),
		"storage":   h.cfg.Store.Stats(),
	})
}

func (h *handlers) fetches(c *gin.Context) {
	if h.cfg.FetchLog == nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "fetch log is disabled"})
		return
	}
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	entries, err := h.cfg.FetchLog.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"timestamp": h.timestamp(),
		"count":     len(entries),
		"fetches":   entries,
	})
}
