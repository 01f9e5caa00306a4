// This is a http type of reporter.
// It fetches data from the committed index state
// and publishes it on read-only http routes.

package reporter

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/relicsprotocol/relicsd/keepsake"
	"github.com/relicsprotocol/relicsd/state"
)

const (
	ROUTE_STATUS   = "/status"
	ROUTE_RELIC    = "/relic/:id"
	ROUTE_RELICS   = "/relics"
	ROUTE_BALANCES = "/balances/:outpoint"
	ROUTE_EVENTS   = "/events/:height"
	ROUTE_SEALING  = "/sealing/:name"
)

type HttpReporter struct {
	serverIP   string // listen ip
	serverPort string // listen port

	store state.Store
}

func NewHttpReporter(serverIP string, serverPort string, store state.Store) *HttpReporter {
	return &HttpReporter{
		serverIP:   serverIP,
		serverPort: serverPort,
		store:      store,
	}
}

// Hook up routes & handlers
func (h *HttpReporter) SetupRouter() *gin.Engine {
	router := gin.Default()

	router.GET(ROUTE_STATUS, h.Status)
	router.GET(ROUTE_RELIC, h.Relic)
	router.GET(ROUTE_RELICS, h.Relics)
	router.GET(ROUTE_BALANCES, h.Balances)
	router.GET(ROUTE_EVENTS, h.Events)
	router.GET(ROUTE_SEALING, h.Sealing)

	return router
}

// Hook up router & ip:port
func (h *HttpReporter) Run() {
	router := h.SetupRouter()
	address := h.serverIP + ":" + h.serverPort
	if err := router.Run(address); err != nil {
		panic(err)
	}
}

func (h *HttpReporter) Status(c *gin.Context) {
	height, hash, err := h.store.Tip()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"height": height, "hash": hash})
}

// Relic serves one entry, addressed by "block:tx" id or by ticker.
func (h *HttpReporter) Relic(c *gin.Context) {
	raw := c.Param("id")
	var entry *state.RelicEntry
	var err error
	if id, idErr := keepsake.ParseRelicId(raw); idErr == nil {
		entry, err = h.store.Relic(id)
	} else if spaced, nameErr := keepsake.SpacedRelicFromString(raw); nameErr == nil {
		entry, err = h.store.RelicByName(spaced.Relic.String())
	} else {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be block:tx or a ticker"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if entry == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such relic"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entry})
}

func (h *HttpReporter) Relics(c *gin.Context) {
	entries, err := h.store.Relics()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}

func (h *HttpReporter) Balances(c *gin.Context) {
	outpoint := c.Param("outpoint")
	balances, err := h.store.Balances(outpoint)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if balances == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no balances on outpoint"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": balances})
}

func (h *HttpReporter) Events(c *gin.Context) {
	var height uint64
	if err := parseUint(c.Param("height"), &height); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "height must be a number"})
		return
	}
	events, err := h.store.BlockEvents(height)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": events})
}

func (h *HttpReporter) Sealing(c *gin.Context) {
	spaced, err := keepsake.SpacedRelicFromString(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ticker"})
		return
	}
	rec, err := h.store.Sealing(spaced.Relic.String())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no sealing for ticker"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rec})
}
