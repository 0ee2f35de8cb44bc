// Package api exposes a debug-only HTTP surface for operator
// introspection: health, ring membership, and Prometheus metrics. The
// DHT's client-facing protocol itself runs over the TCP/JSON transport
// in internal/transport; nothing here answers insert/query/delete
// traffic.
package api

import (
	"net/http"

	"chorddht/internal/cluster"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler holds the node this debug surface introspects.
type Handler struct {
	node *cluster.Node
}

func NewHandler(node *cluster.Node) *Handler {
	return &Handler{node: node}
}

// Register mounts every debug route on r.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/healthz", h.Health)
	r.GET("/debug/ring", h.Ring)
	r.GET("/debug/records", h.Records)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Health reports whether this node is online.
func (h *Handler) Health(c *gin.Context) {
	status := http.StatusOK
	if !h.node.IsOnline() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"node":   h.node.Info.String(),
		"online": h.node.IsOnline(),
	})
}

// Ring reports this node's view of its immediate neighbors and
// replication configuration.
func (h *Handler) Ring(c *gin.Context) {
	prev, succ := "none", "none"
	if p := h.node.Previous(); p != nil {
		prev = p.String()
	}
	if s := h.node.Successor(); s != nil {
		succ = s.String()
	}
	c.JSON(http.StatusOK, gin.H{
		"self":      h.node.Info.String(),
		"bootstrap": h.node.IsBootstrap(),
		"previous":  prev,
		"successor": succ,
		"k":         h.node.K(),
		"mode":      h.node.Mode().String(),
		"replicas":  h.node.ReplicaRangeCount(),
	})
}

// Records reports how many items this node currently stores.
func (h *Handler) Records(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"count": h.node.RecordCount(),
	})
}
