// Package httpapi exposes the session registry over HTTP.
// Endpoints:
//
//	GET  {basePath}/servers    registry snapshot
//	GET  {basePath}/healthz    liveness of the controller itself
//	GET  {basePath}/metrics    prometheus metrics
//	POST {basePath}/teardown   stop everything; body: {"post_command": "..."} (optional)
//
// basePath may be empty or start with '/'; no trailing slash.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/devserver/internal/manager"
	"github.com/loykin/devserver/internal/metrics"
)

type Router struct {
	mgr      *manager.Manager
	basePath string
}

// NewRouter constructs a Router with a configurable basePath.
// Example basePath: "/devserver" results in /devserver/servers etc.
func NewRouter(mgr *manager.Manager, basePath string) *Router {
	return &Router{mgr: mgr, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in any
// server or mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/servers", r.handleServers)
	group.GET("/healthz", r.handleHealthz)
	group.GET("/metrics", gin.WrapH(metrics.Handler()))
	group.POST("/teardown", r.handleTeardown)
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
func NewServer(addr, basePath string, mgr *manager.Manager) (*http.Server, error) {
	r := NewRouter(mgr, basePath)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server, nil
}

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

type teardownReq struct {
	PostCommand string `json:"post_command"`
}

func (r *Router) handleServers(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.mgr.Snapshot())
}

func (r *Router) handleHealthz(c *gin.Context) {
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleTeardown(c *gin.Context) {
	var req teardownReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
			return
		}
	}
	r.mgr.Teardown(c.Request.Context(), req.PostCommand)
	writeJSON(c, http.StatusOK, okResp{OK: true})
}
