package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/m-mizutani/idearoulette/pkg/model"
	"github.com/m-mizutani/idearoulette/pkg/repository"
	"github.com/m-mizutani/idearoulette/pkg/service/generator"
	"github.com/m-mizutani/idearoulette/pkg/utils/logging"
)

// userIDHeader carries the authenticated user identity, resolved by the
// fronting proxy. An absent header means an anonymous reader: generation
// still works, durable writes are refused.
const userIDHeader = "X-User-ID"

// Server is the HTTP surface of the feed engine. It is stateless per
// request; feed state lives in the clients, the server only generates and
// records.
type Server struct {
	engine *gin.Engine
	repo   repository.Repository
	gen    *generator.Service
}

func New(repo repository.Repository, gen *generator.Service) *Server {
	s := &Server{
		repo: repo,
		gen:  gen,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger())

	r.GET("/healthz", s.health)

	api := r.Group("/api")
	{
		api.POST("/ideas", s.generateIdeas)
		api.POST("/remix", s.remixIdea)
		api.POST("/analytics/end-session", s.endSession)
	}

	s.engine = r
	return s
}

// Engine exposes the underlying router for tests
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run serves on the given address until the listener fails
func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logging.From(c.Request.Context()).Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
		)
	}
}

func userID(c *gin.Context) model.UserID {
	return model.UserID(c.GetHeader(userIDHeader))
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type generateIdeasRequest struct {
	Preferences  *model.Preferences `json:"preferences"`
	Count        int                `json:"count"`
	ExcludeIdeas []string           `json:"excludeIdeas"`
}

func (s *Server) generateIdeas(c *gin.Context) {
	var req generateIdeasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Count <= 0 {
		req.Count = 30
	}

	ideas := s.gen.GenerateOrFallback(c.Request.Context(), req.Preferences, req.Count, req.ExcludeIdeas)
	c.JSON(http.StatusOK, gin.H{"ideas": ideas})
}

type remixRequest struct {
	Idea      *model.Idea `json:"idea" binding:"required"`
	FullIdeas bool        `json:"fullIdeas"`
}

func (s *Server) remixIdea(c *gin.Context) {
	var req remixRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.gen.Remix(c.Request.Context(), req.Idea, req.FullIdeas)
	if err != nil {
		if !req.FullIdeas {
			// Title remixes degrade to the canned variations
			logging.From(c.Request.Context()).Warn("remix failed, using fallback titles", "error", err)
			c.JSON(http.StatusOK, gin.H{"remixes": generator.FallbackRemixTitles(req.Idea)})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "remix generation failed"})
		return
	}

	if result.IsTitles() {
		c.JSON(http.StatusOK, gin.H{"remixes": result.Titles})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ideas": result.Ideas})
}

type endSessionRequest struct {
	SessionID    model.SessionID `json:"sessionId" binding:"required"`
	StartTime    time.Time       `json:"startTime"`
	ActionsCount int64           `json:"actionsCount"`
	IdeasViewed  int64           `json:"ideasViewed"`
	IdeasLiked   int64           `json:"ideasLiked"`
	IdeasRemixed int64           `json:"ideasRemixed"`
	IdeasShared  int64           `json:"ideasShared"`
	SwipeCount   int64           `json:"swipeCount"`
}

// endSession is the beacon endpoint clients hit on page unload. It must
// answer fast and never fail the client; errors are logged only.
func (s *Server) endSession(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing " + userIDHeader + " header"})
		return
	}

	var req endSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	now := time.Now()
	session := &model.Session{
		UserID:       uid,
		SessionID:    req.SessionID,
		StartTime:    req.StartTime,
		EndTime:      &now,
		ActionsCount: req.ActionsCount,
		IdeasViewed:  req.IdeasViewed,
		IdeasLiked:   req.IdeasLiked,
		IdeasRemixed: req.IdeasRemixed,
		IdeasShared:  req.IdeasShared,
		SwipeCount:   req.SwipeCount,
	}
	if !req.StartTime.IsZero() {
		session.DurationSec = int64(now.Sub(req.StartTime).Seconds())
	}

	if err := s.repo.CloseSession(c.Request.Context(), session); err != nil {
		logging.From(c.Request.Context()).Warn("failed to close session", "error", err)
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
