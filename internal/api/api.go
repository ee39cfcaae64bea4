// Package api exposes the fulfillment pipeline over HTTP. Every mutating
// route is fire-and-forget: it enqueues and answers 202 with the job id;
// processing outcomes surface through the job status route.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ViniMktd/FlowBot-sub001/internal/domain"
	"github.com/ViniMktd/FlowBot-sub001/internal/pipeline"
)

type Server struct {
	pipeline *pipeline.Pipeline
	logger   *slog.Logger
}

func NewServer(p *pipeline.Pipeline, logger *slog.Logger) *Server {
	return &Server{pipeline: p, logger: logger}
}

// Router builds the gin engine with all routes attached.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.health)
	r.GET("/queues", s.queueStats)
	r.POST("/orders", s.createOrder)
	r.POST("/orders/:id/dispatch", s.dispatchOrder)
	r.POST("/webhooks/whatsapp", s.whatsappWebhook)
	r.GET("/jobs/:queue/:id", s.jobStatus)
	r.DELETE("/jobs/:queue/:id", s.removeJob)
	return r
}

func (s *Server) health(c *gin.Context) {
	state := s.pipeline.State()
	code := http.StatusOK
	if state != pipeline.StateRunning {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": string(state)})
}

func (s *Server) queueStats(c *gin.Context) {
	out := make([]pipeline.Stats, 0)
	for _, name := range s.pipeline.QueueNames() {
		out = append(out, s.pipeline.Queue(name).Stats())
	}
	c.JSON(http.StatusOK, gin.H{"queues": out})
}

type createOrderRequest struct {
	ExternalID   string             `json:"externalId" binding:"required"`
	CustomerName string             `json:"customerName" binding:"required"`
	Phone        string             `json:"phone" binding:"required"`
	Address      string             `json:"address"`
	Items        []domain.OrderItem `json:"items" binding:"required,min=1"`
}

func (s *Server) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.accept(c, domain.QueueOrders, domain.JobProcessOrder, domain.ProcessOrderPayload{
		ExternalID:   req.ExternalID,
		CustomerName: req.CustomerName,
		Phone:        req.Phone,
		Address:      req.Address,
		Items:        req.Items,
	})
}

func (s *Server) dispatchOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}
	s.accept(c, domain.QueueSupplier, domain.JobSendOrderToSupplier,
		domain.SendOrderToSupplierPayload{OrderID: orderID})
}

type whatsappWebhookRequest struct {
	From string `json:"from" binding:"required"`
	Body string `json:"body" binding:"required"`
}

func (s *Server) whatsappWebhook(c *gin.Context) {
	var req whatsappWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.accept(c, domain.QueueMessaging, domain.JobHandleInboundMessage,
		domain.InboundMessagePayload{From: req.From, Body: req.Body})
}

// accept enqueues and answers 202. Acceptance only means the envelope is in;
// the handler runs later and its failures show up on the job status route.
func (s *Server) accept(c *gin.Context, queue, jobType string, payload any) {
	id, err := s.pipeline.Enqueue(queue, jobType, payload)
	if err != nil {
		if errors.Is(err, pipeline.ErrQueueClosed) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		s.logger.Error("enqueue failed", "queue", queue, "type", jobType, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"jobId": id, "queue": queue, "type": jobType})
}

func (s *Server) jobStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}
	info, ok := s.pipeline.Lookup(c.Param("queue"), id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) removeJob(c *gin.Context) {
	q := s.pipeline.Queue(c.Param("queue"))
	if q == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown queue"})
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}
	if err := q.Remove(id); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
