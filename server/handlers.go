package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	contractx "github.com/wireheat/afterhours/agent/contract"
	intakex "github.com/wireheat/afterhours/agent/intake"
	statex "github.com/wireheat/afterhours/agent/state"
	workflowx "github.com/wireheat/afterhours/agent/workflow"
)

type toolRequest struct {
	SessionID string         `json:"session_id"`
	Tool      string         `json:"tool" binding:"required"`
	Args      map[string]any `json:"args"`
}

type statusUpdateRequest struct {
	Status intakex.Status `json:"status" binding:"required"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"agent":  "afterhours",
	})
}

// ready reports whether the inbound call handler has been registered with the
// telephony platform. The dialog core itself is usable before that completes.
func (s *Server) ready(c *gin.Context) {
	info := s.handlerInfoSnapshot()
	if info == nil {
		c.JSON(http.StatusOK, gin.H{"status": "initializing"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ready",
		"address": info.Address,
	})
}

func (s *Server) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"phone_number": s.cfg.PhoneNumber,
		"company_name": s.cfg.CompanyName,
	})
}

func (s *Server) getToken(c *gin.Context) {
	if s.sw == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "telephony credentials not configured"})
		return
	}
	info := s.handlerInfoSnapshot()
	if info == nil || info.AddressID == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "call handler not registered yet"})
		return
	}

	token, err := s.sw.GuestToken(c.Request.Context(), info.AddressID)
	if err != nil {
		log.Error().Err(err).Msg("guest token request failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "token request failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":   token,
		"address": info.Address,
	})
}

// listRequests returns all intake records newest first, with counts computed
// from the same snapshot so the list and the counters never disagree.
func (s *Server) listRequests(c *gin.Context) {
	requests, err := s.repo.List(c.Request.Context())
	if err != nil {
		s.renderError(c, err)
		return
	}

	// List yields insertion order; the dashboard wants newest first.
	for i, j := 0, len(requests)-1; i < j; i, j = i+1, j-1 {
		requests[i], requests[j] = requests[j], requests[i]
	}

	emergencies := 0
	for _, req := range requests {
		if req.IsEmergency {
			emergencies++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"requests":        requests,
		"total_count":     len(requests),
		"emergency_count": emergencies,
	})
}

func (s *Server) getRequest(c *gin.Context) {
	req, err := s.repo.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (s *Server) updateRequestStatus(c *gin.Context) {
	var body statusUpdateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}
	switch body.Status {
	case intakex.StatusPending, intakex.StatusDispatched, intakex.StatusResolved:
	default:
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "unknown status: " + string(body.Status)})
		return
	}

	req, err := s.repo.UpdateStatus(c.Request.Context(), c.Param("id"), body.Status)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (s *Server) getStats(c *gin.Context) {
	stats, err := s.repo.Stats(c.Request.Context())
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// handleTool is the per-turn entrypoint: the reasoning layer posts the tool
// call it selected and gets back the scripted reply plus the session's new
// position. Taxonomy errors map to stable status codes so the caller can
// distinguish "re-prompt the caller" from "something broke".
func (s *Server) handleTool(c *gin.Context) {
	var body toolRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tool is required"})
		return
	}

	out, err := s.agent.HandleInvocation(c.Request.Context(), body.SessionID, contractx.ToolInvocation{
		Tool: body.Tool,
		Args: body.Args,
	})
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getSession(c *gin.Context) {
	sess, err := s.agent.Session(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": sess.SessionID,
		"context":    sess.CurrentContext,
		"step":       sess.CurrentStep,
		"data":       sess.Data(),
		"updated_at": sess.UpdatedAt,
	})
}

func (s *Server) endSession(c *gin.Context) {
	if err := s.agent.EndSession(c.Request.Context(), c.Param("id")); err != nil {
		s.renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) renderError(c *gin.Context, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, intakex.ErrNotFound), errors.Is(err, statex.ErrStateNotFound):
		return http.StatusNotFound
	case errors.Is(err, contractx.ErrUnauthorizedTool),
		errors.Is(err, workflowx.ErrInvalidTransition),
		errors.Is(err, intakex.ErrInvalidStatusTransition),
		errors.Is(err, intakex.ErrDuplicateID):
		return http.StatusConflict
	case errors.Is(err, contractx.ErrArgumentValidation),
		errors.Is(err, intakex.ErrIncompleteRequest):
		return http.StatusUnprocessableEntity
	case errors.Is(err, contractx.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, intakex.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
