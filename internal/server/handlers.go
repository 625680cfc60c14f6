package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lyricgen/lyricgen/internal/batch"
	"github.com/lyricgen/lyricgen/internal/dataset"
	"github.com/lyricgen/lyricgen/internal/delivery"
	"github.com/lyricgen/lyricgen/internal/fanout"
	"github.com/lyricgen/lyricgen/internal/model"
	"github.com/lyricgen/lyricgen/internal/report"
	"go.uber.org/zap"
)

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "lyricgen",
		"version": s.version,
		"batch":   s.state.Status(),
	})
}

type submitBatchRequest struct {
	SystemContext *string `json:"system_context"`
	UserPrompt    string  `json:"user_prompt" binding:"required"`
	Model         string  `json:"model"`
	Count         *int    `json:"count"`
}

// BatchView is the JSON shape of the current batch.
type BatchView struct {
	Batch   batch.Snapshot `json:"batch"`
	Partial bool           `json:"partial"`
	Error   string         `json:"error,omitempty"`
}

func (s *Server) submitBatch(c *gin.Context) {
	var req submitBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	count := s.generation.Count
	if req.Count != nil {
		count = *req.Count
	}
	if err := fanout.CheckCount(count, s.generation.MaxCount); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidCount, err.Error())
		return
	}
	genReq := model.GenerationRequest{
		SystemContext: s.generation.SystemContext,
		UserPrompt:    req.UserPrompt,
		Model:         req.Model,
	}
	if req.SystemContext != nil {
		genReq.SystemContext = *req.SystemContext
	}
	if genReq.Model == "" {
		genReq.Model = s.generation.Model
	}

	if !s.submitting.TryLock() {
		respondError(c, http.StatusConflict, ErrCodeBatchInFlight, batch.ErrBatchInFlight.Error())
		return
	}
	defer s.submitting.Unlock()

	outcome, err := s.coordinator.Run(c.Request.Context(), s.state, genReq, count, nil)
	switch {
	case errors.Is(err, batch.ErrBatchInFlight):
		respondError(c, http.StatusConflict, ErrCodeBatchInFlight, err.Error())
		return
	case errors.Is(err, fanout.ErrInvalidCount):
		respondError(c, http.StatusBadRequest, ErrCodeInvalidCount, err.Error())
		return
	}

	view := BatchView{Batch: s.state.Snapshot()}
	var unitErr *fanout.UnitError
	if errors.As(err, &unitErr) {
		view.Partial = true
		view.Error = unitErr.Error()
		c.JSON(http.StatusMultiStatus, view)
		return
	}
	if err != nil {
		s.logger.Error("batch run failed", zap.Error(err))
		internalError(c, err.Error())
		return
	}
	s.logger.Info("batch served",
		zap.String("batch_id", outcome.BatchID),
		zap.Int("succeeded", outcome.Succeeded),
	)
	c.JSON(http.StatusOK, view)
}

func (s *Server) getBatch(c *gin.Context) {
	snap := s.state.Snapshot()
	view := BatchView{Batch: snap, Partial: snap.Status == batch.StatusFailedPartial}
	if snap.Failure != nil {
		view.Error = snap.Failure.FailureReason
	}
	c.JSON(http.StatusOK, view)
}

type upsertEntryRequest struct {
	Original string  `json:"original" binding:"required"`
	Edited   *string `json:"edited"`
	Included *bool   `json:"included"`
}

func (s *Server) upsertEntry(c *gin.Context) {
	var req upsertEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if s.state.Status() == batch.StatusIdle {
		respondError(c, http.StatusConflict, ErrCodeNoBatch, "no batch has been submitted")
		return
	}

	entry, ok := s.state.Curation().Update(req.Original, func(e *batch.Entry) {
		if req.Edited != nil {
			e.Edited = *req.Edited
		}
		if req.Included != nil {
			e.Included = *req.Included
		}
	})
	if !ok {
		respondError(c, http.StatusNotFound, ErrCodeUnknownEntry, "no completion with that original text in the current batch")
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (s *Server) artifact() (delivery.Artifact, error) {
	data, err := dataset.FromState(s.state)
	if err != nil {
		return delivery.Artifact{}, err
	}
	return delivery.Artifact{
		Filename:    s.artifactName,
		ContentType: dataset.ContentType,
		Data:        data,
	}, nil
}

func (s *Server) exportBatch(c *gin.Context) {
	artifact, err := s.artifact()
	if errors.Is(err, dataset.ErrEmpty) {
		respondError(c, http.StatusUnprocessableEntity, ErrCodeNothingSelected, err.Error())
		return
	}
	if err != nil {
		internalError(c, err.Error())
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Filename))
	c.Data(http.StatusOK, artifact.ContentType, artifact.Data)
}

func (s *Server) batchReport(c *gin.Context) {
	summary := report.BuildSummary(s.state.Snapshot())
	report.SortByIndex(&summary)
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(report.RenderMarkdown(summary)))
}

func (s *Server) deliverBatch(c *gin.Context) {
	if s.sink == nil {
		respondError(c, http.StatusServiceUnavailable, ErrCodeDeliveryFailed, "no delivery sink configured")
		return
	}
	artifact, err := s.artifact()
	if errors.Is(err, dataset.ErrEmpty) {
		respondError(c, http.StatusUnprocessableEntity, ErrCodeNothingSelected, err.Error())
		return
	}
	if err != nil {
		internalError(c, err.Error())
		return
	}

	receipt, err := s.sink.Deliver(c.Request.Context(), artifact)
	if err != nil {
		s.logger.Warn("delivery failed", zap.String("sink", s.sink.Name()), zap.Error(err))
		var delErr *delivery.DeliveryError
		if errors.As(err, &delErr) {
			respondErrorWithDetails(c, http.StatusBadGateway, ErrCodeDeliveryFailed, "delivery rejected", delErr.Error())
			return
		}
		respondErrorWithDetails(c, http.StatusBadGateway, ErrCodeDeliveryFailed, "delivery failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, receipt)
}
