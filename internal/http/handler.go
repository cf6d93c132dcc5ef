package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"gatecount-service/internal/domain/gate"
	"gatecount-service/internal/service"
	"gatecount-service/internal/utils"
)

type Handler struct {
	gateService     *service.GateService
	countingService *service.CountingService
	log             zerolog.Logger
}

func NewHandler(
	gateService *service.GateService,
	countingService *service.CountingService,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		gateService:     gateService,
		countingService: countingService,
		log:             log,
	}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	// Tracker and read endpoints
	public := r.Group("/api/v1")
	{
		public.POST("/trajectories", h.createTrajectory)
		public.POST("/tracks/:track_id/points", h.appendTrackPoint)
		public.POST("/tracks/:track_id/end", h.endTrack)
		public.GET("/events", h.listEvents)
		public.GET("/counts", h.listCounts)
	}

	// Operator configuration endpoints
	protected := r.Group("/api/v1")
	protected.Use(authMiddleware)
	{
		protected.GET("/cameras/:camera_id/gate", h.getGateConfig)
		protected.PUT("/cameras/:camera_id/gate", h.putGateConfig)
		protected.POST("/cameras/:camera_id/gate/activate", h.activateGateConfig)
	}
}

// trajectoryPointRequest is one tracker observation on the wire.
type trajectoryPointRequest struct {
	Time time.Time `json:"t"`
	X    float64   `json:"x"`
	Y    float64   `json:"y"`
}

func (p trajectoryPointRequest) toDomain() gate.TrajectoryPoint {
	return gate.TrajectoryPoint{Time: p.Time, Point: gate.Point{X: p.X, Y: p.Y}}
}

type trajectoryRequest struct {
	CameraID    string                   `json:"camera_id"`
	TrackID     string                   `json:"track_id"`
	ObjectClass string                   `json:"object_class"`
	Points      []trajectoryPointRequest `json:"points"`
	RawPayload  map[string]interface{}   `json:"raw_payload"`
}

func (h *Handler) createTrajectory(c *gin.Context) {
	var req trajectoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	payload := gate.TrajectoryPayload{
		CameraID:    req.CameraID,
		TrackID:     req.TrackID,
		ObjectClass: req.ObjectClass,
		Points:      make([]gate.TrajectoryPoint, 0, len(req.Points)),
		RawPayload:  req.RawPayload,
	}
	for _, pt := range req.Points {
		payload.Points = append(payload.Points, pt.toDomain())
	}

	result, err := h.countingService.ProcessTrajectory(c.Request.Context(), payload)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse(result))
}

type trackPointRequest struct {
	CameraID    string    `json:"camera_id"`
	ObjectClass string    `json:"object_class"`
	Time        time.Time `json:"t"`
	X           float64   `json:"x"`
	Y           float64   `json:"y"`
}

func (h *Handler) appendTrackPoint(c *gin.Context) {
	trackID := c.Param("track_id")

	var req trackPointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	if req.Time.IsZero() {
		req.Time = time.Now()
	}

	pt := gate.TrajectoryPoint{Time: req.Time, Point: gate.Point{X: req.X, Y: req.Y}}
	result, err := h.countingService.AppendPoint(c.Request.Context(), req.CameraID, trackID, req.ObjectClass, pt)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(result))
}

func (h *Handler) endTrack(c *gin.Context) {
	trackID := c.Param("track_id")

	if err := h.countingService.EndTrack(c.Request.Context(), trackID); err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) listEvents(c *gin.Context) {
	var cameraID *string
	if camera := strings.TrimSpace(c.Query("camera_id")); camera != "" {
		cameraID = &camera
	}

	var from, to *string
	if f := strings.TrimSpace(c.Query("from")); f != "" {
		from = &f
	}
	if t := strings.TrimSpace(c.Query("to")); t != "" {
		to = &t
	}

	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := parseInt(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	offset := 0
	if o := c.Query("offset"); o != "" {
		if parsed, err := parseInt(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	events, err := h.countingService.FindEvents(c.Request.Context(), cameraID, from, to, limit, offset)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(events))
}

func (h *Handler) listCounts(c *gin.Context) {
	var cameraID *string
	if camera := strings.TrimSpace(c.Query("camera_id")); camera != "" {
		cameraID = &camera
	}

	var from, to *string
	if f := strings.TrimSpace(c.Query("from")); f != "" {
		from = &f
	}
	if t := strings.TrimSpace(c.Query("to")); t != "" {
		to = &t
	}

	counts, err := h.countingService.FindCounts(c.Request.Context(), cameraID, from, to)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(counts))
}

// gateConfigResponse is the API projection of a stored config record.
type gateConfigResponse struct {
	CameraID  string          `json:"camera_id"`
	Version   string          `json:"version"`
	Status    string          `json:"status"`
	Config    gate.GateConfig `json:"config"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (h *Handler) getGateConfig(c *gin.Context) {
	cameraID := c.Param("camera_id")

	record, err := h.gateService.GetConfig(c.Request.Context(), cameraID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	cfg, err := record.GateConfig()
	if err != nil {
		h.log.Error().Err(err).Str("camera_id", cameraID).Msg("failed to decode gate config")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}

	c.JSON(http.StatusOK, successResponse(gateConfigResponse{
		CameraID:  record.CameraID,
		Version:   record.Version,
		Status:    record.Status,
		Config:    cfg,
		UpdatedAt: record.UpdatedAt,
	}))
}

// gateConfigRequest carries the drawn boundary. Points are normalized
// coordinates unless frame_width/frame_height are given, in which case they
// are pixel coordinates on the reference snapshot and are normalized here.
type gateConfigRequest struct {
	Mode            string               `json:"mode"`
	Line            *gate.LineSegment    `json:"line"`
	GateA           *gate.LineSegment    `json:"gate_a"`
	GateB           *gate.LineSegment    `json:"gate_b"`
	DirectionLabels gate.DirectionLabels `json:"direction_labels"`
	FrameWidth      float64              `json:"frame_width"`
	FrameHeight     float64              `json:"frame_height"`
}

func (r gateConfigRequest) toDomain() gate.GateConfig {
	cfg := gate.GateConfig{
		Mode:            r.Mode,
		Line:            r.Line,
		GateA:           r.GateA,
		GateB:           r.GateB,
		DirectionLabels: r.DirectionLabels,
	}
	if r.FrameWidth > 0 && r.FrameHeight > 0 {
		for _, seg := range []*gate.LineSegment{cfg.Line, cfg.GateA, cfg.GateB} {
			if seg == nil {
				continue
			}
			seg.P1.X = utils.NormalizePixel(seg.P1.X, r.FrameWidth)
			seg.P1.Y = utils.NormalizePixel(seg.P1.Y, r.FrameHeight)
			seg.P2.X = utils.NormalizePixel(seg.P2.X, r.FrameWidth)
			seg.P2.Y = utils.NormalizePixel(seg.P2.Y, r.FrameHeight)
		}
	}
	return cfg
}

func (h *Handler) putGateConfig(c *gin.Context) {
	cameraID := c.Param("camera_id")

	var req gateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	record, err := h.gateService.SaveDraft(c.Request.Context(), cameraID, req.toDomain())
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": record.Version,
	})
}

func (h *Handler) activateGateConfig(c *gin.Context) {
	cameraID := c.Param("camera_id")

	handle, err := h.gateService.Activate(c.Request.Context(), cameraID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": handle.Version,
		"mode":    handle.Config.Mode,
	})
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNoActiveGate):
		c.JSON(http.StatusConflict, errorResponse(err.Error()))
	default:
		h.log.Error().Err(err).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(s)
}
