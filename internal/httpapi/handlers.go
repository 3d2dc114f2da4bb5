package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/brettericmartin/teed-sub011/internal/aggregate"
	"github.com/brettericmartin/teed-sub011/internal/evidence"
	"github.com/brettericmartin/teed-sub011/internal/identify"
	"github.com/brettericmartin/teed-sub011/internal/pipeline"
	"github.com/brettericmartin/teed-sub011/internal/product"
	"github.com/brettericmartin/teed-sub011/internal/services"
)

type handler struct {
	svc     Service
	version string
}

type tuningRequest struct {
	FetchTimeoutMS      int     `json:"fetch_timeout_ms"`
	EarlyExitConfidence float64 `json:"early_exit_confidence"`
}

func (t *tuningRequest) toTuning() *pipeline.Tuning {
	if t == nil {
		return nil
	}
	return &pipeline.Tuning{
		FetchTimeout:        time.Duration(t.FetchTimeoutMS) * time.Millisecond,
		EarlyExitConfidence: t.EarlyExitConfidence,
	}
}

type identifyRequest struct {
	// Images are base64 strings or data URIs.
	Images       []string       `json:"images"`
	ImageURLs    []string       `json:"image_urls"`
	URLs         []string       `json:"urls"`
	Text         string         `json:"text"`
	Hint         string         `json:"hint"`
	Tuning       *tuningRequest `json:"tuning"`
	QueryContext string         `json:"query_context"`
}

func (r identifyRequest) items() []evidence.Item {
	items := make([]evidence.Item, 0, len(r.Images)+len(r.ImageURLs)+len(r.URLs)+1)
	for i, encoded := range r.Images {
		items = append(items, evidence.Item{Kind: evidence.KindImage, Ref: fmt.Sprintf("images[%d]", i), Encoded: encoded})
	}
	for i, raw := range r.ImageURLs {
		items = append(items, evidence.Item{Kind: evidence.KindImageURL, Ref: fmt.Sprintf("image_urls[%d]", i), URL: raw})
	}
	for i, raw := range r.URLs {
		items = append(items, evidence.Item{Kind: evidence.KindURL, Ref: fmt.Sprintf("urls[%d]", i), URL: raw})
	}
	if r.Text != "" {
		items = append(items, evidence.Item{Kind: evidence.KindText, Ref: "text", Text: r.Text})
	}
	return items
}

type extractRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Transcript  string   `json:"transcript"`
	Frames      []string `json:"frames"`
	FrameURLs   []string `json:"frame_urls"`
	// Include flags default to true.
	IncludeDescription *bool          `json:"include_description"`
	IncludeTranscript  *bool          `json:"include_transcript"`
	IncludeFrames      *bool          `json:"include_frames"`
	MaxFrames          int            `json:"max_frames"`
	Tuning             *tuningRequest `json:"tuning"`
	QueryContext       string         `json:"query_context"`
}

func (r extractRequest) input() aggregate.Input {
	in := aggregate.Input{
		Title:              r.Title,
		Description:        r.Description,
		Transcript:         r.Transcript,
		IncludeDescription: flag(r.IncludeDescription),
		IncludeTranscript:  flag(r.IncludeTranscript),
		IncludeFrames:      flag(r.IncludeFrames),
		MaxFrames:          r.MaxFrames,
	}
	for i, encoded := range r.Frames {
		in.Frames = append(in.Frames, evidence.Item{Kind: evidence.KindImage, Ref: fmt.Sprintf("frame[%d]", i), Encoded: encoded})
	}
	for _, raw := range r.FrameURLs {
		in.Frames = append(in.Frames, evidence.Item{Kind: evidence.KindImageURL, URL: raw})
	}
	return in
}

func flag(v *bool) bool {
	return v == nil || *v
}

type correctionRequest struct {
	Correction     product.Correction        `json:"correction"`
	RelatedProduct *product.ValidatedProduct `json:"related_product"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorBody(c *gin.Context, code, message string) gin.H {
	return gin.H{
		"error":      errorDetail{Code: code, Message: message},
		"request_id": c.GetString(contextRequestID),
	}
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "teed",
		"version": h.version,
	})
}

func (h *handler) identify(c *gin.Context) {
	var req identifyRequest
	if !bind(c, &req) {
		return
	}
	resp, err := h.svc.Identify(c.Request.Context(), pipeline.Request{
		Evidence:     req.items(),
		QueryContext: req.QueryContext,
		Hint:         req.Hint,
		Tuning:       req.Tuning.toTuning(),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	resp.RequestID = c.GetString(contextRequestID)
	c.JSON(http.StatusOK, resp)
}

func (h *handler) extract(c *gin.Context) {
	var req extractRequest
	if !bind(c, &req) {
		return
	}
	resp, err := h.svc.Extract(c.Request.Context(), pipeline.ExtractRequest{
		Input:        req.input(),
		QueryContext: req.QueryContext,
		Tuning:       req.Tuning.toTuning(),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	resp.RequestID = c.GetString(contextRequestID)
	c.JSON(http.StatusOK, resp)
}

func (h *handler) correct(c *gin.Context) {
	var req correctionRequest
	if !bind(c, &req) {
		return
	}
	correction := req.Correction
	correction.Type = product.ParseCorrectionType(string(correction.Type))
	correction.ID = ""
	correction.CreatedAt = time.Time{}
	result := h.svc.Correct(c.Request.Context(), correction, req.RelatedProduct)
	c.JSON(http.StatusOK, gin.H{
		"learned":    result.Learned,
		"reason":     result.Reason,
		"request_id": c.GetString(contextRequestID),
	})
}

func (h *handler) libraryStats(c *gin.Context) {
	stats, err := h.svc.LibraryStats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// bind decodes the JSON body, writing a 400 or 413 response on failure.
func bind(c *gin.Context, target any) bool {
	err := c.ShouldBindJSON(target)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
			errorBody(c, "invalid_evidence", fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)))
		return false
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody(c, "invalid_request", err.Error()))
	return false
}

func writeError(c *gin.Context, err error) {
	status := services.HTTPStatus(err)
	code := services.Code(err)
	switch {
	case errors.Is(err, identify.ErrSuperseded):
		status, code = http.StatusConflict, "superseded"
	case errors.Is(err, services.ErrConfiguration):
		status = http.StatusServiceUnavailable
	}
	c.AbortWithStatusJSON(status, errorBody(c, code, err.Error()))
}
