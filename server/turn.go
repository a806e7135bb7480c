package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/manas/ai/errs"
	"github.com/hrygo/manas/ai/handlers"
	"github.com/hrygo/manas/ai/orchestrator"
)

// turnRequest is the wire form of a turn. Attachment data is base64 in JSON.
type turnRequest struct {
	UserID      string       `json:"user_id"`
	Utterance   string       `json:"utterance"`
	Attachments []attachment `json:"attachments,omitempty"`
}

type attachment struct {
	Name     string `json:"name"`
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

// toTurnRequest converts the wire request. An authenticated user overrides user_id.
func (r *turnRequest) toTurnRequest(authUser string) *orchestrator.TurnRequest {
	req := &orchestrator.TurnRequest{
		UserID:    r.UserID,
		Utterance: r.Utterance,
	}
	if authUser != "" {
		req.UserID = authUser
	}
	for _, a := range r.Attachments {
		req.Attachments = append(req.Attachments, handlers.Attachment{
			Name:     a.Name,
			MIMEType: a.MIMEType,
			Data:     a.Data,
		})
	}
	return req
}

// handleTurn runs one buffered turn.
func (s *Server) handleTurn(c echo.Context) error {
	var body turnRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body").SetInternal(err)
	}

	resp, err := s.turns.ProcessTurn(c.Request().Context(), body.toTurnRequest(authenticatedUser(c)))
	if err != nil {
		return turnError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func turnError(err error) error {
	if errs.Is(err, errs.KindInvalidInput) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "failed to process turn").SetInternal(err)
}
