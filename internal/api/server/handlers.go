package server

import (
	"errors"
	"net/http"

	"github.com/bz888/cognix/internal/session"
	"github.com/labstack/echo/v4"
)

func (srv *Server) fail(c echo.Context, status int, err error) error {
	if status >= http.StatusInternalServerError {
		srv.log.Error(c.Request().Method, " ", c.Path(), ": ", err)
	}
	return c.JSON(status, ErrorResponse{Error: err.Error()})
}

// statusOf maps session errors onto HTTP statuses.
func statusOf(err error) int {
	switch {
	case errors.Is(err, session.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, session.ErrInputRejected):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrPremiumGated):
		return http.StatusForbidden
	case errors.Is(err, session.ErrModelNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (srv *Server) stateResponse() StateResponse {
	st := srv.s.State()
	out := StateResponse{
		Phase:     st.Phase.String(),
		Capturing: srv.s.Capturing(),
		Speaking:  srv.s.Speaking(),
	}
	if st.Phase == session.Failed {
		out.Failure = st.Failure.String()
	}
	return out
}

func (srv *Server) listModels(c echo.Context) error {
	return c.JSON(http.StatusOK, ModelsResponse{
		Models:   srv.s.Models(),
		Selected: srv.s.SelectedModel().ID,
	})
}

func (srv *Server) transcript(c echo.Context) error {
	return c.JSON(http.StatusOK, TranscriptResponse{Messages: srv.s.Transcript()})
}

func (srv *Server) state(c echo.Context) error {
	return c.JSON(http.StatusOK, srv.stateResponse())
}

func (srv *Server) chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return srv.fail(c, http.StatusBadRequest, err)
	}

	sub, err := srv.s.Send(req.Text)
	if err != nil {
		return srv.fail(c, statusOf(err), err)
	}

	resp := ChatResponse{State: srv.stateResponse()}
	if sub.Notice != nil {
		resp.Reply = sub.Notice
		return c.JSON(http.StatusForbidden, resp)
	}
	return c.JSON(http.StatusAccepted, resp)
}

func (srv *Server) clear(c echo.Context) error {
	srv.s.ClearConversation()
	return c.JSON(http.StatusOK, TranscriptResponse{Messages: srv.s.Transcript()})
}

func (srv *Server) preferencesResponse() PreferencesResponse {
	return PreferencesResponse{Preferences: srv.s.Preferences(), Capabilities: srv.s.Capabilities()}
}

func (srv *Server) preferences(c echo.Context) error {
	return c.JSON(http.StatusOK, srv.preferencesResponse())
}

func (srv *Server) updatePreferences(c echo.Context) error {
	var req PreferencesUpdate
	if err := c.Bind(&req); err != nil {
		return srv.fail(c, http.StatusBadRequest, err)
	}

	if req.SelectedModel != nil {
		if err := srv.s.SelectModel(*req.SelectedModel); err != nil {
			return srv.fail(c, statusOf(err), err)
		}
	}
	if req.AutoSpeak != nil {
		srv.s.SetAutoSpeak(*req.AutoSpeak)
	}
	if req.VoiceSpeed != nil {
		srv.s.SetVoiceSpeed(*req.VoiceSpeed)
	}
	return c.JSON(http.StatusOK, srv.preferencesResponse())
}

func (srv *Server) stopSpeech(c echo.Context) error {
	srv.s.StopPlayback()
	return c.NoContent(http.StatusNoContent)
}
