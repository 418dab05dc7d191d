package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/bnema/qr-session-keeper/internal/application"
	"github.com/bnema/qr-session-keeper/internal/domain"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ActionQRCode   = "get-qrcode"
	ActionStatus   = "check-status"
	ActionValidate = "validate"
	ActionCookies  = "get-cookies"
	ActionCancel   = "cancel-challenge"

	maxBodyBytes = 1 << 20
)

// pathActions maps the last path segment to the action it runs.
var pathActions = map[string]string{
	"qrcode":   ActionQRCode,
	"status":   ActionStatus,
	"validate": ActionValidate,
	"cookies":  ActionCookies,
	"cancel":   ActionCancel,
}

// readOnlyActions are the actions reachable with GET.
var readOnlyActions = map[string]bool{
	ActionStatus:   true,
	ActionValidate: true,
	ActionCookies:  true,
}

type actionRequest struct {
	Action   string `json:"action"`
	Platform string `json:"platform"`
	// Timeout bounds the completion watch, in seconds.
	Timeout float64 `json:"timeout"`
}

func getHealthRoute(s *Server) *echo.Route {
	return s.Echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, healthBody{Status: "ok"})
	})
}

func getMetricsRoute(s *Server) *echo.Route {
	return s.Echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))
}

func getProbeAllRoute(s *Server) *echo.Route {
	return s.Echo.GET("/sessions/check", func(c echo.Context) error {
		if s.deps.Probe == nil {
			return c.JSON(http.StatusOK, failure(application.ErrNoDebugEndpoint))
		}

		var (
			results   []application.ProbeResult
			checkedAt time.Time
		)
		if c.QueryParam("cached") == "true" {
			results, checkedAt = s.deps.Probe.Cached()
		} else {
			results = s.deps.Probe.CheckAll(c.Request().Context())
			_, checkedAt = s.deps.Probe.Cached()
		}

		body := probeListBody{Success: true, Sessions: make([]probeBody, 0, len(results)), CheckedAt: checkedAt}
		for _, result := range results {
			body.Sessions = append(body.Sessions, newProbeBody(result))
		}

		return c.JSON(http.StatusOK, body)
	})
}

func getProbeRoute(s *Server) *echo.Route {
	return s.Echo.GET("/sessions/check/:platform", func(c echo.Context) error {
		if s.deps.Probe == nil {
			return c.JSON(http.StatusOK, failure(application.ErrNoDebugEndpoint))
		}

		result, err := s.deps.Probe.Check(c.Request().Context(), domain.PlatformID(c.Param("platform")))
		if err != nil {
			return c.JSON(http.StatusOK, failure(err))
		}

		return c.JSON(http.StatusOK, newProbeBody(result))
	})
}

// postRootActionRoute serves POST / with the action and platform taken from
// the body.
func postRootActionRoute(s *Server) *echo.Route {
	return s.Echo.POST("/", func(c echo.Context) error {
		req := readActionRequest(c)
		return s.dispatch(c, s.platformOf(req, ""), actionOf(req, ""))
	})
}

// postSegmentActionRoute serves POST /{action} for the default platform and
// POST /{platform} with the action taken from the body.
func postSegmentActionRoute(s *Server) *echo.Route {
	return s.Echo.POST("/:segment", func(c echo.Context) error {
		req := readActionRequest(c)
		segment := c.Param("segment")
		if action, ok := pathActions[segment]; ok {
			return s.dispatch(c, s.platformOf(req, ""), action)
		}

		return s.dispatch(c, domain.PlatformID(segment), actionOf(req, ""))
	})
}

// postPlatformActionRoute serves POST /{platform}/{action}. The path action
// wins over any action in the body.
func postPlatformActionRoute(s *Server) *echo.Route {
	return s.Echo.POST("/:platform/:action", func(c echo.Context) error {
		req := readActionRequest(c)
		action, ok := pathActions[c.Param("action")]
		if !ok {
			return unknownEndpoint(c)
		}

		return s.dispatch(c, s.platformOf(req, c.Param("platform")), actionOf(req, action))
	})
}

func getSegmentActionRoute(s *Server) *echo.Route {
	return s.Echo.GET("/:segment", func(c echo.Context) error {
		action, ok := pathActions[c.Param("segment")]
		if !ok || !readOnlyActions[action] {
			return unknownEndpoint(c)
		}

		return s.dispatch(c, s.defaultPlatform(), action)
	})
}

func getPlatformActionRoute(s *Server) *echo.Route {
	return s.Echo.GET("/:platform/:action", func(c echo.Context) error {
		action, ok := pathActions[c.Param("action")]
		if !ok || !readOnlyActions[action] {
			return unknownEndpoint(c)
		}

		return s.dispatch(c, domain.PlatformID(c.Param("platform")), action)
	})
}

func (s *Server) dispatch(c echo.Context, platform domain.PlatformID, action string) error {
	switch action {
	case ActionQRCode:
		return s.issueChallenge(c, platform)
	case ActionStatus:
		return s.checkStatus(c, platform)
	case ActionValidate:
		return s.validate(c, platform)
	case ActionCookies:
		return s.cookies(c, platform)
	case ActionCancel:
		return s.cancelChallenge(c, platform)
	default:
		return unknownEndpoint(c)
	}
}

// challengeTimeout converts a body timeout in seconds. Anything not positive
// means the configured default; anything above limit is clamped before the
// conversion so huge values cannot overflow.
func challengeTimeout(seconds float64, limit time.Duration) time.Duration {
	if math.IsNaN(seconds) || seconds <= 0 {
		return 0
	}
	if seconds >= limit.Seconds() {
		return limit
	}

	return time.Duration(seconds * float64(time.Second))
}

// issueChallenge returns the image as soon as it is captured. The completion
// watch keeps running in the background; callers poll check-status.
func (s *Server) issueChallenge(c echo.Context, platform domain.PlatformID) error {
	req, _ := c.Get(requestKey).(actionRequest)

	result, err := s.deps.Challenges.IssueChallenge(c.Request().Context(), application.IssueChallengeCommand{
		Platform: platform,
		Timeout:  challengeTimeout(req.Timeout, s.cfg.MaxChallengeTimeout),
	})
	if err != nil {
		return c.JSON(http.StatusOK, failure(err))
	}

	return c.JSON(http.StatusOK, challengeBody{
		Success:     true,
		QRCodeImage: base64.StdEncoding.EncodeToString(result.Image),
		ChallengeID: result.ChallengeID,
		Platform:    string(result.Platform),
		Strategy:    result.Strategy,
		IssuedAt:    result.IssuedAt,
		Message:     MessageScanChallenge,
	})
}

func (s *Server) checkStatus(c echo.Context, platform domain.PlatformID) error {
	report, err := s.deps.Service.GetStatus(c.Request().Context(), platform)
	if err != nil {
		return c.JSON(http.StatusOK, failure(err))
	}

	_, active := s.deps.Challenges.Active(platform)
	return c.JSON(http.StatusOK, newStatusBody(report, active))
}

func (s *Server) validate(c echo.Context, platform domain.PlatformID) error {
	result, err := s.deps.Validator.Validate(c.Request().Context(), platform)
	if err != nil {
		var validationErr *application.ValidationError
		if errors.As(err, &validationErr) {
			return c.JSON(http.StatusOK, validationBody{
				Success:  false,
				Platform: string(platform),
				Valid:    false,
				Status:   string(domain.StatusError),
				Error:    err.Error(),
			})
		}
		return c.JSON(http.StatusOK, failure(err))
	}

	return c.JSON(http.StatusOK, validationBody{
		Success:  true,
		Platform: string(result.Platform),
		Valid:    result.Valid,
		Status:   string(result.Status),
		Message:  result.Message,
	})
}

func (s *Server) cookies(c echo.Context, platform domain.PlatformID) error {
	tokens, err := s.deps.Service.GetCookies(c.Request().Context(), platform)
	switch {
	case errors.Is(err, domain.ErrNoTokens), errors.Is(err, domain.ErrCorruptState):
		return c.JSON(http.StatusOK, failureBody{Success: false, Error: MessageNoCookies})
	case err != nil:
		return c.JSON(http.StatusOK, failure(err))
	}

	return c.JSON(http.StatusOK, cookiesBody{Success: true, Cookies: tokens, Count: len(tokens)})
}

func (s *Server) cancelChallenge(c echo.Context, platform domain.PlatformID) error {
	if err := s.deps.Challenges.Cancel(c.Request().Context(), platform); err != nil {
		return c.JSON(http.StatusOK, failure(err))
	}

	return c.JSON(http.StatusOK, cancelBody{Success: true, Platform: string(platform), Message: MessageChallengeClosed})
}

func (s *Server) defaultPlatform() domain.PlatformID {
	return s.deps.Service.Catalog().Default().ID
}

// platformOf picks the path platform, then the body platform, then the
// default platform.
func (s *Server) platformOf(req actionRequest, fromPath string) domain.PlatformID {
	switch {
	case fromPath != "":
		return domain.PlatformID(fromPath)
	case req.Platform != "":
		return domain.PlatformID(req.Platform)
	default:
		return s.defaultPlatform()
	}
}

// actionOf prefers the action named by the path and falls back to the body
// action, then to get-qrcode.
func actionOf(req actionRequest, fromPath string) string {
	switch {
	case fromPath != "":
		return fromPath
	case req.Action != "":
		return req.Action
	default:
		return ActionQRCode
	}
}

const requestKey = "qk.action_request"

// readActionRequest decodes the optional JSON body. A missing or malformed
// body reads as an empty request.
func readActionRequest(c echo.Context) actionRequest {
	var req actionRequest

	data, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes))
	if err == nil && len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			req = actionRequest{}
		}
	}

	c.Set(requestKey, req)
	return req
}

func unknownEndpoint(c echo.Context) error {
	return c.JSON(http.StatusOK, errorBody{Error: MessageUnknownEndpoint})
}
