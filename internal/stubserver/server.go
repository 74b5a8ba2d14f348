// Package stubserver is a local stand-in for the captcha backend. It
// serves the generate and verify endpoints with drawn fixture images and an
// in-memory store, and judges answers with the usual rules: a
// case-insensitive code, an exact set of target images, and a slide release
// near the hole with a plausible trace.
package stubserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"captchaclient/internal/captcha"
	"captchaclient/internal/logging"
)

// Options configure a Server.
type Options struct {
	TTL   time.Duration
	Seed  int64
	Clock func() time.Time
}

// Server is the stub backend.
type Server struct {
	e     *echo.Echo
	store *Store
	gen   *generator
	log   *logging.Logger
}

// verifyBody is the verify request with the answer left raw until the type
// is known.
type verifyBody struct {
	CaptchaID     string          `json:"captchaId"`
	CaptchaType   captcha.Variant `json:"captchaType"`
	CaptchaCode   string          `json:"captchaCode"`
	CaptchaAnswer json.RawMessage `json:"captchaAnswer"`
}

type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// New builds the server and its routes.
func New(opts Options) (*Server, error) {
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	gen, err := newGenerator(opts.Seed)
	if err != nil {
		return nil, err
	}

	s := &Server{
		e:     echo.New(),
		store: NewStore(opts.TTL, opts.Clock),
		gen:   gen,
		log:   logging.Get(logging.CategoryStub),
	}
	s.e.HideBanner = true
	s.e.HidePort = true

	s.e.Use(middleware.Recover())
	s.e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.log.With("request_id", v.RequestID, "latency", v.Latency.String()).
				Info("%s %s -> %d", v.Method, v.URI, v.Status)
			return nil
		},
	}))

	api := s.e.Group("/api/captcha")
	api.POST("/generate", s.generate)
	api.POST("/verify", s.verify)
	return s, nil
}

// Handler exposes the routes, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.e }

// Store exposes the challenge store.
func (s *Server) Store() *Store { return s.store }

// Start serves on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.log.Info("stub backend listening on %s", addr)
	if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

func fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, errorBody{Code: status, Message: msg})
}

func (s *Server) generate(c echo.Context) error {
	var req captcha.GenerateRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request parameters")
	}
	if n := s.store.Sweep(); n > 0 {
		s.log.Debug("swept %d expired challenges", n)
	}

	var (
		rec     = record{Variant: req.CaptchaType}
		payload any
		err     error
	)
	switch req.CaptchaType {
	case captcha.VariantCharacter:
		var ch captcha.CharacterChallenge
		rec.Code, ch.Image, err = s.gen.character()
		payload = ch
	case captcha.VariantImageSelect:
		var ch captcha.ImageSelectChallenge
		ch.TargetType, rec.Targets, ch.Images, err = s.gen.imageSelect()
		ch.Question = "Select all images with a " + ch.TargetType
		ch.SelectCount = selectCount
		rec.SelectCount = selectCount
		payload = ch
	case captcha.VariantSlide:
		ch := captcha.SlideChallenge{Width: slideWidth, Height: slideHeight}
		ch.BackgroundImage, ch.TemplateImage, ch.TemplateY, rec.TargetPercent, err = s.gen.slide()
		payload = ch
	default:
		return c.JSON(http.StatusOK, captcha.GenerateResponse{Code: 1, Message: captcha.ErrUnsupportedVariant.Error()})
	}
	if err != nil {
		s.log.Error("generate %s: %v", req.CaptchaType, err)
		return fail(c, http.StatusInternalServerError, "generate failed: "+err.Error())
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "generate failed: "+err.Error())
	}
	id, expires := s.store.Put(rec)
	s.log.With("captcha_id", id).Debug("generated %s", req.CaptchaType)

	return c.JSON(http.StatusOK, captcha.GenerateResponse{
		Code:    0,
		Message: "success",
		Data: &captcha.GeneratedData{
			CaptchaID:   id,
			CaptchaType: req.CaptchaType,
			ExpireTime:  expires.Unix(),
			Data:        raw,
		},
	})
}

func (s *Server) verify(c echo.Context) error {
	var req verifyBody
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request parameters")
	}
	if req.CaptchaID == "" {
		return fail(c, http.StatusBadRequest, "captchaId is required")
	}

	rec, ok := s.store.Get(req.CaptchaID)
	if !ok {
		// Unknown and expired ids are a plain negative.
		return s.verdict(c, req.CaptchaID, false)
	}
	if rec.Variant != req.CaptchaType {
		return fail(c, http.StatusBadRequest, captcha.ErrUnsupportedVariant.Error())
	}

	var valid bool
	switch rec.Variant {
	case captcha.VariantCharacter:
		valid = checkCode(rec.Code, req.CaptchaCode)
	case captcha.VariantImageSelect:
		var a captcha.SelectAnswer
		if err := json.Unmarshal(req.CaptchaAnswer, &a); err != nil {
			return fail(c, http.StatusBadRequest, "captcha answer format wrong")
		}
		valid = checkSelection(rec.Targets, rec.SelectCount, a.SelectedIndexes)
	case captcha.VariantSlide:
		var a captcha.SlideAnswer
		if err := json.Unmarshal(req.CaptchaAnswer, &a); err != nil {
			return fail(c, http.StatusBadRequest, "captcha answer format wrong")
		}
		valid = checkSlide(rec.TargetPercent, a)
	}

	if valid {
		s.store.Delete(req.CaptchaID)
	}
	return s.verdict(c, req.CaptchaID, valid)
}

func (s *Server) verdict(c echo.Context, id string, valid bool) error {
	s.log.With("captcha_id", id).Info("verify: valid=%t", valid)
	return c.JSON(http.StatusOK, captcha.VerifyResponse{Code: 0, Message: "success", Valid: &valid})
}
