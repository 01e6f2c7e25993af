package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"courierhub/internal/adapters/in/http/openapi"
	"courierhub/internal/adapters/in/orderdraft"
	"courierhub/internal/core/application/dispatch"
	"courierhub/internal/core/application/usecases/commands"
	"courierhub/internal/core/domain/model/courier"
	"courierhub/internal/core/domain/model/kernel"
	"courierhub/internal/core/domain/model/order"
	"courierhub/internal/pkg/errs"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/time/rate"
	"gopkg.in/go-playground/validator.v9"
)

type Config struct {
	// AcceptRate is the per-client limit on accept calls, in requests per
	// second. Zero disables the limiter.
	AcceptRate  float64
	AcceptBurst int
}

type CustomValidator struct {
	Validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.Validator.Struct(i); err != nil {
		return orderdraft.FromValidation(err)
	}
	return nil
}

// NewEcho builds the HTTP front: the versioned API, the live websocket,
// metrics, health and the API docs.
func NewEcho(cfg Config, server *Server, spec *openapi.Spec, gatherer prometheus.Gatherer, logger *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Validator = &CustomValidator{Validator: orderdraft.NewValidator()}
	e.HTTPErrorHandler = HTTPErrorHandler(logger)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			logger.Debug("http request",
				"method", v.Method, "uri", v.URI, "status", v.Status,
				"latency", v.Latency, "request_id", v.RequestID)
			return nil
		},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "Healthy")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	if spec != nil {
		spec.Register()
		e.GET("/openapi.json", func(c echo.Context) error {
			return c.JSONBlob(http.StatusOK, spec.JSON())
		})
		e.GET("/swagger/*", echoSwagger.WrapHandler)
	}

	api := e.Group("/api/v1")
	api.POST("/orders", server.CreateOrder)
	api.GET("/orders/pending", server.GetPendingOrders)
	api.GET("/orders/:orderId", server.GetOrderStatus)
	api.POST("/orders/:orderId/accept", server.AcceptOrder, acceptLimiter(cfg)...)
	api.POST("/orders/:orderId/cancel", server.CancelOrder)
	api.POST("/orders/:orderId/progress", server.ReportProgress)
	api.GET("/couriers/online", server.GetOnlineCouriers)
	api.PUT("/couriers/:courierId/presence", server.UpdatePresence)
	api.GET("/live", server.Live)

	return e
}

func acceptLimiter(cfg Config) []echo.MiddlewareFunc {
	if cfg.AcceptRate <= 0 {
		return nil
	}
	return []echo.MiddlewareFunc{middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: middleware.DefaultSkipper,
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(cfg.AcceptRate),
			Burst:     cfg.AcceptBurst,
			ExpiresIn: time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return writeError(c, http.StatusForbidden, err.Error())
		},
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			return writeError(c, http.StatusTooManyRequests, "too many accept attempts")
		},
	})}
}

// HTTPErrorHandler renders every failure as {code, message}. Server-side
// failures are logged and their details hidden from the client.
func HTTPErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var echoErr *echo.HTTPError
		if errors.As(err, &echoErr) {
			_ = writeError(c, echoErr.Code, fmt.Sprint(echoErr.Message))
			return
		}

		code := statusOf(err)
		message := err.Error()
		if code >= http.StatusInternalServerError {
			logger.Error("request failed", "method", c.Request().Method, "path", c.Path(), "error", err)
			message = http.StatusText(code)
		}
		_ = writeError(c, code, message)
	}
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, errs.ErrObjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, order.ErrInvalidTransition),
		errors.Is(err, order.ErrAlreadyAssigned),
		errors.Is(err, order.ErrNotAssignedCourier),
		errors.Is(err, commands.ErrOrderAlreadyExists),
		errors.Is(err, courier.ErrActiveOrderLimitReached):
		return http.StatusConflict
	case dispatch.IsContention(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, errs.ErrValueIsRequired),
		errors.Is(err, errs.ErrValueIsInvalid),
		errors.Is(err, errs.ErrValueIsOutOfRange):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c echo.Context, code int, message string) error {
	if c.Request().Method == http.MethodHead {
		return c.NoContent(code)
	}
	return c.JSON(code, errorResponse{Code: code, Message: message})
}

func bindAndValidate(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return invalidParam("body", err)
	}
	return c.Validate(dst)
}

func validatorOf(c echo.Context) *validator.Validate {
	if cv, ok := c.Echo().Validator.(*CustomValidator); ok {
		return cv.Validator
	}
	return orderdraft.NewValidator()
}

func pathUUID(c echo.Context, name string) (kernel.UUID, error) {
	var id openapi_types.UUID
	err := runtime.BindStyledParameterWithOptions("simple", name, c.Param(name), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return kernel.UUID{}, invalidParam(name, err)
	}

	parsed, err := kernel.UUIDFromBytes(id[:])
	if err != nil {
		return kernel.UUID{}, invalidParam(name, err)
	}
	return parsed, nil
}

func invalidParam(name string, cause error) error {
	return errs.NewValueIsInvalidErrorWithCause(name, cause)
}
