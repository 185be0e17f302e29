package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"learnhub.io/notifier/internal/api/openapi"
	apperrors "learnhub.io/notifier/internal/pkg/errors"
	"learnhub.io/notifier/internal/pkg/logger"
)

// MustOpenAPIValidator creates the request validator and panics on setup failure.
func MustOpenAPIValidator(basePath string) gin.HandlerFunc {
	mw, err := NewOpenAPIValidator(basePath)
	if err != nil {
		panic(fmt.Sprintf("init openapi validator: %v", err))
	}
	return mw
}

// NewOpenAPIValidator rejects requests that do not match the embedded
// contract with 400 VALIDATION_FAILED. Paths the contract does not describe
// (health, metrics, websocket) pass through untouched.
func NewOpenAPIValidator(basePath string) (gin.HandlerFunc, error) {
	doc, err := openapi.Spec()
	if err != nil {
		return nil, err
	}
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("create openapi router: %w", err)
	}
	basePath = normalizeBasePath(basePath)

	options := &openapi3filter.Options{
		MultiError: false,
		// Session auth is enforced by JWTAuth.
		AuthenticationFunc: func(context.Context, *openapi3filter.AuthenticationInput) error { return nil },
	}

	return func(c *gin.Context) {
		route, pathParams, err := findRoute(router, c.Request, basePath)
		if err != nil {
			if isPathNotFound(err) {
				c.Next()
				return
			}
			abortValidation(c, err)
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    c.Request,
			PathParams: pathParams,
			Route:      route,
			Options:    options,
		}
		if err := openapi3filter.ValidateRequest(c.Request.Context(), input); err != nil {
			abortValidation(c, err)
			return
		}
		c.Next()
	}, nil
}

func normalizeBasePath(basePath string) string {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" || basePath == "/" {
		return ""
	}
	return "/" + strings.Trim(basePath, "/")
}

func normalizeValidationPath(basePath, path string) string {
	if basePath == "" {
		if path == "" {
			return "/"
		}
		return path
	}
	if path == basePath {
		return "/"
	}
	if strings.HasPrefix(path, basePath+"/") {
		return "/" + strings.TrimPrefix(path, basePath+"/")
	}
	return path
}

// findRoute matches the request against the contract with basePath removed.
// The request URL is restored before returning.
func findRoute(router routers.Router, req *http.Request, basePath string) (*routers.Route, map[string]string, error) {
	origPath, origRawPath := req.URL.Path, req.URL.RawPath
	defer func() {
		req.URL.Path, req.URL.RawPath = origPath, origRawPath
	}()

	if basePath != "" && !strings.HasPrefix(origPath, basePath+"/") && origPath != basePath {
		return nil, nil, routers.ErrPathNotFound
	}
	req.URL.Path = normalizeValidationPath(basePath, origPath)
	if origRawPath != "" {
		req.URL.RawPath = normalizeValidationPath(basePath, origRawPath)
	}
	return router.FindRoute(req)
}

func isPathNotFound(err error) bool {
	if errors.Is(err, routers.ErrPathNotFound) {
		return true
	}
	var routeErr *routers.RouteError
	if errors.As(err, &routeErr) {
		return strings.Contains(routeErr.Reason, routers.ErrPathNotFound.Error())
	}
	return false
}

func abortValidation(c *gin.Context, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, routers.ErrMethodNotAllowed) {
		status = http.StatusMethodNotAllowed
	}
	logger.Debug("Request rejected by contract",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	c.AbortWithStatusJSON(status, gin.H{
		"code":    apperrors.CodeValidationFailed,
		"message": validationMessage(err),
	})
}

// validationMessage keeps the first line of a kin-openapi error; the rest
// repeats the schema.
func validationMessage(err error) string {
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i > 0 {
		msg = msg[:i]
	}
	return msg
}
