package router

import (
	"context"
	"crypto/subtle"
	"errors"

	"resume-scorer/internal/api/handler"
	"resume-scorer/internal/config"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/keyauth"
)

var errInvalidAPIKey = errors.New("无效的API Key")

// RegisterRoutes 注册 API 路由；auth.api_keys 非空时分析接口需要 API Key
func RegisterRoutes(h *server.Hertz, analysisHandler *handler.AnalysisHandler, auth config.AuthConfig) {
	h.NoRoute(handler.NotFoundHandler())

	api := h.Group("/api/v1")
	api.GET("/health", analysisHandler.HandleHealth)

	var middlewares []app.HandlerFunc
	if len(auth.APIKeys) > 0 {
		middlewares = append(middlewares, NewAPIKeyMiddleware(auth))
	}
	analyze := api.Group("", middlewares...)
	analyze.POST("/analyze", analysisHandler.HandleAnalyze)
	analyze.POST("/analyze-text", analysisHandler.HandleAnalyzeText)
}

// NewAPIKeyMiddleware 基于 keyauth 的请求头校验
func NewAPIKeyMiddleware(auth config.AuthConfig) app.HandlerFunc {
	header := auth.Header
	if header == "" {
		header = "X-API-Key"
	}
	keys := make([][]byte, 0, len(auth.APIKeys))
	for _, k := range auth.APIKeys {
		keys = append(keys, []byte(k))
	}

	return keyauth.New(
		keyauth.WithKeyLookUp("header:"+header, ""),
		keyauth.WithValidator(func(ctx context.Context, c *app.RequestContext, key string) (bool, error) {
			for _, k := range keys {
				if subtle.ConstantTimeCompare(k, []byte(key)) == 1 {
					return true, nil
				}
			}
			return false, errInvalidAPIKey
		}),
		keyauth.WithErrorHandler(func(ctx context.Context, c *app.RequestContext, err error) {
			c.AbortWithStatusJSON(consts.StatusUnauthorized, utils.H{
				"error":   "unauthorized",
				"message": "a valid API key is required",
			})
		}),
	)
}
