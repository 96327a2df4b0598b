package controllers

import (
	"errors"
	"net/http"
	"time"

	"costrict-updater/internal/config"
	"costrict-updater/internal/logger"
	"costrict-updater/internal/middleware"
	"costrict-updater/internal/models"
	"costrict-updater/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type APIController struct {
	manifest   *services.ManifestService
	packageDir string
	fileDir    string
	version    string
	startTime  time.Time
}

/**
 * Create new API controller instance
 * @param {*services.ManifestService} manifest - Policy processor answering upgrade queries
 * @param {config.ServerConfig} cfg - PackageDir is rescanned on reload, FileDir is served under /packages
 * @param {string} version - Server version reported by /healthz
 * @returns {*APIController} New API controller instance
 */
func NewAPIController(manifest *services.ManifestService, cfg config.ServerConfig, version string) *APIController {
	return &APIController{
		manifest:   manifest,
		packageDir: cfg.PackageDir,
		fileDir:    cfg.FileDir,
		version:    version,
		startTime:  time.Now(),
	}
}

/**
 * Register all API routes to Gin engine
 * @param {*gin.Engine} r - Gin router instance
 * @description
 * - GET /api/v1/query/:package/:version answers upgrade queries
 * - POST /api/v1/reload rescans the package config directory
 * - GET|HEAD /packages/* serves package files with Range support
 * - GET /healthz and GET /metrics for monitoring
 */
func (a *APIController) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	api.GET("/query/:package/:version", a.Query)
	api.POST("/reload", a.Reload)
	if a.fileDir != "" {
		r.Static("/packages", a.fileDir)
	}
	r.GET("/healthz", a.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// @Summary 查询升级信息
// @Description 根据客户端当前版本匹配升级策略，返回应升级到的版本及安装包信息
// @Tags Upgrade
// @Produce json
// @Param package path string true "包名"
// @Param version path string true "客户端当前版本"
// @Success 200 {object} models.UpgradeResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/v1/query/{package}/{version} [get]
func (a *APIController) Query(c *gin.Context) {
	pkg := c.Param("package")
	ver := c.Param("version")
	res, err := a.manifest.Process(pkg, ver)
	switch {
	case errors.Is(err, services.ErrInvalidVersion):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: "version.invalid", Error: err.Error()})
		return
	case errors.Is(err, services.ErrPackageNotFound):
		logger.Infof("Query [package=%s version=%s] from %s: package not found", pkg, ver, c.ClientIP())
		c.JSON(http.StatusNotFound, models.ErrorResponse{Code: "package.not_found", Error: err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Code: "query.failed", Error: err.Error()})
		return
	}
	if res.HasNewVersion {
		logger.Infof("Query [package=%s version=%s] from %s: upgrade to %s", pkg, ver, c.ClientIP(), res.PackageVersion)
	} else {
		logger.Infof("Query [package=%s version=%s] from %s: no new version", pkg, ver, c.ClientIP())
	}
	c.JSON(http.StatusOK, res)
}

// @Summary 重新加载包配置
// @Tags Config
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} models.ErrorResponse
// @Router /api/v1/reload [post]
func (a *APIController) Reload(c *gin.Context) {
	packages, err := config.ScanPackageDir(a.packageDir)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Code:  "config.reload_failed",
			Error: "Failed to reload package configs: " + err.Error(),
		})
		return
	}
	a.manifest.Reload(packages)
	c.JSON(http.StatusOK, gin.H{
		"status":   "success",
		"packages": len(packages),
	})
}

// @Summary 业务就绪探针
// @Tags System
// @Produce json
// @Success 200 {object} models.HealthResponse
// @Router /healthz [get]
func (a *APIController) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{
		Version:   a.version,
		StartTime: a.startTime.Format(time.RFC3339),
		Status:    "UP",
		Uptime:    time.Since(a.startTime).Round(time.Second).String(),
		Metrics: models.Metrics{
			TotalRequests: middleware.GetTotalRequests(),
			ErrorRequests: middleware.GetErrorRequests(),
			Packages:      len(a.manifest.Packages()),
		},
	})
}
