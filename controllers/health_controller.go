package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type ServiceInfo struct {
	Name               string `json:"service"`
	Version            string `json:"version"`
	Estimator          string `json:"estimator"`
	CustomModelEnabled bool   `json:"custom_model_enabled"`
	StorageEnabled     bool   `json:"storage_enabled"`
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func Root(info ServiceInfo) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, info)
	}
}
