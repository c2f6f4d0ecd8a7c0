package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mokykla/pointsapi/internal/settings"
)

// publicConfigResponse is the response payload for public config.
type publicConfigResponse struct {
	SchoolName         string `json:"school_name"`
	SchoolLogoURL      string `json:"school_logo_url"`
	LoginBackgroundURL string `json:"login_background_url"`
}

// GetPublicConfig returns school branding for the login screen.
func GetPublicConfig(c *gin.Context) {
	c.JSON(http.StatusOK, publicConfigResponse{
		SchoolName:         settings.SchoolName(),
		SchoolLogoURL:      settings.SchoolLogoURL(),
		LoginBackgroundURL: settings.LoginBackgroundURL(),
	})
}
