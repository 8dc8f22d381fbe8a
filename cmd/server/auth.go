package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	zerologlog "github.com/rs/zerolog/log"

	"github.com/promptparty/server/internal/backend"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// registerAuthRoutes proxies account registration and login to the
// external player backend, validating lengths before forwarding.
func registerAuthRoutes(r *gin.Engine, client *backend.Client) {
	r.POST("/player/register", func(c *gin.Context) {
		var req credentials
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"result": false, "msg": "invalid request"})
			return
		}
		if len(req.Username) < 4 || len(req.Username) > 15 {
			c.JSON(http.StatusOK, gin.H{"result": false, "msg": "Username must be 4-15 characters"})
			return
		}
		if len(req.Password) < 8 || len(req.Password) > 15 {
			c.JSON(http.StatusOK, gin.H{"result": false, "msg": "Password must be 8-15 characters"})
			return
		}
		ok, msg, err := client.RegisterPlayer(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			zerologlog.Warn().Err(err).Msg("register failed")
			c.JSON(http.StatusInternalServerError, gin.H{"result": false, "msg": "Internal server error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"result": ok, "msg": msg})
	})

	r.POST("/player/login", func(c *gin.Context) {
		var req credentials
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"result": false, "msg": "invalid request"})
			return
		}
		ok, msg, err := client.LoginPlayer(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			zerologlog.Warn().Err(err).Msg("login failed")
			c.JSON(http.StatusInternalServerError, gin.H{"result": false, "msg": "Internal server error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"result": ok, "msg": msg})
	})
}
