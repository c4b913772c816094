/*
Copyright 2024 Talaka Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package api

import (
	"github.com/gin-gonic/gin"

	"github.com/talaka/disburse"
	"github.com/talaka/disburse/api/middleware"
	"github.com/talaka/disburse/config"
)

type Api struct {
	disburse *disburse.Disburse
	router   *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router

	router.POST("/payments/batches", middleware.RequireRoles(middleware.RoleAdmin, middleware.RoleProgramManager), a.SubmitBatch)
	router.GET("/payments/batches", a.GetAllBatches)
	router.GET("/payments/batches/:id", a.GetBatch)
	router.GET("/payments/batches/:id/instructions", a.GetBatchInstructions)
	router.GET("/payments/instructions/:id", a.GetInstruction)

	return a.router
}

func NewAPI(d *disburse.Disburse) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	if conf.Server.Secure {
		r.Use(middleware.TrustedHeaderAuthMiddleware())
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})

	return &Api{disburse: d, router: r}
}
