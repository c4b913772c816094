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

package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/talaka/disburse/config"
)

const (
	// UsernameHeader and RolesHeader are set by the API gateway after it
	// authenticates the caller. The service trusts them and never sees
	// credentials itself. GatewayKeyHeader carries the shared secret proving
	// the request actually came through the gateway.
	UsernameHeader   = "X-Auth-Username"
	RolesHeader      = "X-Auth-Roles"
	GatewayKeyHeader = "X-Gateway-Key"

	usernameKey = "auth.username"
	rolesKey    = "auth.roles"
)

// Roles allowed to submit payment batches.
const (
	RoleAdmin          = "ADMIN"
	RoleProgramManager = "PROGRAM_MANAGER"
)

// TrustedHeaderAuthMiddleware extracts the gateway identity headers. When the
// server is running in secure mode, requests without a username are rejected.
func TrustedHeaderAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		conf, err := config.Fetch()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Configuration error"})
			return
		}

		if conf.Server.SecretKey != "" && c.GetHeader(GatewayKeyHeader) != conf.Server.SecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid gateway key"})
			return
		}

		username := c.GetHeader(UsernameHeader)
		if conf.Server.Secure && username == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		c.Set(usernameKey, username)
		c.Set(rolesKey, parseRoles(c.GetHeader(RolesHeader)))
		c.Next()
	}
}

// RequireRoles rejects the request unless the caller holds at least one of
// the given roles. The check is skipped when the server is not in secure
// mode.
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		conf, err := config.Fetch()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Configuration error"})
			return
		}
		if !conf.Server.Secure {
			c.Next()
			return
		}

		held := CallerRoles(c)
		for _, required := range roles {
			for _, role := range held {
				if role == required {
					c.Next()
					return
				}
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
	}
}

// CallerUsername returns the authenticated username, if any.
func CallerUsername(c *gin.Context) string {
	if v, ok := c.Get(usernameKey); ok {
		if username, ok := v.(string); ok {
			return username
		}
	}
	return ""
}

// CallerRoles returns the caller's roles, if any.
func CallerRoles(c *gin.Context) []string {
	if v, ok := c.Get(rolesKey); ok {
		if roles, ok := v.([]string); ok {
			return roles
		}
	}
	return nil
}

func parseRoles(header string) []string {
	if header == "" {
		return nil
	}
	parts := strings.Split(header, ",")
	roles := make([]string, 0, len(parts))
	for _, part := range parts {
		role := strings.TrimSpace(part)
		if role != "" {
			roles = append(roles, strings.ToUpper(role))
		}
	}
	return roles
}
