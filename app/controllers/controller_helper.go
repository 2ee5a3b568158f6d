package controllers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// GetClientIP determines the client address considering Cloudflare and
// reverse proxies. The first X-Forwarded-For entry is the original client.
func GetClientIP(c *fiber.Ctx) string {
	if cfIP := strings.TrimSpace(c.Get("CF-Connecting-IP")); cfIP != "" {
		return cfIP
	}
	if xff := c.Get("X-Forwarded-For"); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}
	if real := strings.TrimSpace(c.Get("X-Real-IP")); real != "" {
		return real
	}
	return strings.TrimPrefix(c.IP(), "::ffff:")
}

// wantsJSON reports whether the caller speaks JSON rather than HTML forms.
func wantsJSON(c *fiber.Ctx) bool {
	if strings.HasPrefix(c.Path(), "/api/") {
		return true
	}
	if c.Is("json") {
		return true
	}
	return strings.Contains(c.Get(fiber.HeaderAccept), fiber.MIMEApplicationJSON)
}

func parseUintParam(c *fiber.Ctx, name string) (uint, bool) {
	v, err := strconv.ParseUint(strings.TrimSpace(c.Params(name)), 10, 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return uint(v), true
}
