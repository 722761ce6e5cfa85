package api

import "net/http"

// static API documentation, mirrors what the endpoints actually do
func (s *Service) handleDocs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"authentication": map[string]string{
			"type":        "JWT",
			"header":      "Authorization: Bearer <token>",
			"description": "Service-to-service authentication without expiration",
		},
		"rate_limiting": map[string]string{
			"default":     s.rateLimit.String(),
			"description": "Rate limit applied per caller address",
		},
		"request_timeout": map[string]any{
			"seconds":     int(s.timeout.Seconds()),
			"description": "Maximum time allowed for request processing",
		},
		"endpoints": map[string]any{
			"/api/token": map[string]any{
				"method":         "POST",
				"authentication": false,
				"description":    "Generate a service token",
				"body": map[string]string{
					"service_name": "Name of the service requesting the token (required)",
				},
			},
			"/api/search": map[string]any{
				"method":         "GET",
				"authentication": true,
				"rate_limited":   true,
				"description":    "Search for companies by keywords",
				"parameters": map[string]string{
					"keywords":   "Search keywords (required)",
					"mode":       "all=contain all keywords; min=contain at least one keyword; exact=exact company name (default: all)",
					"bundesland": "Comma-separated state codes, e.g. BE,HH",
					"force":      "Force a fresh pull and skip the cache (default: false)",
					"debug":      "Enable debug output (default: false)",
				},
			},
			"/api/bundesland": map[string]any{
				"method":      "GET",
				"description": "Resolve a district name (German or English) to its state code",
				"parameters": map[string]string{
					"name": "District name, e.g. Berlin, Bavaria, Nordrhein-Westfalen (required)",
				},
			},
			"/api/bundesland/list": map[string]any{
				"method":      "GET",
				"description": "List all 16 states with their codes",
			},
			"/api/health": map[string]any{
				"method":      "GET",
				"description": "Health check with configuration info",
			},
			"/api/docs": map[string]any{
				"method":      "GET",
				"description": "This document",
			},
		},
		"environment_variables": map[string]string{
			"JWT_SECRET_KEY":     "Secret key for token signing",
			"RATE_LIMIT_DEFAULT": "Rate limit spec, e.g. \"100 per hour\"",
			"REQUEST_TIMEOUT":    "Request timeout in seconds",
		},
	})
}
