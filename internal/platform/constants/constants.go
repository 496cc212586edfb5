// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package constants provides centralized, immutable values for the entire platform.

It defines default timeouts, rate limits, and cross-cutting keys that are shared
between the server, the REST client and the CLI.

Categories:

  - Server Timing: Read/Write/Idle timeouts for the HTTP server.
  - Rate Limiting: Burst capacities and IP tracking TTLs.
  - Client Timing: Fixed timeout and pacing for outbound API calls.
  - Security: JWT issuer and webhook signature header.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "anisync-api"
	AppVersion = "0.1.0-dev"
)

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	// Refresh pulls an external feed, so it needs more room than the request timeout below.
	DefaultWriteTimeout = 90 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the deadline for the entire request lifecycle.
	GlobalRequestTimeout = 30 * time.Second

	// RefreshRequestTimeout is the deadline for the feed resynchronisation endpoint.
	RefreshRequestTimeout = 80 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 30 * time.Second
)

// # Rate Limiting

const (
	// RateLimitCleanupInterval is how often old IP entries are removed from memory.
	RateLimitCleanupInterval = 1 * time.Minute

	// RateLimitClientTTL is how long a client must be idle before its entry is deleted.
	RateLimitClientTTL = 3 * time.Minute
)

// # Client Timing

const (
	// ClientRequestTimeout is the fixed timeout applied to every API call made by the client.
	ClientRequestTimeout = 10 * time.Second

	// ClientRequestsPerSecond paces outbound calls from a single client.
	ClientRequestsPerSecond = 10

	// FeedFetchTimeout bounds the download of an external mapping feed.
	FeedFetchTimeout = 30 * time.Second
)

// # Authentication

const (
	// AuthIssuer is the standard 'iss' claim in JWTs.
	AuthIssuer = "anisync.app"

	// HeaderJellyfinSignature carries the HMAC signature of a Jellyfin webhook body.
	HeaderJellyfinSignature = "X-Jellyfin-Signature"
)

// # HTTP Headers

const (
	HeaderXRequestID    = "X-Request-ID"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderOrigin        = "Origin"
	HeaderAuthorization = "Authorization"
)

// # Redis Prefixes (Cache Taxonomy)

const (
	RedisKeyMappingStatistics = "anidb:mappings:statistics"
)

// # Cache TTLs

const (
	// DefaultStatisticsTTL is how long a computed statistics snapshot stays cached.
	DefaultStatisticsTTL = 5 * time.Minute
)
