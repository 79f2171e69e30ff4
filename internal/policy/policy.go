package policy

import "time"

// StatusCacheTTL bounds how stale a cached application snapshot may get if an
// invalidation is lost. Reads after a transition always see fresh state via
// explicit invalidation; the TTL is the backstop.
var StatusCacheTTL = 5 * time.Minute
