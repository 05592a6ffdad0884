// Package taxios is a request-coordination layer placed in front of a
// pluggable Transport:
//
//   - Bounded LRU response cache keyed by a canonical request fingerprint
//   - Superseding of duplicate in-flight requests (last writer wins)
//   - Ordered request and response interceptors, also run on cache hits
//   - Transport middleware for cross-cutting concerns (auth, tracing, etc.)
//   - Failure hooks with an optional token refresh path
//   - Prometheus metrics and zap backed debug logging
//
// Typical usage:
//
//	client := taxios.New(
//	    taxios.WithConfig(taxios.Config{
//	        BaseURL:  "https://api.example.com",
//	        Capacity: 100,
//	    }),
//	    taxios.WithHooks(hooks),
//	)
//	resp, err := client.Get(ctx, "/users",
//	    taxios.WithParams(map[string]any{"page": 1}),
//	    taxios.WithCacheable(true),
//	    taxios.WithCancelable(true),
//	)
//
// The fingerprint of a request is the XXH3-128 digest of its URL, method and
// payload (Params for GET, Data otherwise) with object keys sorted at every
// depth. A cacheable call whose fingerprint is cached never reaches the
// transport; a cancelable call cancels any pending call with the same
// fingerprint, which then fails with a CanceledError wrapping ErrSuperseded.
//
// The client never retries on its own. The only re-issue path is a Hooks
// value implementing TokenRefresher, consulted on expired-token errors.
package taxios
