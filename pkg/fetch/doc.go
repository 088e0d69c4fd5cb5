// Package fetch performs the live GET requests behind api-fetch fields.
//
// [HTTPFetcher] makes exactly one request per call and classifies failures:
// transport errors, 429 and 5xx come back wrapped in
// [httputil.RetryableError], other non-2xx statuses as plain
// [*StatusError]. Retrying is the caller's job.
//
// [CachedFetcher] decorates any [Fetcher] with a [cache.Cache] so repeated
// resolutions within [DefaultTTL] do not hit the network again:
//
//	c, _ := cache.NewFileCache(dir)
//	f := fetch.NewCachedFetcher(fetch.NewHTTPFetcher(nil), c)
//	resp, err := f.Fetch(ctx, "/users/1", environment)
package fetch
