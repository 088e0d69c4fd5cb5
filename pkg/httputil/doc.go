// Package httputil provides retry helpers for outgoing HTTP calls.
//
// [Retry] re-runs an operation while it fails with an error wrapped by
// [Retryable], sleeping according to a [Backoff] between attempts:
//
//	err := httputil.Retry(ctx, 3, httputil.Linear(time.Second), func() error {
//	    resp, err := client.Do(req)
//	    if err != nil {
//	        return httputil.Retryable(err) // network errors are transient
//	    }
//	    ...
//	})
//
// Errors that are not wrapped, such as 4xx responses, stop the loop
// immediately. A cancelled context aborts the wait between attempts.
package httputil
