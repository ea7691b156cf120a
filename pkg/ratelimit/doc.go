/*
Package ratelimit holds rate limiting primitives.

Subpackage bucket provides a token bucket. threadsearch uses it to cap how
many files per second the dispatcher hands to workers, which keeps a search
from saturating a slow or shared disk:

	limiter, err := bucket.New(200, 20) // 200 files/sec, burst of 20
	if err != nil {
		return err
	}
	d, err := dispatcher.New(pool, source, body, dispatcher.WithThrottle(limiter))
*/
package ratelimit
