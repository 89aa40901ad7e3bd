package github

import "sync"

// validatedBody is the last successful response for an endpoint together
// with the ETag GitHub sent for it.
type validatedBody struct {
	etag string
	body []byte
}

// responseCache lets repeated reads of unchanged contents be answered with a
// 304, which GitHub does not count against the rate limit. It grows for the
// lifetime of the Client; a blog repository has few enough files for that.
type responseCache struct {
	mu        sync.Mutex
	endpoints map[string]validatedBody
}

func newResponseCache() *responseCache {
	return &responseCache{endpoints: make(map[string]validatedBody)}
}

// lookup returns the stored ETag and body for endpoint. ok is false when
// nothing has been stored yet.
func (c *responseCache) lookup(endpoint string) (etag string, body []byte, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.endpoints[endpoint]
	return entry.etag, entry.body, ok
}

// remember stores body under endpoint. Responses without an ETag cannot be
// revalidated and are skipped.
func (c *responseCache) remember(endpoint, etag string, body []byte) {
	if etag == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endpoints[endpoint] = validatedBody{etag: etag, body: body}
}
