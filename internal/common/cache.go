package common

import (
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
)

type Cache struct {
	*cache.Cache
}

func NewCache(expirationTime, cleanupTime time.Duration) *Cache {
	return &Cache{cache.New(expirationTime, cleanupTime)}
}

func (c *Cache) Set(key string, value interface{}, expiration ...time.Duration) {
	if len(expiration) > 0 {
		c.Cache.Set(key, value, expiration[0])
		return
	}
	c.Cache.Set(key, value, cache.DefaultExpiration)
}

func (c *Cache) Get(key string) (interface{}, bool) {
	return c.Cache.Get(key)
}

func (c *Cache) Delete(key string) {
	c.Cache.Delete(key)
}

func (c *Cache) Flush() {
	c.Cache.Flush()
}

// Cache key helpers. Post listings are keyed by tag and page so a write
// can drop the whole post namespace with Flush.

func CacheKeyPostPage(tag string, page int) string {
	return "posts:" + tag + ":" + strconv.Itoa(page)
}

func CacheKeyPostDetail(year, month, day int, slug string) string {
	return "post:" + strconv.Itoa(year) + "-" + strconv.Itoa(month) + "-" + strconv.Itoa(day) + ":" + slug
}

func CacheKeySimilarPosts(id int) string {
	return "similar:" + strconv.Itoa(id)
}

func CacheKeyAuthorByAccessToken(token []byte) string {
	return "author_by_access_token:" + string(token)
}
