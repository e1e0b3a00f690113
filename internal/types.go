package internal

import (
	"sjsage522/krishaworker/helpers"
	"sjsage522/krishaworker/services/cache"
	"sjsage522/krishaworker/services/publisher"
	"sjsage522/krishaworker/services/store"
)

// Dependencies holds all service dependencies of a crawl run.
// Cache and Publisher are nil when not configured.
type Dependencies struct {
	Store     store.Store
	Cache     cache.CacheService
	Publisher publisher.Publisher
	Drops     helpers.DropRecorder
}

// Close releases every service that holds a connection
func (d *Dependencies) Close() {
	if d.Publisher != nil {
		d.Publisher.Close()
	}
	if d.Store != nil {
		d.Store.Close()
	}
}
