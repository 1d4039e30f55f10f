package index

import (
	"time"

	"github.com/MrSnakeDoc/checkstore/internal/domain"
	"github.com/MrSnakeDoc/checkstore/internal/logger"
)

// IdentityCache maps hosts and host/service pairs to their asset database records.
// It is owned by the host loop and is not safe for concurrent use.
type IdentityCache struct {
	hosts    map[string]*domain.Identity // host name -> identity
	services map[string]*domain.Identity // host/service -> identity
	logger   logger.Logger
	now      func() time.Time
}

// NewIdentityCache creates an empty cache
func NewIdentityCache(log logger.Logger) *IdentityCache {
	return &IdentityCache{
		hosts:    make(map[string]*domain.Identity),
		services: make(map[string]*domain.Identity),
		logger:   log,
		now:      time.Now,
	}
}

// RecordHost stores the identity carried by an initial host status.
// Missing custom attributes yield an unresolved record.
func (c *IdentityCache) RecordHost(host string, customs map[string]string) *domain.Identity {
	id := &domain.Identity{
		Key:       host,
		HostName:  host,
		UpdatedAt: c.now(),
	}

	hostID, okHost := customs[domain.CustomHostID]
	itemType, okType := customs[domain.CustomItemType]
	itemsID, okItems := customs[domain.CustomItemsID]
	if okHost && okType && okItems {
		id.HostID = hostID
		id.ItemType = itemType
		id.ItemsID = itemsID
	} else {
		c.logger.Debug("host has no asset mapping", logger.String("host", host))
	}

	c.hosts[host] = id
	return id
}

// RecordService stores the identity carried by an initial service status.
// It returns nil when the owning host is unknown or unresolved.
func (c *IdentityCache) RecordService(host, service string, customs map[string]string) *domain.Identity {
	if h, ok := c.hosts[host]; !ok || !h.Resolved() {
		c.logger.Debug("skipping service of unresolved host",
			logger.String("host", host),
			logger.String("service", service))
		return nil
	}

	key := domain.ServiceKey(host, service)
	id := &domain.Identity{
		Key:       key,
		HostName:  host,
		Service:   service,
		UpdatedAt: c.now(),
	}

	itemType, okType := customs[domain.CustomItemType]
	itemsID, okItems := customs[domain.CustomItemsID]
	if okType && okItems {
		id.ItemType = itemType
		id.ItemsID = itemsID
	} else {
		c.logger.Debug("service has no asset mapping",
			logger.String("host", host),
			logger.String("service", service))
	}

	c.services[key] = id
	return id
}

// ResolveHost returns the identity of a host with an external item id.
func (c *IdentityCache) ResolveHost(host string) (*domain.Identity, bool) {
	id, ok := c.hosts[host]
	if !ok || !id.Resolved() {
		return nil, false
	}
	return id, true
}

// ResolveService returns the identity of a host/service pair with an external item id.
func (c *IdentityCache) ResolveService(host, service string) (*domain.Identity, bool) {
	id, ok := c.services[domain.ServiceKey(host, service)]
	if !ok || !id.Resolved() {
		return nil, false
	}
	return id, true
}

// Resolve looks up the entity an event is about.
func (c *IdentityCache) Resolve(ev domain.Event) (*domain.Identity, bool) {
	if ev.Kind.IsService() {
		return c.ResolveService(ev.Data.HostName, ev.Data.ServiceDescription)
	}
	return c.ResolveHost(ev.Data.HostName)
}

// Restore seeds the cache with previously mirrored identities.
// Entries already present are kept since they come from a fresher snapshot.
func (c *IdentityCache) Restore(ids []*domain.Identity) int {
	restored := 0
	for _, id := range ids {
		if id == nil || id.HostName == "" {
			continue
		}
		target := c.hosts
		key := id.HostName
		if id.IsService() {
			target = c.services
			key = domain.ServiceKey(id.HostName, id.Service)
		}
		if _, exists := target[key]; exists {
			continue
		}
		id.Key = key
		target[key] = id
		restored++
	}
	return restored
}

// Counts returns the number of hosts and services, and how many of each are resolved.
func (c *IdentityCache) Counts() (hosts, services, resolvedHosts, resolvedServices int) {
	for _, id := range c.hosts {
		if id.Resolved() {
			resolvedHosts++
		}
	}
	for _, id := range c.services {
		if id.Resolved() {
			resolvedServices++
		}
	}
	return len(c.hosts), len(c.services), resolvedHosts, resolvedServices
}
