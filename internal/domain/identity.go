package domain

import "time"

// Custom attribute names carried by snapshot events.
const (
	CustomHostID   = "_HOSTID"
	CustomItemType = "_ITEMTYPE"
	CustomItemsID  = "_ITEMSID"
)

// ItemTypeServiceCatalog selects the services catalog table instead of the services table.
const ItemTypeServiceCatalog = "ServiceCatalog"

// Identity maps a monitored entity to its record in the asset database.
type Identity struct {
	Key       string    `json:"key"`
	HostName  string    `json:"host_name"`
	Service   string    `json:"service,omitempty"`
	HostID    string    `json:"host_id,omitempty"`
	ItemsID   string    `json:"items_id,omitempty"`
	ItemType  string    `json:"item_type,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Resolved reports whether the entity has an external item id.
func (i *Identity) Resolved() bool {
	return i != nil && i.ItemsID != ""
}

// IsService reports whether the identity describes a host/service pair.
func (i *Identity) IsService() bool {
	return i.Service != ""
}

// ServiceKey builds the cache key of a host/service pair.
func ServiceKey(host, service string) string {
	return host + "/" + service
}
