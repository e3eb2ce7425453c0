// Package maritime provides the maritime operations tools of the assistant:
// whale protection guidance, vessel routes, vessel notifications and
// customer outreach tickets, backed by a gorm store.
package maritime

import "time"

const (
	RouteActive    = "active"
	RouteScheduled = "scheduled"

	StatusDelivered = "delivered"
)

// Priority of a vessel notification.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

type VesselRoute struct {
	ID          string    `gorm:"primaryKey;size:64" json:"id"`
	VesselName  string    `gorm:"size:128;not null" json:"vessel_name"`
	IMO         string    `gorm:"size:16;not null;uniqueIndex" json:"imo"`
	Region      string    `gorm:"size:128;index" json:"region"`
	ETA         time.Time `gorm:"index" json:"eta"`
	Origin      string    `gorm:"size:128" json:"origin"`
	Destination string    `gorm:"size:128" json:"destination"`
	Status      string    `gorm:"size:32" json:"route_status"`
	UpdatedAt   time.Time `json:"last_updated"`
}

type Customer struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Name      string `gorm:"size:128;not null" json:"name"`
	VesselIMO string `gorm:"size:16;index" json:"vessel_imo"`
	Major     bool   `gorm:"default:false" json:"major"`
}

type Notification struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	VesselID string    `gorm:"size:64;index" json:"vessel_id"`
	Message  string    `gorm:"type:text" json:"message"`
	Priority Priority  `gorm:"size:16" json:"priority"`
	Status   string    `gorm:"size:32" json:"status"`
	SentAt   time.Time `json:"timestamp"`
}

type Ticket struct {
	ID          string    `gorm:"primaryKey;size:32" json:"id"`
	Title       string    `gorm:"size:256;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	VesselIMOs  string    `gorm:"type:text" json:"vessel_imos"`
	Customers   string    `gorm:"type:text" json:"customers"`
	CreatedAt   time.Time `json:"created_at"`
}
