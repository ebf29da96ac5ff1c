// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// DefaultToken is stored for icon and color when the caller picks none.
const DefaultToken = "default"

// Module is a user-owned course/subject container.
type Module struct {
	ID          uuid.UUID `json:"id"`
	UserID      string    `json:"userId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Code        string    `json:"code"`
	Icon        string    `json:"icon"`
	Color       string    `json:"color"`
	Archived    bool      `json:"archived"`
	Credits     int       `json:"credits"`
	CreatedAt   time.Time `json:"createdAt"`
	ModifiedAt  time.Time `json:"modifiedAt"`
	LastVisited time.Time `json:"lastVisited"`
}

// Anchor is the keyset position of a module in the (last_visited DESC, id DESC) order.
type Anchor struct {
	LastVisited time.Time
	ID          uuid.UUID
}

// ListFilter narrows a user's module listing. Archived nil means all modules.
type ListFilter struct {
	Archived *bool
	After    *Anchor // rows strictly after this position
	Limit    int     // rows to fetch
}

// ModulePatch carries the columns an update changes; nil fields are left as-is.
type ModulePatch struct {
	Name        *string
	Description *string
	Code        *string
	Icon        *string
	Color       *string
	Credits     *int
}

// Empty reports whether the patch changes nothing.
func (p ModulePatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Code == nil &&
		p.Icon == nil && p.Color == nil && p.Credits == nil
}

// Page is one slice of a cursor-paginated listing.
type Page struct {
	Items      []Module `json:"items"`
	NextCursor string   `json:"nextCursor,omitempty"`
}
