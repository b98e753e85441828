package models

import (
	"time"

	v1 "montage/internal/contracts/slideshow/v1"
)

// Preset is a named set of defaults merged under a job's own fields.
type Preset struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Defaults    v1.Defaults `json:"defaults"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   *time.Time  `json:"updated_at,omitempty"`
	DeletedAt   *time.Time  `json:"deleted_at,omitempty"`
}
