// Package task defines the rollout-verification task model and the state
// stores that retain tasks for status and history queries.
package task

import "fmt"

// Task statuses visible to clients. StatusTaskNotFound is a query-only
// sentinel and is never stored.
const (
	StatusAccepted     = "accepted"
	StatusInProgress   = "in progress"
	StatusDeployed     = "deployed"
	StatusFailed       = "failed"
	StatusAppNotFound  = "app not found"
	StatusTaskNotFound = "task not found"
)

// Image names a container image and the tag expected to be rolled out.
type Image struct {
	Image string `json:"image" validate:"required"`
	Tag   string `json:"tag" validate:"required"`
}

// Ref returns the image reference used for comparison against the
// image summary reported by Argo CD.
func (i Image) Ref() string {
	return fmt.Sprintf("%s:%s", i.Image, i.Tag)
}

// Task is a single rollout-verification request. ID is assigned by the
// server on acceptance; Created and Updated are seconds since the epoch.
type Task struct {
	ID      string  `json:"id,omitempty"`
	Created float64 `json:"created,omitempty"`
	Updated float64 `json:"updated,omitempty"`
	App     string  `json:"app" validate:"required"`
	Author  string  `json:"author" validate:"required"`
	Project string  `json:"project" validate:"required"`
	Images  []Image `json:"images" validate:"required,min=1,dive"`
	Status  string  `json:"status,omitempty"`
}
