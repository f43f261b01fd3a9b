package models

import "time"

// Project is a hosted coding project: a named container of files and folders
// with a build command resolved server-side.
type Project struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	BuildCommand string    `json:"build_command"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
