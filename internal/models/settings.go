package models

import "github.com/julianstephens/habitmap/internal/constants"

// Settings holds document-level preferences
type Settings struct {
	HeatmapView constants.HeatmapView `json:"heatmapView"` // fallback for habits without their own view
}
