package ui

import "time"

// Terminal width thresholds for responsive layouts.
const (
	// LayoutCompactWidth is the threshold below which compact mode is used.
	LayoutCompactWidth = 100

	// LayoutBatteryWidth is the minimum width to show the battery column.
	LayoutBatteryWidth = 80
)

// Log display limits.
const (
	// LogFetchLimit is the number of trailing records read per refresh.
	LogFetchLimit = 500

	// LogRefreshDebounce is the minimum time between log refreshes.
	LogRefreshDebounce = 400 * time.Millisecond
)

// DefaultUIInterval is the default interval between controller view reads.
const DefaultUIInterval = 200 * time.Millisecond
