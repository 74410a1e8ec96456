package domain

import "time"

type UsageLog struct {
	UserID          string
	JobID           string
	PixelsProcessed int64
	PathsEmitted    int64
	PointsEmitted   int64
	OutputBytes     int64
	ComputeTimeMS   int64
	CreatedAt       time.Time
}
