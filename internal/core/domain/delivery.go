package domain

import "time"

// DeliveryMetric is one time-bucketed performance observation. Rows are
// append-only: corrections are inserted as new rows, never overwrites.
type DeliveryMetric struct {
	ID          string
	MediaBuyID  string
	PackageID   string
	Date        time.Time // day bucket
	Hour        *int      // optional hour bucket, 0-23
	FormatID    string
	DeviceType  string
	Geo         string
	Impressions int64
	Clicks      int64
	Conversions int64
	Spend       Money
	CreatedAt   time.Time
}
