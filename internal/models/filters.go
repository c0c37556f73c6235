package models

// SegmentFilter represents filter parameters for querying a lane's segments
type SegmentFilter struct {
	Breaches bool  `form:"breaches"` // only segments outside thresholds
	SinceSeq int64 `form:"sinceSeq"` // only segments from messages after this sequence number
	Page     int   `form:"page"`
	PageSize int   `form:"pageSize"`
}

// Normalize applies default paging
func (f *SegmentFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = 100
	}
	if f.PageSize > 1000 {
		f.PageSize = 1000
	}
}

// GeoJSONFilter represents filter parameters for the GeoJSON export
type GeoJSONFilter struct {
	Lane     string `form:"lane"`     // optional lane prefix or index
	Breaches bool   `form:"breaches"` // only segments outside thresholds
}
