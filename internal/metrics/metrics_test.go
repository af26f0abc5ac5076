package metrics

import (
	"testing"
)

func TestMetricsExist(t *testing.T) {
	tests := []struct {
		name   string
		metric interface{}
	}{
		{"HTTPRequestsTotal", HTTPRequestsTotal},
		{"HTTPRequestDuration", HTTPRequestDuration},
		{"HTTPRequestsInFlight", HTTPRequestsInFlight},
		{"StoreQueryTotal", StoreQueryTotal},
		{"StoreQueryDuration", StoreQueryDuration},
		{"StoreRecordsDeleted", StoreRecordsDeleted},
		{"StoreDuplicatePuts", StoreDuplicatePuts},
		{"FetchTotal", FetchTotal},
		{"FetchDuration", FetchDuration},
		{"FetchBytes", FetchBytes},
		{"ThumbnailExtractionsTotal", ThumbnailExtractionsTotal},
		{"ThumbnailExtractionDuration", ThumbnailExtractionDuration},
		{"ThumbnailFFmpegDuration", ThumbnailFFmpegDuration},
		{"CacheLookupsTotal", CacheLookupsTotal},
		{"CachePopulateTotal", CachePopulateTotal},
		{"CachePopulateShared", CachePopulateShared},
		{"CacheItems", CacheItems},
		{"CacheSizeBytes", CacheSizeBytes},
		{"CachePurgeLastTimestamp", CachePurgeLastTimestamp},
		{"HandlesActive", HandlesActive},
		{"RetrievalTransitionsTotal", RetrievalTransitionsTotal},
		{"AppInfo", AppInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s metric is nil", tt.name)
			}
		})
	}
}
