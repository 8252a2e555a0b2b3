package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/movies/", "200"))
	RecordAPIRequest("GET", "/api/movies/", 200, 15*time.Millisecond)
	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/movies/", "200"))
	if after != before+1 {
		t.Errorf("counter = %v, want %v", after, before+1)
	}
}

func TestRecordReviewOperation(t *testing.T) {
	RecordReviewOperation("add", nil)
	RecordReviewOperation("add", errors.New("boom"))
	if got := testutil.ToFloat64(ReviewOperations.WithLabelValues("add", "error")); got < 1 {
		t.Errorf("error outcome not counted: %v", got)
	}
	if got := testutil.ToFloat64(ReviewOperations.WithLabelValues("add", "success")); got < 1 {
		t.Errorf("success outcome not counted: %v", got)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	before := testutil.ToFloat64(APIActiveRequests)
	TrackActiveRequest(true)
	if got := testutil.ToFloat64(APIActiveRequests); got != before+1 {
		t.Errorf("gauge = %v after inc", got)
	}
	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests); got != before {
		t.Errorf("gauge = %v after dec", got)
	}
}
