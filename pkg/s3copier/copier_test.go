package s3copier

import (
	"errors"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hep-ops/gridsync/pkg/transfer"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		url        string
		wantBucket string
		wantKey    string
		wantErr    bool
	}{
		{"s3://bucket/store/data/file.root", "bucket", "store/data/file.root", false},
		{"s3://bucket", "bucket", "", false},
		{"s3://bucket/", "bucket", "", false},
		{"srm://se.example/store", "", "", true},
		{"s3:///key-only", "", "", true},
	}

	for _, tt := range tests {
		bucket, key, err := ParseURL(tt.url)
		if tt.wantErr {
			assert.Error(t, err, tt.url)
			continue
		}
		require.NoError(t, err, tt.url)
		assert.Equal(t, tt.wantBucket, bucket)
		assert.Equal(t, tt.wantKey, key)
	}
}

type apiError struct{ code string }

func (e *apiError) Error() string                 { return e.code }
func (e *apiError) ErrorCode() string             { return e.code }
func (e *apiError) ErrorMessage() string          { return e.code }
func (e *apiError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"missing key", &apiError{code: "NoSuchKey"}, true},
		{"missing bucket", &apiError{code: "NoSuchBucket"}, true},
		{"access denied", &apiError{code: "AccessDenied"}, true},
		{"throttled", &apiError{code: "SlowDown"}, false},
		{"plain network error", errors.New("connection reset by peer"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			assert.Equal(t, tt.fatal, transfer.IsFatal(got))
		})
	}
}
