package sheets

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"
)

func TestRetryableSheetsError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"quota exceeded", &googleapi.Error{Code: http.StatusTooManyRequests}, true},
		{"server error", fmt.Errorf("failed to write batch starting at row 1: %w", &googleapi.Error{Code: http.StatusBadGateway}), true},
		{"bad range", &googleapi.Error{Code: http.StatusBadRequest, Message: "Unable to parse range"}, false},
		{"no permission", &googleapi.Error{Code: http.StatusForbidden}, false},
		{"network failure", errors.New("connection reset by peer"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retryableSheetsError(tt.err))
		})
	}
}
