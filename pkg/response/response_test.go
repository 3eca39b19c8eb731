package response

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/kart-io/lifeline/pkg/component/storage"
	"github.com/kart-io/lifeline/pkg/supervisor"
	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
		code string
	}{
		{storage.ErrClientNotFound.WithMessage("resource 'x' not registered"), http.StatusNotFound, "CLIENT_NOT_FOUND"},
		{supervisor.ErrShuttingDown, http.StatusConflict, "SHUTTING_DOWN"},
		{supervisor.ErrDropped, http.StatusServiceUnavailable, "DROPPED"},
		{fmt.Errorf("start: %w", supervisor.ErrTimeout), http.StatusGatewayTimeout, "TIMEOUT"},
		{context.DeadlineExceeded, http.StatusGatewayTimeout, "INTERNAL"},
		{supervisor.ErrHandlerFailure.WithCause(errors.New("refused")), http.StatusBadGateway, "HANDLER_FAILURE"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
			assert.Equal(t, tt.code, Code(tt.err))
		})
	}
}
