package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wgunawan/hiradc/internal/ai"
	"github.com/wgunawan/hiradc/internal/domain"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{
			name:       "domain invalid",
			err:        domain.Invalid("op", "bad input"),
			wantCode:   domain.EINVALID,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "domain not found",
			err:        domain.NotFound("op", "report", "abc"),
			wantCode:   domain.ENOTFOUND,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "domain conflict",
			err:        domain.Conflict("op", "busy"),
			wantCode:   domain.ECONFLICT,
			wantStatus: http.StatusConflict,
		},
		{
			name:       "ai rate limit",
			err:        ai.WrapError("analyze", ai.EAIRateLimit),
			wantCode:   domain.EUNAVAILABLE,
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name:       "ai timeout",
			err:        ai.WrapError("analyze", ai.EAITimeout),
			wantCode:   domain.EUNAVAILABLE,
			wantStatus: http.StatusGatewayTimeout,
		},
		{
			name:       "ai unavailable",
			err:        ai.WrapError("analyze", ai.EAIUnavailable),
			wantCode:   domain.EUNAVAILABLE,
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "ai unauthorized hides upstream auth",
			err:        ai.WrapError("analyze", ai.EAIUnauthorized),
			wantCode:   domain.EUNAVAILABLE,
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "ai malformed output is a failed call",
			err:        ai.WrapError("analyze", ai.EAIMalformedOutput),
			wantCode:   domain.EUNAVAILABLE,
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "ai no image is the sole no-output case",
			err:        ai.WrapError("edit", ai.EAINoImage),
			wantCode:   domain.ENOOUTPUT,
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "ai invalid image",
			err:        ai.WrapError("analyze", ai.EAIInvalidImage),
			wantCode:   domain.EINVALID,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, status := classifyError(tt.err)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStatus, status)
		})
	}
}
