package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/atmx/perf-engine/internal/model"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind model.Kind
		want int
	}{
		{model.KindInvalidRequest, http.StatusBadRequest},
		{model.KindInvalidEngineInput, http.StatusBadRequest},
		{model.KindInsufficientData, http.StatusUnprocessableEntity},
		{model.KindSolverFailed, http.StatusUnprocessableEntity},
		{model.KindNotImplemented, http.StatusNotImplemented},
		{model.KindCancelled, StatusClientClosedRequest},
		{model.KindEngineCalculation, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(model.Errorf(tt.kind, "boom")); got != tt.want {
			t.Errorf("statusFor(%s) = %d, want %d", tt.kind, got, tt.want)
		}
	}
	if got := statusFor(errors.New("untyped")); got != http.StatusInternalServerError {
		t.Errorf("untyped error mapped to %d", got)
	}
}
