package scheduler

import (
	"context"
	"testing"
	"time"

	"book-rental-engine/internal/core/ports"
	"book-rental-engine/internal/core/ports/mocks"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func TestBillingScheduler_RunsImmediatelyAndOnTicks(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	billing := mocks.NewMockBillingService(ctrl)
	billing.EXPECT().ProcessDueContracts(gomock.Any()).
		Return(&ports.RunReport{}, nil).
		MinTimes(2)

	sched := NewBillingScheduler(billing, 10*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on context cancellation")
	}
}

func TestBillingScheduler_SurvivesRunErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	billing := mocks.NewMockBillingService(ctrl)
	first := billing.EXPECT().ProcessDueContracts(gomock.Any()).Return(nil, assert.AnError)
	billing.EXPECT().ProcessDueContracts(gomock.Any()).
		Return(&ports.RunReport{}, nil).
		MinTimes(1).
		After(first)

	sched := NewBillingScheduler(billing, 10*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	sched.Run(ctx)
}
