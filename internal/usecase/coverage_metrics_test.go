package usecase

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaennil/guide_helper/backend/hips/internal/moc"
	"github.com/jaennil/guide_helper/backend/hips/pkg/logger"
	"github.com/jaennil/guide_helper/backend/hips/pkg/metrics"
)

func operationSamples(t *testing.T, op string) uint64 {
	t.Helper()
	var m dto.Metric
	h, ok := metrics.CoverageOperationDuration.WithLabelValues(op).(prometheus.Metric)
	require.True(t, ok)
	require.NoError(t, h.Write(&m))
	return m.GetHistogram().GetSampleCount()
}

func TestCoverageOperationsObservedOnce(t *testing.T) {
	uc := NewCoverageUseCase(logger.NewNoOp())

	before := operationSamples(t, string(moc.OpUnion))
	_, err := uc.Algebra(moc.OpUnion, []string{"3/1", "3/2"}, moc.FrameICRS)
	require.NoError(t, err)
	assert.Equal(t, before+1, operationSamples(t, string(moc.OpUnion)), "two operands fold once")

	before = operationSamples(t, string(moc.OpUnion))
	_, err = uc.Algebra(moc.OpUnion, []string{"3/1", "3/2", "3/3"}, moc.FrameICRS)
	require.NoError(t, err)
	assert.Equal(t, before+2, operationSamples(t, string(moc.OpUnion)), "one sample per fold step")

	before = operationSamples(t, "reduction")
	_, err = uc.Reduce("5/900-910", moc.FrameICRS, 4)
	require.NoError(t, err)
	assert.Equal(t, before+1, operationSamples(t, "reduction"))
}
