package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup(t *testing.T) {
	for _, exp := range []string{"", "none", "stdout"} {
		t.Run("exporter_"+exp, func(t *testing.T) {
			shutdown, err := Setup(context.Background(), "storefront-test", exp)
			require.NoError(t, err)
			assert.NoError(t, shutdown(context.Background()))
		})
	}
}

func TestSetup_UnknownExporter(t *testing.T) {
	_, err := Setup(context.Background(), "storefront-test", "zipkin")
	assert.Error(t, err)
}
