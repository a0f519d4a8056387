package kafka

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewProducerRequiresBrokers(t *testing.T) {
	_, err := NewProducer(context.Background(), nil, "receipt-events")
	assert.ErrorContains(t, err, "no seed brokers")
}
