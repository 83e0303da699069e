package stts751

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSensor(t *testing.T) {
	s := &Sensor{Addr: DefaultAddr}
	require.NoError(t, s.Configure())

	temp, err := s.Temperature()
	require.NoError(t, err)
	require.Equal(t, float32(30), temp)
}
