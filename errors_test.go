package arrhenius

import (
	"errors"
	"fmt"
	"io/fs"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ahurka/Arrhenius/config"
	"github.com/ahurka/Arrhenius/dataset"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want Fault
	}{
		{
			"validation error",
			&config.ValidationError{Field: "layers", Reason: "must be >= 1"},
			FaultClient,
		},
		{
			"wrapped validation error",
			fmt.Errorf("parse request: %w",
				&config.ValidationError{Field: "scale", Reason: "inverted"}),
			FaultClient,
		},
		{
			"unknown variable",
			fmt.Errorf("render: %w", dataset.ErrUnknownVariable),
			FaultClient,
		},
		{
			"segment out of range",
			dataset.ErrSegmentRange,
			FaultClient,
		},
		{
			"disk full",
			&fs.PathError{Op: "write", Path: "/output/x", Err: syscall.ENOSPC},
			FaultCapacity,
		},
		{
			"wrapped disk full",
			fmt.Errorf("simulation: %w", syscall.ENOSPC),
			FaultCapacity,
		},
		{
			"permission denied",
			&fs.PathError{Op: "open", Path: "/output/x", Err: syscall.EACCES},
			FaultIO,
		},
		{
			"missing file",
			fs.ErrNotExist,
			FaultIO,
		},
		{
			"corrupt dataset",
			fmt.Errorf("load: %w", dataset.ErrCorrupt),
			FaultIO,
		},
		{
			"anything else",
			errors.New("surprise"),
			FaultUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestFaultString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "client", FaultClient.String())
	assert.Equal(t, "capacity", FaultCapacity.String())
	assert.Equal(t, "io", FaultIO.String())
	assert.Equal(t, "unknown", FaultUnknown.String())
}
