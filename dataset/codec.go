package dataset

import (
	"fmt"
	"os"

	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/klauspost/compress/zstd"

	"github.com/ahurka/Arrhenius/dataset/internal/fb"
)

// formatVersion is bumped on incompatible encoding changes.
const formatVersion = 1

// Encode serializes the dataset as a zstd-framed FlatBuffers blob.
func Encode(d *Dataset) ([]byte, error) {
	builder := flatbuffers.NewBuilder(1024)

	// Build variables in reverse order (FlatBuffers requirement).
	varOffsets := make([]flatbuffers.UOffsetT, len(d.names))
	for i := len(d.names) - 1; i >= 0; i-- {
		name := d.names[i]
		values := d.vars[name]

		nameOffset := builder.CreateString(name)

		fb.VariableStartValuesVector(builder, len(values))
		for j := len(values) - 1; j >= 0; j-- {
			builder.PrependFloat64(values[j])
		}
		valuesOffset := builder.EndVector(len(values))

		fb.VariableStart(builder)
		fb.VariableAddName(builder, nameOffset)
		fb.VariableAddValues(builder, valuesOffset)
		varOffsets[i] = fb.VariableEnd(builder)
	}

	fb.DatasetStartVariablesVector(builder, len(varOffsets))
	for i := len(varOffsets) - 1; i >= 0; i-- {
		builder.PrependUOffsetT(varOffsets[i])
	}
	varsOffset := builder.EndVector(len(varOffsets))

	runIDOffset := builder.CreateString(d.runID)

	fb.DatasetStart(builder)
	fb.DatasetAddVersion(builder, formatVersion)
	fb.DatasetAddRunId(builder, runIDOffset)
	fb.DatasetAddSegments(builder, uint32(d.shape.Segments))
	fb.DatasetAddLat(builder, uint32(d.shape.Lat))
	fb.DatasetAddLon(builder, uint32(d.shape.Lon))
	fb.DatasetAddVariables(builder, varsOffset)
	builder.Finish(fb.DatasetEnd(builder))

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(builder.FinishedBytes(), nil), nil
}

// Decode parses a dataset from its encoded form.
func Decode(data []byte) (d *Dataset, err error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	// Malformed buffers can make the FlatBuffers accessors index out
	// of range; report them as corruption instead of panicking.
	defer func() {
		if r := recover(); r != nil {
			d = nil
			err = fmt.Errorf("%w: %v", ErrCorrupt, r)
		}
	}()

	root := fb.GetRootAsDataset(raw, 0)
	if v := root.Version(); v != formatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, v)
	}

	shape := Shape{
		Segments: int(root.Segments()),
		Lat:      int(root.Lat()),
		Lon:      int(root.Lon()),
	}
	if shape.Segments <= 0 || shape.Lat <= 0 || shape.Lon <= 0 {
		return nil, fmt.Errorf("%w: empty shape", ErrCorrupt)
	}

	out := New(string(root.RunId()), shape)
	var variable fb.Variable
	for i := 0; i < root.VariablesLength(); i++ {
		if !root.Variables(&variable, i) {
			return nil, fmt.Errorf("%w: variable %d", ErrCorrupt, i)
		}
		n := variable.ValuesLength()
		values := make([]float64, n)
		for j := range n {
			values[j] = variable.Values(j)
		}
		if err := out.SetVariable(string(variable.Name()), values); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
	}
	return out, nil
}

// ReadFile loads a dataset from its canonical file.
func ReadFile(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Fill returns a value slice for shape with every cell set to v;
// use math.NaN() for an all-missing variable.
func Fill(shape Shape, v float64) []float64 {
	values := make([]float64, shape.cells())
	for i := range values {
		values[i] = v
	}
	return values
}
