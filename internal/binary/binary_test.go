package binary

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadBool(t *testing.T) {
	type args struct {
		r *bytes.Reader
	}
	tests := []struct {
		name    string
		args    args
		want    bool
		wantErr bool
	}{
		{
			"true",
			args{r: bytes.NewReader([]byte{1})},
			true,
			false,
		}, {
			"false",
			args{r: bytes.NewReader([]byte{0})},
			false,
			false,
		}, {
			"error",
			args{r: bytes.NewReader([]byte{})},
			false,
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadBool(tt.args.r)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type limitWrite struct{}

func (l *limitWrite) Write(p []byte) (n int, err error) {
	return 0, errors.New("error")
}

func TestWriteUint16(t *testing.T) {
	b := &bytes.Buffer{}

	err := WriteUint16(b, 1)
	assert.NoError(t, err)
	assert.EqualValues(t, bytes.NewBuffer([]byte{0, 1}), b)

	err = WriteUint16(&limitWrite{}, 1)
	assert.Error(t, err)
}

func TestReadUint16(t *testing.T) {
	type args struct {
		r *bytes.Reader
	}
	tests := []struct {
		name    string
		args    args
		want    uint16
		wantErr bool
	}{
		{
			"correct", args{r: bytes.NewReader([]byte{0, 1})}, 1, false,
		}, {
			"error", args{r: bytes.NewReader([]byte{1})}, 0, true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadUint16(tt.args.r)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteBool(t *testing.T) {
	type args struct {
		b bool
	}
	tests := []struct {
		name  string
		args  args
		wantW string
	}{
		{"true", args{b: true}, bytes.NewBuffer([]byte{1}).String()},
		{"false", args{b: false}, bytes.NewBuffer([]byte{0}).String()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &bytes.Buffer{}
			err := WriteBool(w, tt.args.b)
			assert.NoError(t, err)
			assert.Equal(t, tt.wantW, w.String())
		})
	}
}

func TestWriteString(t *testing.T) {
	buffer := &bytes.Buffer{}
	err := WriteString(buffer, []byte("1"))
	assert.NoError(t, err)
	assert.EqualValues(t, bytes.NewBuffer([]byte{0, 1, '1'}), buffer)
	err = WriteString(&limitWrite{}, []byte(" "))
	assert.Error(t, err)
}

func TestReadString(t *testing.T) {
	readString, err := ReadString(bytes.NewBuffer([]byte{0, 1, '1'}))
	assert.NoError(t, err)
	assert.EqualValues(t, "1", readString)

	_, err = ReadString(bytes.NewBuffer([]byte{0, 2, '1'}))
	assert.Error(t, err)
	_, err = ReadString(bytes.NewBuffer([]byte{0}))
	assert.Error(t, err)
}

func TestReadString_InvalidUTF8(t *testing.T) {
	_, err := ReadString(bytes.NewBuffer([]byte{0, 2, 0xff, 0xfe}))
	assert.Error(t, err)
}

func TestRemainingLengthRoundTrip(t *testing.T) {
	cases := []int{0, 1, 127, 128, 16383, 16384, 2097151, 2097152, 268435455}
	for _, n := range cases {
		encoded, err := EncodeRemainingLength(n)
		assert.NoError(t, err)
		got, err := DecodeRemainingLength(bytes.NewReader(encoded))
		assert.NoError(t, err)
		assert.Equal(t, n, got)
	}
}

func TestRemainingLengthByteThresholds(t *testing.T) {
	tests := []struct {
		n    int
		size int
	}{
		{0, 1},
		{127, 1},
		{128, 2},
		{16383, 2},
		{16384, 3},
		{2097151, 3},
		{2097152, 4},
		{268435455, 4},
	}
	for _, tt := range tests {
		encoded, err := EncodeRemainingLength(tt.n)
		assert.NoError(t, err)
		assert.Lenf(t, encoded, tt.size, "length %d", tt.n)
	}
}

func TestRemainingLengthTooLarge(t *testing.T) {
	_, err := EncodeRemainingLength(268435456)
	assert.Error(t, err)
}

func TestDecodeRemainingLength_FifthContinuationByte(t *testing.T) {
	_, err := DecodeRemainingLength(bytes.NewReader([]byte{0x80, 0x80, 0x80, 0x80}))
	assert.Error(t, err)
}

func TestEncodeRemainingLengthZero(t *testing.T) {
	encoded, err := EncodeRemainingLength(0)
	assert.NoError(t, err)
	assert.Equal(t, []byte{0x00}, encoded)
}
