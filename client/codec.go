package client

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

// CodecName is the content subtype of worker RPCs.
const CodecName = "distmatrix"

type wireMessage interface {
	Marshal() ([]byte, error)
	Unmarshal([]byte) error
}

type wireCodec struct{}

func init() {
	encoding.RegisterCodec(wireCodec{})
}

func (wireCodec) Marshal(v interface{}) ([]byte, error) {
	m, ok := v.(wireMessage)
	if !ok {
		return nil, fmt.Errorf("%s codec: unsupported message %T", CodecName, v)
	}
	return m.Marshal()
}

func (wireCodec) Unmarshal(data []byte, v interface{}) error {
	m, ok := v.(wireMessage)
	if !ok {
		return fmt.Errorf("%s codec: unsupported message %T", CodecName, v)
	}
	return m.Unmarshal(data)
}

func (wireCodec) Name() string {
	return CodecName
}
