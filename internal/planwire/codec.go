// Package planwire defines the PlanService gRPC contract: message types, the
// service descriptor, a client stub and the server interface.
//
// Messages are plain structs carried by a JSON codec registered with grpc under the
// "json" content subtype; clients must send CallOption() with every call, which the
// generated-style client in this package does.
package planwire

import (
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content subtype of the JSON codec.
const CodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// CallOption selects the JSON codec for a call.
func CallOption() grpc.CallOption { return grpc.CallContentSubtype(CodecName) }
