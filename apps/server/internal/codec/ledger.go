package codec

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// EncodeLedger turns an outbound envelope into the binary protobuf Struct the
// ledger stores. The JSON field names are kept, so DecodeLedger round-trips the
// wire view of the message.
func EncodeLedger(env *ServerEnvelope) ([]byte, error) {
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("ledger struct: %w", err)
	}
	return proto.MarshalOptions{Deterministic: true}.Marshal(st)
}

func DecodeLedger(data []byte) (*structpb.Struct, error) {
	st := &structpb.Struct{}
	if err := proto.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("ledger struct: %w", err)
	}
	return st, nil
}

// LedgerJSON renders a stored event back to JSON for the history API.
func LedgerJSON(data []byte) (json.RawMessage, error) {
	st, err := DecodeLedger(data)
	if err != nil {
		return nil, err
	}
	out, err := protojson.MarshalOptions{UseProtoNames: true}.Marshal(st)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(out), nil
}
