package eventio

import (
	"fmt"
	"io"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/banshee-data/dvsim/internal/dvs"
)

// Field numbers of the pb container message:
//
//	message EventStream {
//	  repeated bool   pol         = 1;
//	  repeated uint64 timestamps  = 2;
//	  repeated uint32 x_pos       = 3;
//	  repeated uint32 y_pos       = 4;
//	  uint32 width                = 5;
//	  uint32 height               = 6;
//	  double sensitivity          = 7;
//	  uint64 start_time           = 8;
//	  double fps                  = 9;
//	  string run_id               = 10;
//	  uint32 frame_count          = 11;
//	  string source               = 12;
//	}
const (
	fieldPol         protowire.Number = 1
	fieldTimestamps  protowire.Number = 2
	fieldXPos        protowire.Number = 3
	fieldYPos        protowire.Number = 4
	fieldWidth       protowire.Number = 5
	fieldHeight      protowire.Number = 6
	fieldSensitivity protowire.Number = 7
	fieldStartTime   protowire.Number = 8
	fieldFPS         protowire.Number = 9
	fieldRunID       protowire.Number = 10
	fieldFrameCount  protowire.Number = 11
	fieldSource      protowire.Number = 12
)

// WriteProto encodes ev and meta as a single EventStream message with packed
// repeated fields. Zero-valued scalars are omitted.
func WriteProto(w io.Writer, ev *dvs.Events, meta Metadata) error {
	if ev.Len() > 0 {
		if err := ev.Validate(); err != nil {
			return err
		}
	}
	_, err := w.Write(MarshalProto(ev, meta))
	return err
}

// MarshalProto returns the wire encoding written by WriteProto.
func MarshalProto(ev *dvs.Events, meta Metadata) []byte {
	var b []byte
	if n := ev.Len(); n > 0 {
		b = protowire.AppendTag(b, fieldPol, protowire.BytesType)
		b = protowire.AppendVarint(b, uint64(n))
		for _, p := range ev.Polarities {
			b = protowire.AppendVarint(b, protowire.EncodeBool(p))
		}
		b = appendPacked(b, fieldTimestamps, ev.Timestamps)
		b = appendPacked(b, fieldXPos, ev.XPositions)
		b = appendPacked(b, fieldYPos, ev.YPositions)
	}

	b = appendVarintField(b, fieldWidth, uint64(meta.Width))
	b = appendVarintField(b, fieldHeight, uint64(meta.Height))
	b = appendDoubleField(b, fieldSensitivity, meta.Sensitivity)
	b = appendVarintField(b, fieldStartTime, meta.StartTime)
	b = appendDoubleField(b, fieldFPS, meta.FPS)
	b = appendStringField(b, fieldRunID, meta.RunID)
	b = appendVarintField(b, fieldFrameCount, uint64(meta.FrameCount))
	b = appendStringField(b, fieldSource, meta.Source)
	return b
}

func appendPacked[T uint32 | uint64](b []byte, num protowire.Number, vals []T) []byte {
	size := 0
	for _, v := range vals {
		size += protowire.SizeVarint(uint64(v))
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendVarint(b, uint64(size))
	for _, v := range vals {
		b = protowire.AppendVarint(b, uint64(v))
	}
	return b
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendDoubleField(b []byte, num protowire.Number, v float64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendStringField(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// ReadProto decodes an EventStream message. Repeated fields may be packed or
// not; unknown fields are skipped.
func ReadProto(r io.Reader) (*dvs.Events, *Metadata, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}
	return UnmarshalProto(data)
}

// UnmarshalProto is ReadProto over an in-memory buffer.
func UnmarshalProto(b []byte) (*dvs.Events, *Metadata, error) {
	ev := dvs.NewEvents(0)
	meta := &Metadata{}

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, nil, corrupt(protowire.ParseError(n))
		}
		b = b[n:]

		var err error
		switch {
		case num >= fieldPol && num <= fieldYPos && (typ == protowire.BytesType || typ == protowire.VarintType):
			n, err = consumeRepeated(b, num, typ, ev)
		case typ == protowire.VarintType && isVarintMeta(num):
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			if n >= 0 {
				err = setVarintMeta(meta, num, v)
			}
		case typ == protowire.Fixed64Type && (num == fieldSensitivity || num == fieldFPS):
			var v uint64
			v, n = protowire.ConsumeFixed64(b)
			if num == fieldSensitivity {
				meta.Sensitivity = math.Float64frombits(v)
			} else {
				meta.FPS = math.Float64frombits(v)
			}
		case typ == protowire.BytesType && (num == fieldRunID || num == fieldSource):
			var s string
			s, n = protowire.ConsumeString(b)
			if num == fieldRunID {
				meta.RunID = s
			} else {
				meta.Source = s
			}
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if err != nil {
			return nil, nil, err
		}
		if n < 0 {
			return nil, nil, corrupt(protowire.ParseError(n))
		}
		b = b[n:]
	}

	if err := ev.Validate(); err != nil {
		return nil, nil, corrupt(err)
	}
	return ev, meta, nil
}

func corrupt(err error) error {
	return fmt.Errorf("%w: %v", ErrCorrupt, err)
}

func isVarintMeta(num protowire.Number) bool {
	switch num {
	case fieldWidth, fieldHeight, fieldStartTime, fieldFrameCount:
		return true
	}
	return false
}

func setVarintMeta(meta *Metadata, num protowire.Number, v uint64) error {
	if num != fieldStartTime && v > math.MaxUint32 {
		return corrupt(fmt.Errorf("field %d value %d overflows uint32", num, v))
	}
	switch num {
	case fieldWidth:
		meta.Width = int(v)
	case fieldHeight:
		meta.Height = int(v)
	case fieldStartTime:
		meta.StartTime = v
	case fieldFrameCount:
		meta.FrameCount = int(v)
	}
	return nil
}

// consumeRepeated decodes one occurrence of a repeated field, packed or not,
// appending to the matching array of ev. It returns the bytes consumed.
func consumeRepeated(b []byte, num protowire.Number, typ protowire.Type, ev *dvs.Events) (int, error) {
	if typ == protowire.VarintType {
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return n, nil
		}
		return n, appendValue(ev, num, v)
	}

	packed, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return n, nil
	}
	for len(packed) > 0 {
		v, m := protowire.ConsumeVarint(packed)
		if m < 0 {
			return m, nil
		}
		if err := appendValue(ev, num, v); err != nil {
			return 0, err
		}
		packed = packed[m:]
	}
	return n, nil
}

func appendValue(ev *dvs.Events, num protowire.Number, v uint64) error {
	switch num {
	case fieldPol:
		ev.Polarities = append(ev.Polarities, protowire.DecodeBool(v))
	case fieldTimestamps:
		ev.Timestamps = append(ev.Timestamps, v)
	case fieldXPos, fieldYPos:
		if v > math.MaxUint32 {
			return corrupt(fmt.Errorf("field %d value %d overflows uint32", num, v))
		}
		if num == fieldXPos {
			ev.XPositions = append(ev.XPositions, uint32(v))
		} else {
			ev.YPositions = append(ev.YPositions, uint32(v))
		}
	}
	return nil
}
