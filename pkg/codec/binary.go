package codec

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"math"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/yndnr/sessfile-go/pkg/session"
)

// Frame layout:
//
//	[magic:4 "SFRB"][version:1][payload...][crc32:4 over magic+version+payload]
//
// The payload is a protobuf message:
//
//	1: id          string
//	2: expires_at  google.protobuf.Timestamp (absent = no expiry)
//	3: entries     repeated Entry{1: key string, 2: value Value}
//
// Value carries exactly one of:
//
//	1 null (varint 0), 2 bool, 3 int (zigzag), 4 float (fixed64 bits),
//	5 string, 6 bytes, 7 list (repeated 1: Value), 8 map (repeated 1: Entry)
var binaryMagic = []byte("SFRB")

const (
	binaryVersion   = 1
	binaryHeaderLen = 5
	binaryCRCLen    = 4
)

const (
	fieldRecordID      protowire.Number = 1
	fieldRecordExpiry  protowire.Number = 2
	fieldRecordEntry   protowire.Number = 3
	fieldEntryKey      protowire.Number = 1
	fieldEntryValue    protowire.Number = 2
	fieldContainerItem protowire.Number = 1
)

const (
	fieldValueNull protowire.Number = iota + 1
	fieldValueBool
	fieldValueInt
	fieldValueFloat
	fieldValueString
	fieldValueBytes
	fieldValueList
	fieldValueMap
)

type binaryCodec struct{}

func (binaryCodec) Name() string { return "binary" }

func (binaryCodec) Encode(rec *session.Record) ([]byte, error) {
	if err := checkEncodable(rec); err != nil {
		return nil, err
	}

	out := make([]byte, 0, 64)
	out = append(out, binaryMagic...)
	out = append(out, binaryVersion)

	out = protowire.AppendTag(out, fieldRecordID, protowire.BytesType)
	out = protowire.AppendString(out, rec.ID)

	if rec.HasExpiry() {
		ts := timestamppb.New(rec.ExpiresAt)
		if err := ts.CheckValid(); err != nil {
			return nil, session.ErrEncode.WithDetails("expires_at").Wrap(err)
		}
		tb, err := proto.MarshalOptions{Deterministic: true}.Marshal(ts)
		if err != nil {
			return nil, session.ErrEncode.WithDetails("expires_at").Wrap(err)
		}
		out = protowire.AppendTag(out, fieldRecordExpiry, protowire.BytesType)
		out = protowire.AppendBytes(out, tb)
	}

	for _, k := range sortedKeys(rec.Data) {
		entry, err := appendEntry(nil, k, rec.Data[k])
		if err != nil {
			return nil, err
		}
		out = protowire.AppendTag(out, fieldRecordEntry, protowire.BytesType)
		out = protowire.AppendBytes(out, entry)
	}

	var sum [binaryCRCLen]byte
	binary.BigEndian.PutUint32(sum[:], crc32.ChecksumIEEE(out))
	return append(out, sum[:]...), nil
}

func (binaryCodec) Decode(data []byte) (*session.Record, error) {
	if len(data) < binaryHeaderLen+binaryCRCLen {
		return nil, corrupt("record truncated: %d bytes", len(data))
	}
	if !bytes.Equal(data[:len(binaryMagic)], binaryMagic) {
		return nil, corrupt("invalid magic bytes")
	}
	if data[len(binaryMagic)] != binaryVersion {
		return nil, corrupt("unsupported binary record version %d", data[len(binaryMagic)])
	}

	body := data[:len(data)-binaryCRCLen]
	want := binary.BigEndian.Uint32(data[len(data)-binaryCRCLen:])
	if got := crc32.ChecksumIEEE(body); got != want {
		return nil, corrupt("checksum mismatch: got %08x, want %08x", got, want)
	}

	rec := &session.Record{Data: make(map[string]session.Value)}
	b := body[binaryHeaderLen:]
	var seenID, seenExpiry bool

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, wireErr("record tag", n)
		}
		b = b[n:]
		if typ != protowire.BytesType {
			return nil, corrupt("record field %d has wire type %d", num, typ)
		}
		payload, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, wireErr("record field", n)
		}
		b = b[n:]

		switch num {
		case fieldRecordID:
			if seenID {
				return nil, corrupt("duplicate id field")
			}
			seenID = true
			rec.ID = string(payload)

		case fieldRecordExpiry:
			if seenExpiry {
				return nil, corrupt("duplicate expires_at field")
			}
			seenExpiry = true
			var ts timestamppb.Timestamp
			if err := proto.Unmarshal(payload, &ts); err != nil {
				return nil, session.ErrCorrupt.WithDetails("expires_at").Wrap(err)
			}
			if err := ts.CheckValid(); err != nil {
				return nil, session.ErrCorrupt.WithDetails("expires_at").Wrap(err)
			}
			rec.ExpiresAt = ts.AsTime()

		case fieldRecordEntry:
			k, v, err := consumeEntry(payload, 0)
			if err != nil {
				return nil, err
			}
			if _, dup := rec.Data[k]; dup {
				return nil, corrupt("duplicate attribute %q", k)
			}
			rec.Data[k] = v

		default:
			return nil, corrupt("unknown record field %d", num)
		}
	}

	if !seenID {
		return nil, corrupt("missing id field")
	}
	return rec, nil
}

func appendEntry(b []byte, key string, v session.Value) ([]byte, error) {
	b = protowire.AppendTag(b, fieldEntryKey, protowire.BytesType)
	b = protowire.AppendString(b, key)

	val, err := appendValue(nil, v)
	if err != nil {
		return nil, err
	}
	b = protowire.AppendTag(b, fieldEntryValue, protowire.BytesType)
	return protowire.AppendBytes(b, val), nil
}

func appendValue(b []byte, v session.Value) ([]byte, error) {
	switch v.Kind() {
	case session.KindNull:
		b = protowire.AppendTag(b, fieldValueNull, protowire.VarintType)
		b = protowire.AppendVarint(b, 0)
	case session.KindBool:
		x, _ := v.Bool()
		b = protowire.AppendTag(b, fieldValueBool, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(x))
	case session.KindInt:
		x, _ := v.Int()
		b = protowire.AppendTag(b, fieldValueInt, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(x))
	case session.KindFloat:
		x, _ := v.Float()
		b = protowire.AppendTag(b, fieldValueFloat, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(x))
	case session.KindString:
		x, _ := v.Str()
		b = protowire.AppendTag(b, fieldValueString, protowire.BytesType)
		b = protowire.AppendString(b, x)
	case session.KindBytes:
		x, _ := v.BytesValue()
		b = protowire.AppendTag(b, fieldValueBytes, protowire.BytesType)
		b = protowire.AppendBytes(b, x)
	case session.KindList:
		items, _ := v.List()
		var inner []byte
		for _, item := range items {
			enc, err := appendValue(nil, item)
			if err != nil {
				return nil, err
			}
			inner = protowire.AppendTag(inner, fieldContainerItem, protowire.BytesType)
			inner = protowire.AppendBytes(inner, enc)
		}
		b = protowire.AppendTag(b, fieldValueList, protowire.BytesType)
		b = protowire.AppendBytes(b, inner)
	case session.KindMap:
		m, _ := v.Map()
		var inner []byte
		for _, k := range sortedKeys(m) {
			entry, err := appendEntry(nil, k, m[k])
			if err != nil {
				return nil, err
			}
			inner = protowire.AppendTag(inner, fieldContainerItem, protowire.BytesType)
			inner = protowire.AppendBytes(inner, entry)
		}
		b = protowire.AppendTag(b, fieldValueMap, protowire.BytesType)
		b = protowire.AppendBytes(b, inner)
	default:
		return nil, session.ErrEncode.Detailf("unknown value kind %v", v.Kind())
	}
	return b, nil
}

func consumeEntry(b []byte, depth int) (string, session.Value, error) {
	var (
		key              string
		val              session.Value
		seenKey, seenVal bool
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return "", session.Value{}, wireErr("entry tag", n)
		}
		b = b[n:]
		if typ != protowire.BytesType {
			return "", session.Value{}, corrupt("entry field %d has wire type %d", num, typ)
		}
		payload, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return "", session.Value{}, wireErr("entry field", n)
		}
		b = b[n:]

		switch {
		case num == fieldEntryKey && !seenKey:
			seenKey = true
			key = string(payload)
		case num == fieldEntryValue && !seenVal:
			seenVal = true
			v, err := consumeValue(payload, depth)
			if err != nil {
				return "", session.Value{}, err
			}
			val = v
		default:
			return "", session.Value{}, corrupt("unexpected entry field %d", num)
		}
	}
	if !seenKey || !seenVal {
		return "", session.Value{}, corrupt("incomplete entry")
	}
	return key, val, nil
}

func consumeValue(b []byte, depth int) (session.Value, error) {
	num, typ, n := protowire.ConsumeTag(b)
	if n < 0 {
		return session.Value{}, wireErr("value tag", n)
	}
	b = b[n:]

	var (
		v    session.Value
		used int
	)
	switch num {
	case fieldValueNull, fieldValueBool, fieldValueInt:
		if typ != protowire.VarintType {
			return session.Value{}, corrupt("value field %d has wire type %d", num, typ)
		}
		x, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return session.Value{}, wireErr("varint", n)
		}
		used = n
		switch num {
		case fieldValueNull:
			if x != 0 {
				return session.Value{}, corrupt("null value with payload %d", x)
			}
			v = session.Null()
		case fieldValueBool:
			if x > 1 {
				return session.Value{}, corrupt("bool value %d", x)
			}
			v = session.Bool(protowire.DecodeBool(x))
		default:
			v = session.Int(protowire.DecodeZigZag(x))
		}

	case fieldValueFloat:
		if typ != protowire.Fixed64Type {
			return session.Value{}, corrupt("float field has wire type %d", typ)
		}
		x, n := protowire.ConsumeFixed64(b)
		if n < 0 {
			return session.Value{}, wireErr("fixed64", n)
		}
		used = n
		v = session.Float(math.Float64frombits(x))

	case fieldValueString, fieldValueBytes, fieldValueList, fieldValueMap:
		if typ != protowire.BytesType {
			return session.Value{}, corrupt("value field %d has wire type %d", num, typ)
		}
		payload, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return session.Value{}, wireErr("bytes", n)
		}
		used = n
		var err error
		switch num {
		case fieldValueString:
			v = session.String(string(payload))
		case fieldValueBytes:
			v = session.Bytes(payload)
		case fieldValueList:
			v, err = consumeList(payload, depth+1)
		default:
			v, err = consumeMap(payload, depth+1)
		}
		if err != nil {
			return session.Value{}, err
		}

	default:
		return session.Value{}, corrupt("unknown value field %d", num)
	}

	if len(b) != used {
		return session.Value{}, corrupt("value carries more than one field")
	}
	return v, nil
}

func consumeList(b []byte, depth int) (session.Value, error) {
	if depth > MaxDepth {
		return session.Value{}, corrupt("nesting deeper than %d", MaxDepth)
	}
	var items []session.Value
	err := consumeItems(b, func(item []byte) error {
		v, err := consumeValue(item, depth)
		if err != nil {
			return err
		}
		items = append(items, v)
		return nil
	})
	if err != nil {
		return session.Value{}, err
	}
	return session.List(items...), nil
}

func consumeMap(b []byte, depth int) (session.Value, error) {
	if depth > MaxDepth {
		return session.Value{}, corrupt("nesting deeper than %d", MaxDepth)
	}
	m := make(map[string]session.Value)
	err := consumeItems(b, func(item []byte) error {
		k, v, err := consumeEntry(item, depth)
		if err != nil {
			return err
		}
		if _, dup := m[k]; dup {
			return corrupt("duplicate map key %q", k)
		}
		m[k] = v
		return nil
	})
	if err != nil {
		return session.Value{}, err
	}
	return session.Map(m), nil
}

func consumeItems(b []byte, fn func(item []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return wireErr("item tag", n)
		}
		b = b[n:]
		if num != fieldContainerItem || typ != protowire.BytesType {
			return corrupt("unexpected container field %d/%d", num, typ)
		}
		item, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return wireErr("item", n)
		}
		b = b[n:]
		if err := fn(item); err != nil {
			return err
		}
	}
	return nil
}

func wireErr(what string, n int) error {
	return session.ErrCorrupt.WithDetails(what).Wrap(protowire.ParseError(n))
}

func sortedKeys(m map[string]session.Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
