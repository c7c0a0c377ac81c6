package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"math"
	"sort"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/yndnr/sessfile-go/pkg/session"
)

const jsonVersion = 1

// Value tags of the JSON format.
const (
	tagNull  = "null"
	tagBool  = "bool"
	tagInt   = "int"
	tagFloat = "float"
	tagStr   = "str"
	tagBytes = "bytes"
	tagList  = "list"
	tagMap   = "map"
)

// Record layout:
//
//	{"v":1,"id":"abc","expires_at":"2030-01-02T03:04:05.000000006Z","data":{"count":{"int":3}}}
//
// expires_at is omitted for records without expiry.
type jsonRecord struct {
	Version   int                        `json:"v"`
	ID        string                     `json:"id"`
	ExpiresAt string                     `json:"expires_at,omitempty"`
	Data      map[string]json.RawMessage `json:"data"`
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Encode(rec *session.Record) ([]byte, error) {
	if err := checkEncodable(rec); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(`{"v":`)
	buf.WriteString(strconv.Itoa(jsonVersion))
	buf.WriteString(`,"id":`)
	if err := writeJSONString(&buf, rec.ID); err != nil {
		return nil, session.ErrEncode.WithDetails("id").Wrap(err)
	}

	if rec.HasExpiry() {
		text, err := rec.ExpiresAt.UTC().MarshalText()
		if err != nil {
			return nil, session.ErrEncode.WithDetails("expires_at").Wrap(err)
		}
		buf.WriteString(`,"expires_at":"`)
		buf.Write(text)
		buf.WriteByte('"')
	}

	buf.WriteString(`,"data":`)
	if err := writeJSONMap(&buf, rec.Data); err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (jsonCodec) Decode(data []byte) (*session.Record, error) {
	if len(data) == 0 {
		return nil, corrupt("empty record")
	}
	if !utf8.Valid(data) {
		return nil, corrupt("invalid utf-8")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var jr jsonRecord
	if err := dec.Decode(&jr); err != nil {
		return nil, session.ErrCorrupt.Wrap(err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, corrupt("trailing data after record")
	}
	if jr.Version != jsonVersion {
		return nil, corrupt("unsupported json record version %d", jr.Version)
	}

	rec := &session.Record{
		ID:   jr.ID,
		Data: make(map[string]session.Value, len(jr.Data)),
	}

	if jr.ExpiresAt != "" {
		var t time.Time
		if err := t.UnmarshalText([]byte(jr.ExpiresAt)); err != nil {
			return nil, session.ErrCorrupt.WithDetails("expires_at").Wrap(err)
		}
		if y := t.UTC().Year(); y < 0 || y > 9999 {
			return nil, corrupt("expires_at year %d out of range", y)
		}
		rec.ExpiresAt = t
	}

	for k, raw := range jr.Data {
		v, err := decodeJSONValue(raw, 0)
		if err != nil {
			return nil, err
		}
		rec.Data[k] = v
	}
	return rec, nil
}

func writeJSONString(buf *bytes.Buffer, s string) error {
	if !utf8.ValidString(s) {
		return errors.New("invalid utf-8 in text")
	}
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}

func writeJSONMap(buf *bytes.Buffer, m map[string]session.Value) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSONString(buf, k); err != nil {
			return session.ErrEncode.Detailf("key %q", k).Wrap(err)
		}
		buf.WriteByte(':')
		if err := writeJSONValue(buf, m[k]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeJSONValue(buf *bytes.Buffer, v session.Value) error {
	switch v.Kind() {
	case session.KindNull:
		buf.WriteString(`{"null":null}`)
	case session.KindBool:
		b, _ := v.Bool()
		buf.WriteString(`{"bool":`)
		buf.WriteString(strconv.FormatBool(b))
		buf.WriteByte('}')
	case session.KindInt:
		i, _ := v.Int()
		buf.WriteString(`{"int":`)
		buf.WriteString(strconv.FormatInt(i, 10))
		buf.WriteByte('}')
	case session.KindFloat:
		f, _ := v.Float()
		buf.WriteString(`{"float":`)
		switch {
		case math.IsNaN(f):
			buf.WriteString(`"NaN"`)
		case math.IsInf(f, 1):
			buf.WriteString(`"+Inf"`)
		case math.IsInf(f, -1):
			buf.WriteString(`"-Inf"`)
		default:
			buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
		}
		buf.WriteByte('}')
	case session.KindString:
		s, _ := v.Str()
		buf.WriteString(`{"str":`)
		if err := writeJSONString(buf, s); err != nil {
			return session.ErrEncode.Wrap(err)
		}
		buf.WriteByte('}')
	case session.KindBytes:
		b, _ := v.BytesValue()
		buf.WriteString(`{"bytes":"`)
		buf.WriteString(base64.StdEncoding.EncodeToString(b))
		buf.WriteString(`"}`)
	case session.KindList:
		items, _ := v.List()
		buf.WriteString(`{"list":[`)
		for i, item := range items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSONValue(buf, item); err != nil {
				return err
			}
		}
		buf.WriteString(`]}`)
	case session.KindMap:
		m, _ := v.Map()
		buf.WriteString(`{"map":`)
		if err := writeJSONMap(buf, m); err != nil {
			return err
		}
		buf.WriteByte('}')
	default:
		return session.ErrEncode.Detailf("unknown value kind %v", v.Kind())
	}
	return nil
}

func decodeJSONValue(raw json.RawMessage, depth int) (session.Value, error) {
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(raw, &tagged); err != nil {
		return session.Value{}, session.ErrCorrupt.WithDetails("value").Wrap(err)
	}
	if len(tagged) != 1 {
		return session.Value{}, corrupt("value must have exactly one tag, got %d", len(tagged))
	}

	for tag, body := range tagged {
		if tag != tagNull && isJSONNull(body) {
			return session.Value{}, corrupt("null payload for %q", tag)
		}

		switch tag {
		case tagNull:
			if !isJSONNull(body) {
				return session.Value{}, corrupt("null tag with payload")
			}
			return session.Null(), nil

		case tagBool:
			var b bool
			if err := json.Unmarshal(body, &b); err != nil {
				return session.Value{}, session.ErrCorrupt.WithDetails("bool").Wrap(err)
			}
			return session.Bool(b), nil

		case tagInt:
			var n json.Number
			if err := json.Unmarshal(body, &n); err != nil {
				return session.Value{}, session.ErrCorrupt.WithDetails("int").Wrap(err)
			}
			i, err := strconv.ParseInt(n.String(), 10, 64)
			if err != nil {
				return session.Value{}, session.ErrCorrupt.WithDetails("int").Wrap(err)
			}
			return session.Int(i), nil

		case tagFloat:
			f, err := decodeJSONFloat(body)
			if err != nil {
				return session.Value{}, err
			}
			return session.Float(f), nil

		case tagStr:
			var s string
			if err := json.Unmarshal(body, &s); err != nil {
				return session.Value{}, session.ErrCorrupt.WithDetails("str").Wrap(err)
			}
			return session.String(s), nil

		case tagBytes:
			var s string
			if err := json.Unmarshal(body, &s); err != nil {
				return session.Value{}, session.ErrCorrupt.WithDetails("bytes").Wrap(err)
			}
			b, err := base64.StdEncoding.DecodeString(s)
			if err != nil {
				return session.Value{}, session.ErrCorrupt.WithDetails("bytes").Wrap(err)
			}
			return session.Bytes(b), nil

		case tagList:
			if depth+1 > MaxDepth {
				return session.Value{}, corrupt("nesting deeper than %d", MaxDepth)
			}
			var raws []json.RawMessage
			if err := json.Unmarshal(body, &raws); err != nil {
				return session.Value{}, session.ErrCorrupt.WithDetails("list").Wrap(err)
			}
			items := make([]session.Value, len(raws))
			for i, r := range raws {
				v, err := decodeJSONValue(r, depth+1)
				if err != nil {
					return session.Value{}, err
				}
				items[i] = v
			}
			return session.List(items...), nil

		case tagMap:
			if depth+1 > MaxDepth {
				return session.Value{}, corrupt("nesting deeper than %d", MaxDepth)
			}
			var raws map[string]json.RawMessage
			if err := json.Unmarshal(body, &raws); err != nil {
				return session.Value{}, session.ErrCorrupt.WithDetails("map").Wrap(err)
			}
			m := make(map[string]session.Value, len(raws))
			for k, r := range raws {
				v, err := decodeJSONValue(r, depth+1)
				if err != nil {
					return session.Value{}, err
				}
				m[k] = v
			}
			return session.Map(m), nil

		default:
			return session.Value{}, corrupt("unknown value tag %q", tag)
		}
	}
	return session.Value{}, corrupt("empty value")
}

func decodeJSONFloat(body json.RawMessage) (float64, error) {
	if len(body) > 0 && body[0] == '"' {
		var s string
		if err := json.Unmarshal(body, &s); err != nil {
			return 0, session.ErrCorrupt.WithDetails("float").Wrap(err)
		}
		switch s {
		case "NaN":
			return math.NaN(), nil
		case "+Inf":
			return math.Inf(1), nil
		case "-Inf":
			return math.Inf(-1), nil
		default:
			return 0, corrupt("invalid float literal %q", s)
		}
	}

	var n json.Number
	if err := json.Unmarshal(body, &n); err != nil {
		return 0, session.ErrCorrupt.WithDetails("float").Wrap(err)
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return 0, session.ErrCorrupt.WithDetails("float").Wrap(err)
	}
	return f, nil
}

func isJSONNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
