package chain

import (
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/roach88/keystone/internal/ir"
)

// packArgs converts IR values into the Go values abi.Arguments.Pack expects.
func packArgs(args abi.Arguments, vals []ir.IRValue) ([]any, error) {
	if len(args) != len(vals) {
		return nil, fmt.Errorf("want %d arguments, got %d", len(args), len(vals))
	}
	out := make([]any, len(vals))
	for i, arg := range args {
		v, err := toGo(arg.Type, vals[i])
		if err != nil {
			return nil, fmt.Errorf("argument %d %s (%s): %w", i, arg.Name, arg.Type, err)
		}
		out[i] = v
	}
	return out, nil
}

func toGo(t abi.Type, v ir.IRValue) (any, error) {
	switch t.T {
	case abi.AddressTy:
		s, ok := v.(ir.IRString)
		if !ok || !common.IsHexAddress(string(s)) {
			return nil, fmt.Errorf("not an address: %s", ir.Format(v))
		}
		return common.HexToAddress(string(s)), nil

	case abi.BoolTy:
		b, ok := v.(ir.IRBool)
		if !ok {
			return nil, fmt.Errorf("not a bool: %s", ir.Format(v))
		}
		return bool(b), nil

	case abi.StringTy:
		s, ok := v.(ir.IRString)
		if !ok {
			return nil, fmt.Errorf("not a string: %s", ir.Format(v))
		}
		return string(s), nil

	case abi.IntTy, abi.UintTy:
		return toInteger(t, v)

	case abi.BytesTy:
		return toBytes(v)

	case abi.FixedBytesTy:
		b, err := toBytes(v)
		if err != nil {
			return nil, err
		}
		if len(b) != t.Size {
			return nil, fmt.Errorf("want %d bytes, got %d", t.Size, len(b))
		}
		arr := reflect.New(t.GetType()).Elem()
		reflect.Copy(arr, reflect.ValueOf(b))
		return arr.Interface(), nil

	case abi.SliceTy, abi.ArrayTy:
		items, ok := v.(ir.IRArray)
		if !ok {
			return nil, fmt.Errorf("not an array: %s", ir.Format(v))
		}
		var out reflect.Value
		if t.T == abi.SliceTy {
			out = reflect.MakeSlice(t.GetType(), len(items), len(items))
		} else {
			if len(items) != t.Size {
				return nil, fmt.Errorf("want %d elements, got %d", t.Size, len(items))
			}
			out = reflect.New(t.GetType()).Elem()
		}
		for i, item := range items {
			elem, err := toGo(*t.Elem, item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out.Index(i).Set(reflect.ValueOf(elem))
		}
		return out.Interface(), nil
	}
	return nil, fmt.Errorf("unsupported abi type %s", t)
}

// toInteger returns *big.Int for wide types and the exact sized Go integer
// for types of 64 bits or fewer.
func toInteger(t abi.Type, v ir.IRValue) (any, error) {
	var n *big.Int
	switch val := v.(type) {
	case ir.IRInt:
		n = big.NewInt(int64(val))
	case ir.IRString:
		var ok bool
		n, ok = new(big.Int).SetString(string(val), 0)
		if !ok {
			return nil, fmt.Errorf("not an integer: %q", string(val))
		}
	default:
		return nil, fmt.Errorf("not an integer: %s", ir.Format(v))
	}

	if t.T == abi.UintTy {
		if n.Sign() < 0 || n.BitLen() > t.Size {
			return nil, fmt.Errorf("%s out of range for %s", n, t)
		}
	} else {
		limit := new(big.Int).Lsh(big.NewInt(1), uint(t.Size-1))
		if n.Cmp(limit) >= 0 || n.Cmp(new(big.Int).Neg(limit)) < 0 {
			return nil, fmt.Errorf("%s out of range for %s", n, t)
		}
	}

	if t.Size > 64 {
		return n, nil
	}
	if t.T == abi.UintTy {
		return reflect.ValueOf(n.Uint64()).Convert(t.GetType()).Interface(), nil
	}
	return reflect.ValueOf(n.Int64()).Convert(t.GetType()).Interface(), nil
}

func toBytes(v ir.IRValue) ([]byte, error) {
	s, ok := v.(ir.IRString)
	if !ok {
		return nil, fmt.Errorf("not a hex string: %s", ir.Format(v))
	}
	b, err := hexutil.Decode(string(s))
	if err != nil {
		return nil, fmt.Errorf("not a hex string: %w", err)
	}
	return b, nil
}

// fromGo converts a value decoded by abi.Unpack into an IR value. Addresses
// and byte strings become 0x-prefixed hex; integers beyond int64 become
// decimal strings.
func fromGo(v any) ir.IRValue {
	switch val := v.(type) {
	case nil:
		return ir.IRNull{}
	case common.Address:
		return ir.IRString(val.Hex())
	case common.Hash:
		return ir.IRString(val.Hex())
	case *big.Int:
		if val.IsInt64() {
			return ir.IRInt(val.Int64())
		}
		return ir.IRString(val.String())
	case bool:
		return ir.IRBool(val)
	case string:
		return ir.IRString(val)
	case []byte:
		return ir.IRString(hexutil.Encode(val))
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return ir.IRInt(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return ir.IRString(strconv.FormatUint(u, 10))
		}
		return ir.IRInt(u)
	case reflect.Array, reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			b := make([]byte, rv.Len())
			for i := range b {
				b[i] = byte(rv.Index(i).Uint())
			}
			return ir.IRString(hexutil.Encode(b))
		}
		out := make(ir.IRArray, rv.Len())
		for i := range out {
			out[i] = fromGo(rv.Index(i).Interface())
		}
		return out
	}
	return ir.IRString(fmt.Sprint(v))
}

// unpackResult decodes a static call's return data.
func unpackResult(method abi.Method, data []byte) (ir.IRValue, error) {
	vals, err := method.Outputs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s result: %w", method.Name, err)
	}
	switch len(vals) {
	case 0:
		return ir.IRNull{}, nil
	case 1:
		return fromGo(vals[0]), nil
	}
	out := make(ir.IRArray, len(vals))
	for i, v := range vals {
		out[i] = fromGo(v)
	}
	return out, nil
}
