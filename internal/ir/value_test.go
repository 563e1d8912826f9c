package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIRObjectSortedKeysRFC8785Order(t *testing.T) {
	obj := IRObject{
		"\uE000": IRInt(1),
		"𐀀":      IRInt(2),
		"b":      IRInt(3),
		"a":      IRInt(4),
	}
	assert.Equal(t, []string{"a", "b", "𐀀", "\uE000"}, obj.SortedKeys())
}

func TestCompareKeysRFC8785(t *testing.T) {
	assert.Equal(t, 0, compareKeysRFC8785("abc", "abc"))
	assert.Equal(t, -1, compareKeysRFC8785("ab", "abc"))
	assert.Equal(t, 1, compareKeysRFC8785("b", "a"))
}

func TestUnmarshalRejectsFloats(t *testing.T) {
	_, err := UnmarshalIRValue([]byte(`1.5`))
	require.Error(t, err)

	var obj IRObject
	err = json.Unmarshal([]byte(`{"amount": 2.25}`), &obj)
	require.Error(t, err)
}

func TestUnmarshalNestedValues(t *testing.T) {
	v, err := UnmarshalIRValue([]byte(`{"owner":"0xabc","shares":[1,2],"live":true,"note":null}`))
	require.NoError(t, err)

	assert.Equal(t, IRObject{
		"owner":  IRString("0xabc"),
		"shares": IRArray{IRInt(1), IRInt(2)},
		"live":   IRBool(true),
		"note":   IRNull{},
	}, v)
}

func TestMarshalIRValueKeyOrder(t *testing.T) {
	data, err := MarshalIRValue(IRObject{"z": IRInt(1), "a": IRString("x")})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x","z":1}`, string(data))
}

func TestFromAny(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  IRValue
	}{
		{"string", "0x61DD", IRString("0x61DD")},
		{"int", 42, IRInt(42)},
		{"whole float", float64(200), IRInt(200)},
		{"bool", true, IRBool(true)},
		{"nil", nil, IRNull{}},
		{"big uint", uint64(18446744073709551615), IRString("18446744073709551615")},
		{"big json number", json.Number("100000000000000000000"), IRString("100000000000000000000")},
		{"list", []any{"a", 1}, IRArray{IRString("a"), IRInt(1)}},
		{"map", map[string]any{"k": "v"}, IRObject{"k": IRString("v")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromAny(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromAnyRejectsFractions(t *testing.T) {
	_, err := FromAny(1.5)
	require.Error(t, err)
	_, err = FromAny(json.Number("1e3"))
	require.Error(t, err)
	_, err = FromAny(struct{}{})
	require.Error(t, err)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "0xabc", Format(IRString("0xabc")))
	assert.Equal(t, "7", Format(IRInt(7)))
	assert.Equal(t, "false", Format(IRBool(false)))
	assert.Equal(t, `[1,"x"]`, Format(IRArray{IRInt(1), IRString("x")}))
	assert.Equal(t, "null", Format(IRNull{}))
}
