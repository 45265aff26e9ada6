package config

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/guavadb/guava/pkg/utils"
)

var (
	testStringFlag = flag.String("config_test_string", "default", "Test only.")
	testIntFlag    = flag.Int("config_test_int", 0, "Test only.")
	testFloatFlag  = flag.Float64("config_test_float", 0, "Test only.")
	testBoolFlag   = flag.Bool("config_test_bool", false, "Test only.")
)

// parseStruct is a test helper converting a JSON document into a config struct.
func parseStruct(t *testing.T, document string) *structpb.Struct {
	t.Helper()
	conf := new(structpb.Struct)
	require.NoError(t, protojson.Unmarshal([]byte(document), conf))
	return conf
}

func TestSetConfigFlags(t *testing.T) {
	utils.SetTestFlag(t, "config_test_string", "default")
	utils.SetTestFlag(t, "config_test_int", "0")
	utils.SetTestFlag(t, "config_test_float", "0")
	utils.SetTestFlag(t, "config_test_bool", "false")

	conf := parseStruct(t, `{
		"config_test_string": "from-config",
		"config_test_int": 67108864,
		"config_test_float": 0.25,
		"config_test_bool": true
	}`)
	require.NoError(t, setConfigFlags(conf))

	assert.Equal(t, "from-config", *testStringFlag)
	// Large integral numbers must not degrade into exponent notation.
	assert.Equal(t, 67108864, *testIntFlag)
	assert.Equal(t, 0.25, *testFloatFlag)
	assert.True(t, *testBoolFlag)
}

// TestSetConfigFlags_OverridesParsedValue pins the precedence: a config file
// value is applied after parsing, so it wins over a command-line value.
func TestSetConfigFlags_OverridesParsedValue(t *testing.T) {
	utils.SetTestFlag(t, "config_test_string", "from-command-line")
	require.NoError(t, setConfigFlags(parseStruct(t, `{"config_test_string": "from-config"}`)))
	assert.Equal(t, "from-config", *testStringFlag)
}

func TestSetConfigFlags_UnknownFlag(t *testing.T) {
	conf := parseStruct(t, `{"not_a_defined_flag": 1}`)
	assert.Error(t, setConfigFlags(conf))
}

func TestSetConfigFlags_UnsupportedKinds(t *testing.T) {
	for _, testCase := range []struct {
		name     string
		document string
	}{
		{name: "null", document: `{"config_test_string": null}`},
		{name: "list", document: `{"config_test_string": [1, 2]}`},
		{name: "object", document: `{"config_test_string": {"nested": true}}`},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			utils.SetTestFlag(t, "config_test_string", "default")
			assert.Error(t, setConfigFlags(parseStruct(t, testCase.document)))
		})
	}
}
