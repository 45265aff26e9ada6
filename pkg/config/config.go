// Guava uses flags and a single config file for configuration.
// The config file is a JSON document whose top-level fields name command line
// flags; it is parsed through protobuf's Struct well-known type and each
// field's value is applied with flag.Set after flag.Parse, so a value in the
// config file wins over the same flag given on the command line.

package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

var configFilePath = flag.String("config_file", "config.json", "Path to the configuration file.")

// configValueToString converts a config field value to its string representation suitable for flag setting.
func configValueToString(v *structpb.Value) (string, error) {
	switch kind := v.GetKind().(type) {
	case *structpb.Value_BoolValue:
		return strconv.FormatBool(kind.BoolValue), nil
	case *structpb.Value_StringValue:
		return kind.StringValue, nil
	case *structpb.Value_NumberValue:
		// JSON has one number type; integral values must render without an
		// exponent or integer flags would fail to parse them back.
		number := kind.NumberValue
		if number == math.Trunc(number) && math.Abs(number) < 1<<53 {
			return strconv.FormatInt(int64(number), 10), nil
		}
		return strconv.FormatFloat(number, 'g', -1, 64), nil
	case *structpb.Value_NullValue:
		return "", errors.New("null is not a usable flag value")
	default:
		// Lists and nested objects are not supported by design; every flag is a scalar.
		return "", fmt.Errorf("unsupported config value kind: %T", kind)
	}
}

// setConfigFlags applies every field of the parsed config onto the global flag set.
func setConfigFlags(conf *structpb.Struct) error {
	for name, value := range conf.GetFields() {
		if flag.Lookup(name) == nil {
			return fmt.Errorf("config field '%s' does not name a defined flag", name)
		}
		stringValue, err := configValueToString(value)
		if err != nil {
			return fmt.Errorf("failed to convert config field '%s': %w", name, err)
		}
		if err := flag.Set(name, stringValue); err != nil {
			return fmt.Errorf("failed to set flag %s: %w", name, err)
		}
	}
	return nil
}

// InitFlags initializes the flags from the config file specified by the -config_file flag.
// It should be called after defining all flags and before using them.
func InitFlags() {
	flag.Parse()

	if *configFilePath == "" {
		slog.Info("Config file not specified. Skipping config initialization.")
		return
	}

	configBytes, err := os.ReadFile(*configFilePath)
	if errors.Is(err, os.ErrNotExist) {
		slog.Warn("Config file does not exist.", "path", *configFilePath, "error", err)
		return
	}
	if err != nil { // If the config file cannot be read, we skip loading and use default flag values.
		slog.Error("Failed to read config file.", "error", err)
		return
	}

	conf := new(structpb.Struct)
	if err := protojson.Unmarshal(configBytes, conf); err != nil {
		slog.Error("Failed to parse config file.", "error", err)
		return
	}
	if err := setConfigFlags(conf); err != nil {
		slog.Error("Failed to set flags from config file.", "error", err)
		return
	}
}
