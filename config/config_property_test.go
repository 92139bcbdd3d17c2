package config

import (
	"strconv"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

// TestConfigRoundTripProperty checks deserialize(serialize(config)) == config.
func TestConfigRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("config round-trip preserves data", prop.ForAll(
		func(config *Config) bool {
			yamlBytes, err := config.Serialize()
			if err != nil {
				return false
			}

			parsed, err := ParseConfig(yamlBytes)
			if err != nil {
				return false
			}

			return *config == *parsed
		},
		genConfig(),
	))

	properties.TestingRun(t)
}

// TestGeneratedConfigsValidate checks the generators only produce valid configs,
// so validation accepts everything a round-trip can carry.
func TestGeneratedConfigsValidate(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("generated configs are valid", prop.ForAll(
		func(config *Config) bool {
			return config.Validate() == nil
		},
		genConfig(),
	))

	properties.TestingRun(t)
}

func TestConfigRoundTripSpecificCases(t *testing.T) {
	testCases := []struct {
		name   string
		config *Config
	}{
		{
			name:   "default config",
			config: DefaultConfig(),
		},
		{
			name: "million thread stress run",
			config: func() *Config {
				c := DefaultConfig()
				c.Harness.Tasks = 1_000_000
				c.Harness.Strategy = "thread"
				c.Harness.TaskLogs = false
				return c
			}(),
		},
		{
			name: "file logging",
			config: func() *Config {
				c := DefaultConfig()
				c.Logging.Output = "both"
				c.Logging.Compress = true
				return c
			}(),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			yamlBytes, err := tc.config.Serialize()
			assert.NoError(t, err)

			parsed, err := ParseConfig(yamlBytes)
			assert.NoError(t, err)
			assert.Equal(t, tc.config, parsed)
		})
	}
}

func genConfig() gopter.Gen {
	return gopter.CombineGens(
		genHarnessConfig(),
		genLoggingConfig(),
		genMetricsConfig(),
	).Map(func(values []interface{}) *Config {
		return &Config{
			Harness: values[0].(HarnessConfig),
			Logging: values[1].(LoggingConfig),
			Metrics: values[2].(MetricsConfig),
		}
	})
}

func genHarnessConfig() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(0, 1_000_000),
		gen.OneConstOf("pool", "thread", "lightweight", "bounded-pool", "virtual"),
		gen.IntRange(1, 512),
		gen.IntRange(1, 8000),
		gen.IntRange(0, 5000),
		gen.IntRange(0, 60),
		gen.Bool(),
	).Map(func(values []interface{}) HarnessConfig {
		return HarnessConfig{
			Tasks:      values[0].(int),
			Strategy:   values[1].(string),
			PoolSize:   values[2].(int),
			MaxThreads: values[3].(int),
			Work:       time.Duration(values[4].(int)) * time.Millisecond,
			Timeout:    time.Duration(values[5].(int)) * time.Second,
			TaskLogs:   values[6].(bool),
		}
	})
}

func genLoggingConfig() gopter.Gen {
	return gopter.CombineGens(
		gen.OneConstOf("debug", "info", "warn", "error"),
		gen.OneConstOf("console", "json"),
		gen.OneConstOf("stdout", "file", "both"),
		gen.IntRange(1, 500),
		gen.IntRange(0, 10),
		gen.Bool(),
	).Map(func(values []interface{}) LoggingConfig {
		return LoggingConfig{
			Level:      values[0].(string),
			Format:     values[1].(string),
			Output:     values[2].(string),
			FilePath:   "logs/taskscale.log",
			MaxSize:    values[3].(int),
			MaxBackups: values[4].(int),
			MaxAge:     values[4].(int) * 7,
			Compress:   values[5].(bool),
		}
	})
}

func genMetricsConfig() gopter.Gen {
	return gopter.CombineGens(
		gen.Bool(),
		gen.IntRange(1024, 65535),
		gen.IntRange(1, 60),
	).Map(func(values []interface{}) MetricsConfig {
		return MetricsConfig{
			Enabled:      values[0].(bool),
			Address:      ":" + strconv.Itoa(values[1].(int)),
			Path:         "/metrics",
			Namespace:    "taskscale",
			PollInterval: time.Duration(values[2].(int)) * time.Second,
		}
	})
}
