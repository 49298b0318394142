package main

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/fluxcd/rgcomposer/pkg/chat"
	"github.com/fluxcd/rgcomposer/pkg/config"
)

// defineConfigFlags defines the flags that can also be set in
// a config file or the environment. These need special treatment,
// because some care must be taken to match them ("bind") with config
// file field names.
func defineConfigFlags(v *viper.Viper, fs *pflag.FlagSet, bail func(error)) {

	bind := func(fieldName, flagName string) error {
		configStruct := reflect.TypeOf(config.Config{})
		field, ok := configStruct.FieldByName(fieldName)
		if !ok {
			return fmt.Errorf("attempt to bind a flag to a field not present in config.Config, %q", fieldName)
		}
		tag := field.Tag
		// this parallels the logic in
		// github.com/mitchellh/mapstructure, except that we want to
		// bail if a field is mentioned that is marked ignore, like
		// this: `mapstructure:"-"`
		mappedName := field.Name
		mapstructureTagParts := strings.Split(tag.Get("mapstructure"), ",")
		if namePart := mapstructureTagParts[0]; namePart != "" {
			if namePart == "-" { // means ignore this field
				return fmt.Errorf(`attempt to bind a flag to a config field tagged as ignored, %q`, field.Name)
			}
			mappedName = namePart
		}
		if err := v.BindEnv(mappedName, envName(flagName)); err != nil {
			return err
		}
		return v.BindPFlag(mappedName, fs.Lookup(flagName))
	}

	bindOrBail := func(fieldName, flagName string) {
		if err := bind(fieldName, flagName); err != nil {
			bail(err)
		}
	}

	defineString := func(fieldName, flagName, def, desc string) {
		fs.String(flagName, def, desc)
		bindOrBail(fieldName, flagName)
	}

	defineStringP := func(fieldName, flagName, short, def, desc string) {
		fs.StringP(flagName, short, def, desc)
		bindOrBail(fieldName, flagName)
	}

	defineStringSlice := func(fieldName, flagName string, def []string, desc string) {
		fs.StringSlice(flagName, def, desc)
		bindOrBail(fieldName, flagName)
	}

	defineDuration := func(fieldName, flagName string, def time.Duration, desc string) {
		fs.Duration(flagName, def, desc)
		bindOrBail(fieldName, flagName)
	}

	defineInt := func(fieldName, flagName string, def int, desc string) {
		fs.Int(flagName, def, desc)
		bindOrBail(fieldName, flagName)
	}

	defineFloat64 := func(fieldName, flagName string, def float64, desc string) {
		fs.Float64(flagName, def, desc)
		bindOrBail(fieldName, flagName)
	}

	defineString("LogFormat", "log-format", "fmt", "change the log format (fmt or json).")
	defineStringP("Listen", "listen", "l", ":3030", "listen address where /metrics and API will be served")
	defineString("ListenMetrics", "listen-metrics", "", "listen address for /metrics endpoint")
	defineStringSlice("CORSAllowedOrigin", "cors-allowed-origin", nil, "origins of frontends allowed to call the API from a browser, e.g. 'https://*.example.com'; if not supplied, only same-origin requests are allowed")

	// composing and validation
	defineString("SchemaPath", "schema-path", "", "path to the CustomResourceDefinition (YAML) whose schema manifests are validated against; validation is skipped if not supplied or not loadable")
	defineStringSlice("DenyKind", "deny-kind", nil, "refuse to compose resources whose apiVersion/Kind matches these glob expressions, e.g. '*/Namespace'")

	// cluster
	defineString("Kubectl", "kubectl", "kubectl", "path to the kubectl executable used to apply manifests")
	defineString("Kubeconfig", "kubeconfig", "", "path to the kubeconfig kubectl uses; if not supplied, kubectl's defaults apply")
	defineString("KubeContext", "kube-context", "", "kubeconfig context kubectl uses; if not supplied, the current context")

	// chat relay
	defineString("ChatBaseURL", "chat-base-url", chat.DefaultBaseURL, "base URL of the OpenAI-compatible chat completion API")
	defineFloat64("ChatRPS", "chat-rps", 0, "maximum chat API requests per second, across all users; 0 means no limit")
	defineInt("ChatBurst", "chat-burst", 5, "maximum burst of chat API requests, when --chat-rps is set")
	defineDuration("ChatTimeout", "chat-timeout", 0, "duration after which a chat API request is abandoned; 0 means never, and the request lasts as long as the caller waits")
}

// envName is the environment variable that sets flagName, e.g.,
// COMPOSER_SCHEMA_PATH for --schema-path.
func envName(flagName string) string {
	return strings.ToUpper(config.EnvPrefix + "_" + strings.Replace(flagName, "-", "_", -1))
}

// loadConfig fills in a config from (in order of precedence) flags,
// the environment and a config file.
func loadConfig(v *viper.Viper, configFile string) (config.Config, error) {
	var cfg config.Config
	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType(config.ConfigType)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("reading config file %s: %s", configFile, err)
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %s", err)
	}
	if configFile != "" {
		if err := cfg.IsValid(); err != nil {
			return cfg, err
		}
	}
	return cfg, cfg.Check()
}
