package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"oci-gpu-toolkit/pkg/cache"
	"oci-gpu-toolkit/pkg/fanout"
	"oci-gpu-toolkit/pkg/imds"
	"oci-gpu-toolkit/pkg/oci"
)

// Configuration keys, as named in variables.sh and in MissingConfigurationError.
const (
	keyTenancyID          = "tenancy_id"
	keyCompartmentID      = "compartment_id"
	keyRegion             = "region"
	keyAvailabilityDomain = "ad"
	keyImageID            = "image_id"
	keyShapeName          = "shape_name"
	keyComputeClusterID   = "compute_cluster_id"
	keyInstanceConfigID   = "instance_config_id"
	keyGPUMemoryFabricID  = "gpu_memory_fabric_id"
	keyClusterSize        = "cluster_size"
)

const (
	envPrefix  = "GPUCTL_"
	envUseIMDS = "GPUCTL_USE_IMDS"

	defaultConfigPath        = "variables.sh"
	defaultProfile           = "DEFAULT"
	defaultOCIConfigPath     = "~/.oci/config"
	defaultCacheDir          = "cache"
	defaultRequestsPerSecond = 10
)

// ErrMissingConfiguration marks a required configuration key that no layer provided.
var ErrMissingConfiguration = errors.New("missing configuration")

// MissingConfigurationError names the first required key that is absent.
type MissingConfigurationError struct {
	Key string
}

func (e *MissingConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s (set it in %s, as %s%s, or with a flag)",
		ErrMissingConfiguration, e.Key, defaultConfigPath, envPrefix, strings.ToUpper(e.Key))
}

func (e *MissingConfigurationError) Unwrap() error {
	return ErrMissingConfiguration
}

// Context is the fully resolved configuration of one invocation.
type Context struct {
	TenancyID               string
	CompartmentID           string
	Region                  string
	AvailabilityDomain      string
	ImageID                 string
	ShapeName               string
	ComputeClusterID        string
	InstanceConfigurationID string
	GPUMemoryFabricID       string
	ClusterSize             int64

	Auth              string
	Profile           string
	OCIConfigPath     string
	CacheDir          string
	CacheTTL          time.Duration
	Concurrency       int
	RequestsPerSecond float64
}

// Require returns a MissingConfigurationError for the first key, in argument order, that
// has no value.
func (c Context) Require(keys ...string) error {
	for _, key := range keys {
		if !c.has(key) {
			return &MissingConfigurationError{Key: key}
		}
	}

	return nil
}

func (c Context) has(key string) bool {
	switch key {
	case keyClusterSize:
		return c.ClusterSize > 0
	default:
		field := c.stringField(key)

		return field != nil && strings.TrimSpace(*field) != ""
	}
}

func (c *Context) stringField(key string) *string {
	switch key {
	case keyTenancyID:
		return &c.TenancyID
	case keyCompartmentID:
		return &c.CompartmentID
	case keyRegion:
		return &c.Region
	case keyAvailabilityDomain:
		return &c.AvailabilityDomain
	case keyImageID:
		return &c.ImageID
	case keyShapeName:
		return &c.ShapeName
	case keyComputeClusterID:
		return &c.ComputeClusterID
	case keyInstanceConfigID:
		return &c.InstanceConfigurationID
	case keyGPUMemoryFabricID:
		return &c.GPUMemoryFabricID
	default:
		return nil
	}
}

func defaultContext() Context {
	return Context{
		Auth:              oci.AuthAPIKey,
		Profile:           defaultProfile,
		OCIConfigPath:     defaultOCIConfigPath,
		CacheDir:          defaultCacheDir,
		CacheTTL:          cache.DefaultTTL,
		Concurrency:       fanout.DefaultLimit,
		RequestsPerSecond: defaultRequestsPerSecond,
	}
}

// fileConfig is the YAML form of the configuration file. Nil fields leave lower layers alone.
type fileConfig struct {
	TenancyID               *string  `mapstructure:"tenancy_id"           yaml:"tenancyId"`
	CompartmentID           *string  `mapstructure:"compartment_id"       yaml:"compartmentId"`
	Region                  *string  `mapstructure:"region"               yaml:"region"`
	AvailabilityDomain      *string  `mapstructure:"ad"                   yaml:"availabilityDomain"`
	ImageID                 *string  `mapstructure:"image_id"             yaml:"imageId"`
	ShapeName               *string  `mapstructure:"shape_name"           yaml:"shapeName"`
	ComputeClusterID        *string  `mapstructure:"compute_cluster_id"   yaml:"computeClusterId"`
	InstanceConfigurationID *string  `mapstructure:"instance_config_id"   yaml:"instanceConfigurationId"`
	GPUMemoryFabricID       *string  `mapstructure:"gpu_memory_fabric_id" yaml:"gpuMemoryFabricId"`
	ClusterSize             *int64   `mapstructure:"cluster_size"         yaml:"clusterSize"`
	Auth                    *string  `mapstructure:"auth"                 yaml:"auth"`
	Profile                 *string  `mapstructure:"profile"              yaml:"profile"`
	OCIConfigPath           *string  `mapstructure:"oci_config"           yaml:"ociConfig"`
	CacheDir                *string  `mapstructure:"cache_dir"            yaml:"cacheDir"`
	CacheTTL                *string  `mapstructure:"cache_ttl"            yaml:"cacheTTL"`
	Concurrency             *int     `mapstructure:"concurrency"          yaml:"concurrency"`
	RequestsPerSecond       *float64 `mapstructure:"requests_per_second"  yaml:"requestsPerSecond"`
}

// metadataSource is the instance metadata layer.
type metadataSource interface {
	Instance(ctx context.Context) (imds.Instance, error)
	InstanceID(ctx context.Context) (string, error)
}

type resolveInput struct {
	configPath string
	useIMDS    bool
	metadata   metadataSource
	flags      *pflag.FlagSet
	logger     *zap.Logger
}

// resolveContext layers defaults, instance metadata, the configuration file, the environment
// and explicitly set flags, lowest precedence first.
func resolveContext(ctx context.Context, in resolveInput) (Context, error) {
	cfg := defaultContext()

	logger := in.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if in.useIMDS || envBool(envUseIMDS) {
		applyMetadata(ctx, &cfg, in.metadata, logger)
	}

	path := strings.TrimSpace(in.configPath)
	if path == "" {
		path = envString(envPrefix+"CONFIG", defaultConfigPath)
	}

	fileCfg, err := loadConfigFile(path)
	if err != nil {
		return Context{}, err
	}

	mergeFileConfig(&cfg, fileCfg)
	applyEnvOverrides(&cfg)

	if in.flags != nil {
		err = applyFlagOverrides(&cfg, in.flags)
		if err != nil {
			return Context{}, err
		}
	}

	finalizeContext(&cfg)

	return cfg, nil
}

func applyMetadata(ctx context.Context, cfg *Context, source metadataSource, logger *zap.Logger) {
	if source == nil {
		return
	}

	instance, err := source.Instance(ctx)
	if err != nil {
		logger.Warn("instance metadata unavailable", zap.Error(err))

		return
	}

	cfg.Region = instance.CanonicalRegion()
	cfg.CompartmentID = instance.CompartmentID
	cfg.AvailabilityDomain = instance.AvailabilityDomain

	if instance.TenancyID != "" {
		cfg.TenancyID = instance.TenancyID
	}

	logger.Debug("applied instance metadata",
		zap.String("region", cfg.Region),
		zap.String("availabilityDomain", cfg.AvailabilityDomain),
	)
}

// loadConfigFile reads YAML files with yaml.v3 and anything else as a sourced shell variables
// file through viper's env format. A missing file yields an empty configuration.
func loadConfigFile(path string) (fileConfig, error) {
	var fileCfg fileConfig

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileCfg, nil
		}

		return fileConfig{}, fmt.Errorf("read config file %q: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fileCfg)
		if err != nil {
			return fileConfig{}, fmt.Errorf("decode config file %q: %w", path, err)
		}
	default:
		reader := viper.New()
		reader.SetConfigType("env")

		err = reader.ReadConfig(bytes.NewReader(data))
		if err != nil {
			return fileConfig{}, fmt.Errorf("decode config file %q: %w", path, err)
		}

		err = reader.Unmarshal(&fileCfg)
		if err != nil {
			return fileConfig{}, fmt.Errorf("decode config file %q: %w", path, err)
		}
	}

	return fileCfg, nil
}

func mergeFileConfig(dst *Context, src fileConfig) {
	assignString(&dst.TenancyID, src.TenancyID)
	assignString(&dst.CompartmentID, src.CompartmentID)
	assignString(&dst.Region, src.Region)
	assignString(&dst.AvailabilityDomain, src.AvailabilityDomain)
	assignString(&dst.ImageID, src.ImageID)
	assignString(&dst.ShapeName, src.ShapeName)
	assignString(&dst.ComputeClusterID, src.ComputeClusterID)
	assignString(&dst.InstanceConfigurationID, src.InstanceConfigurationID)
	assignString(&dst.GPUMemoryFabricID, src.GPUMemoryFabricID)
	assignInt64(&dst.ClusterSize, src.ClusterSize)
	assignString(&dst.Auth, src.Auth)
	assignString(&dst.Profile, src.Profile)
	assignString(&dst.OCIConfigPath, src.OCIConfigPath)
	assignString(&dst.CacheDir, src.CacheDir)
	assignInt(&dst.Concurrency, src.Concurrency)
	assignFloat(&dst.RequestsPerSecond, src.RequestsPerSecond)

	if src.CacheTTL != nil {
		dst.CacheTTL = parseTTL(*src.CacheTTL, dst.CacheTTL)
	}
}

// applyEnvOverrides reads GPUCTL_<KEY> first and then the bare variables.sh name.
func applyEnvOverrides(cfg *Context) {
	for _, key := range []string{
		keyTenancyID, keyCompartmentID, keyRegion, keyAvailabilityDomain, keyImageID,
		keyShapeName, keyComputeClusterID, keyInstanceConfigID, keyGPUMemoryFabricID,
	} {
		field := cfg.stringField(key)
		*field = envKey(key, *field)
	}

	if raw := envKey(keyClusterSize, ""); raw != "" {
		cfg.ClusterSize = parseInt64Default(raw, cfg.ClusterSize)
	}

	cfg.Auth = envString(envPrefix+"AUTH", cfg.Auth)
	cfg.Profile = envString(envPrefix+"PROFILE", envString("OCI_CLI_PROFILE", cfg.Profile))
	cfg.OCIConfigPath = envString(envPrefix+"OCI_CONFIG", envString("OCI_CLI_CONFIG_FILE", cfg.OCIConfigPath))
	cfg.CacheDir = envString(envPrefix+"CACHE_DIR", cfg.CacheDir)
	cfg.CacheTTL = parseTTL(envString(envPrefix+"CACHE_TTL", ""), cfg.CacheTTL)
	cfg.Concurrency = envInt(envPrefix+"CONCURRENCY", cfg.Concurrency)
	cfg.RequestsPerSecond = envFloat(envPrefix+"REQUESTS_PER_SECOND", cfg.RequestsPerSecond)
}

type flagBinding struct {
	name  string
	apply func(cfg *Context, flags *pflag.FlagSet, name string) error
}

func stringFlag(target func(*Context) *string) func(*Context, *pflag.FlagSet, string) error {
	return func(cfg *Context, flags *pflag.FlagSet, name string) error {
		value, err := flags.GetString(name)
		if err != nil {
			return fmt.Errorf("read --%s: %w", name, err)
		}

		*target(cfg) = strings.TrimSpace(value)

		return nil
	}
}

//nolint:gochecknoglobals // static flag table
var flagBindings = []flagBinding{
	{"tenancy", stringFlag(func(c *Context) *string { return &c.TenancyID })},
	{"compartment", stringFlag(func(c *Context) *string { return &c.CompartmentID })},
	{"region", stringFlag(func(c *Context) *string { return &c.Region })},
	{"ad", stringFlag(func(c *Context) *string { return &c.AvailabilityDomain })},
	{"image", stringFlag(func(c *Context) *string { return &c.ImageID })},
	{"shape", stringFlag(func(c *Context) *string { return &c.ShapeName })},
	{"compute-cluster", stringFlag(func(c *Context) *string { return &c.ComputeClusterID })},
	{"instance-config", stringFlag(func(c *Context) *string { return &c.InstanceConfigurationID })},
	{"fabric", stringFlag(func(c *Context) *string { return &c.GPUMemoryFabricID })},
	{"auth", stringFlag(func(c *Context) *string { return &c.Auth })},
	{"profile", stringFlag(func(c *Context) *string { return &c.Profile })},
	{"oci-config", stringFlag(func(c *Context) *string { return &c.OCIConfigPath })},
	{"cache-dir", stringFlag(func(c *Context) *string { return &c.CacheDir })},
	{"size", func(cfg *Context, flags *pflag.FlagSet, name string) error {
		value, err := flags.GetInt64(name)
		if err != nil {
			return fmt.Errorf("read --%s: %w", name, err)
		}

		cfg.ClusterSize = value

		return nil
	}},
	{"concurrency", func(cfg *Context, flags *pflag.FlagSet, name string) error {
		value, err := flags.GetInt(name)
		if err != nil {
			return fmt.Errorf("read --%s: %w", name, err)
		}

		cfg.Concurrency = value

		return nil
	}},
}

// applyFlagOverrides copies flags the user set explicitly. Flags a command does not define
// are skipped.
func applyFlagOverrides(cfg *Context, flags *pflag.FlagSet) error {
	for _, binding := range flagBindings {
		flag := flags.Lookup(binding.name)
		if flag == nil || !flag.Changed {
			continue
		}

		err := binding.apply(cfg, flags, binding.name)
		if err != nil {
			return err
		}
	}

	return nil
}

// finalizeContext fills derived values: the compartment falls back to the tenancy root.
func finalizeContext(cfg *Context) {
	if strings.TrimSpace(cfg.CompartmentID) == "" {
		cfg.CompartmentID = cfg.TenancyID
	}

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = fanout.DefaultLimit
	}

	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = cache.DefaultTTL
	}

	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = defaultRequestsPerSecond
	}
}

var lookupEnv = os.LookupEnv //nolint:gochecknoglobals // overridden in tests

func envKey(key, fallback string) string {
	return envString(envPrefix+strings.ToUpper(key), envString(strings.ToUpper(key), fallback))
}

func envString(key, fallback string) string {
	value, ok := lookupEnv(key)
	if !ok {
		return fallback
	}

	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}

	return trimmed
}

func envInt(key string, fallback int) int {
	trimmed := envString(key, "")
	if trimmed == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(trimmed)
	if err != nil || parsed <= 0 {
		return fallback
	}

	return parsed
}

func envFloat(key string, fallback float64) float64 {
	trimmed := envString(key, "")
	if trimmed == "" {
		return fallback
	}

	parsed, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || parsed <= 0 {
		return fallback
	}

	return parsed
}

// envBool treats any value other than empty, 0 and false as set.
func envBool(key string) bool {
	value := strings.ToLower(envString(key, ""))

	return value != "" && value != "0" && value != "false"
}

func parseInt64Default(value string, fallback int64) int64 {
	parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return fallback
	}

	return parsed
}

// parseTTL accepts a Go duration or a bare number of seconds.
func parseTTL(value string, fallback time.Duration) time.Duration {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}

	if seconds, err := strconv.Atoi(trimmed); err == nil {
		return time.Duration(seconds) * time.Second
	}

	duration, err := time.ParseDuration(trimmed)
	if err != nil {
		return fallback
	}

	return duration
}

func assignString(target *string, value *string) {
	if value != nil {
		*target = strings.TrimSpace(*value)
	}
}

func assignInt(target *int, value *int) {
	if value != nil {
		*target = *value
	}
}

func assignInt64(target *int64, value *int64) {
	if value != nil {
		*target = *value
	}
}

func assignFloat(target *float64, value *float64) {
	if value != nil {
		*target = *value
	}
}
