package lynx

import (
	"bytes"
	"io"
	"os"
	"strconv"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/lynxgpu/lynx/internal/instrument"
)

// RegisterScope decides whether symbolic registers are bound once per Instrumentor or once
// per kernel.
type RegisterScope = instrument.RegisterScope

const (
	// RegisterScopePass shares one register per symbolic name across every kernel.
	RegisterScopePass = instrument.RegisterScopePass
	// RegisterScopeKernel allocates registers for symbolic names per kernel.
	RegisterScopeKernel = instrument.RegisterScopeKernel
)

// Environment variables read by ApplyEnv.
const (
	EnvRegisterScope   = "LYNX_REGISTER_SCOPE"
	EnvBlockIndexProbe = "LYNX_BLOCK_INDEX_PROBE"
	EnvOptimize        = "LYNX_OPTIMIZE"
	EnvLogLevel        = "LYNX_LOG_LEVEL"
)

// PassConfig controls instrumentation behavior, with the default implementation as
// NewPassConfig.
//
// PassConfig is immutable: each WithXXX function returns a new instance including the
// corresponding change.
type PassConfig interface {
	// WithRegisterScope sets how long symbolic register bindings live. Defaults to
	// RegisterScopePass.
	WithRegisterScope(RegisterScope) PassConfig

	// WithBlockIndexProbe inserts `add.u32 d, d, 64` after the first read of %ctaid.x in
	// kernels instrumented with an ON_INSTRUCTION block. Defaults to false.
	WithBlockIndexProbe(bool) PassConfig

	// WithOptimizer toggles the peephole optimizer run over the translation before it is
	// spliced. Defaults to true.
	WithOptimizer(bool) PassConfig

	// WithLogger sets the logger. When set, WithLogLevel and WithLogOutput have no effect.
	// Defaults to the logrus standard logger.
	WithLogger(logrus.FieldLogger) PassConfig

	// WithLogLevel sets the level of the logger created for the pass.
	WithLogLevel(logrus.Level) PassConfig

	// WithLogOutput sets where the logger created for the pass writes.
	WithLogOutput(io.Writer) PassConfig
}

type passConfig struct {
	registerScope   RegisterScope
	blockIndexProbe bool
	optimize        bool
	logger          logrus.FieldLogger
	logLevel        logrus.Level
	logLevelSet     bool
	logOutput       io.Writer
}

var defaultPassConfig = &passConfig{
	registerScope: RegisterScopePass,
	optimize:      true,
}

// NewPassConfig returns a PassConfig with the defaults documented on each method.
func NewPassConfig() PassConfig {
	return defaultPassConfig.clone()
}

// clone makes a deep copy of this pass config.
func (c *passConfig) clone() *passConfig {
	ret := *c
	return &ret
}

// WithRegisterScope implements PassConfig.WithRegisterScope
func (c *passConfig) WithRegisterScope(scope RegisterScope) PassConfig {
	ret := c.clone()
	ret.registerScope = scope
	return ret
}

// WithBlockIndexProbe implements PassConfig.WithBlockIndexProbe
func (c *passConfig) WithBlockIndexProbe(enabled bool) PassConfig {
	ret := c.clone()
	ret.blockIndexProbe = enabled
	return ret
}

// WithOptimizer implements PassConfig.WithOptimizer
func (c *passConfig) WithOptimizer(enabled bool) PassConfig {
	ret := c.clone()
	ret.optimize = enabled
	return ret
}

// WithLogger implements PassConfig.WithLogger
func (c *passConfig) WithLogger(logger logrus.FieldLogger) PassConfig {
	ret := c.clone()
	ret.logger = logger
	return ret
}

// WithLogLevel implements PassConfig.WithLogLevel
func (c *passConfig) WithLogLevel(level logrus.Level) PassConfig {
	ret := c.clone()
	ret.logLevel, ret.logLevelSet = level, true
	return ret
}

// WithLogOutput implements PassConfig.WithLogOutput
func (c *passConfig) WithLogOutput(w io.Writer) PassConfig {
	ret := c.clone()
	ret.logOutput = w
	return ret
}

func (c *passConfig) newLogger() logrus.FieldLogger {
	if c.logger != nil {
		return c.logger
	}
	if c.logOutput == nil && !c.logLevelSet {
		return logrus.StandardLogger()
	}
	l := logrus.New()
	if c.logOutput != nil {
		l.SetOutput(c.logOutput)
	}
	if c.logLevelSet {
		l.SetLevel(c.logLevel)
	}
	return l
}

func (c *passConfig) options() instrument.Options {
	return instrument.Options{
		RegisterScope:   c.registerScope,
		BlockIndexProbe: c.blockIndexProbe,
		SkipOptimize:    !c.optimize,
		Logger:          c.newLogger(),
	}
}

// configFile is the YAML form of a PassConfig. The logger itself is not persisted.
type configFile struct {
	RegisterScope   string `yaml:"register_scope,omitempty"`
	BlockIndexProbe bool   `yaml:"block_index_probe,omitempty"`
	Optimize        *bool  `yaml:"optimize,omitempty"`
	LogLevel        string `yaml:"log_level,omitempty"`
}

// DecodeConfig reads a YAML config. Absent keys keep the defaults of NewPassConfig.
func DecodeConfig(r io.Reader) (PassConfig, error) {
	var f configFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil && err != io.EOF {
		return nil, pkgerrors.Wrap(err, "decoding config")
	}

	ret := defaultPassConfig.clone()
	scope, err := instrument.ParseRegisterScope(f.RegisterScope)
	if err != nil {
		return nil, err
	}
	ret.registerScope = scope
	ret.blockIndexProbe = f.BlockIndexProbe
	if f.Optimize != nil {
		ret.optimize = *f.Optimize
	}
	if f.LogLevel != "" {
		level, err := logrus.ParseLevel(f.LogLevel)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "log_level")
		}
		ret.logLevel, ret.logLevelSet = level, true
	}
	return ret, nil
}

// EncodeConfig writes c as YAML.
func EncodeConfig(w io.Writer, c PassConfig) error {
	pc := c.(*passConfig)
	f := configFile{
		RegisterScope:   pc.registerScope.String(),
		BlockIndexProbe: pc.blockIndexProbe,
		Optimize:        &pc.optimize,
	}
	if pc.logLevelSet {
		f.LogLevel = pc.logLevel.String()
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&f); err != nil {
		return err
	}
	return enc.Close()
}

// LoadConfigFile reads the YAML config at path.
func LoadConfigFile(path string) (PassConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	c, err := DecodeConfig(f)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "config %s", path)
	}
	return c, nil
}

// SaveConfigFile writes c as YAML to path.
func SaveConfigFile(path string, c PassConfig) error {
	var buf bytes.Buffer
	if err := EncodeConfig(&buf, c); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// ApplyEnv overrides c with the LYNX_* variables found by lookup, typically os.LookupEnv.
// Empty values are ignored.
func ApplyEnv(c PassConfig, lookup func(key string) (string, bool)) (PassConfig, error) {
	ret := c.(*passConfig).clone()
	if v, ok := lookup(EnvRegisterScope); ok && v != "" {
		scope, err := instrument.ParseRegisterScope(v)
		if err != nil {
			return nil, pkgerrors.Wrap(err, EnvRegisterScope)
		}
		ret.registerScope = scope
	}
	for _, b := range []struct {
		key string
		v   *bool
	}{
		{EnvBlockIndexProbe, &ret.blockIndexProbe},
		{EnvOptimize, &ret.optimize},
	} {
		v, ok := lookup(b.key)
		if !ok || v == "" {
			continue
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return nil, pkgerrors.Wrap(err, b.key)
		}
		*b.v = parsed
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		level, err := logrus.ParseLevel(v)
		if err != nil {
			return nil, pkgerrors.Wrap(err, EnvLogLevel)
		}
		ret.logLevel, ret.logLevelSet = level, true
	}
	return ret, nil
}
