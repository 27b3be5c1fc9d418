package main

import (
	"bytes"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lynxgpu/lynx/internal/kernelfile"
)

const moduleYAML = `name: m
kernels:
  - name: add
    blocks:
      - label: BB_1
        instructions: |
          ld.global.u32 %r1, [%r2]
          exit
`

const twoKernelsYAML = `name: m
kernels:
  - name: a
    blocks:
      - label: BB_1
        instructions: |
          exit
  - name: b
    blocks:
      - label: BB_1
        instructions: |
          add.u32 %r3, %r3, 1
`

const entryTranslationYAML = `registers: ["%count"]
statements: |
  ON_KERNEL_ENTRY:
  add.u64 %count, %count, 1
`

const tmpTranslationYAML = `statements: |
  add.u64 %tmp, %tmp, 1
`

const fusedTranslationYAML = `statements: |
  ON_KERNEL_EXIT:
  mul.lo.u32 %t, %a, %b
  add.u32 %t, %t, %c
`

// writeFiles writes name/content pairs into a temporary directory and returns it.
func writeFiles(t *testing.T, files map[string]string) string {
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
	return dir
}

func TestInstrument(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"module.yaml":      moduleYAML,
		"translation.yaml": entryTranslationYAML,
	})
	modulePath := filepath.Join(dir, "module.yaml")
	translationPath := filepath.Join(dir, "translation.yaml")

	t.Run("text", func(t *testing.T) {
		exitCode, stdOut, _ := runMain(t, []string{"instrument", "-text", "-t", translationPath, modulePath})
		require.Equal(t, 0, exitCode)
		require.Equal(t, ".entry add\nBB_1:\n\tadd.u64 %r3, %r3, 1;\n\tld.global.u32 %r1, [%r2];\n\texit;\n", stdOut)
	})

	t.Run("yaml", func(t *testing.T) {
		exitCode, stdOut, _ := runMain(t, []string{"instrument", "-t", translationPath, modulePath})
		require.Equal(t, 0, exitCode)
		require.Contains(t, stdOut, "add.u64 %r3, %r3, 1\n")
		require.Contains(t, stdOut, "- name: add\n")
	})

	t.Run("output file", func(t *testing.T) {
		outPath := filepath.Join(t.TempDir(), "out.yaml")
		exitCode, stdOut, stdErr := runMain(t, []string{"instrument", "-o", outPath, "-t", translationPath, modulePath})
		require.Equal(t, 0, exitCode)
		require.Empty(t, stdOut)
		require.Contains(t, stdErr, "instrumented kernel")

		m, err := kernelfile.ReadModule(outPath)
		require.NoError(t, err)
		require.Equal(t, 3, m.Kernel("add").InstructionCount())
	})
}

func TestInstrument_registerScope(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"module.yaml":      twoKernelsYAML,
		"translation.yaml": tmpTranslationYAML,
		"lynx.yaml":        "register_scope: kernel\nlog_level: error\n",
		"lynx.env":         "LYNX_REGISTER_SCOPE=kernel\n",
	})
	modulePath := filepath.Join(dir, "module.yaml")
	translationPath := filepath.Join(dir, "translation.yaml")

	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{
			name:     "default",
			expected: "add.u64 %r0, %r0, 1",
		},
		{
			name:     "flag",
			args:     []string{"-scope", "kernel"},
			expected: "add.u64 %r4, %r4, 1",
		},
		{
			name:     "config file",
			args:     []string{"-config", filepath.Join(dir, "lynx.yaml")},
			expected: "add.u64 %r4, %r4, 1",
		},
		{
			name:     "env file",
			args:     []string{"-env", filepath.Join(dir, "lynx.env")},
			expected: "add.u64 %r4, %r4, 1",
		},
		{
			name:     "flag wins over config file",
			args:     []string{"-config", filepath.Join(dir, "lynx.yaml"), "-scope", "pass"},
			expected: "add.u64 %r0, %r0, 1",
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			args := append([]string{"instrument", "-text", "-t", translationPath}, tc.args...)
			exitCode, stdOut, _ := runMain(t, append(args, modulePath))
			require.Equal(t, 0, exitCode)
			require.Equal(t, ".entry a\nBB_1:\n\tadd.u64 %r0, %r0, 1;\n\texit;\n"+
				".entry b\nBB_1:\n\t"+tc.expected+";\n\tadd.u32 %r3, %r3, 1;\n", stdOut)
		})
	}
}

func TestOptimize(t *testing.T) {
	dir := writeFiles(t, map[string]string{"translation.yaml": fusedTranslationYAML})

	exitCode, stdOut, _ := runMain(t, []string{"optimize", filepath.Join(dir, "translation.yaml")})
	require.Equal(t, 0, exitCode)
	require.Equal(t, "ON_KERNEL_EXIT:\nmad.lo.u32 %t, %a, %b, %c\n", stdOut)
}

func TestVersion(t *testing.T) {
	exitCode, stdOut, _ := runMain(t, []string{"version"})
	require.Equal(t, 0, exitCode)
	require.NotEmpty(t, stdOut)
}

func TestHelp(t *testing.T) {
	exitCode, _, stdErr := runMain(t, []string{"-h"})
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdErr, "lynx CLI\n\nUsage:")

	exitCode, _, stdErr = runMain(t, []string{"instrument", "-h"})
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdErr, "LYNX_REGISTER_SCOPE")
}

func TestErrors(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"module.yaml":      moduleYAML,
		"translation.yaml": entryTranslationYAML,
		"bad.yaml":         "kernels: [",
		"bad.env":          "LYNX_OPTIMIZE=sometimes\n",
	})
	modulePath := filepath.Join(dir, "module.yaml")
	translationPath := filepath.Join(dir, "translation.yaml")

	tests := []struct {
		message string
		args    []string
	}{
		{
			message: "invalid command",
			args:    []string{"compile"},
		},
		{
			message: "missing path to module file",
			args:    []string{"instrument", "-t", translationPath},
		},
		{
			message: "missing translation file",
			args:    []string{"instrument", modulePath},
		},
		{
			message: "error reading config",
			args:    []string{"instrument", "-t", translationPath, "-config", filepath.Join(dir, "bad.yaml"), modulePath},
		},
		{
			message: "error reading env file",
			args:    []string{"instrument", "-t", translationPath, "-env", filepath.Join(dir, "missing.env"), modulePath},
		},
		{
			message: "invalid environment: LYNX_OPTIMIZE",
			args:    []string{"instrument", "-t", translationPath, "-env", filepath.Join(dir, "bad.env"), modulePath},
		},
		{
			message: `invalid flag: invalid register scope "module"`,
			args:    []string{"instrument", "-t", translationPath, "-scope", "module", modulePath},
		},
		{
			message: "error reading translation",
			args:    []string{"instrument", "-t", filepath.Join(dir, "bad.yaml"), modulePath},
		},
		{
			message: "error reading module",
			args:    []string{"instrument", "-t", translationPath, filepath.Join(dir, "bad.yaml")},
		},
		{
			message: "missing path to translation file",
			args:    []string{"optimize"},
		},
		{
			message: "error reading translation",
			args:    []string{"optimize", filepath.Join(dir, "missing.yaml")},
		},
	}

	for _, tc := range tests {
		tt := tc
		t.Run(tt.message, func(t *testing.T) {
			exitCode, _, stdErr := runMain(t, tt.args)

			require.Equal(t, 1, exitCode)
			require.Contains(t, stdErr, tt.message)
		})
	}
}

func runMain(t *testing.T, args []string) (int, string, string) {
	t.Helper()
	oldArgs := os.Args
	t.Cleanup(func() {
		os.Args = oldArgs
	})
	os.Args = append([]string{"lynx"}, args...)

	var exitCode int
	stdOut := &bytes.Buffer{}
	stdErr := &bytes.Buffer{}
	var exited bool
	func() {
		defer func() {
			if r := recover(); r != nil {
				exited = true
			}
		}()
		flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
		doMain(stdOut, stdErr, func(code int) {
			exitCode = code
			panic(code)
		})
	}()

	require.True(t, exited)

	return exitCode, stdOut.String(), stdErr.String()
}
