package kernelfile

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lynxgpu/lynx/cfg"
	"github.com/lynxgpu/lynx/ptx"
)

const moduleYAML = `name: vecadd
kernels:
  - name: add
    parameters:
      - name: out
        type: u64
        size: 8
    shared:
      - name: scratch
        type: u32
        elements: 32
    blocks:
      - label: BB_1
        instructions: |
          // load the output pointer
          ld.param.u64 %r1, [out];
          @%p1 bra BB_3
      - label: BB_2
      - label: BB_3
        instructions: |
          st.global.u32 [%r1+4], %r2
          exit
`

func TestDecodeModule(t *testing.T) {
	m, err := DecodeModule(strings.NewReader(moduleYAML))
	require.NoError(t, err)
	require.Equal(t, "vecadd", m.Name)
	require.Len(t, m.Kernels, 1)

	k := m.Kernel("add")
	require.NotNil(t, k)
	require.Equal(t, []cfg.Parameter{{Name: "out", Type: ptx.TypeU64, Size: 8}}, k.Parameters())
	require.Equal(t, []cfg.Local{{Name: "scratch", Type: ptx.TypeU32, Space: ptx.AddressSpaceShared, Elements: 32}}, k.Locals())
	require.Equal(t, 5, k.Size())
	require.Equal(t, "BB_1", k.Block(1).Label())
	require.Equal(t, 2, k.Block(1).Len())
	require.True(t, k.Block(2).Empty())
	require.Equal(t, "exit", k.Block(3).Tail().Instruction().String())
}

func TestModule_roundTrip(t *testing.T) {
	m, err := DecodeModule(strings.NewReader(moduleYAML))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "module.yaml")
	require.NoError(t, WriteModule(path, m))
	actual, err := ReadModule(path)
	require.NoError(t, err)

	require.Equal(t, m.Name, actual.Name)
	require.Equal(t, m.Kernels[0].Format(), actual.Kernels[0].Format())
	require.Equal(t, m.Kernels[0].Size(), actual.Kernels[0].Size())
	require.Equal(t, m.Kernels[0].Locals(), actual.Kernels[0].Locals())
}

func TestDecodeModule_errors(t *testing.T) {
	for _, tc := range []struct {
		name, in, expErr string
	}{
		{
			name:   "not yaml",
			in:     "kernels: [",
			expErr: "decoding module",
		},
		{
			name:   "bad instruction",
			in:     "name: m\nkernels:\n  - name: k\n    blocks:\n      - label: BB_1\n        instructions: |\n          exit\n          frob %r1\n",
			expErr: `kernel k: block BB_1, line 2: unknown opcode "frob"`,
		},
		{
			name:   "bad parameter type",
			in:     "name: m\nkernels:\n  - name: k\n    parameters:\n      - {name: a, type: u63}\n",
			expErr: `kernel k: parameter a: invalid type "u63"`,
		},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeModule(strings.NewReader(tc.in))
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.expErr)
		})
	}
}

const translationYAML = `registers: ["%count", "%id"]
parameters:
  counters: 8
statements: |
  .param .u64 counters
  ON_INSTRUCTION:
  ON_MEM_READ:

  mov.u32 %id, %instructionId
  add.u64 %count, %count, 1
`

func TestDecodeTranslation(t *testing.T) {
	tr, err := DecodeTranslation(strings.NewReader(translationYAML))
	require.NoError(t, err)
	require.Equal(t, []string{"%count", "%id"}, tr.Registers)
	require.Equal(t, map[string]int{"counters": 8}, tr.Parameters)
	require.Len(t, tr.Statements, 5)
	require.Equal(t, ptx.DirectiveParam, tr.Statements[0].Directive)
	require.Equal(t, "ON_MEM_READ", tr.Statements[2].Name)

	var buf bytes.Buffer
	require.NoError(t, EncodeTranslation(&buf, tr))
	actual, err := DecodeTranslation(&buf)
	require.NoError(t, err)
	require.Equal(t, tr, actual)

	path := filepath.Join(t.TempDir(), "translation.yaml")
	require.NoError(t, os.WriteFile(path, []byte(translationYAML), 0o600))
	fromFile, err := ReadTranslation(path)
	require.NoError(t, err)
	require.Equal(t, tr, fromFile)
}

func TestParseStatements(t *testing.T) {
	stmts, err := ParseStatements("ON_KERNEL_EXIT:\n\n// comment\n  add.u64 %c, %c, 1;  \n")
	require.NoError(t, err)
	require.Equal(t, "ON_KERNEL_EXIT:\nadd.u64 %c, %c, 1\n", FormatStatements(stmts))

	_, err = ParseStatements("exit\nbogus.u32 %r1\n")
	require.EqualError(t, err, `statement line 2: unknown opcode "bogus"`)
}
