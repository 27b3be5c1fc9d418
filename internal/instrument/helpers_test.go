package instrument

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/lynxgpu/lynx/cfg"
	"github.com/lynxgpu/lynx/ptx"
)

type testBlock struct {
	label string
	insts []string
}

func newTestKernel(t *testing.T, name string, blocks ...testBlock) *cfg.Kernel {
	k := cfg.NewKernel(name)
	for _, b := range blocks {
		blk := k.AddBlock(b.label)
		for _, line := range b.insts {
			inst, err := ptx.ParseInstruction(line)
			require.NoError(t, err, line)
			k.Append(blk, inst)
		}
	}
	return k
}

func parseStatements(t *testing.T, lines ...string) []ptx.Statement {
	ret := make([]ptx.Statement, 0, len(lines))
	for _, line := range lines {
		stmt, err := ptx.ParseStatement(line)
		require.NoError(t, err, line)
		ret = append(ret, stmt)
	}
	return ret
}

func parseInstruction(t *testing.T, line string) ptx.Instruction {
	inst, err := ptx.ParseInstruction(line)
	require.NoError(t, err, line)
	return inst
}

func statementStrings(stmts []ptx.Statement) []string {
	ret := make([]string, len(stmts))
	for i := range stmts {
		ret[i] = stmts[i].String()
	}
	return ret
}

func blockStrings(blk *cfg.BasicBlock) []string {
	var ret []string
	for n := blk.Root(); n != nil; n = n.Next() {
		ret = append(ret, n.Instruction().String())
	}
	return ret
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// newTestPass returns a Pass over the given statements with a silent logger.
func newTestPass(t *testing.T, registers []string, lines ...string) *Pass {
	return NewPass(ptx.Translation{
		Statements: parseStatements(t, lines...),
		Registers:  registers,
	}, Options{Logger: discardLogger()})
}
