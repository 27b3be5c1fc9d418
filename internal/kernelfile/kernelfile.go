// Package kernelfile reads and writes modules and instrumentation translations as YAML.
//
// A module file lists kernels, each with its parameters, shared-memory variables and basic
// blocks in layout order. Instructions and statements are kept in the text syntax of package
// ptx, one per line:
//
//	name: vecadd
//	kernels:
//	  - name: add
//	    parameters:
//	      - {name: out, type: u64, size: 8}
//	    blocks:
//	      - label: BB_1
//	        instructions: |
//	          ld.param.u64 %r1, [out]
//	          exit
//
// A translation file holds the symbolic registers to allocate, the parameter sizes and the
// annotated statement stream:
//
//	registers: ["%count"]
//	parameters: {counters: 8}
//	statements: |
//	  ON_KERNEL_ENTRY:
//	  add.u64 %count, %count, %basicBlockCount
package kernelfile

import (
	"bytes"
	"io"
	"os"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/lynxgpu/lynx/cfg"
	"github.com/lynxgpu/lynx/ptx"
)

type moduleFile struct {
	Name    string       `yaml:"name"`
	Kernels []kernelFile `yaml:"kernels"`
}

type kernelFile struct {
	Name       string          `yaml:"name"`
	Parameters []parameterFile `yaml:"parameters,omitempty"`
	Shared     []sharedFile    `yaml:"shared,omitempty"`
	Blocks     []blockFile     `yaml:"blocks"`
}

type parameterFile struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
	Size int    `yaml:"size,omitempty"`
}

type sharedFile struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Elements int    `yaml:"elements,omitempty"`
}

type blockFile struct {
	Label        string `yaml:"label"`
	Instructions string `yaml:"instructions,omitempty"`
}

type translationFile struct {
	Registers  []string       `yaml:"registers,omitempty"`
	Parameters map[string]int `yaml:"parameters,omitempty"`
	Statements string         `yaml:"statements"`
}

// DecodeModule reads a module file.
func DecodeModule(r io.Reader) (*cfg.Module, error) {
	var f moduleFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, pkgerrors.Wrap(err, "decoding module")
	}

	m := &cfg.Module{Name: f.Name}
	for _, kf := range f.Kernels {
		k, err := kf.kernel()
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "kernel %s", kf.Name)
		}
		m.Kernels = append(m.Kernels, k)
	}
	return m, nil
}

func (kf *kernelFile) kernel() (*cfg.Kernel, error) {
	k := cfg.NewKernel(kf.Name)
	for _, p := range kf.Parameters {
		typ, err := ptx.ParseDataType(p.Type)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "parameter %s", p.Name)
		}
		k.AddParameter(cfg.Parameter{Name: p.Name, Type: typ, Size: p.Size})
	}
	for _, s := range kf.Shared {
		typ, err := ptx.ParseDataType(s.Type)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "shared variable %s", s.Name)
		}
		k.AddLocal(cfg.Local{Name: s.Name, Type: typ, Space: ptx.AddressSpaceShared, Elements: s.Elements})
	}
	for _, bf := range kf.Blocks {
		blk := k.AddBlock(bf.Label)
		for i, line := range lines(bf.Instructions) {
			if line == "" || strings.HasPrefix(line, "//") {
				continue
			}
			inst, err := ptx.ParseInstruction(line)
			if err != nil {
				return nil, pkgerrors.Wrapf(err, "block %s, line %d", bf.Label, i+1)
			}
			k.Append(blk, inst)
		}
	}
	return k, nil
}

// EncodeModule writes m as a module file.
func EncodeModule(w io.Writer, m *cfg.Module) error {
	f := moduleFile{Name: m.Name}
	for _, k := range m.Kernels {
		kf := kernelFile{Name: k.Name()}
		kf.Parameters = lo.Map(k.Parameters(), func(p cfg.Parameter, _ int) parameterFile {
			return parameterFile{Name: p.Name, Type: p.Type.String(), Size: p.Size}
		})
		kf.Shared = lo.Map(k.Locals(), func(l cfg.Local, _ int) sharedFile {
			return sharedFile{Name: l.Name, Type: l.Type.String(), Elements: l.Elements}
		})
		// The entry and exit blocks never hold instructions.
		for _, blk := range k.Blocks()[1 : k.Size()-1] {
			insts := blk.Instructions()
			text := lo.Map(insts, func(inst ptx.Instruction, _ int) string { return inst.String() + "\n" })
			kf.Blocks = append(kf.Blocks, blockFile{Label: blk.Label(), Instructions: strings.Join(text, "")})
		}
		f.Kernels = append(f.Kernels, kf)
	}
	return encode(w, &f)
}

// DecodeTranslation reads a translation file.
func DecodeTranslation(r io.Reader) (ptx.Translation, error) {
	var f translationFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return ptx.Translation{}, pkgerrors.Wrap(err, "decoding translation")
	}
	stmts, err := ParseStatements(f.Statements)
	if err != nil {
		return ptx.Translation{}, err
	}
	return ptx.Translation{Statements: stmts, Registers: f.Registers, Parameters: f.Parameters}, nil
}

// EncodeTranslation writes t as a translation file.
func EncodeTranslation(w io.Writer, t ptx.Translation) error {
	return encode(w, &translationFile{
		Registers:  t.Registers,
		Parameters: t.Parameters,
		Statements: FormatStatements(t.Statements),
	})
}

// ParseStatements parses one statement per line. Blank lines and `//` comments are skipped.
func ParseStatements(text string) ([]ptx.Statement, error) {
	var ret []ptx.Statement
	for i, line := range lines(text) {
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		stmt, err := ptx.ParseStatement(line)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "statement line %d", i+1)
		}
		ret = append(ret, stmt)
	}
	return ret, nil
}

// FormatStatements is the inverse of ParseStatements.
func FormatStatements(stmts []ptx.Statement) string {
	var sb strings.Builder
	for i := range stmts {
		sb.WriteString(stmts[i].String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// ReadModule reads the module file at path.
func ReadModule(path string) (*cfg.Module, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeModule(f)
}

// WriteModule writes m to the file at path.
func WriteModule(path string, m *cfg.Module) error {
	var buf bytes.Buffer
	if err := EncodeModule(&buf, m); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// ReadTranslation reads the translation file at path.
func ReadTranslation(path string) (ptx.Translation, error) {
	f, err := os.Open(path)
	if err != nil {
		return ptx.Translation{}, err
	}
	defer f.Close()
	return DecodeTranslation(f)
}

func encode(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func lines(text string) []string {
	return lo.Map(strings.Split(text, "\n"), func(s string, _ int) string { return strings.TrimSpace(s) })
}
