// Package cfg implements the control-flow graph that the instrumentation engine splices
// code into: a Module of Kernels, each being an ordered arena of BasicBlocks whose
// instructions form a doubly linked list.
//
// Every Kernel starts with a synthetic entry block and ends with a synthetic exit block,
// both of which never hold instructions. Blocks added with AddBlock are laid out in
// between, in the order they are added.
package cfg

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lynxgpu/lynx/ptx"
)

// BlockID is the position of a BasicBlock in its Kernel's layout order.
type BlockID int

const (
	// EntryBlockID is the ID of the synthetic entry block.
	EntryBlockID BlockID = 0

	entryLabel = "$entry"
	exitLabel  = "$exit_block"
)

// Module is a set of kernels.
type Module struct {
	Name    string
	Kernels []*Kernel
}

// Kernel returns the kernel of the given name, or nil.
func (m *Module) Kernel(name string) *Kernel {
	for _, k := range m.Kernels {
		if k.name == name {
			return k
		}
	}
	return nil
}

// Parameter is a kernel parameter declaration.
type Parameter struct {
	Name string
	Type ptx.DataType
	// Size is the size in bytes, zero if unknown.
	Size int
}

// Local is a kernel-scoped variable declaration, such as shared memory.
type Local struct {
	Name     string
	Type     ptx.DataType
	Space    ptx.AddressSpace
	Elements int
}

// Kernel is the control-flow graph of one kernel.
//
// Insertion into a block never reorders the block list, and never changes the Next
// link of the node an insertion happens before, so a forward iteration over blocks or over
// the nodes of a block stays valid across Insert calls.
type Kernel struct {
	name       string
	blocks     []*BasicBlock
	parameters []Parameter
	locals     map[string]Local
	nodes      nodePool
	// nextReg is the next RegisterID handed out by NewRegister.
	nextReg ptx.RegisterID
}

// NewKernel returns a Kernel holding only the entry and exit blocks.
func NewKernel(name string) *Kernel {
	k := &Kernel{
		name:   name,
		locals: make(map[string]Local),
	}
	k.blocks = []*BasicBlock{
		{id: EntryBlockID, label: entryLabel, kernel: k},
		{id: 1, label: exitLabel, kernel: k},
	}
	return k
}

// Name returns the name of the kernel.
func (k *Kernel) Name() string {
	return k.name
}

// AddBlock appends a new block, right before the exit block.
func (k *Kernel) AddBlock(label string) *BasicBlock {
	exit := k.blocks[len(k.blocks)-1]
	blk := &BasicBlock{id: exit.id, label: label, kernel: k}
	exit.id++
	k.blocks = append(k.blocks[:len(k.blocks)-1], blk, exit)
	return blk
}

// Size returns the number of blocks including the entry and exit blocks.
func (k *Kernel) Size() int {
	return len(k.blocks)
}

// Empty returns true if the kernel has no block besides the entry and exit blocks.
func (k *Kernel) Empty() bool {
	return len(k.blocks) <= 2
}

// Block returns the i-th block in layout order. Block(0) is the entry block and
// Block(Size()-1) is the exit block.
func (k *Kernel) Block(i int) *BasicBlock {
	return k.blocks[i]
}

// Blocks returns the blocks in layout order. The returned slice must not be modified.
func (k *Kernel) Blocks() []*BasicBlock {
	return k.blocks
}

// NewRegister allocates a register that is not used anywhere in the kernel.
func (k *Kernel) NewRegister() ptx.RegisterID {
	ret := k.nextReg
	k.nextReg++
	return ret
}

// observe makes sure NewRegister never returns a register used by inst.
func (k *Kernel) observe(inst *ptx.Instruction) {
	for s := range inst.Operands {
		op := &inst.Operands[s]
		if op.Identifier != "" {
			continue
		}
		switch op.Mode {
		case ptx.AddressModeRegister, ptx.AddressModeIndirect:
		default:
			continue
		}
		if op.Reg >= k.nextReg {
			k.nextReg = op.Reg + 1
		}
	}
}

// Append adds inst at the end of blk.
func (k *Kernel) Append(blk *BasicBlock, inst ptx.Instruction) *Node {
	return k.Insert(blk, inst, blk.size)
}

// Insert inserts inst into blk so that it becomes the index-th instruction.
// index must be in [0, blk.Len()]; index == blk.Len() appends.
func (k *Kernel) Insert(blk *BasicBlock, inst ptx.Instruction, index int) *Node {
	if index < 0 || index > blk.size {
		panic(fmt.Sprintf("BUG: insertion index %d out of range [0, %d] in %s", index, blk.size, blk.label))
	}
	if index == blk.size {
		n := k.newNode(blk, inst)
		if blk.tail == nil {
			blk.root = n
		} else {
			blk.tail.next, n.prev = n, blk.tail
		}
		blk.tail = n
		blk.size++
		return n
	}
	return k.InsertBefore(blk.At(index), inst)
}

// InsertBefore inserts inst right before the node at.
func (k *Kernel) InsertBefore(at *Node, inst ptx.Instruction) *Node {
	blk := at.blk
	n := k.newNode(blk, inst)
	n.next, n.prev = at, at.prev
	if at.prev == nil {
		blk.root = n
	} else {
		at.prev.next = n
	}
	at.prev = n
	blk.size++
	return n
}

// InsertAfter inserts inst right after the node at.
func (k *Kernel) InsertAfter(at *Node, inst ptx.Instruction) *Node {
	if at.next == nil {
		return k.Insert(at.blk, inst, at.blk.size)
	}
	return k.InsertBefore(at.next, inst)
}

func (k *Kernel) newNode(blk *BasicBlock, inst ptx.Instruction) *Node {
	n := k.nodes.allocate()
	n.inst, n.blk = inst, blk
	k.observe(&n.inst)
	return n
}

// AddParameter adds a parameter declaration, replacing any previous one of the same name.
func (k *Kernel) AddParameter(p Parameter) {
	for i := range k.parameters {
		if k.parameters[i].Name == p.Name {
			k.parameters[i] = p
			return
		}
	}
	k.parameters = append(k.parameters, p)
}

// Parameters returns the parameter declarations in declaration order.
func (k *Kernel) Parameters() []Parameter {
	return k.parameters
}

// AddLocal adds a kernel-scoped variable declaration.
func (k *Kernel) AddLocal(l Local) {
	k.locals[l.Name] = l
}

// Local returns the declaration of the named variable.
func (k *Kernel) Local(name string) (Local, bool) {
	l, ok := k.locals[name]
	return l, ok
}

// Locals returns the kernel-scoped variable declarations sorted by name.
func (k *Kernel) Locals() []Local {
	ret := make([]Local, 0, len(k.locals))
	for _, l := range k.locals {
		ret = append(ret, l)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Name < ret[j].Name })
	return ret
}

// InstructionCount returns the number of instructions of the kernel.
func (k *Kernel) InstructionCount() int {
	return k.nodes.count
}

// Format returns the debugging string of the kernel.
func (k *Kernel) Format() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, ".entry %s\n", k.name)
	for _, p := range k.parameters {
		fmt.Fprintf(&sb, "\t.param .%s %s\n", p.Type, p.Name)
	}
	for _, blk := range k.blocks {
		if blk.size == 0 {
			continue
		}
		fmt.Fprintf(&sb, "%s:\n", blk.label)
		for n := blk.root; n != nil; n = n.next {
			fmt.Fprintf(&sb, "\t%s;\n", n.inst.String())
		}
	}
	return sb.String()
}

// BasicBlock is a maximal straight-line sequence of instructions.
type BasicBlock struct {
	id         BlockID
	label      string
	kernel     *Kernel
	root, tail *Node
	size       int
}

// ID returns the BlockID of this block.
func (b *BasicBlock) ID() BlockID {
	return b.id
}

// Label returns the label of this block.
func (b *BasicBlock) Label() string {
	return b.label
}

// Len returns the number of instructions in this block.
func (b *BasicBlock) Len() int {
	return b.size
}

// Empty returns true if this block holds no instruction.
func (b *BasicBlock) Empty() bool {
	return b.size == 0
}

// Root returns the first node, or nil if the block is empty.
func (b *BasicBlock) Root() *Node {
	return b.root
}

// Tail returns the last node, or nil if the block is empty.
func (b *BasicBlock) Tail() *Node {
	return b.tail
}

// At returns the index-th node. This is linear in index.
func (b *BasicBlock) At(index int) *Node {
	if index < 0 || index >= b.size {
		panic(fmt.Sprintf("BUG: index %d out of range [0, %d) in %s", index, b.size, b.label))
	}
	n := b.root
	for ; index > 0; index-- {
		n = n.next
	}
	return n
}

// Instructions returns a copy of the instructions of this block in order.
func (b *BasicBlock) Instructions() []ptx.Instruction {
	ret := make([]ptx.Instruction, 0, b.size)
	for n := b.root; n != nil; n = n.next {
		ret = append(ret, n.inst)
	}
	return ret
}

// String implements fmt.Stringer.
func (b *BasicBlock) String() string {
	return fmt.Sprintf("blk%d(%s)", b.id, b.label)
}

// Node holds one instruction in a BasicBlock.
type Node struct {
	inst       ptx.Instruction
	blk        *BasicBlock
	prev, next *Node
}

// Instruction returns the instruction held by this node.
func (n *Node) Instruction() *ptx.Instruction {
	return &n.inst
}

// Block returns the block this node belongs to.
func (n *Node) Block() *BasicBlock {
	return n.blk
}

// Next returns the node laid out next to this one.
func (n *Node) Next() *Node {
	return n.next
}

// Prev returns the node laid out prior to this one.
func (n *Node) Prev() *Node {
	return n.prev
}
