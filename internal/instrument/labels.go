package instrument

// Target markers. A label of one of these names opens a new TranslationBlock.
const (
	LabelEnterKernel     = "ON_KERNEL_ENTRY"
	LabelExitKernel      = "ON_KERNEL_EXIT"
	LabelEnterBasicBlock = "ON_BASIC_BLOCK_ENTRY"
	LabelExitBasicBlock  = "ON_BASIC_BLOCK_EXIT"
	LabelOnInstruction   = "ON_INSTRUCTION"
)

// Instruction class names.
const (
	ClassPredicated    = "ON_PREDICATED"
	ClassMemoryRead    = "ON_MEM_READ"
	ClassMemoryWrite   = "ON_MEM_WRITE"
	ClassBranch        = "ON_BRANCH"
	ClassCall          = "ON_CALL"
	ClassBarrier       = "ON_BARRIER"
	ClassAtomic        = "ON_ATOMIC"
	ClassArithmetic    = "ON_ARITH_OP"
	ClassFloatingPoint = "ON_FP"
	ClassTexture       = "ON_TEXTURE"
)

// Address space names.
const (
	SpaceGlobal  = "GLOBAL"
	SpaceLocal   = "LOCAL"
	SpaceShared  = "SHARED"
	SpaceConst   = "CONST"
	SpaceParam   = "PARAM"
	SpaceTexture = "TEXTURE"
)

// Operand type class names.
const (
	TypeInteger = "INTEGER"
	TypeFloat   = "FLOATING_POINT"
)

// LabelExit is the branch target standing for the last real basic block of the kernel.
const LabelExit = "$exit"

// Pseudo-functions: destinations of instructions that the rewriter lowers specially.
const (
	ComputeBaseAddress = "%computeBaseAddress"
	GetPredicateValue  = "%getPredicateValue"
)

// Placeholders replaced by StaticAttributes values at splice time.
const (
	PlaceholderBasicBlockCount                    = "%basicBlockCount"
	PlaceholderBasicBlockID                       = "%basicBlockId"
	PlaceholderBasicBlockInstructionCount         = "%basicBlockInstructionCount"
	PlaceholderBasicBlockExecutedInstructionCount = "%basicBlockExecutedInstructionCount"
	PlaceholderBasicBlockPredicatedInstCount      = "%basicBlockPredicatedInstructionCount"
	PlaceholderInstructionID                      = "%instructionId"
	PlaceholderInstructionCount                   = "%instructionCount"
)

// blockIndexRegister is the special register read by the block-index probe.
const blockIndexRegister = "%ctaid.x"

// blockIndexProbeOffset is what the block-index probe adds to the register it finds.
const blockIndexProbeOffset = 64

var (
	targetLabels = []string{
		LabelEnterKernel, LabelExitKernel, LabelEnterBasicBlock, LabelExitBasicBlock, LabelOnInstruction,
	}
	instructionClasses = []string{
		ClassMemoryRead, ClassMemoryWrite, ClassPredicated, ClassBranch, ClassCall,
		ClassBarrier, ClassAtomic, ClassArithmetic, ClassFloatingPoint, ClassTexture,
	}
	addressSpaceNames = []string{SpaceGlobal, SpaceLocal, SpaceShared, SpaceConst, SpaceParam, SpaceTexture}
	typeClassNames    = []string{TypeInteger, TypeFloat}
	functionNames     = []string{ComputeBaseAddress, GetPredicateValue}
)
