package types

// ------------------------
// SMBus transaction vocabulary
// ------------------------

// ReadWrite is the R/W bit of an SMBus address byte.
type ReadWrite uint8

const (
	Write ReadWrite = 0
	Read  ReadWrite = 1
)

func (rw ReadWrite) String() string {
	if rw == Read {
		return "read"
	}
	return "write"
}

// Size selects the transaction shape. Values follow the Linux i2c-dev numbering.
type Size int

const (
	SizeQuick          Size = 0
	SizeByte           Size = 1
	SizeByteData       Size = 2
	SizeWordData       Size = 3
	SizeProcCall       Size = 4
	SizeBlockData      Size = 5
	SizeI2CBlockBroken Size = 6
	SizeBlockProcCall  Size = 7
	SizeI2CBlockData   Size = 8
)

func (s Size) String() string {
	switch s {
	case SizeQuick:
		return "quick"
	case SizeByte:
		return "byte"
	case SizeByteData:
		return "byte_data"
	case SizeWordData:
		return "word_data"
	case SizeProcCall:
		return "proc_call"
	case SizeBlockData:
		return "block_data"
	case SizeI2CBlockBroken:
		return "i2c_block_broken"
	case SizeBlockProcCall:
		return "block_proc_call"
	case SizeI2CBlockData:
		return "i2c_block_data"
	default:
		return "unknown"
	}
}

// BlockMax is the largest SMBus block payload.
const BlockMax = 32

// Data is the payload union shared by requests and replies.
//
// Block writes read the count from Block[0] and the bytes from Block[1:].
// Block reads store the returned bytes from Block[0] with no count prefix.
type Data struct {
	Byte  uint8
	Word  uint16
	Block [BlockMax + 2]byte
}

// ------------------------
// Capabilities
// ------------------------

// Func is an adapter functionality mask (Linux I2C_FUNC_* bits).
type Func uint32

const (
	FuncSMBusReadByte       Func = 0x00020000
	FuncSMBusWriteByte      Func = 0x00040000
	FuncSMBusReadByteData   Func = 0x00080000
	FuncSMBusWriteByteData  Func = 0x00100000
	FuncSMBusReadWordData   Func = 0x00200000
	FuncSMBusWriteWordData  Func = 0x00400000
	FuncSMBusReadBlockData  Func = 0x01000000
	FuncSMBusWriteBlockData Func = 0x02000000

	FuncSMBusByte      = FuncSMBusReadByte | FuncSMBusWriteByte
	FuncSMBusByteData  = FuncSMBusReadByteData | FuncSMBusWriteByteData
	FuncSMBusWordData  = FuncSMBusReadWordData | FuncSMBusWriteWordData
	FuncSMBusBlockData = FuncSMBusReadBlockData | FuncSMBusWriteBlockData
)

// Has reports whether every bit of want is set.
func (f Func) Has(want Func) bool { return f&want == want }

// ------------------------
// Adapter class
// ------------------------

// Class is the probing class mask of an adapter.
type Class uint32

const (
	ClassHWMon Class = 1 << 0
	ClassSPD   Class = 1 << 7
)
