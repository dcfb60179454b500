package summercart64

// Register block location and layout.
const (
	RegBase uint32 = 0x1FFF_0000

	RegStatus     = RegBase + 0x00 // SR_CMD: read status, write command
	RegData0      = RegBase + 0x04
	RegData1      = RegBase + 0x08
	RegIdentifier = RegBase + 0x0C
	RegKey        = RegBase + 0x10
)

// Unlock sequence and identifier for SummerCart64 V2.
const (
	KeyReset   uint32 = 0x0000_0000
	KeyUnlock1 uint32 = 0x5F55_4E4C // "_UNL"
	KeyUnlock2 uint32 = 0x4F43_4B5F // "OCK_"

	Identifier uint32 = 0x5343_7632 // "SCv2"
)

// The USB window sits at the end of a 64 MiB ROM, 8 MiB below the top.
const (
	romBase    uint32 = 0x1000_0000
	romSize    uint32 = 0x0400_0000
	bufferSize uint32 = 8 * 1024 * 1024

	BufferAddr = romBase + romSize - bufferSize
	BufferSize = bufferSize
)

// Status is the value read back from SR_CMD.
type Status uint32

const (
	StatusBusy      Status = 1 << 31
	StatusError     Status = 1 << 30
	StatusCmdIDMask Status = 0xFF
)

// Busy reports whether a command is still executing.
func (s Status) Busy() bool { return s&StatusBusy != 0 }

// Error reports whether the last command failed.
func (s Status) Error() bool { return s&StatusError != 0 }

// Command is a single-byte opcode stored to SR_CMD.
type Command uint8

const (
	CmdConfigSet      Command = 'C'
	CmdUSBWriteStatus Command = 'U'
	CmdUSBWrite       Command = 'M'
	CmdUSBReadStatus  Command = 'u'
	CmdUSBRead        Command = 'm'
)

// String returns the opcode character and mnemonic.
func (c Command) String() string {
	switch c {
	case CmdConfigSet:
		return "'C' config-set"
	case CmdUSBWriteStatus:
		return "'U' usb-write-status"
	case CmdUSBWrite:
		return "'M' usb-write"
	case CmdUSBReadStatus:
		return "'u' usb-read-status"
	case CmdUSBRead:
		return "'m' usb-read"
	default:
		return "'" + string(rune(c)) + "'"
	}
}

// Config identifiers for CmdConfigSet.
const (
	ConfigROMWriteEnable uint32 = 1
)

// Bits in the first result word of the USB status commands.
const (
	USBWriteStatusBusy uint32 = 1 << 31
	USBReadStatusBusy  uint32 = 1 << 31
)
