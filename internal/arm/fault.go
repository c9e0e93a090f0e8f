package arm

// Fault status register layout.
const (
	// FSRWriteBit is set in the DFSR when the aborting access was a write.
	FSRWriteBit = 11
	// FSRStatus4Bit is the position of the fifth status bit in the DFSR.
	FSRStatus4Bit = 10
	// ImpreciseExternalAbort is the full DFSR status of an asynchronous external abort.
	ImpreciseExternalAbort uint32 = 0b10110
)

// Short-descriptor fault status codes produced by the page walk.
const (
	StatusAlignment          uint32 = 0x1
	StatusTranslationSection uint32 = 0x5
	StatusTranslationPage    uint32 = 0x7
	StatusPermissionSection  uint32 = 0xD
	StatusPermissionPage     uint32 = 0xF
)

var dataFaultCauses = [...]string{
	"No function, reset value",
	"Alignment fault",
	"Debug event fault",
	"Access Flag fault on Section",
	"Cache maintenance operation fault",
	"Translation fault on Section",
	"Access Flag fault on Page",
	"Translation fault on Page",
	"Precise External Abort",
	"Domain fault on Section",
	"No function",
	"Domain fault on Page",
	"External abort on translation, first level",
	"Permission fault on Section",
	"External abort on translation, second level",
	"Permission fault on Page",
	"Imprecise External Abort",
}

var instructionFaultCauses = [...]string{
	"No function, reset value",
	"No function",
	"Debug event fault",
	"Access Flag fault on Section",
	"No function",
	"Translation fault on Section",
	"Access Flag fault on Page",
	"Translation fault on Page",
	"Precise External Abort",
	"Domain fault on Section",
	"No function",
	"Domain fault on Page",
	"External Abort on Section",
	"Permission fault on Section",
	"External Abort on Page",
	"Permission fault on Page",
}

// IsWrite reports whether a DFSR value describes a write access.
func IsWrite(dfsr uint32) bool {
	return dfsr&(1<<FSRWriteBit) != 0
}

// DataFaultCauses decodes a DFSR into the lines printed by the abort
// handler. An extended status (bit 10) yields an extra leading line.
func DataFaultCauses(dfsr uint32) []string {
	var out []string
	if dfsr&(1<<FSRStatus4Bit) != 0 {
		if (1<<4 | dfsr&0xF) == ImpreciseExternalAbort {
			out = append(out, dataFaultCauses[16])
		} else {
			out = append(out, dataFaultCauses[10])
		}
	}
	return append(out, dataFaultCauses[dfsr&0xF])
}

// InstructionFaultCauses decodes an IFSR. The IFSR carries its fifth status
// bit one position lower than the DFSR.
func InstructionFaultCauses(ifsr uint32) []string {
	var out []string
	if ifsr&(1<<(FSRStatus4Bit-1)) != 0 {
		out = append(out, "No function")
	}
	return append(out, instructionFaultCauses[ifsr&0xF])
}
