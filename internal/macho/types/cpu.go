package types

// CPU is a Mach-O cpu_type_t. Only the two targets this linker supports
// are given names; a third arch showing up in an input file is a load
// error, not a silently-accepted constant.
type CPU uint32

const (
	cpuArch64 = 0x01000000

	CPUAmd64 CPU = 7 | cpuArch64
	CPUArm64 CPU = 12 | cpuArch64
)

var cpuStrings = []IntName{
	{uint32(CPUAmd64), "x86_64"},
	{uint32(CPUArm64), "arm64"},
}

func (c CPU) String() string { return StringName(uint32(c), cpuStrings, false) }

type CPUSubtype uint32

const (
	CpuSubtypeFeatureMask CPUSubtype = 0xff000000
	CpuSubtypeMask                   = CPUSubtype(^CpuSubtypeFeatureMask)

	CPUSubtypeX8664All CPUSubtype = 3
	CPUSubtypeArm64All  CPUSubtype = 0
	CPUSubtypeArm64E    CPUSubtype = 2
)

func (st CPUSubtype) String(cpu CPU) string {
	switch cpu {
	case CPUAmd64:
		return "x86_64"
	case CPUArm64:
		if st&CpuSubtypeMask == CPUSubtypeArm64E {
			return "arm64e"
		}
		return "arm64"
	}
	return "unknown"
}
