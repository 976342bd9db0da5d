package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Reification
	ReifyInfo          Code = 1000
	ReifyUnknownFormat Code = 1001
	ReifySkippedType   Code = 1002
	ReifyNameTruncated Code = 1003

	// Liveness repair
	LiveInfo        Code = 2000
	LiveExtended    Code = 2001
	LiveShadowed    Code = 2002
	LiveInvalidCast Code = 2003
	LiveEmptyTrace  Code = 2004

	// Instrumentation driver
	InsInfo           Code = 3000
	InsNoMain         Code = 3001
	InsNoReturnBlock  Code = 3002
	InsUnknownIndex   Code = 3003
	InsNonScalarArray Code = 3004
	InsSkippedVar     Code = 3005

	// IR container
	ModInfo        Code = 4000
	ModBadSchema   Code = 4001
	ModInvalidFunc Code = 4002
)

func (c Code) String() string {
	return fmt.Sprintf("WHI%04d", uint16(c))
}
