//go:build linux

package whirt

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

// textSegmentEnd recovers the end of the executable's text mapping from
// /proc/self/maps, standing in for the ELF etext symbol. Zero means the
// boundary is unknown and non-heap pointers are never dereferenced.
func textSegmentEnd() uintptr {
	exe, err := os.Executable()
	if err != nil {
		exe = ""
	}
	f, err := os.Open("/proc/self/maps")
	if err != nil {
		return 0
	}
	defer f.Close()

	var end uintptr
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 6 {
			continue
		}
		perms, path := fields[1], fields[5]
		if !strings.Contains(perms, "x") {
			continue
		}
		if exe != "" && path != exe {
			continue
		}
		r := strings.SplitN(fields[0], "-", 2)
		if len(r) != 2 {
			continue
		}
		hi, err := strconv.ParseUint(r[1], 16, 64)
		if err != nil {
			continue
		}
		if uintptr(hi) > end {
			end = uintptr(hi)
		}
	}
	return end
}
