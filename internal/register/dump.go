// internal/register/dump.go
package register

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// DumpFileName is the conventional name of the last-written bit dump.
const DumpFileName = "WRITTEN_TO_CHIP.txt"

// WriteBitDump writes the image as CSV, one row per bit in wire order:
//
//	Bit Number,PBit,Value
//	1,127,0
//	...
//	128,0,1
func WriteBitDump(w io.Writer, img Image) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintln(bw, "Bit Number,PBit,Value"); err != nil {
		return err
	}
	for n := 1; n <= Size*8; n++ {
		pbit := uint(Size*8 - n)
		if _, err := fmt.Fprintf(bw, "%d,%d,%d\n", n, pbit, img.Bit(pbit)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// SaveBitDump writes the dump to path, replacing any previous file.
func SaveBitDump(path string, img Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("register: dump: %w", err)
	}
	if err := WriteBitDump(f, img); err != nil {
		f.Close()
		return fmt.Errorf("register: dump %s: %w", path, err)
	}
	return f.Close()
}
