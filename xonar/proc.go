package xonar

import (
	"bufio"
	"fmt"
	"io"

	"github.com/TPiechocki/OS-xonar-driver/oxygen"
)

func packageName(rev uint8) byte {
	switch rev & oxygen.PackageIDMask {
	case oxygen.PackageID8786:
		return '6'
	case oxygen.PackageID8787:
		return '7'
	case oxygen.PackageID8788:
		return '8'
	}
	return '?'
}

// Dump writes the register shadow of the controller, 16 bytes per line, the
// shadow of AC'97 codec 1 if present and the DAC register images.  Nothing is
// read from the hardware except the revision.
func (c *Chip) Dump(w io.Writer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Freed {
		return fmt.Errorf("%w: %s", ErrBadState, c.state)
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "CMI878%c:\n", packageName(c.regs.Read8(oxygen.Revision)))
	shadow := c.regs.Snapshot()
	for i := 0; i < oxygen.IOSize; i += 16 {
		fmt.Fprintf(bw, "%02x:", i)
		for j := 0; j < 16; j++ {
			fmt.Fprintf(bw, " %02x", shadow[i+j])
		}
		fmt.Fprintln(bw)
	}

	if c.hasAC97[1] {
		fmt.Fprint(bw, "\nAC97 2:\n")
		for i := uint(0); i < 0x80; i += 16 {
			fmt.Fprintf(bw, "%02x:", i)
			for j := uint(0); j < 16; j += 2 {
				fmt.Fprintf(bw, " %04x", c.ac97.Shadow(1, i+j))
			}
			fmt.Fprintln(bw)
		}
	}

	c.dac.Dump(bw)
	return bw.Flush()
}
