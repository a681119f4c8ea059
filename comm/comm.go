/*Package comm provides host access to PCI sound cards through sysfs.

A PCIDevice implements oxygen.Device for a function under
/sys/bus/pci/devices.  Its I/O BAR is reached through the resource0 file,
which the kernel turns into exact-width inb/inw/inl (and out*) accesses, so a
Port behaves like the register window seen from a kernel driver.  Interrupts
come from a UIO node when one is bound to the device; otherwise the line is
polled.

Usage with package xonar:

	dev := comm.NewPCIDevice("0000:05:04.0")
	dev.UIO = "/dev/uio0"
	chip, err := xonar.Probe(dev, cfg)
*/
package comm

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"golang.org/x/sys/unix"

	"github.com/TPiechocki/OS-xonar-driver/oxygen"
)

// SysfsRoot is where the kernel lists PCI functions
const SysfsRoot = "/sys/bus/pci/devices"

// IDs of the C-Media CMI8788 and of the Asus Xonar DX built on it
const (
	VendorCMedia    = 0x13f6
	DeviceCMI8788   = 0x8788
	SubVendorAsus   = 0x1043
	SubDeviceXonarD = 0x8275
)

// ioResource is IORESOURCE_IO in the flags column of the sysfs resource file
const ioResource = 0x100

// command register of the configuration header and its bus master bit
const (
	pciCommand   = 0x04
	pciBusMaster = 0x04
	pciIOSpace   = 0x01
)

var (
	// ErrRegionBusy is returned when another process holds the I/O window
	ErrRegionBusy = errors.New("comm: I/O region busy")

	// ErrNotIOResource is returned when BAR 0 is not an I/O port range
	ErrNotIOResource = errors.New("comm: BAR 0 is not an I/O resource")

	// ErrShortIORange is returned when BAR 0 is smaller than the register window
	ErrShortIORange = errors.New("comm: I/O range too small")

	// ErrWrongDevice is returned when the function is not a CMI8788
	ErrWrongDevice = errors.New("comm: not a CMI8788")

	// ErrNotClaimed is returned by ReleaseRegions when nothing was claimed
	ErrNotClaimed = errors.New("comm: I/O region not claimed")
)

var _ oxygen.Device = (*PCIDevice)(nil)

// PCIDevice is a CMI8788 function reached through sysfs.  It is not safe
// for concurrent use; the chip that owns it serializes bring-up and teardown.
type PCIDevice struct {
	// Addr is the function's address, domain:bus:device.function
	Addr string

	// Root defaults to SysfsRoot
	Root string

	// UIO is the UIO node bound to the device; the interrupt line is polled
	// every PollInterval when it is empty
	UIO          string
	PollInterval time.Duration

	// ClaimTimeout bounds the retries while another process holds the I/O window
	ClaimTimeout time.Duration

	port *Port
}

// NewPCIDevice returns the device at addr with default settings
func NewPCIDevice(addr string) *PCIDevice {
	return &PCIDevice{
		Addr:         addr,
		Root:         SysfsRoot,
		PollInterval: time.Millisecond,
		ClaimTimeout: 3 * time.Second,
	}
}

func (d *PCIDevice) String() string {
	return "PCI " + d.Addr
}

func (d *PCIDevice) path(name string) string {
	root := d.Root
	if root == "" {
		root = SysfsRoot
	}
	return filepath.Join(root, d.Addr, name)
}

// readHex reads a sysfs attribute holding one hex number
func (d *PCIDevice) readHex(name string) (uint64, error) {
	b, err := os.ReadFile(d.path(name))
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(strings.TrimPrefix(strings.TrimSpace(string(b)), "0x"), 16, 64)
}

// Enable checks that the function is a CMI8788 and enables it
func (d *PCIDevice) Enable() error {
	vendor, err := d.readHex("vendor")
	if err != nil {
		return err
	}
	device, err := d.readHex("device")
	if err != nil {
		return err
	}
	if vendor != VendorCMedia || device != DeviceCMI8788 {
		return fmt.Errorf("%w: %s is %04x:%04x", ErrWrongDevice, d.Addr, vendor, device)
	}
	return os.WriteFile(d.path("enable"), []byte("1"), 0)
}

// Disable disables the function
func (d *PCIDevice) Disable() error {
	return os.WriteFile(d.path("enable"), []byte("0"), 0)
}

// bar0 returns the flags and length of the first line of the resource file
func (d *PCIDevice) bar0() (flags, size uint64, err error) {
	f, err := os.Open(d.path("resource"))
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		return 0, 0, fmt.Errorf("comm: empty resource file for %s", d.Addr)
	}
	fields := strings.Fields(sc.Text())
	if len(fields) != 3 {
		return 0, 0, fmt.Errorf("comm: malformed resource line %q", sc.Text())
	}
	var v [3]uint64
	for i, s := range fields {
		v[i], err = strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 64)
		if err != nil {
			return 0, 0, err
		}
	}
	if v[1] < v[0] {
		return v[2], 0, nil
	}
	return v[2], v[1] - v[0] + 1, nil
}

// RequestRegions opens the I/O BAR and takes an exclusive lock on it,
// retrying with exponential back-off while another process holds it
func (d *PCIDevice) RequestRegions() (oxygen.Bus, error) {
	flags, size, err := d.bar0()
	if err != nil {
		return nil, err
	}
	if flags&ioResource == 0 {
		return nil, fmt.Errorf("%w: flags %#x", ErrNotIOResource, flags)
	}
	if size < oxygen.IOSize {
		return nil, fmt.Errorf("%w: %d bytes, need %d", ErrShortIORange, size, oxygen.IOSize)
	}

	f, err := os.OpenFile(d.path("resource0"), os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	if err = d.claim(f); err != nil {
		f.Close()
		return nil, err
	}
	d.port = &Port{f: f}
	return d.port, nil
}

func (d *PCIDevice) claim(f *os.File) error {
	// the same trick as the serial opens: only a busy lock is retried,
	// anything else ends the back-off with its error recorded
	var fatal error
	op := func() error {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, unix.EWOULDBLOCK):
			return err
		default:
			fatal = err
			return nil
		}
	}
	err := backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      d.ClaimTimeout,
		Clock:               backoff.SystemClock})
	if fatal != nil {
		return fatal
	}
	if err != nil {
		return fmt.Errorf("%w: %s", ErrRegionBusy, d.Addr)
	}
	return nil
}

// ReleaseRegions unlocks and closes the I/O BAR
func (d *PCIDevice) ReleaseRegions() error {
	if d.port == nil {
		return ErrNotClaimed
	}
	p := d.port
	d.port = nil
	unix.Flock(int(p.f.Fd()), unix.LOCK_UN)
	return p.f.Close()
}

// SetMaster sets the I/O space and bus master bits of the command register
func (d *PCIDevice) SetMaster() error {
	f, err := os.OpenFile(d.path("config"), os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	var b [2]byte
	if _, err = f.ReadAt(b[:], pciCommand); err != nil {
		return err
	}
	cmd := uint16(b[0]) | uint16(b[1])<<8
	if cmd&(pciBusMaster|pciIOSpace) == pciBusMaster|pciIOSpace {
		return nil
	}
	cmd |= pciBusMaster | pciIOSpace
	b[0], b[1] = byte(cmd), byte(cmd>>8)
	_, err = f.WriteAt(b[:], pciCommand)
	return err
}

// OpenIRQ opens the UIO node, or returns a polling source without one
func (d *PCIDevice) OpenIRQ() (oxygen.IRQSource, error) {
	if d.UIO == "" {
		return NewPollingIRQ(d.PollInterval), nil
	}
	return OpenUIO(d.UIO)
}

// Find lists the addresses of all CMI8788 functions under root
func Find(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		d := &PCIDevice{Addr: e.Name(), Root: root}
		vendor, err := d.readHex("vendor")
		if err != nil {
			continue
		}
		device, err := d.readHex("device")
		if err != nil {
			continue
		}
		if vendor == VendorCMedia && device == DeviceCMI8788 {
			out = append(out, e.Name())
		}
	}
	return out, nil
}
