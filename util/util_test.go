package util_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/TPiechocki/OS-xonar-driver/util"
)

func ExampleMasked() {
	fmt.Printf("%#04x\n", util.Masked[uint16](0x1234, 0x00ff, 0x0f0f))
	// Output: 0x103f
}

func ExampleSetBits() {
	fmt.Printf("%08b\n", util.SetBits[uint8](0, 1<<7, true))
	fmt.Printf("%08b\n", util.SetBits[uint8](255, 1, false))
	// Output:
	// 10000000
	// 11111110
}

func ExampleIntSliceToCSV() {
	fmt.Println(util.IntSliceToCSV([]int{127, 127, 100}))
	// Output: 127,127,100
}

func TestGetBit(t *testing.T) {
	assert.True(t, util.GetBit(0x80, 7))
	assert.False(t, util.GetBit(0x80, 6))
	assert.True(t, util.GetBit(0x01, 0))
}

func TestClampInt(t *testing.T) {
	assert.Equal(t, 67, util.ClampInt(0, 67, 127))
	assert.Equal(t, 127, util.ClampInt(200, 67, 127))
	assert.Equal(t, 100, util.ClampInt(100, 67, 127))
	assert.True(t, util.InRange(67, 67, 127))
	assert.False(t, util.InRange(128, 67, 127))
}
