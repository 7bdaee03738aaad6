//go:build wasip1

package guest

import (
	"errors"
	"unsafe"

	"github.com/tomyedwab/d1sql/sqlproxy/driver"
	"github.com/tomyedwab/d1sql/sqlproxy/hostcall"
)

// d1_host_handler sends one request to the host. The host writes the
// address of the response buffer to destPtr and returns its size, negated
// when the response is an error message.
//
//go:wasmimport env d1_host_handler
func d1_host_handler(requestPayload string, destPtr uint32) int32

func callHost(payload []byte) ([]byte, error) {
	var destPtr uint32
	size := d1_host_handler(string(payload), uint32(uintptr(unsafe.Pointer(&destPtr))))
	if size < 0 {
		return nil, errors.New(string(takeBytes(destPtr, uint32(-size))))
	}
	return takeBytes(destPtr, uint32(size)), nil
}

// Init routes hostcall through the host handler and registers the binding
// with the d1 driver under name.
func Init(name string) error {
	hostcall.SetHostHandler(callHost)
	b, err := hostcall.Default()
	if err != nil {
		return err
	}
	driver.RegisterBinding(name, b)
	return nil
}
