package process_test

import (
	"fmt"
	"os"
	"strconv"
	"testing"

	"github.com/CZERTAINLY/osal/internal/reexec"
	"go.uber.org/goleak"
)

func init() {
	reexec.Register("exit-code", func(args []string) int {
		code, err := strconv.Atoi(args[0])
		if err != nil {
			return 2
		}
		return code
	})
	reexec.Register("print", func(args []string) int {
		for _, a := range args {
			fmt.Println(a)
		}
		return 0
	})
}

func TestMain(m *testing.M) {
	if reexec.Init() {
		os.Exit(0)
	}
	goleak.VerifyTestMain(m)
}
